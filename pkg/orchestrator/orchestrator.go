package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formvalidate/pkg/loader"
	"github.com/goliatone/go-formvalidate/pkg/model"
	"github.com/goliatone/go-formvalidate/pkg/openapi"
	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/session"
	"github.com/goliatone/go-formvalidate/pkg/store"
	"github.com/goliatone/go-formvalidate/pkg/validation"
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLoader injects a custom schema loader.
func WithLoader(l *loader.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = l
	}
}

// WithCache shares a validator cache between every session the orchestrator
// creates.
func WithCache(cache *validation.Cache) Option {
	return func(o *Orchestrator) {
		o.cache = cache
	}
}

// WithLogger injects the logger handed to loaders and sessions.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSessionOptions registers options applied to every session before the
// per-request ones.
func WithSessionOptions(options ...session.Option) Option {
	return func(o *Orchestrator) {
		o.sessionOptions = append(o.sessionOptions, options...)
	}
}

// WithOpenAPIValidation validates OpenAPI documents before extracting the
// request schema.
func WithOpenAPIValidation(enabled bool) Option {
	return func(o *Orchestrator) {
		o.validateOpenAPI = enabled
	}
}

// Orchestrator coordinates loading, merging and session construction. It
// applies sensible defaults (file loader, shared cache, no-op logger) while
// remaining open to dependency injection.
type Orchestrator struct {
	loader          *loader.Loader
	cache           *validation.Cache
	logger          *zap.Logger
	sessionOptions  []session.Option
	validateOpenAPI bool
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	if o.loader == nil {
		o.loader = loader.New(loader.WithLogger(o.logger))
	}
	if o.cache == nil {
		o.cache = validation.NewCache(validation.DefaultCacheSize)
	}
	return o
}

// Request describes where the schemas of a form come from.
type Request struct {
	// Schema locates the frontend JSON Schema. Ignored when Document or
	// OpenAPI is set.
	Schema schema.Source

	// Document bypasses the loader with an already parsed frontend schema.
	Document *schema.Document

	// OpenAPI locates an OpenAPI 3 document; the request body of OperationID
	// becomes the frontend schema.
	OpenAPI     schema.Source
	OperationID string

	// Backend optionally locates the server provided fragment. A missing or
	// malformed fragment is logged and ignored.
	Backend schema.Source
}

// Documents resolves the frontend schema and the optional backend fragment.
func (o *Orchestrator) Documents(ctx context.Context, req Request) (schema.Document, *schema.Document, error) {
	if ctx == nil {
		return schema.Document{}, nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return schema.Document{}, nil, err
	}

	frontend, err := o.resolveFrontend(ctx, req)
	if err != nil {
		return schema.Document{}, nil, err
	}

	var backend *schema.Document
	if req.Backend != nil {
		backend, err = o.loader.LoadOptional(ctx, req.Backend)
		if err != nil {
			o.logger.Warn("Ignoring backend schema",
				zap.String("source", req.Backend.Location()),
				zap.Error(err))
			backend = nil
		}
	}
	return frontend, backend, nil
}

// Effective resolves the request and returns the merged schema.
func (o *Orchestrator) Effective(ctx context.Context, req Request) (schema.Document, error) {
	frontend, backend, err := o.Documents(ctx, req)
	if err != nil {
		return schema.Document{}, err
	}
	return store.New(frontend, store.WithLogger(o.logger), store.WithBackend(backend)).Effective(), nil
}

// Skeleton builds the empty model for the effective schema, with defaults
// filled in.
func (o *Orchestrator) Skeleton(ctx context.Context, req Request) (model.Model, error) {
	doc, err := o.Effective(ctx, req)
	if err != nil {
		return nil, err
	}
	built, err := model.Build(doc, model.WithDefaults(true))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build model: %w", err)
	}
	return built, nil
}

// Session loads the schemas and returns a session sharing the orchestrator
// cache and logger. Per-call options override the registered ones.
func (o *Orchestrator) Session(ctx context.Context, req Request, options ...session.Option) (*session.Session, error) {
	frontend, backend, err := o.Documents(ctx, req)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithCache(o.cache),
		session.WithLogger(o.logger),
		session.WithBackendSchema(backend),
	}
	opts = append(opts, o.sessionOptions...)
	opts = append(opts, options...)

	s := session.New(frontend, opts...)
	o.logger.Debug("Session created",
		zap.String("session", s.ID()),
		zap.Bool("backend", backend != nil))
	return s, nil
}

// Cache exposes the shared validator cache.
func (o *Orchestrator) Cache() *validation.Cache { return o.cache }

func (o *Orchestrator) resolveFrontend(ctx context.Context, req Request) (schema.Document, error) {
	if req.Document != nil {
		return req.Document.Clone(), nil
	}
	if req.OpenAPI != nil {
		if req.OperationID == "" {
			return schema.Document{}, errors.New("orchestrator: operation id is required")
		}
		raw, err := o.loader.Read(ctx, req.OpenAPI)
		if err != nil {
			return schema.Document{}, fmt.Errorf("orchestrator: load openapi: %w", err)
		}
		var opts []openapi.Option
		if o.validateOpenAPI {
			opts = append(opts, openapi.WithValidation())
		}
		doc, err := openapi.RequestSchema(ctx, raw, req.OperationID, opts...)
		if err != nil {
			return schema.Document{}, fmt.Errorf("orchestrator: %w", err)
		}
		doc.Source = req.OpenAPI
		return doc, nil
	}
	if req.Schema == nil {
		return schema.Document{}, errors.New("orchestrator: schema source, document or openapi source is required")
	}
	doc, err := o.loader.Load(ctx, req.Schema)
	if err != nil {
		return schema.Document{}, fmt.Errorf("orchestrator: load schema: %w", err)
	}
	return doc, nil
}
