// Package loader fetches schema documents from files, fs.FS entries, HTTP
// endpoints or inline bytes and parses them.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	internal "github.com/goliatone/go-formvalidate/internal/loader"
	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// ErrTooLarge is returned for documents above the size cap.
var ErrTooLarge = internal.ErrTooLarge

// Loader resolves schema.Source values into parsed documents.
type Loader struct {
	opts Options
	http *http.Client
}

// New constructs a Loader.
func New(options ...Option) *Loader {
	cfg := NewOptions(options...)

	var client *http.Client
	switch {
	case cfg.HTTPClient != nil:
		clone := *cfg.HTTPClient
		if cfg.Timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = cfg.Timeout
		}
		client = &clone
	case cfg.AllowHTTP:
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Loader{opts: cfg, http: client}
}

// Read returns the raw bytes behind src.
func (l *Loader) Read(ctx context.Context, src schema.Source) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("loader: context is required")
	}
	if src == nil {
		return nil, errors.New("loader: source is nil")
	}

	switch src.Kind() {
	case schema.SourceKindFile:
		return internal.File(ctx, src.Location(), l.opts.MaxBytes)
	case schema.SourceKindFS:
		return internal.FS(ctx, l.opts.FileSystem, src.Location(), l.opts.MaxBytes)
	case schema.SourceKindURL:
		if l.http == nil {
			return nil, errors.New("loader: http support disabled")
		}
		return internal.HTTP(ctx, l.http, internal.Request{
			URL:     src.Location(),
			Method:  l.opts.Method,
			Headers: l.opts.Headers,
			Timeout: l.opts.Timeout,
			Limit:   l.opts.MaxBytes,
		})
	case schema.SourceKindInline:
		inline, ok := src.(schema.InlineSource)
		if !ok {
			return nil, fmt.Errorf("loader: inline source has type %T", src)
		}
		if l.opts.MaxBytes > 0 && int64(len(inline.Data)) > l.opts.MaxBytes {
			return nil, ErrTooLarge
		}
		return inline.Data, nil
	default:
		return nil, fmt.Errorf("loader: unsupported source kind %q", src.Kind())
	}
}

// Load reads and parses src.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	data, err := l.Read(ctx, src)
	if err != nil {
		return schema.Document{}, err
	}
	doc, err := schema.Parse(data)
	if err != nil {
		return schema.Document{}, fmt.Errorf("loader: %s: %w", src.Location(), err)
	}
	doc.Source = src
	l.opts.Logger.Debug("Schema loaded",
		zap.String("kind", string(src.Kind())),
		zap.String("location", src.Location()),
		zap.Int("bytes", len(data)))
	return doc, nil
}

// LoadOptional is Load for backend fragments: a nil source yields a nil
// document rather than an error.
func (l *Loader) LoadOptional(ctx context.Context, src schema.Source) (*schema.Document, error) {
	if src == nil {
		return nil, nil
	}
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
