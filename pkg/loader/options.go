package loader

import (
	"io/fs"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxBytes caps documents when Options.MaxBytes is zero.
const DefaultMaxBytes int64 = 4 << 20

// Options configures how a Loader resolves sources.
type Options struct {
	// FileSystem serves fs sources.
	FileSystem fs.FS

	// HTTPClient is used for URL sources. Nil disables them unless
	// AllowHTTP is set, in which case a client with Timeout is built.
	HTTPClient *http.Client
	AllowHTTP  bool

	// Method is the HTTP method used for URL sources, OPTIONS by default.
	Method string

	// Headers are sent with every HTTP request, e.g. Authorization.
	Headers http.Header

	// Timeout caps remote fetch durations.
	Timeout time.Duration

	// MaxBytes caps document size; negative disables the cap.
	MaxBytes int64

	Logger *zap.Logger
}

// Option mutates Options prior to construction.
type Option func(*Options)

// WithFileSystem injects an fs.FS for fs sources.
func WithFileSystem(files fs.FS) Option {
	return func(opts *Options) {
		opts.FileSystem = files
	}
}

// WithHTTPClient injects a custom HTTP client for URL sources.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithHTTP enables URL sources using a default client and timeout.
func WithHTTP(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.AllowHTTP = true
		opts.Timeout = timeout
	}
}

// WithMethod overrides the HTTP method.
func WithMethod(method string) Option {
	return func(opts *Options) {
		opts.Method = method
	}
}

// WithHeader adds a header sent with every HTTP request.
func WithHeader(key, value string) Option {
	return func(opts *Options) {
		if opts.Headers == nil {
			opts.Headers = make(http.Header)
		}
		opts.Headers.Add(key, value)
	}
}

// WithMaxBytes overrides the document size cap.
func WithMaxBytes(limit int64) Option {
	return func(opts *Options) {
		opts.MaxBytes = limit
	}
}

// WithLogger injects a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// NewOptions applies options over the defaults.
func NewOptions(options ...Option) Options {
	cfg := Options{Method: http.MethodOptions, MaxBytes: DefaultMaxBytes}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodOptions
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}
