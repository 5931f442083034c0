package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formvalidate/pkg/loader"
	"github.com/goliatone/go-formvalidate/pkg/orchestrator"
	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/session"
)

// schemaFlags are shared by every command that needs a schema.
type schemaFlags struct {
	schema    string
	backend   string
	openapi   string
	operation string
}

func (f *schemaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.schema, "schema", "s", "", "Frontend schema file or URL")
	cmd.Flags().StringVarP(&f.backend, "backend", "b", "", "Backend schema fragment file or URL")
	cmd.Flags().StringVar(&f.openapi, "openapi", "", "OpenAPI document file or URL (replaces --schema)")
	cmd.Flags().StringVar(&f.operation, "operation", "", "OpenAPI operation id, or method:path")
}

func (f *schemaFlags) request() (orchestrator.Request, error) {
	var req orchestrator.Request
	switch {
	case f.openapi != "":
		src, err := schema.ParseSource(f.openapi)
		if err != nil {
			return req, err
		}
		req.OpenAPI = src
		req.OperationID = f.operation
	case f.schema != "":
		src, err := schema.ParseSource(f.schema)
		if err != nil {
			return req, err
		}
		req.Schema = src
	default:
		return req, fmt.Errorf("one of --schema or --openapi is required")
	}
	if f.backend != "" {
		src, err := schema.ParseSource(f.backend)
		if err != nil {
			return req, err
		}
		req.Backend = src
	}
	return req, nil
}

// files lists the local files behind the flags, for --watch.
func (f *schemaFlags) files() []string {
	var out []string
	for _, location := range []string{f.schema, f.backend, f.openapi} {
		if location == "" || strings.Contains(location, "://") {
			continue
		}
		out = append(out, location)
	}
	return out
}

// sessionFlags configure the session built from the schema.
type sessionFlags struct {
	model  string
	fields []string
	extras map[string]string
	eager  bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model file (JSON or YAML); - reads stdin")
	cmd.Flags().StringSliceVar(&f.fields, "fields", nil, "Restrict validation to these dotted paths")
	cmd.Flags().StringToStringVar(&f.extras, "extra", nil, "Values exposed to x-when expressions as extras.<key>")
	cmd.Flags().BoolVar(&f.eager, "eager", false, "Validate after every change from the start")
}

func (f *sessionFlags) options(stdin io.Reader) ([]session.Option, error) {
	opts := []session.Option{session.WithFieldsPaths(f.fields...)}
	if len(f.extras) > 0 {
		extras := make(map[string]any, len(f.extras))
		for key, value := range f.extras {
			extras[key] = value
		}
		opts = append(opts, session.WithExtras(extras))
	}
	if f.eager {
		opts = append(opts, session.WithPolicy(session.PolicyEager))
	}
	if f.model != "" {
		values, err := readModel(f.model, stdin)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithModel(values))
	}
	return opts, nil
}

func readModel(location string, stdin io.Reader) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if location == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}
	values, err := schema.DecodeMap(data)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", location, err)
	}
	return values, nil
}

func readServerErrors(location string) (map[string][]string, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read server errors: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode server errors: %w", err)
	}
	out := make(map[string][]string, len(raw))
	for key, value := range raw {
		switch typed := value.(type) {
		case string:
			out[key] = []string{typed}
		case []any:
			for _, item := range typed {
				out[key] = append(out[key], fmt.Sprint(item))
			}
		default:
			out[key] = []string{fmt.Sprint(typed)}
		}
	}
	return out, nil
}

func newOrchestrator() *orchestrator.Orchestrator {
	opts := []loader.Option{loader.WithLogger(logger)}
	if allowHTTP {
		opts = append(opts, loader.WithHTTP(timeout))
	}
	return orchestrator.New(
		orchestrator.WithLogger(logger),
		orchestrator.WithLoader(loader.New(opts...)),
	)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func writeJSON(w io.Writer, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}
