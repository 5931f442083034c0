package main

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formvalidate/pkg/validation"
)

// report is the JSON printed by validate.
type report struct {
	Valid        bool                `json:"valid"`
	Errors       validation.ErrorMap `json:"errors"`
	ServerErrors map[string][]string `json:"server_errors,omitempty"`
	FormErrors   []string            `json:"form_errors,omitempty"`
	Required     []string            `json:"required,omitempty"`
	SchemaError  string              `json:"schema_error,omitempty"`
}

type validateFlags struct {
	schemaFlags
	sessionFlags
	serverErrors string
	watch        bool
}

func newValidateCmd() *cobra.Command {
	flags := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a model and print the error map as JSON",
		Long: `Loads the schemas, validates the model and prints a JSON report with one
message per failing field. The exit status is 1 when the model is invalid.

With --server-errors, a backend error payload (field -> message or list of
messages) is mapped onto schema fields; unknown keys become form errors.
With --watch, the report is printed again whenever an input file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return watchInputs(ctx, flags.watchFiles(), func() {
					if err := runValidate(cmd, flags, cmd.OutOrStdout()); err != nil && !errors.Is(err, errInvalid) {
						logger.Error("Validation failed", zap.Error(err))
					}
				})
			}
			return runValidate(cmd, flags, cmd.OutOrStdout())
		},
	}
	flags.schemaFlags.register(cmd)
	flags.sessionFlags.register(cmd)
	cmd.Flags().StringVar(&flags.serverErrors, "server-errors", "", "JSON file with errors returned by the backend")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Validate again when input files change")
	return cmd
}

func (f *validateFlags) watchFiles() []string {
	files := f.schemaFlags.files()
	for _, location := range []string{f.model, f.serverErrors} {
		if location != "" && location != "-" {
			files = append(files, location)
		}
	}
	return files
}

func runValidate(cmd *cobra.Command, flags *validateFlags, out io.Writer) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	return validateOnce(ctx, cmd.InOrStdin(), flags, out)
}

func validateOnce(ctx context.Context, stdin io.Reader, flags *validateFlags, out io.Writer) error {
	req, err := flags.request()
	if err != nil {
		return err
	}
	opts, err := flags.options(stdin)
	if err != nil {
		return err
	}
	s, err := newOrchestrator().Session(ctx, req, opts...)
	if err != nil {
		return err
	}

	rep := report{Errors: s.Validate()}
	if flags.serverErrors != "" {
		payload, err := readServerErrors(flags.serverErrors)
		if err != nil {
			return err
		}
		s.SetServerErrors(payload)
		server := s.ServerErrors()
		rep.ServerErrors = server.Fields
		rep.FormErrors = server.Form
	}
	rep.Valid = s.IsValid() && len(rep.ServerErrors) == 0 && len(rep.FormErrors) == 0
	rep.Required = s.RequiredFieldPaths()
	if err := s.SchemaError(); err != nil {
		rep.SchemaError = err.Error()
	}

	logger.Info("Model validated",
		zap.String("session", s.ID()),
		zap.Bool("valid", rep.Valid),
		zap.Int("errors", len(rep.Errors)))

	if err := writeJSON(out, rep); err != nil {
		return err
	}
	if !rep.Valid {
		return errInvalid
	}
	return nil
}
