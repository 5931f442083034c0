package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formvalidate/pkg/openapi"
	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/validation"
)

func newMergeCmd() *cobra.Command {
	flags := &schemaFlags{}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Print the effective schema (frontend merged with backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req, err := flags.request()
			if err != nil {
				return err
			}
			doc, err := newOrchestrator().Effective(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), schema.Encode(doc, schema.WithAnnotations()))
		},
	}
	flags.register(cmd)
	return cmd
}

func newSkeletonCmd() *cobra.Command {
	flags := &schemaFlags{}
	cmd := &cobra.Command{
		Use:   "skeleton",
		Short: "Print the empty model derived from the effective schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req, err := flags.request()
			if err != nil {
				return err
			}
			skeleton, err := newOrchestrator().Skeleton(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), skeleton.Map())
		},
	}
	flags.register(cmd)
	return cmd
}

func newCheckSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-schema <file>...",
		Short: "Parse and compile schema files, reporting problems by field",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make(map[string]validation.SchemaValidationResult, len(args))
			valid := true
			for _, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				res := validation.ValidateSchema(raw)
				if !res.Valid {
					valid = false
					logger.Warn("Schema has issues", zap.String("file", path), zap.Int("issues", len(res.Issues)))
				}
				results[path] = res
			}
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if !valid {
				return errInvalid
			}
			return nil
		},
	}
}

func newOperationsCmd() *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "operations <openapi-file>",
		Short: "List OpenAPI operations that accept a request body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var opts []openapi.Option
			if validate {
				opts = append(opts, openapi.WithValidation())
			}
			ops, err := openapi.Operations(ctx, raw, opts...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ops)
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "Validate the OpenAPI document first")
	return cmd
}
