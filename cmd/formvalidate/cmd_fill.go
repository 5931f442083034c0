package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formvalidate/pkg/prompt"
)

type fillFlags struct {
	schemaFlags
	sessionFlags
	rounds int
}

func newFillCmd() *cobra.Command {
	flags := &fillFlags{}
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill a model interactively, asking again for invalid fields",
		Long: `Prompts for every field of the schema (fields revealed by earlier answers
are asked too), validates, and asks again for the fields that fail until the
model is valid or the correction rounds run out. The model is printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req, err := flags.request()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := newOrchestrator().Session(ctx, req, opts...)
			if err != nil {
				return err
			}

			// prompting is not bounded by the load timeout
			filler := prompt.New(prompt.WithLogger(logger), prompt.WithRounds(flags.rounds))
			_, err = filler.Fill(context.WithoutCancel(ctx), s)
			if err != nil && !errors.Is(err, prompt.ErrIncomplete) {
				return err
			}
			if werr := writeJSON(cmd.OutOrStdout(), s.Model().Map()); werr != nil {
				return werr
			}
			if err != nil {
				return errInvalid
			}
			return nil
		},
	}
	flags.schemaFlags.register(cmd)
	flags.sessionFlags.register(cmd)
	cmd.Flags().IntVar(&flags.rounds, "rounds", prompt.DefaultRounds, "Correction rounds before giving up")
	return cmd
}
