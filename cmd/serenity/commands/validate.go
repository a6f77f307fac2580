package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nabbelbabbel/serenity/internal/sysio"
)

// ErrValidationFailed is returned when a document violates its schema.
var ErrValidationFailed = errors.New("validation failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Validate a system or settings file against its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}

			return runValidate(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	result, err := sysio.ValidateFile(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if result.Valid {
		color.New(color.FgGreen).Fprintf(out, "PASS")
		fmt.Fprintf(out, " %s is a valid %s document\n", path, result.Kind)

		return nil
	}

	color.New(color.FgRed).Fprintf(out, "FAIL")
	fmt.Fprintf(out, " %s is not a valid %s document\n", path, result.Kind)

	for _, fieldErr := range result.Errors {
		fmt.Fprintf(out, "  %s: %s\n", fieldErr.Field, fieldErr.Description)
	}

	return fmt.Errorf("%w: %s", ErrValidationFailed, path)
}
