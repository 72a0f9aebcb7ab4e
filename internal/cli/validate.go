package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ems/internal/workload"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []workload.ValidationError `json:"errors,omitempty"`
	Config *workload.Config           `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a workload config without running it",
		Long: `Validate a YAML workload config against the config schema.

Unknown keys, out of range values and a queue heap too small for the
generated transactions are reported. Missing keys take their defaults.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	formatter.VerboseLog("Validating %s", path)
	cfg, err := workload.LoadConfig(path)
	if err != nil {
		return outputConfigError(formatter, err)
	}
	formatter.VerboseLog("Effective queue capacity: %d", cfg.EffectiveQueueCapacity())

	return outputValidateSuccess(formatter, cfg)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, cfg workload.Config) error {
	return formatter.Emit(ValidationResult{Valid: true, Config: &cfg}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "✓ Config valid")
		return err
	})
}

// outputValidationErrors outputs every rejected config field.
func outputValidationErrors(formatter *OutputFormatter, errs workload.ValidationErrors) error {
	result := ValidationResult{Valid: false, Errors: errs}
	message := errs[0].Field + ": " + errs[0].Message
	if formatter.Format == "json" {
		if err := formatter.Failure(ErrCodeConfigInvalid, message, result, nil); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, err := range errs {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", ErrCodeConfigInvalid, err.Field, err.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
