package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Exit codes for ems commands.
const (
	ExitSuccess      = 0 // run consistent, config valid, history listed
	ExitFailure      = 1 // checksum mismatch, rejected config values, interrupted run
	ExitCommandError = 2 // missing config file, unparsable YAML, unusable database
)

// Error codes reported in CLI error responses.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeConfigParse   = "E002" // Config file could not be parsed
	ErrCodeConfigInvalid = "E003" // Config values rejected by the schema
	ErrCodeDatabase      = "E004" // Run history database error
	ErrCodeNotFound      = "E005" // Path or run not found
	ErrCodeInconsistent  = "E006" // Checksum mismatch or corrupt transaction
	ErrCodeRunFailed     = "E007" // Run aborted or interrupted
)

// ExitError carries the process exit code for a failed command. Commands
// report the failure themselves before returning it; main only exits.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every JSON document a command prints.
// A failure may still carry data, such as the report of an inconsistent run.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failure in a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // ErrCodeGeneric, ErrCodeConfigParse, etc.
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as one JSON document.
//
// Results go to Writer. Diagnostics (verbose lines and slog records) go to
// ErrWriter so they never interleave with a JSON document on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // defaults to Writer
	Verbose   bool
}

// Emit prints data: as the JSON envelope, or through text in text mode.
func (f *OutputFormatter) Emit(data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	return text(f.Writer)
}

// Success prints a successful result. Text mode prints data with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.respond(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error prints a failure without a result.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.respond(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Failure prints a failure that still has a result. JSON mode puts both in
// one envelope; text mode renders data with text, then the error line.
func (f *OutputFormatter) Failure(code, message string, data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return f.respond(CLIResponse{
			Status: "error",
			Data:   data,
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	if err := text(f.Writer); err != nil {
		return err
	}
	return f.Error(code, message, nil)
}

// VerboseLog prints a diagnostic line when verbose mode is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

// Logger returns a text slog logger on the diagnostic writer. Verbose mode
// enables debug records.
func (f *OutputFormatter) Logger() *slog.Logger {
	level := slog.LevelInfo
	if f.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(f.errWriter(), &slog.HandlerOptions{Level: level}))
}

func (f *OutputFormatter) respond(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
