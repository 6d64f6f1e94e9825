package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "timetrack/backend/internal/errors"
	"timetrack/backend/internal/service"
)

// Exit codes for timerctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation was rejected (not found, invalid transition)
	ExitCommandError = 2 // bad flags, unreadable database
)

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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that carry no code.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// fromAPIError maps a rejected operation to ExitFailure and a storage
// problem to ExitCommandError.
func fromAPIError(message string, apiErr *apperrors.APIError) *ExitError {
	code := ExitFailure
	if apiErr.Retryable() {
		code = ExitCommandError
	}
	return WrapExitError(code, message, apiErr)
}

// render writes data as JSON or YAML, or calls text for the human format.
func render(w io.Writer, format string, data interface{}, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toYAMLValue(data)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// toYAMLValue round-trips data through JSON so YAML output uses the same
// field names as the API.
func toYAMLValue(data interface{}) interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var value interface{}
	if err := yaml.Unmarshal(raw, &value); err != nil {
		return data
	}
	return value
}

func writeTimerTable(w io.Writer, timers []service.TimerView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tELAPSED\tSTARTED\tNOTE")
	for _, timer := range timers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			timer.ID,
			timer.Status,
			formatElapsed(timer.CurrentElapsedMs),
			timer.StartedAt.Format(time.RFC3339),
			timer.Note,
		)
	}
	return tw.Flush()
}

func formatElapsed(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}
