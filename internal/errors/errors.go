package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tessro/cadence/internal/mpd/proto"
)

// Error types for common failure scenarios.
var (
	ErrNotConnected      = errors.New("not connected")
	ErrConnectionRefused = errors.New("connection refused")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrTimeout           = errors.New("timeout")
	ErrCommandNotAllowed = errors.New("command not allowed by server")
	ErrCanceled          = errors.New("request canceled")
	ErrClosed            = errors.New("client closed")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// CadenceError wraps an error with a user-friendly suggestion.
type CadenceError struct {
	Err        error
	Suggestion string
}

func (e *CadenceError) Error() string {
	return e.Err.Error()
}

func (e *CadenceError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &CadenceError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var cadenceErr *CadenceError
	if errors.As(err, &cadenceErr) && cadenceErr.Suggestion != "" {
		return cadenceErr.Suggestion
	}

	// Server-side command errors
	var ack *proto.AckError
	if errors.As(err, &ack) {
		switch ack.Code {
		case proto.AckPassword:
			return "Check the password configured for this server profile"
		case proto.AckPermission:
			return "The server denied this command; a password with more permissions may be required"
		case proto.AckNoExist:
			return "The song, playlist or output does not exist. Refresh and try again"
		case proto.AckUnknown:
			return "The server does not support this command. Check the server version"
		case proto.AckUpdateAlready:
			return "A database update is already running"
		}
		return ""
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrAuthFailed) {
		return "Check the password configured for this server profile"
	}

	if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionRefused) ||
		strings.Contains(errStr, "connection refused") {
		return "Make sure MPD is running and reachable, or pass --host/--port"
	}

	if errors.Is(err, ErrTimeout) || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "i/o timeout") {
		return "The server did not answer in time. Check the network or raise [mpd] timeout"
	}

	if errors.Is(err, ErrCommandNotAllowed) {
		return "The server does not allow this command for this client"
	}

	if errors.Is(err, ErrProfileNotFound) {
		return "Run 'cadence profile list' to see configured servers"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) || strings.Contains(errStr, "config") {
		return "Run 'cadence config init' to create a configuration file"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
