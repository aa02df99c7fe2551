package backend

import "fmt"

// ConfigError reports a malformed or incomplete grading document.
// Field is empty for document-level problems.
type ConfigError struct {
	Backend string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Backend == "":
		return fmt.Sprintf("config: %s", e.Message)
	case e.Field == "":
		return fmt.Sprintf("%s config: %s", e.Backend, e.Message)
	default:
		return fmt.Sprintf("%s config: %q %s", e.Backend, e.Field, e.Message)
	}
}

func documentError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}
