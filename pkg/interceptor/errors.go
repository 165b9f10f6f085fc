package interceptor

import "fmt"

// ConfigError reports an option that is present but of the wrong kind, or a
// resolver that produced an unusable value.
type ConfigError struct {
	Option   string
	Expected string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Expected '%s' to be %s", e.Option, e.Expected)
}

func expectFunction(option string) error {
	return &ConfigError{Option: option, Expected: "Function"}
}
