// Package engineconfig provides environment-driven configuration helpers for
// the engine runtime: default timeouts, and env/duration/bool/int parsing
// helpers shared by the CLI and embedding applications.
package engineconfig

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// GetEnv retrieves an environment variable with a default fallback.
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvBool retrieves a boolean environment variable. Accepts
// "true"/"1"/"yes"/"y" case-insensitively as true.
func GetEnvBool(key string, defaultValue bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	return ParseBoolOrDefault(val, defaultValue)
}

// GetEnvInt retrieves an integer environment variable, falling back to
// defaultValue if unset or invalid.
func GetEnvInt(key string, defaultValue int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// ParseDurationOrDefault parses a duration string, or returns the default.
func ParseDurationOrDefault(raw string, defaultDuration time.Duration) time.Duration {
	if raw == "" {
		return defaultDuration
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed
	}
	return defaultDuration
}

// ParseBoolOrDefault parses a boolean string, returning the default only for
// an empty string. "true"/"1"/"yes"/"y" (case-insensitive) are true; any
// other value is false.
func ParseBoolOrDefault(raw string, defaultValue bool) bool {
	if raw == "" {
		return defaultValue
	}
	lower := strings.ToLower(raw)
	return lower == "true" || lower == "1" || lower == "yes" || lower == "y"
}

// ParseIntOrDefault parses an integer string, or returns the default.
func ParseIntOrDefault(raw string, defaultValue int) int {
	if raw == "" {
		return defaultValue
	}
	if parsed, err := strconv.Atoi(raw); err == nil {
		return parsed
	}
	return defaultValue
}

// Timeouts holds the default per-kind timeout budget (spec §5).
type Timeouts struct {
	HTTP     time.Duration `validate:"gt=0"`
	RPC      time.Duration `validate:"gt=0"`
	SQL      time.Duration `validate:"gt=0"`
	KV       time.Duration `validate:"gt=0"`
	Service  time.Duration `validate:"gt=0"`
	Pipeline time.Duration `validate:"gt=0"`
}

// DefaultTimeouts returns the system-wide default timeout values (spec §5:
// "system_default(10s)" for api/service calls).
func DefaultTimeouts() Timeouts {
	return Timeouts{
		HTTP:     10 * time.Second,
		RPC:      10 * time.Second,
		SQL:      10 * time.Second,
		KV:       2 * time.Second,
		Service:  10 * time.Second,
		Pipeline: 30 * time.Second,
	}
}

// EngineOptions are environment-driven knobs for the embedding application.
type EngineOptions struct {
	DefaultDecisionResult string `validate:"required,decision_result"`
	TraceEnabled          bool
	Timeouts              Timeouts `validate:"required"`
}

// OptionsFromEnv builds EngineOptions from CORINT_* environment variables.
func OptionsFromEnv() EngineOptions {
	return EngineOptions{
		DefaultDecisionResult: GetEnv("CORINT_DEFAULT_RESULT", "review"),
		TraceEnabled:          GetEnvBool("CORINT_TRACE_ENABLED", false),
		Timeouts:              DefaultTimeouts(),
	}
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	decisionResults = map[string]struct{}{"approve": {}, "decline": {}, "review": {}, "hold": {}}
)

// validatorInstance returns the shared validator, registering the
// decision_result tag used by EngineOptions.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("decision_result", func(fl validator.FieldLevel) bool {
			_, ok := decisionResults[fl.Field().String()]
			return ok
		})
		validateInst = v
	})
	return validateInst
}

// Validate checks that opts is well-formed: a recognized fallback decision
// result and strictly positive timeouts. Called once at engine construction
// so a bad CORINT_* environment fails fast instead of at the first Decide.
func (o EngineOptions) Validate() error {
	return validatorInstance().Struct(o)
}
