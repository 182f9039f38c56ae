package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/m4xw311/pivot/errors"
)

// Settings are process-level knobs taken from the environment with the
// PIVOT_ prefix. A .env file in the working directory is honored when
// present.
type Settings struct {
	// ProvidersPath overrides the provider catalog location.
	ProvidersPath string `envconfig:"PROVIDERS" default:""`
	// ContextFile is where the save_context tool writes the transcript.
	ContextFile string `envconfig:"CONTEXT_FILE" default:".pivot/context.md"`
	// LogLevel applies when tracing is enabled.
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

// LoadSettings reads .env (if any) and the PIVOT_* environment variables.
func LoadSettings() (*Settings, error) {
	_ = godotenv.Load()
	var s Settings
	if err := envconfig.Process("pivot", &s); err != nil {
		return nil, errors.Wrap(err, "could not parse PIVOT_* environment variables")
	}
	return &s, nil
}
