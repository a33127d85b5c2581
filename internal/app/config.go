package app

import (
	"github.com/vidgen/studio/internal/shared/config"
)

// LoadConfig loads application configuration. Extra paths are searched
// before the default locations.
func LoadConfig(paths ...string) (*config.Config, error) {
	return config.Load(paths...)
}
