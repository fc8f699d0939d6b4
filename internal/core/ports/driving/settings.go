package driving

import "github.com/custodia-labs/webrage/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings with defaults applied.
	Get() (*domain.AppSettings, error)

	// Set stores a single dotted-key setting after validating it.
	Set(key, value string) error

	// Validate checks the current settings are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
