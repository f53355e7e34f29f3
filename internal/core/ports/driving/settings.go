package driving

import "github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetCheckpoint selects the checkpoint backend and its directory.
	SetCheckpoint(backend domain.CheckpointBackend, dir string) error

	// SetWorkers sets the bulk inference worker count.
	SetWorkers(n int) error

	// Validate checks the current settings.
	Validate() error

	// ClassifierConfig returns the settings table of one meta classifier.
	ClassifierConfig(name string) map[string]any

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
