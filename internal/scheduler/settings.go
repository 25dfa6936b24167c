package scheduler

import (
	"context"
	"fmt"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

const (
	settingsKey = "linguaflow-reminders"
	historyKey  = "linguaflow-reminder-history"
)

// KV is the persistence the scheduler needs
type KV interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

var validate = validator.New()

// ValidateSettings checks reminder settings coming from a client
func ValidateSettings(s models.ReminderSettings) error {
	if err := validate.Struct(s); err != nil {
		return apperrors.Invalid("invalid reminder settings: %v", err)
	}
	return nil
}

// SettingsStore persists the reminder settings
type SettingsStore struct {
	kv       KV
	defaults models.ReminderSettings
}

// NewSettingsStore creates a store returning defaults until settings are saved
func NewSettingsStore(kv KV, defaults models.ReminderSettings) *SettingsStore {
	return &SettingsStore{kv: kv, defaults: defaults}
}

// Load returns the stored settings decoded over the defaults
func (s *SettingsStore) Load(ctx context.Context) (models.ReminderSettings, error) {
	settings := s.defaults
	settings.Activities = append([]models.Activity(nil), s.defaults.Activities...)
	if _, err := s.kv.Get(ctx, settingsKey, &settings); err != nil {
		return s.defaults, fmt.Errorf("failed to load reminder settings: %w", err)
	}
	return settings, nil
}

// Save stores the settings
func (s *SettingsStore) Save(ctx context.Context, settings models.ReminderSettings) error {
	if err := s.kv.Set(ctx, settingsKey, settings); err != nil {
		return fmt.Errorf("failed to save reminder settings: %w", err)
	}
	return nil
}
