package config

import (
	"fmt"
	"sync"
)

// Settings is the snapshot of user-tunable detection settings. The pipeline
// reads it once at the start of every invocation.
type Settings struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ScanningFPS         float64 `json:"scanning_fps"`
	TrackingFPS         float64 `json:"tracking_fps"`
	HighAccuracy        bool    `json:"high_accuracy"`
}

// DefaultSettings mirrors the values a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		ConfidenceThreshold: 0.3,
		ScanningFPS:         5,
		TrackingFPS:         30,
		HighAccuracy:        true,
	}
}

// Validate checks that every field is usable.
func (s Settings) Validate() error {
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %g", s.ConfidenceThreshold)
	}
	if s.ScanningFPS <= 0 || s.ScanningFPS > 120 {
		return fmt.Errorf("scanning fps must be in (0,120], got %g", s.ScanningFPS)
	}
	if s.TrackingFPS <= 0 || s.TrackingFPS > 120 {
		return fmt.Errorf("tracking fps must be in (0,120], got %g", s.TrackingFPS)
	}
	return nil
}

// SettingsProvider supplies the current settings snapshot.
type SettingsProvider interface {
	Settings() Settings
}

// SettingsPatch carries a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	ScanningFPS         *float64 `json:"scanning_fps,omitempty"`
	TrackingFPS         *float64 `json:"tracking_fps,omitempty"`
	HighAccuracy        *bool    `json:"high_accuracy,omitempty"`
}

// Store is an in-memory SettingsProvider that can be updated while the
// pipeline runs. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	settings Settings
}

// NewStore creates a store holding initial.
func NewStore(initial Settings) *Store {
	return &Store{settings: initial}
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies patch atomically. An invalid result leaves the store unchanged.
func (s *Store) Update(patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if patch.ConfidenceThreshold != nil {
		next.ConfidenceThreshold = *patch.ConfidenceThreshold
	}
	if patch.ScanningFPS != nil {
		next.ScanningFPS = *patch.ScanningFPS
	}
	if patch.TrackingFPS != nil {
		next.TrackingFPS = *patch.TrackingFPS
	}
	if patch.HighAccuracy != nil {
		next.HighAccuracy = *patch.HighAccuracy
	}
	if err := next.Validate(); err != nil {
		return s.settings, fmt.Errorf("invalid settings: %w", err)
	}
	s.settings = next
	return next, nil
}
