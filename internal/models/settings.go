// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Absorption overflow policies for FPU values above the highest block
const (
	OverflowUnknown = "unknown"
	OverflowHighest = "highest"
)

// EngineConfig holds the parameters of one schedule calculation.
// It is passed by value into every calculation.
type EngineConfig struct {
	ECarbsFactor          float64 `json:"eCarbsFactor"`          // Grams of e-carbs per FPU
	TreatSugarsSeparately bool    `json:"treatSugarsSeparately"` // Split sugars into their own stream
	AbsorptionOverflow    string  `json:"absorptionOverflow"`    // "unknown" or "highest"

	Sugars        StreamDefaults `json:"sugars"`
	RegularCarbs  StreamDefaults `json:"regularCarbs"`
	ExtendedCarbs StreamDefaults `json:"extendedCarbs"` // Duration comes from the absorption table
}

// StreamDefaults are the user-configured timing defaults of a stream
type StreamDefaults struct {
	DelayMinutes    int     `json:"delayMinutes"`
	IntervalMinutes int     `json:"intervalMinutes"`
	DurationMinutes float64 `json:"durationMinutes"`
}

// Parameters builds stream parameters delivering totalGrams
func (d StreamDefaults) Parameters(totalGrams float64) StreamParameters {
	return StreamParameters{
		DelayMinutes:          d.DelayMinutes,
		IntervalMinutes:       d.IntervalMinutes,
		TotalGrams:            totalGrams,
		WindowDurationMinutes: d.DurationMinutes,
	}
}

// ChartConfig contains chart display settings
type ChartConfig struct {
	PreviewHeight      float64 `json:"previewHeight"`
	MinBarHeight       float64 `json:"minBarHeight"`
	BarWidth           float64 `json:"barWidth"`
	ColorSugars        string  `json:"colorSugars"` // Hex color
	ColorRegularCarbs  string  `json:"colorRegularCarbs"`
	ColorExtendedCarbs string  `json:"colorExtendedCarbs"`
}

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	Engine EngineConfig `json:"engine"`
	Chart  ChartConfig  `json:"chart"`

	// Nightscout export
	NightscoutURL string `json:"nightscoutUrl"`
	APISecret     string `json:"apiSecret"` // Plain API secret (will be hashed)
	APIToken      string `json:"apiToken"`  // Token-based auth
	UseToken      bool   `json:"useToken"`  // Use token instead of secret

	// MQTT export
	MQTTBroker   string `json:"mqttBroker"` // e.g. tcp://localhost:1883
	MQTTTopic    string `json:"mqttTopic"`
	MQTTClientID string `json:"mqttClientId"`

	// Storage
	DatabasePath string `json:"databasePath"` // Empty = <config dir>/fpu-scheduler.db

	EnableNotifications bool `json:"enableNotifications"`
}

// DefaultEngineConfig returns the engine defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ECarbsFactor:          10,
		TreatSugarsSeparately: true,
		AbsorptionOverflow:    OverflowUnknown,
		Sugars: StreamDefaults{
			DelayMinutes:    0,
			IntervalMinutes: 5,
			DurationMinutes: 15,
		},
		RegularCarbs: StreamDefaults{
			DelayMinutes:    5,
			IntervalMinutes: 10,
			DurationMinutes: 90,
		},
		ExtendedCarbs: StreamDefaults{
			DelayMinutes:    90,
			IntervalMinutes: 10,
		},
	}
}

// DefaultChartConfig returns the chart defaults
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		PreviewHeight:      120,
		MinBarHeight:       20,
		BarWidth:           8,
		ColorSugars:        "#ef4444", // Red
		ColorRegularCarbs:  "#3b82f6", // Blue
		ColorExtendedCarbs: "#22c55e", // Green
	}
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		Engine:              DefaultEngineConfig(),
		Chart:               DefaultChartConfig(),
		MQTTTopic:           "fpu/schedule",
		MQTTClientID:        "fpu-scheduler",
		EnableNotifications: true,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "fpu-scheduler")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from the default config path
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.LoadFrom(path)
}

// LoadFrom loads settings from path and applies environment overrides
func (s *Settings) LoadFrom(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the app, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		// Use defaults if file doesn't exist
		s.copySettingsFields(DefaultSettings())
	} else if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}

	s.applyEnv()
	return nil
}

// Save saves settings to the default config path
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.SaveTo(path)
}

// SaveTo saves settings to path
func (s *Settings) SaveTo(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// applyEnv overrides file values with FPU_* environment variables
func (s *Settings) applyEnv() {
	s.NightscoutURL = getEnv("FPU_NIGHTSCOUT_URL", s.NightscoutURL)
	s.APISecret = getEnv("FPU_API_SECRET", s.APISecret)
	s.MQTTBroker = getEnv("FPU_MQTT_BROKER", s.MQTTBroker)
	s.DatabasePath = getEnv("FPU_DB_PATH", s.DatabasePath)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a new Settings struct with copied values (not the mutex)
	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.Engine = other.Engine
	s.Chart = other.Chart
	s.NightscoutURL = other.NightscoutURL
	s.APISecret = other.APISecret
	s.APIToken = other.APIToken
	s.UseToken = other.UseToken
	s.MQTTBroker = other.MQTTBroker
	s.MQTTTopic = other.MQTTTopic
	s.MQTTClientID = other.MQTTClientID
	s.DatabasePath = other.DatabasePath
	s.EnableNotifications = other.EnableNotifications
}

// EngineConfig returns a copy of the engine configuration
func (s *Settings) EngineConfig() EngineConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Engine
}

// ChartConfig returns a copy of the chart configuration
func (s *Settings) ChartConfig() ChartConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Chart
}

// HasNightscout returns true if a Nightscout export target is set
func (s *Settings) HasNightscout() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.NightscoutURL != ""
}

// HasMQTT returns true if an MQTT export target is set
func (s *Settings) HasMQTT() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.MQTTBroker != ""
}

// Validate checks the engine and chart settings
func (s *Settings) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	if err := s.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Chart.PreviewHeight <= 0 || s.Chart.MinBarHeight <= 0 {
		errs = append(errs, fmt.Errorf("chart heights must be positive"))
	}
	if s.Chart.MinBarHeight > s.Chart.PreviewHeight {
		errs = append(errs, fmt.Errorf("min bar height %.0f exceeds preview height %.0f",
			s.Chart.MinBarHeight, s.Chart.PreviewHeight))
	}
	return errors.Join(errs...)
}

// Validate checks the factor, overflow policy and stream timings
func (c EngineConfig) Validate() error {
	var errs []error
	if c.ECarbsFactor <= 0 {
		errs = append(errs, fmt.Errorf("e-carbs factor must be positive, got %v", c.ECarbsFactor))
	}
	if c.AbsorptionOverflow != OverflowUnknown && c.AbsorptionOverflow != OverflowHighest {
		errs = append(errs, fmt.Errorf("unknown absorption overflow policy %q", c.AbsorptionOverflow))
	}
	streams := map[CarbsEntryType]StreamDefaults{
		Sugars:        c.Sugars,
		RegularCarbs:  c.RegularCarbs,
		ExtendedCarbs: c.ExtendedCarbs,
	}
	for _, t := range CarbsEntryTypes {
		d := streams[t]
		if d.IntervalMinutes <= 0 {
			errs = append(errs, fmt.Errorf("%s: interval must be positive, got %d", t, d.IntervalMinutes))
		}
		if d.DelayMinutes < 0 {
			errs = append(errs, fmt.Errorf("%s: delay must not be negative, got %d", t, d.DelayMinutes))
		}
		if d.DurationMinutes < 0 {
			errs = append(errs, fmt.Errorf("%s: duration must not be negative, got %v", t, d.DurationMinutes))
		}
	}
	return errors.Join(errs...)
}
