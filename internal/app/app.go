// Package app wires settings, storage, the schedule engine and the export sinks together
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/mrcode/fpu-scheduler/internal/absorption"
	"github.com/mrcode/fpu-scheduler/internal/chart"
	"github.com/mrcode/fpu-scheduler/internal/engine"
	"github.com/mrcode/fpu-scheduler/internal/models"
	"github.com/mrcode/fpu-scheduler/internal/mqtt"
	"github.com/mrcode/fpu-scheduler/internal/nightscout"
	"github.com/mrcode/fpu-scheduler/internal/notifications"
	"github.com/mrcode/fpu-scheduler/internal/storage"
)

// Export sink names
const (
	SinkNightscout = "nightscout"
	SinkMQTT       = "mqtt"
)

// ErrNoSinks is returned by Export when neither Nightscout nor MQTT is configured
var ErrNoSinks = errors.New("no export target configured")

// ErrNoSchedule is returned when an operation needs a calculated schedule
var ErrNoSchedule = errors.New("no schedule calculated")

// App struct represents the main application
type App struct {
	settings      *models.Settings
	settingsPath  string
	store         *storage.SQLiteStore
	scheme        *absorption.Scheme
	client        *nightscout.Client
	notifyManager *notifications.Manager

	// newPublisher connects to the MQTT broker; replaced in tests
	newPublisher func(broker, clientID, topic string) (mqtt.Publisher, error)

	mu         sync.RWMutex
	lastResult *engine.Result
}

// New creates a new App instance from the settings file at settingsPath.
// An empty path means the default location in the config directory.
func New(settingsPath string) (*App, error) {
	settings := models.DefaultSettings()

	var err error
	if settingsPath == "" {
		settingsPath, err = models.GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("locating settings: %w", err)
		}
	}
	if err := settings.LoadFrom(settingsPath); err != nil {
		// Continue with defaults
		slog.Warn("Error loading settings", "path", settingsPath, "error", err)
		settings = models.DefaultSettings()
	}

	return NewWithSettings(settings, settingsPath)
}

// NewWithSettings creates an App from already loaded settings
func NewWithSettings(settings *models.Settings, settingsPath string) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	a := &App{
		settings:      settings,
		settingsPath:  settingsPath,
		notifyManager: notifications.NewManager(settings),
		newPublisher: func(broker, clientID, topic string) (mqtt.Publisher, error) {
			return mqtt.NewRealPublisher(broker, clientID, topic)
		},
	}

	if err := a.openStore(); err != nil {
		return nil, err
	}
	a.initClient()

	return a, nil
}

// openStore opens the database and loads the absorption scheme, seeding
// the defaults on first use
func (a *App) openStore() error {
	dbPath := a.settings.DatabasePath
	if dbPath == "" {
		dir, err := models.GetConfigDir()
		if err != nil {
			return fmt.Errorf("locating config dir: %w", err)
		}
		dbPath = filepath.Join(dir, "fpu-scheduler.db")
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}

	scheme, err := absorption.Load(store)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("loading absorption scheme: %w", err)
	}

	a.store = store
	a.scheme = scheme
	slog.Debug("Opened store", "path", dbPath, "blocks", scheme.Len())
	return nil
}

// initClient initializes the Nightscout client with current settings
func (a *App) initClient() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.settings.HasNightscout() {
		a.client = nil
		return
	}

	a.client = nightscout.NewClient(
		a.settings.NightscoutURL,
		a.settings.APISecret,
		a.settings.APIToken,
		a.settings.UseToken,
	)
}

// Shutdown closes the store
func (a *App) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("Error closing store", "error", err)
		}
		a.store = nil
	}
}

// Recalculate computes the schedule for the meal and keeps it as the
// current result
func (a *App) Recalculate(portions []models.Portion, now time.Time) (*engine.Result, error) {
	a.mu.RLock()
	cfg := a.settings.EngineConfig()
	scheme := a.scheme
	a.mu.RUnlock()

	result, err := engine.Recalculate(engine.Inputs{Portions: portions, Now: now}, cfg, scheme)
	if err != nil {
		return nil, err
	}

	if result.AbsorptionUndetermined {
		if err := a.notifyManager.NotifyAbsorptionUndetermined(result.Totals.Fpu); err != nil {
			slog.Warn("Notification error", "error", err)
		}
	}

	a.mu.Lock()
	a.lastResult = result
	a.mu.Unlock()

	return result, nil
}

// LastResult returns the most recent schedule, or nil
func (a *App) LastResult() *engine.Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastResult
}

// Fit returns the chart fitting of a result under the current chart settings
func (a *App) Fit(result *engine.Result) chart.Fitting {
	return chart.FitRegime(result.Regime, a.settings.ChartConfig())
}

// RenderChart renders a result as PNG
func (a *App) RenderChart(result *engine.Result) ([]byte, error) {
	if result == nil || result.Regime == nil {
		return nil, ErrNoSchedule
	}
	cfg := a.settings.ChartConfig()
	return chart.RenderPNG(result.Regime, chart.FitRegime(result.Regime, cfg), cfg)
}

// Export sends the non-zero entries of result to every configured sink.
// Every attempt is logged in the store. The batch is returned even when a
// sink fails; the error joins all sink failures.
func (a *App) Export(ctx context.Context, result *engine.Result) (engine.ExportBatch, error) {
	if result == nil || result.Regime == nil {
		return engine.ExportBatch{}, ErrNoSchedule
	}

	settings := a.settings.Clone()
	if !settings.HasNightscout() && !settings.HasMQTT() {
		return engine.ExportBatch{}, ErrNoSinks
	}

	batch := engine.NewExportBatch(engine.ExportRecords(result.Regime), time.Now())
	if len(batch.Records) == 0 {
		slog.Info("Nothing to export", "batch", batch.ID)
		return batch, nil
	}

	var errs []error
	if settings.HasNightscout() {
		errs = append(errs, a.exportTo(ctx, SinkNightscout, batch, a.exportNightscout))
	}
	if settings.HasMQTT() {
		errs = append(errs, a.exportTo(ctx, SinkMQTT, batch, func(b engine.ExportBatch) error {
			return a.exportMQTT(settings, b)
		}))
	}

	return batch, errors.Join(errs...)
}

// exportTo runs one sink, logs the attempt and notifies the user
func (a *App) exportTo(ctx context.Context, sink string, batch engine.ExportBatch, send func(engine.ExportBatch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sendErr := send(batch)

	entry := storage.ExportLog{
		BatchID:    batch.ID,
		CreatedAt:  batch.CreatedAt,
		Sink:       sink,
		Entries:    len(batch.Records),
		TotalGrams: batch.TotalGrams(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}

	a.mu.RLock()
	store := a.store
	a.mu.RUnlock()
	if store != nil {
		if err := store.RecordExport(entry); err != nil {
			slog.Error("Error recording export", "batch", batch.ID, "error", err)
		}
	}

	var notifyErr error
	if sendErr != nil {
		slog.Error("Export failed", "sink", sink, "batch", batch.ID, "error", sendErr)
		notifyErr = a.notifyManager.NotifyExportFailed(sink, sendErr)
	} else {
		slog.Info("Exported schedule", "sink", sink, "batch", batch.ID,
			"entries", len(batch.Records), "grams", batch.TotalGrams())
		notifyErr = a.notifyManager.NotifyExported(batch, sink)
	}
	if notifyErr != nil {
		slog.Warn("Notification error", "error", notifyErr)
	}

	if sendErr != nil {
		return fmt.Errorf("%s: %w", sink, sendErr)
	}
	return nil
}

func (a *App) exportNightscout(batch engine.ExportBatch) error {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("not configured")
	}
	_, err := client.UploadTreatments(batch.ID, batch.Records)
	return err
}

func (a *App) exportMQTT(settings *models.Settings, batch engine.ExportBatch) error {
	publisher, err := a.newPublisher(settings.MQTTBroker, settings.MQTTClientID, settings.MQTTTopic)
	if err != nil {
		return err
	}
	defer func() {
		_ = publisher.Close()
	}()

	return publisher.PublishSchedule(batch)
}

// ExportHistory returns the most recent export log entries
func (a *App) ExportHistory(limit int) ([]storage.ExportLog, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.store == nil {
		return nil, fmt.Errorf("store closed")
	}
	return a.store.ListExports(limit)
}

// GetAbsorptionBlocks returns the current absorption table
func (a *App) GetAbsorptionBlocks() []models.AbsorptionBlock {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.scheme.Blocks()
}

// AddAbsorptionBlock adds a block and persists the table
func (a *App) AddAbsorptionBlock(block models.AbsorptionBlock) error {
	return a.editScheme(func(s *absorption.Scheme) error {
		return s.Add(block)
	})
}

// UpdateAbsorptionBlock replaces the block at oldMaxFpu and persists the table
func (a *App) UpdateAbsorptionBlock(oldMaxFpu float64, block models.AbsorptionBlock) error {
	return a.editScheme(func(s *absorption.Scheme) error {
		return s.Update(oldMaxFpu, block)
	})
}

// RemoveAbsorptionBlock removes the block at maxFpu and persists the table
func (a *App) RemoveAbsorptionBlock(maxFpu float64) error {
	return a.editScheme(func(s *absorption.Scheme) error {
		return s.Remove(maxFpu)
	})
}

// ResetAbsorptionScheme restores the default table and persists it
func (a *App) ResetAbsorptionScheme() error {
	return a.editScheme(func(s *absorption.Scheme) error {
		defaults, err := absorption.DefaultBlocks()
		if err != nil {
			return err
		}
		return s.ResetToDefault(defaults)
	})
}

// editScheme applies edit to a copy of the scheme and swaps it in only
// after it has been saved
func (a *App) editScheme(edit func(*absorption.Scheme) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	working, err := absorption.NewScheme(a.scheme.Blocks())
	if err != nil {
		return err
	}
	if err := edit(working); err != nil {
		return err
	}
	if a.store != nil {
		if err := absorption.Save(a.store, working); err != nil {
			return fmt.Errorf("saving absorption scheme: %w", err)
		}
	}

	a.scheme = working
	return nil
}

// GetSettings returns the current settings
func (a *App) GetSettings() *models.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings.Clone()
}

// SaveSettings validates and saves the provided settings
func (a *App) SaveSettings(settings *models.Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	a.mu.Lock()
	a.settings.Update(settings)
	a.mu.Unlock()

	if a.settingsPath != "" {
		if err := a.settings.SaveTo(a.settingsPath); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
	}

	// Reinitialize client
	a.initClient()

	// Update notification manager
	a.notifyManager.UpdateSettings(a.settings)

	return nil
}

// TestConnection tests the Nightscout connection
func (a *App) TestConnection(url, secret, token string, useToken bool) error {
	client := nightscout.NewClient(url, secret, token, useToken)
	return client.TestConnection()
}

// SendTestNotification sends a test notification
func (a *App) SendTestNotification() error {
	return a.notifyManager.SendTestNotification()
}
