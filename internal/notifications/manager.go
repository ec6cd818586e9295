// Package notifications handles desktop notifications about schedules and exports
package notifications

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/fpu-scheduler/internal/engine"
	"github.com/mrcode/fpu-scheduler/internal/models"
)

// Alert type constants
const (
	alertExported     = "exported"
	alertExportFailed = "export_failed"
	alertUndetermined = "absorption_undetermined"
)

// repeatInterval suppresses identical warnings while the user is still editing the meal
const repeatInterval = 10 * time.Minute

// Manager sends export and absorption notifications
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	mu            sync.Mutex

	notify func(title, message string) error
	now    func() time.Time
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings) *Manager {
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		now: time.Now,
	}
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// NotifyExported reports a successful export of a batch to sink
func (m *Manager) NotifyExported(batch engine.ExportBatch, sink string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled() {
		return nil
	}

	title := "Carbs schedule exported"
	message := fmt.Sprintf("%d entries (%.1fg) sent to %s", len(batch.Records), batch.TotalGrams(), sink)
	return m.send(alertExported+":"+sink, title, message, false)
}

// NotifyExportFailed reports a failed export
func (m *Manager) NotifyExportFailed(sink string, exportErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled() {
		return nil
	}

	title := "⚠️ Export failed"
	message := fmt.Sprintf("Could not send schedule to %s: %v", sink, exportErr)
	return m.send(alertExportFailed+":"+sink, title, message, false)
}

// NotifyAbsorptionUndetermined warns that fpu exceeds the absorption table
// and no e-carbs are scheduled. Repeated warnings for the same value are throttled.
func (m *Manager) NotifyAbsorptionUndetermined(fpu float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled() {
		return nil
	}

	title := "⚠️ Absorption time unknown"
	message := fmt.Sprintf("%.1f FPU is above the absorption table; no e-carbs scheduled", fpu)
	return m.send(fmt.Sprintf("%s:%.1f", alertUndetermined, fpu), title, message, true)
}

func (m *Manager) enabled() bool {
	return m.settings != nil && m.settings.EnableNotifications
}

// send delivers the notification. With throttle set, the key is recorded
// and a key seen within repeatInterval is skipped.
func (m *Manager) send(key, title, message string, throttle bool) error {
	now := m.now()
	if throttle {
		if lastTime, ok := m.lastAlertTime[key]; ok && now.Sub(lastTime) < repeatInterval {
			return nil
		}
	}

	if err := m.notify(title, message); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}

	if throttle {
		m.lastAlertTime[key] = now
	}
	return nil
}

// ClearAlertState forgets all throttled alerts
func (m *Manager) ClearAlertState() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastAlertTime = make(map[string]time.Time)
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify("FPU Scheduler", "Test notification - notifications are working!")
}
