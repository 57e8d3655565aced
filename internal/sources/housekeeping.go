package sources

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/HyphaGroup/sourcehub/internal/logger"
	"github.com/HyphaGroup/sourcehub/internal/metrics"
)

// staleToolCacheThreshold is how long a connected source's tool cache may
// go unrefreshed before housekeeping logs a warning about it.
const staleToolCacheThreshold = 30 * time.Minute

// stuckConnectingThreshold is how long a kind may remain in Connecting
// before housekeeping logs a diagnostic warning about it.
const stuckConnectingThreshold = 30 * time.Second

// Housekeeper runs a periodic snapshot pass over the manager: republishing
// status/connected-count metrics, logging a warning for any connected
// source whose tool cache looks stale, and logging a warning for any kind
// stuck in Connecting longer than stuckConnectingThreshold. It never
// transitions a kind's status and never reconnects a disconnected source -
// the spec's "no automatic reconnection on child death" rule holds
// regardless of what housekeeping observes; both warnings are diagnostic
// only.
type Housekeeper struct {
	manager *Manager
	cron    *cron.Cron
}

// NewHousekeeper builds a Housekeeper bound to manager. Start must be
// called to begin the periodic pass.
func NewHousekeeper(manager *Manager) *Housekeeper {
	return &Housekeeper{
		manager: manager,
		cron:    cron.New(),
	}
}

// Start schedules the snapshot pass to run once a minute, plus once
// immediately so metrics aren't empty until the first tick.
func (h *Housekeeper) Start() error {
	h.snapshot()
	_, err := h.cron.AddFunc("* * * * *", h.snapshot)
	if err != nil {
		return err
	}
	h.cron.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight snapshot.
func (h *Housekeeper) Stop() {
	ctx := h.cron.Stop()
	<-ctx.Done()
}

func (h *Housekeeper) snapshot() {
	statuses := h.manager.Statuses()

	connected := 0
	for kind, status := range statuses {
		metrics.SetSourceStatus(string(kind), status.Tag())
		switch status.State() {
		case StateConnected:
			connected++
			h.warnIfToolCacheStale(kind)
		case StateConnecting:
			h.warnIfStuckConnecting(kind)
		}
	}
	metrics.SetSourcesConnected(connected)
}

func (h *Housekeeper) warnIfToolCacheStale(kind Kind) {
	age, ok := h.manager.toolCacheAge(kind)
	if !ok {
		return
	}
	if age > staleToolCacheThreshold {
		logger.Info("sources: %s tool cache is %s old and has not been refreshed", kind, age.Round(time.Second))
	}
}

func (h *Housekeeper) warnIfStuckConnecting(kind Kind) {
	d, ok := h.manager.connectingDuration(kind)
	if !ok {
		return
	}
	if d > stuckConnectingThreshold {
		logger.Info("sources: %s has been stuck in Connecting for %s", kind, d.Round(time.Second))
	}
}
