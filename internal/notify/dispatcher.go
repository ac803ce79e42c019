package notify

import (
	"context"
	"sync"

	"zonewatch/internal/metrics"
	"zonewatch/internal/types"
)

// Dispatcher sends composed transition alerts through the notification
// collaborator. It honors per-zone notify flags, performs the one-time channel
// setup before the first send, and absorbs send failures so a broken
// notification path never aborts a reconciliation pass.
type Dispatcher struct {
	notifier types.Notifier
	logger   types.Logger
	metrics  *metrics.Recorder

	mu           sync.Mutex
	channelReady bool
}

// NewDispatcher creates a Dispatcher on top of the given notifier.
func NewDispatcher(notifier types.Notifier, logger types.Logger, rec *metrics.Recorder) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		metrics:  rec,
	}
}

// Dispatch composes and sends the alert for one zone transition. The send is
// skipped when the zone's notify flag for the direction is off. Failures are
// logged and counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, zone types.DisasterZone, direction types.TransitionDirection) {
	if suppressed(zone, direction) {
		d.logger.Info("alert suppressed by zone flag",
			"zone_id", zone.ID,
			"direction", string(direction),
		)
		return
	}

	d.ensureChannel(ctx)

	content := Compose(zone.Category, zone.Severity, direction)
	alert := types.Alert{
		Title:    content.Title,
		Body:     content.Body,
		Sound:    content.Sound,
		Priority: content.Priority,
		Data: map[string]string{
			"zone_id":   zone.ID,
			"direction": string(direction),
			"category":  string(zone.Category),
			"severity":  string(zone.Severity),
			"action":    content.Action,
		},
	}

	if err := d.notifier.Send(ctx, alert); err != nil {
		d.logger.Error("failed to dispatch alert",
			"error", err.Error(),
			"zone_id", zone.ID,
			"direction", string(direction),
			"priority", string(alert.Priority),
		)
		d.metrics.AlertDispatchFailed(ctx)
		return
	}

	d.logger.Info("alert dispatched",
		"zone_id", zone.ID,
		"direction", string(direction),
		"priority", string(alert.Priority),
	)
	d.metrics.AlertDispatched(ctx)
}

// suppressed reports whether the zone's flags disable alerts for direction.
func suppressed(zone types.DisasterZone, direction types.TransitionDirection) bool {
	switch direction {
	case types.DirectionEnter:
		return !zone.NotifyOnEnter
	case types.DirectionExit:
		return !zone.NotifyOnExit
	default:
		return false
	}
}

// ensureChannel performs the idempotent platform channel setup once. A failed
// setup is retried on the next dispatch; the send proceeds either way since
// most platforms fall back to a default channel.
func (d *Dispatcher) ensureChannel(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.channelReady {
		return
	}
	if err := d.notifier.EnsureChannel(ctx); err != nil {
		d.logger.Warn("notification channel setup failed",
			"error", err.Error(),
		)
		return
	}
	d.channelReady = true
}
