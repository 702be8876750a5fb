package alerts

import (
	"encoding/json"
	"errors"
	"time"

	"clubsync/internal/models"
	"clubsync/internal/observability"
	"clubsync/internal/store"
)

// DismissalRecord is what a dismissal captures: when, and how bad the alert
// was at that moment.
type DismissalRecord struct {
	DismissedAt time.Time       `json:"dismissed_at"`
	Severity    models.Severity `json:"severity"`
	HasSeverity bool            `json:"has_severity"`
}

// DismissalPolicy suppresses dismissed alerts for a bounded window, unless
// the underlying condition worsens first. Records live in the session store
// and die with it.
type DismissalPolicy struct {
	kv  store.KV
	ttl time.Duration
	now func() time.Time
}

// NewDismissalPolicy builds the policy over the session store.
func NewDismissalPolicy(kv store.KV, ttl time.Duration, now func() time.Time) *DismissalPolicy {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &DismissalPolicy{kv: kv, ttl: ttl, now: now}
}

// Dismiss records the dismissal of one alert. Dismissing a non-dismissible
// alert is a no-op.
func (p *DismissalPolicy) Dismiss(alert models.Alert) error {
	if !alert.Dismissible() {
		return nil
	}

	severity, hasSeverity := alert.Severity()
	record := DismissalRecord{
		DismissedAt: p.now(),
		Severity:    severity,
		HasSeverity: hasSeverity,
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	observability.IncDismissal()
	return p.kv.Set(recordKey(alert.ID), raw)
}

// Filter drops alerts with a live dismissal record. A record past its TTL,
// or one whose alert has strictly worsened since dismissal, is discarded and
// the alert surfaces again.
func (p *DismissalPolicy) Filter(in []models.Alert) []models.Alert {
	out := make([]models.Alert, 0, len(in))
	for _, alert := range in {
		if p.visible(alert) {
			out = append(out, alert)
		}
	}
	return out
}

func (p *DismissalPolicy) visible(alert models.Alert) bool {
	if !alert.Dismissible() {
		return true
	}

	raw, err := p.kv.Get(recordKey(alert.ID))
	if errors.Is(err, store.ErrNotFound) {
		return true
	}
	if err != nil {
		return true
	}

	var record DismissalRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		_ = p.kv.Delete(recordKey(alert.ID))
		return true
	}

	if p.now().Sub(record.DismissedAt) >= p.ttl {
		_ = p.kv.Delete(recordKey(alert.ID))
		return true
	}
	if severity, ok := alert.Severity(); ok && record.HasSeverity && severity.WorseThan(record.Severity) {
		// Worse than when dismissed: the suppression no longer applies.
		_ = p.kv.Delete(recordKey(alert.ID))
		return true
	}
	return false
}

func recordKey(alertID string) string {
	return "dismissal:" + alertID
}
