// Package alerts merges the payment and event/poll sources into one ranked,
// deduplicated notification stream, filtered by the dismissal policy.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"clubsync/internal/models"
	"clubsync/internal/observability"
	"clubsync/internal/session"
)

// ErrNotVisible reports a dismissal aimed at an alert that is not currently
// surfaced.
var ErrNotVisible = errors.New("alert not visible")

// PaymentSource supplies the user's pending payments.
type PaymentSource interface {
	ListPendingPayments(ctx context.Context) ([]models.PendingPayment, error)
}

// EventSource supplies active polls and open-play events.
type EventSource interface {
	ListActiveEvents(ctx context.Context) ([]models.PollEvent, error)
}

// Aggregator recomputes the alert list from source data on every pass;
// alerts are derived, never stored.
type Aggregator struct {
	payments    PaymentSource
	events      EventSource
	policy      *DismissalPolicy
	dueSoonDays int
	now         func() time.Time

	mu      sync.RWMutex
	visible []models.Alert

	subMu sync.Mutex
	subs  []chan []models.Alert
}

// New builds an Aggregator. now is injectable for tests; nil means time.Now.
func New(payments PaymentSource, events EventSource, policy *DismissalPolicy, dueSoonDays int, now func() time.Time) *Aggregator {
	if dueSoonDays <= 0 {
		dueSoonDays = 7
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		payments:    payments,
		events:      events,
		policy:      policy,
		dueSoonDays: dueSoonDays,
		now:         now,
	}
}

// Run refreshes on every login until ctx is done.
func (a *Aggregator) Run(ctx context.Context, auth <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-auth:
			if !ok {
				return
			}
			if ev.LoggedIn {
				if err := a.Refresh(ctx); err != nil {
					log.Printf("alert refresh on login failed: %v", err)
				}
			} else {
				a.clear()
			}
		}
	}
}

// Refresh queries both sources concurrently and rebuilds the visible list.
// A failed source contributes zero alerts; only both failing is an error.
func (a *Aggregator) Refresh(ctx context.Context) error {
	var (
		wg       sync.WaitGroup
		payments []models.PendingPayment
		events   []models.PollEvent
		payErr   error
		eventErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		payments, payErr = a.payments.ListPendingPayments(ctx)
	}()
	go func() {
		defer wg.Done()
		events, eventErr = a.events.ListActiveEvents(ctx)
	}()
	wg.Wait()

	if payErr != nil {
		log.Printf("payment source failed, degrading: %v", payErr)
	}
	if eventErr != nil {
		log.Printf("event source failed, degrading: %v", eventErr)
	}
	if payErr != nil && eventErr != nil {
		return fmt.Errorf("all alert sources failed: %v; %v", payErr, eventErr)
	}

	alerts := a.derivePayments(payments)
	alerts = append(alerts, a.deriveEvents(events)...)
	alerts = dedup(alerts)
	sortAlerts(alerts)
	alerts = a.policy.Filter(alerts)

	a.mu.Lock()
	a.visible = alerts
	a.mu.Unlock()

	observability.SetAlertsVisible(len(alerts))
	a.publish(alerts)
	return nil
}

// Dismiss records a dismissal and re-filters the current list without
// re-querying the sources.
func (a *Aggregator) Dismiss(alertID string) error {
	a.mu.Lock()
	var target *models.Alert
	for i := range a.visible {
		if a.visible[i].ID == alertID {
			target = &a.visible[i]
			break
		}
	}
	if target == nil {
		a.mu.Unlock()
		return fmt.Errorf("dismiss %s: %w", alertID, ErrNotVisible)
	}
	alert := *target
	a.mu.Unlock()

	if err := a.policy.Dismiss(alert); err != nil {
		return err
	}

	a.mu.Lock()
	a.visible = a.policy.Filter(a.visible)
	filtered := append([]models.Alert(nil), a.visible...)
	a.mu.Unlock()

	observability.SetAlertsVisible(len(filtered))
	a.publish(filtered)
	return nil
}

// Alerts returns the current visible list.
func (a *Aggregator) Alerts() []models.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.Alert(nil), a.visible...)
}

// Subscribe returns a stream receiving each rebuilt alert list.
func (a *Aggregator) Subscribe() <-chan []models.Alert {
	ch := make(chan []models.Alert, 8)
	a.subMu.Lock()
	a.subs = append(a.subs, ch)
	a.subMu.Unlock()
	return ch
}

func (a *Aggregator) clear() {
	a.mu.Lock()
	a.visible = nil
	a.mu.Unlock()
	observability.SetAlertsVisible(0)
	a.publish(nil)
}

func (a *Aggregator) derivePayments(payments []models.PendingPayment) []models.Alert {
	today := startOfDay(a.now())
	soonCutoff := today.AddDate(0, 0, a.dueSoonDays)

	var out []models.Alert
	for _, p := range payments {
		due := startOfDay(p.DueDate)
		payment := &models.PaymentAlert{
			Amount:  p.Amount,
			Balance: p.Balance,
			DueDate: p.DueDate,
		}

		var kind models.AlertKind
		var title string
		switch {
		case due.Before(today):
			kind = models.AlertPaymentOverdue
			payment.DaysOverdue = int(today.Sub(due).Hours() / 24)
			title = fmt.Sprintf("Payment overdue by %d day(s)", payment.DaysOverdue)
		case due.Equal(today):
			kind = models.AlertPaymentDueToday
			title = "Payment due today"
		case !due.After(soonCutoff):
			kind = models.AlertPaymentDueSoon
			title = "Payment due soon"
		default:
			continue
		}

		out = append(out, models.Alert{
			ID:      string(kind) + ":" + p.ID,
			Kind:    kind,
			Title:   title,
			Payment: payment,
		})

		if p.Balance == 0 {
			out = append(out, models.Alert{
				ID:      string(models.AlertBalanceZero) + ":" + p.ID,
				Kind:    models.AlertBalanceZero,
				Title:   "Coin balance is empty",
				Payment: payment,
			})
		}
	}
	return out
}

func (a *Aggregator) deriveEvents(events []models.PollEvent) []models.Alert {
	now := a.now()

	var out []models.Alert
	for _, ev := range events {
		event := &models.EventAlert{
			EventID:  ev.ID,
			Date:     ev.Date,
			Capacity: ev.Capacity,
			Voted:    ev.CurrentUserIn,
		}

		switch {
		case ev.MatchesDrawn || (ev.VotingClosed && ev.Capacity > 0 && ev.Votes >= ev.Capacity):
			out = append(out, models.Alert{
				ID:    string(models.AlertMatchesReady) + ":" + ev.ID,
				Kind:  models.AlertMatchesReady,
				Title: "Matches are ready: " + ev.Title,
				Event: event,
			})
		case !ev.VotingClosed && !ev.CurrentUserIn:
			out = append(out, models.Alert{
				ID:    string(models.AlertOpenPlayNew) + ":" + ev.ID,
				Kind:  models.AlertOpenPlayNew,
				Title: "New open play: " + ev.Title,
				Event: event,
			})
		case ev.CurrentUserIn && ev.Date.After(now) && ev.Date.Before(now.Add(48*time.Hour)):
			out = append(out, models.Alert{
				ID:    string(models.AlertOpenPlaySoon) + ":" + ev.ID,
				Kind:  models.AlertOpenPlaySoon,
				Title: "Upcoming open play: " + ev.Title,
				Event: event,
			})
		}
	}
	return out
}

func (a *Aggregator) publish(alerts []models.Alert) {
	a.subMu.Lock()
	subs := append([]chan []models.Alert(nil), a.subs...)
	a.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- alerts:
		default:
		}
	}
}

// sortAlerts imposes the fixed total order: class rank first, then earlier
// due/event date, then id for stability.
func sortAlerts(alerts []models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Rank() != alerts[j].Rank() {
			return alerts[i].Rank() < alerts[j].Rank()
		}
		ki, kj := alerts[i].SortKey(), alerts[j].SortKey()
		if !ki.Equal(kj) {
			return ki.Before(kj)
		}
		return alerts[i].ID < alerts[j].ID
	})
}

func dedup(alerts []models.Alert) []models.Alert {
	seen := make(map[string]bool, len(alerts))
	out := alerts[:0]
	for _, alert := range alerts {
		if seen[alert.ID] {
			continue
		}
		seen[alert.ID] = true
		out = append(out, alert)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
