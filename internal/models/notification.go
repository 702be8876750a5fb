package models

import "time"

// AlertKind discriminates the notification union.
type AlertKind string

const (
	AlertPaymentOverdue  AlertKind = "payment_overdue"
	AlertPaymentDueToday AlertKind = "payment_due_today"
	AlertPaymentDueSoon  AlertKind = "payment_due_soon"
	AlertBalanceZero     AlertKind = "balance_zero"
	AlertOpenPlayNew     AlertKind = "open_play_new"
	AlertOpenPlaySoon    AlertKind = "open_play_reminder"
	AlertMatchesReady    AlertKind = "matches_ready"
)

// rank orders alert classes; lower surfaces first.
var alertRank = map[AlertKind]int{
	AlertPaymentOverdue:  0,
	AlertBalanceZero:     0,
	AlertPaymentDueToday: 1,
	AlertPaymentDueSoon:  2,
	AlertOpenPlayNew:     3,
	AlertOpenPlaySoon:    3,
	AlertMatchesReady:    3,
}

// Alert is one derived notification. Exactly one of Payment/Event is set,
// according to Kind.
type Alert struct {
	ID      string        `json:"id"`
	Kind    AlertKind     `json:"kind"`
	Title   string        `json:"title"`
	Payment *PaymentAlert `json:"payment,omitempty"`
	Event   *EventAlert   `json:"event,omitempty"`
}

// PaymentAlert carries the payment-specific alert fields.
type PaymentAlert struct {
	Amount      int64     `json:"amount_cents"`
	Balance     int64     `json:"balance_cents"`
	DueDate     time.Time `json:"due_date"`
	DaysOverdue int       `json:"days_overdue,omitempty"`
}

// EventAlert carries the open-play / poll alert fields.
type EventAlert struct {
	EventID  string    `json:"event_id"`
	Date     time.Time `json:"date"`
	Capacity int       `json:"capacity"`
	Voted    bool      `json:"voted"`
}

// Rank returns the ordering class of the alert kind; unknown kinds sort last.
func (a Alert) Rank() int {
	if r, ok := alertRank[a.Kind]; ok {
		return r
	}
	return len(alertRank)
}

// SortKey is the secondary ordering key within a rank class: the due date for
// payment kinds, the event date for event kinds.
func (a Alert) SortKey() time.Time {
	switch {
	case a.Payment != nil:
		return a.Payment.DueDate
	case a.Event != nil:
		return a.Event.Date
	}
	return time.Time{}
}

// Severity captures the dimensions a payment alert can worsen along after a
// dismissal: the signed balance dropping or the overdue count growing.
type Severity struct {
	Balance     int64 `json:"balance"`
	DaysOverdue int   `json:"days_overdue"`
}

// WorseThan reports whether s is strictly worse than prev on any dimension.
func (s Severity) WorseThan(prev Severity) bool {
	return s.Balance < prev.Balance || s.DaysOverdue > prev.DaysOverdue
}

// Severity returns the alert's current severity. Event alerts have none and
// rely on the dismissal TTL alone.
func (a Alert) Severity() (Severity, bool) {
	if a.Payment != nil {
		return Severity{Balance: a.Payment.Balance, DaysOverdue: a.Payment.DaysOverdue}, true
	}
	return Severity{}, false
}

// Dismissible reports whether the dismissal policy applies to this kind.
// A zero balance must stay visible while the condition holds.
func (a Alert) Dismissible() bool {
	return a.Kind != AlertBalanceZero
}

// PendingPayment is a payment obligation as returned by the club server.
type PendingPayment struct {
	ID      string    `json:"id"`
	Amount  int64     `json:"amount_cents"`
	Balance int64     `json:"balance_cents"`
	DueDate time.Time `json:"due_date"`
}

// PollEvent is an open-play event or poll as returned by the club server.
type PollEvent struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Date          time.Time `json:"date"`
	Capacity      int       `json:"capacity"`
	Votes         int       `json:"votes"`
	VotingClosed  bool      `json:"voting_closed"`
	MatchesDrawn  bool      `json:"matches_drawn"`
	CurrentUserIn bool      `json:"current_user_voted"`
}
