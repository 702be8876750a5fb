package alerts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clubsync/internal/alerts"
	"clubsync/internal/models"
	"clubsync/internal/store"
)

type policyClock struct {
	now time.Time
}

func (c *policyClock) Now() time.Time { return c.now }

func paymentAlert(id string, balance int64) models.Alert {
	return models.Alert{
		ID:    id,
		Kind:  models.AlertPaymentOverdue,
		Title: "Payment overdue",
		Payment: &models.PaymentAlert{
			Amount:  500,
			Balance: balance,
			DueDate: refNow.AddDate(0, 0, -1),
		},
	}
}

func TestDismissSuppressesUntilTTL(t *testing.T) {
	clock := &policyClock{now: refNow}
	policy := alerts.NewDismissalPolicy(store.NewMemory(), 30*time.Minute, clock.Now)

	alert := paymentAlert("a1", 100)
	require.NoError(t, policy.Dismiss(alert))
	require.Empty(t, policy.Filter([]models.Alert{alert}))

	// Still inside the window.
	clock.now = refNow.Add(29 * time.Minute)
	require.Empty(t, policy.Filter([]models.Alert{alert}))

	// The window has elapsed; the alert resurfaces.
	clock.now = refNow.Add(30 * time.Minute)
	require.Len(t, policy.Filter([]models.Alert{alert}), 1)
}

func TestWorsenedMetricResurfacesEarly(t *testing.T) {
	clock := &policyClock{now: refNow}
	policy := alerts.NewDismissalPolicy(store.NewMemory(), 30*time.Minute, clock.Now)

	require.NoError(t, policy.Dismiss(paymentAlert("a1", 100)))
	clock.now = refNow.Add(5 * time.Minute)

	// Same severity: stays suppressed.
	require.Empty(t, policy.Filter([]models.Alert{paymentAlert("a1", 100)}))

	// The balance dropped since dismissal: suppression no longer applies.
	worse := paymentAlert("a1", -50)
	require.Len(t, policy.Filter([]models.Alert{worse}), 1)

	// The discarded record does not come back for later passes either.
	require.Len(t, policy.Filter([]models.Alert{worse}), 1)
}

func TestMoreDaysOverdueResurfacesEarly(t *testing.T) {
	clock := &policyClock{now: refNow}
	policy := alerts.NewDismissalPolicy(store.NewMemory(), 48*time.Hour, clock.Now)

	overdue := func(days int) models.Alert {
		a := paymentAlert("a1", 100)
		a.Payment.DaysOverdue = days
		return a
	}

	require.NoError(t, policy.Dismiss(overdue(1)))
	clock.now = refNow.Add(time.Hour)
	require.Empty(t, policy.Filter([]models.Alert{overdue(1)}))

	// Another day has passed unpaid: the balance is unchanged but the alert
	// is worse and must come back before the TTL lapses.
	require.Len(t, policy.Filter([]models.Alert{overdue(2)}), 1)
}

func TestImprovedMetricStaysSuppressed(t *testing.T) {
	clock := &policyClock{now: refNow}
	policy := alerts.NewDismissalPolicy(store.NewMemory(), 30*time.Minute, clock.Now)

	require.NoError(t, policy.Dismiss(paymentAlert("a1", 100)))
	clock.now = refNow.Add(5 * time.Minute)
	require.Empty(t, policy.Filter([]models.Alert{paymentAlert("a1", 500)}))
}

func TestNonDismissibleAlertBypassesPolicy(t *testing.T) {
	clock := &policyClock{now: refNow}
	policy := alerts.NewDismissalPolicy(store.NewMemory(), 30*time.Minute, clock.Now)

	zero := models.Alert{
		ID:      "z1",
		Kind:    models.AlertBalanceZero,
		Title:   "Coin balance is empty",
		Payment: &models.PaymentAlert{Balance: 0},
	}
	require.NoError(t, policy.Dismiss(zero))
	require.Len(t, policy.Filter([]models.Alert{zero}), 1, "a zero balance must stay visible while the condition holds")
}

func TestFilterPassesUnrecordedAlerts(t *testing.T) {
	policy := alerts.NewDismissalPolicy(store.NewMemory(), 30*time.Minute, nil)
	in := []models.Alert{paymentAlert("a1", 100), paymentAlert("a2", 200)}
	require.Equal(t, in, policy.Filter(in))
}
