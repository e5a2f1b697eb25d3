package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

func TestApplyProvider_Mapping(t *testing.T) {
	cases := []struct {
		name        string
		current     string
		reported    string
		wantNext    string
		wantChanged bool
	}{
		{"paid settles", model.PayUnpaid, "paid", model.PayPaid, true},
		{"completed settles", model.PayUnpaid, "completed", model.PayPaid, true},
		{"case insensitive", model.PayUnpaid, "PAID", model.PayPaid, true},
		{"declined fails", model.PayUnpaid, "declined", model.PayFailed, true},
		{"error fails", model.PayPendingAdmin, "error", model.PayFailed, true},
		{"pending ignored", model.PayUnpaid, "pending", model.PayUnpaid, false},
		{"unknown ignored", model.PayUnpaid, "initialized", model.PayUnpaid, false},
		{"empty ignored", model.PayUnpaid, "", model.PayUnpaid, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, changed := ApplyProvider(tc.current, tc.reported)
			assert.Equal(t, tc.wantNext, next)
			assert.Equal(t, tc.wantChanged, changed)
		})
	}
}

// A duplicate delivery of the same provider status is a no-op the second
// time: state unchanged, changed=false, no error.
func TestApplyProvider_Idempotent(t *testing.T) {
	next, changed := ApplyProvider(model.PayUnpaid, "paid")
	require.True(t, changed)
	require.Equal(t, model.PayPaid, next)

	again, changed := ApplyProvider(next, "paid")
	assert.False(t, changed)
	assert.Equal(t, model.PayPaid, again)

	next, changed = ApplyProvider(model.PayUnpaid, "declined")
	require.True(t, changed)
	again, changed = ApplyProvider(next, "declined")
	assert.False(t, changed)
	assert.Equal(t, model.PayFailed, again)
}

// Once PAID, nothing the provider later reports can move the status.
func TestApplyProvider_PaidIsTerminal(t *testing.T) {
	for _, reported := range []string{"declined", "error", "completed", "refunded"} {
		next, changed := ApplyProvider(model.PayPaid, reported)
		assert.Equal(t, model.PayPaid, next, "reported %q", reported)
		assert.False(t, changed, "reported %q", reported)
	}
}

func TestClaimCash(t *testing.T) {
	next, changed, err := ClaimCash(model.PayUnpaid)
	require.NoError(t, err)
	assert.True(t, changed)
	// the self-report never settles the payment by itself
	assert.Equal(t, model.PayPendingAdmin, next)

	// repeating the claim is harmless
	next, changed, err = ClaimCash(next)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.PayPendingAdmin, next)

	_, _, err = ClaimCash(model.PayPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, _, err = ClaimCash(model.PayFailed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdminConfirmAndDecline(t *testing.T) {
	next, changed, err := AdminConfirm(model.PayPendingAdmin)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PayPaid, next)

	// confirm from UNPAID covers pay-on-location without a prior claim
	next, _, err = AdminConfirm(model.PayUnpaid)
	require.NoError(t, err)
	assert.Equal(t, model.PayPaid, next)

	// confirming twice is a no-op
	_, changed, err = AdminConfirm(model.PayPaid)
	require.NoError(t, err)
	assert.False(t, changed)

	next, changed, err = AdminDecline(model.PayPendingAdmin)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PayFailed, next)

	// declining a paid reservation must never regress it
	_, _, err = AdminDecline(model.PayPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, changed, err = AdminDecline(model.PayFailed)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDebitCredits(t *testing.T) {
	next, changed, err := DebitCredits(model.PayUnpaid)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PayPaid, next)

	_, changed, err = DebitCredits(model.PayPaid)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = DebitCredits(model.PayCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStatusLockstep(t *testing.T) {
	assert.Equal(t, model.InvoicePaid, InvoiceStatusFor(model.PayPaid))
	assert.Equal(t, model.InvoiceVoid, InvoiceStatusFor(model.PayFailed))
	assert.Equal(t, model.InvoiceVoid, InvoiceStatusFor(model.PayCancelled))
	assert.Equal(t, model.InvoiceOpen, InvoiceStatusFor(model.PayUnpaid))
	assert.Equal(t, model.InvoiceOpen, InvoiceStatusFor(model.PayPendingAdmin))

	assert.Equal(t, model.StatusConfirmed, ReservationStatusFor(model.PayPaid))
	assert.Equal(t, model.StatusCancelled, ReservationStatusFor(model.PayFailed))
	assert.Equal(t, "", ReservationStatusFor(model.PayPendingAdmin))
}
