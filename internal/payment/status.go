// Package payment contains the reconciliation core: the pure payment
// state machine shared by all three rails (manual/cash, redirect checkout,
// credits), the webhook signature check and the checkout-provider client.
// The state machine is pure; persisting a transition together with its
// invoice update is the caller's job and must happen in one transaction.
package payment

import (
	"errors"
	"strings"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

// ErrInvalidTransition is returned when an operation is applied to a
// payment state that does not admit it, e.g. declining an already paid
// reservation.  Handlers translate it into HTTP 409.
var ErrInvalidTransition = errors.New("invalid payment transition")

// terminal reports whether a payment status can never change again.
func terminal(status string) bool {
	return status == model.PayPaid || status == model.PayFailed || status == model.PayCancelled
}

// ApplyProvider maps a status reported by the checkout provider onto the
// local payment status.  Both the signed webhook and the manually
// triggered poll feed through this single function.  "paid"/"completed"
// settle the payment, "declined"/"error" fail it, anything else (pending,
// intermediate, unknown) changes nothing.  Terminal local states are never
// left: a duplicate webhook delivery for an already settled order reports
// changed=false and is a no-op, not an error.
func ApplyProvider(current, reported string) (next string, changed bool) {
	if terminal(current) {
		return current, false
	}
	switch strings.ToLower(strings.TrimSpace(reported)) {
	case "paid", "completed":
		return model.PayPaid, true
	case "declined", "error":
		return model.PayFailed, true
	default:
		return current, false
	}
}

// ClaimCash records a customer's self-report that a cash payment was made.
// The claim carries no trust: it only parks the payment in
// PENDING_ADMIN until an administrator confirms or declines.  Repeating
// the claim is a no-op; claiming on a settled payment is invalid.
func ClaimCash(current string) (next string, changed bool, err error) {
	switch current {
	case model.PayUnpaid:
		return model.PayPendingAdmin, true, nil
	case model.PayPendingAdmin:
		return current, false, nil
	default:
		return current, false, ErrInvalidTransition
	}
}

// AdminConfirm settles the payment on an administrator's say-so.  Legal
// from UNPAID (pay on location without a prior claim) and PENDING_ADMIN;
// confirming an already paid reservation is a no-op.
func AdminConfirm(current string) (next string, changed bool, err error) {
	switch current {
	case model.PayUnpaid, model.PayPendingAdmin:
		return model.PayPaid, true, nil
	case model.PayPaid:
		return current, false, nil
	default:
		return current, false, ErrInvalidTransition
	}
}

// AdminDecline fails the payment.  Legal from UNPAID and PENDING_ADMIN;
// declining an already failed payment is a no-op, declining a paid one is
// invalid because PAID never regresses.
func AdminDecline(current string) (next string, changed bool, err error) {
	switch current {
	case model.PayUnpaid, model.PayPendingAdmin:
		return model.PayFailed, true, nil
	case model.PayFailed:
		return current, false, nil
	default:
		return current, false, ErrInvalidTransition
	}
}

// DebitCredits settles the payment through the credit rail.  Only an
// unsettled payment may be paid with credits; the actual balance check and
// decrement happen in the caller's transaction.
func DebitCredits(current string) (next string, changed bool, err error) {
	switch current {
	case model.PayUnpaid, model.PayPendingAdmin:
		return model.PayPaid, true, nil
	case model.PayPaid:
		return current, false, nil
	default:
		return current, false, ErrInvalidTransition
	}
}

// InvoiceStatusFor returns the invoice status that must accompany the
// given payment status so the two stay in lockstep inside one transaction.
func InvoiceStatusFor(paymentStatus string) string {
	switch paymentStatus {
	case model.PayPaid:
		return model.InvoicePaid
	case model.PayFailed, model.PayCancelled:
		return model.InvoiceVoid
	default:
		return model.InvoiceOpen
	}
}

// ReservationStatusFor returns the lifecycle status a reservation should
// move to when its payment settles or fails.  Settled payments confirm the
// slot; failed payments release it.  Other payment states leave the
// lifecycle untouched and the empty string is returned.
func ReservationStatusFor(paymentStatus string) string {
	switch paymentStatus {
	case model.PayPaid:
		return model.StatusConfirmed
	case model.PayFailed:
		return model.StatusCancelled
	default:
		return ""
	}
}
