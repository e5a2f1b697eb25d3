package model

import (
	"fmt"
	"time"
)

// Invoice statuses.  An invoice opens as OPEN together with its
// reservation, becomes PAID in the same transaction that marks the
// reservation's payment PAID, and is VOIDed when the payment fails or the
// reservation is cancelled unpaid.  The invoice status and the linked
// reservation's payment status are never allowed to disagree about PAID.
const (
	InvoiceOpen = "OPEN"
	InvoicePaid = "PAID"
	InvoiceVoid = "VOID"
)

// Invoice is the billing companion of a reservation or a credit-package
// purchase.  Seq is drawn from a dedicated atomic counter so that numbers
// are strictly increasing under concurrent creation; gaps from rolled-back
// transactions are acceptable, duplicates are not.
//
// Fields:
//  ID            – primary key identifier.
//  Seq           – sequential human-facing invoice number.
//  ReservationID – linked reservation, nil for package purchases.
//  PurchaseRef   – external package-purchase reference, nil for lessons.
//  AmountCents   – invoiced amount in cents.
//  Currency      – ISO currency code.
//  Status        – OPEN, PAID or VOID.
//  PaymentMethod – CASH, ONLINE or CREDITS.
//  IssuedAt      – when the invoice was created.
//  DueAt         – payment deadline.
//  PaidAt        – when the invoice was settled, if ever.
type Invoice struct {
	ID            uint64     // invoices.id
	Seq           uint64     // invoices.seq
	ReservationID *uint64    // invoices.reservation_id
	PurchaseRef   *string    // invoices.purchase_ref
	AmountCents   uint32     // invoices.amount_cents
	Currency      string     // invoices.currency
	Status        string     // invoices.status
	PaymentMethod string     // invoices.payment_method
	IssuedAt      time.Time  // invoices.issued_at
	DueAt         time.Time  // invoices.due_at
	PaidAt        *time.Time // invoices.paid_at
}

// Number renders the sequential invoice number in its human-readable form,
// e.g. seq 123 becomes "INV-000123".
func (i Invoice) Number() string {
	return fmt.Sprintf("INV-%06d", i.Seq)
}
