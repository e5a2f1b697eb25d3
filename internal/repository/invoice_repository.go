package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

// InvoiceRepo provides access to invoices and the invoice number counter.
// Every invoice consumes exactly one value from the counter; the counter
// is a one-row table updated atomically, not max(seq)+1, so concurrent
// creations cannot draw the same number.  Gaps from rolled-back
// transactions are acceptable.
type InvoiceRepo struct {
	db *sql.DB
}

// NewInvoiceRepo returns a new InvoiceRepo bound to the given database.
func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

// NextSeqTx draws the next invoice number inside the given transaction.
// The LAST_INSERT_ID(value+1) trick makes the increment-and-read atomic on
// the connection, so no second round trip or table lock is needed.
func (r *InvoiceRepo) NextSeqTx(ctx context.Context, tx *sql.Tx) (uint64, error) {
	result, err := tx.ExecContext(ctx, `UPDATE invoice_counter SET value = LAST_INSERT_ID(value + 1)`)
	if err != nil {
		return 0, err
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

// CreateTx inserts a new invoice within the scope of an existing
// transaction and populates the generated ID.  Seq must have been drawn
// via NextSeqTx in the same transaction.
func (r *InvoiceRepo) CreateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	const q = `INSERT INTO invoices
	           (seq, reservation_id, purchase_ref, amount_cents, currency, status, payment_method, issued_at, due_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(), ?)`
	result, err := tx.ExecContext(ctx, q,
		inv.Seq, inv.ReservationID, inv.PurchaseRef, inv.AmountCents, inv.Currency,
		inv.Status, inv.PaymentMethod, inv.DueAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return nil
}

// GetByReservationTx loads the invoice linked to a reservation FOR UPDATE.
// Reconciliation locks the invoice alongside the reservation row so the
// pair is updated as a unit.  sql.ErrNoRows is returned when the
// reservation has no invoice.
func (r *InvoiceRepo) GetByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Invoice, error) {
	const q = `SELECT id, seq, reservation_id, purchase_ref, amount_cents, currency, status, payment_method, issued_at, due_at, paid_at
	           FROM invoices WHERE reservation_id = ? FOR UPDATE`
	return scanInvoice(tx.QueryRowContext(ctx, q, reservationID))
}

// GetByReservation loads the invoice linked to a reservation outside a
// transaction, for read-only display.
func (r *InvoiceRepo) GetByReservation(ctx context.Context, reservationID uint64) (*model.Invoice, error) {
	const q = `SELECT id, seq, reservation_id, purchase_ref, amount_cents, currency, status, payment_method, issued_at, due_at, paid_at
	           FROM invoices WHERE reservation_id = ?`
	return scanInvoice(r.db.QueryRowContext(ctx, q, reservationID))
}

// SetStatusTx updates the invoice status; when the new status is PAID the
// settlement timestamp is stamped, and when it leaves PAID-adjacent states
// paid_at is left untouched.  Must run in the same transaction as the
// reservation's payment update.
func (r *InvoiceRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status, method string) error {
	const q = `UPDATE invoices
	           SET status = ?,
	               payment_method = IF(? = '', payment_method, ?),
	               paid_at = IF(? = ?, UTC_TIMESTAMP(), paid_at)
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, method, method, status, model.InvoicePaid, id)
	return err
}

func scanInvoice(row *sql.Row) (*model.Invoice, error) {
	var inv model.Invoice
	var reservationID sql.NullInt64
	var purchaseRef sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(
		&inv.ID, &inv.Seq, &reservationID, &purchaseRef, &inv.AmountCents, &inv.Currency,
		&inv.Status, &inv.PaymentMethod, &inv.IssuedAt, &inv.DueAt, &paidAt,
	)
	if err != nil {
		return nil, err
	}
	if reservationID.Valid {
		rid := uint64(reservationID.Int64)
		inv.ReservationID = &rid
	}
	if purchaseRef.Valid {
		ref := purchaseRef.String
		inv.PurchaseRef = &ref
	}
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaidAt = &t
	}
	return &inv, nil
}
