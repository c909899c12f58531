package invoicerepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/pg"
	"github.com/quickvoicy/quickvoicy/internal/service/invoiceservice"
)

const uniqueViolationCode = "23505"

const invoiceColumns = `id, user_id, amount, description, client_name, client_email, status, lightning_invoice, payment_hash, created_at, paid_at`

type Repository struct {
	db        pg.Database
	txManager pg.TXManager
}

func New(db pg.Database, txManager pg.TXManager) *Repository {
	return &Repository{
		db:        db,
		txManager: txManager,
	}
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.Amount, &inv.Description,
		&inv.ClientName, &inv.ClientEmail, &inv.Status,
		&inv.LightningInvoice, &inv.PaymentHash, &inv.CreatedAt, &inv.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) Save(ctx context.Context, inv *domain.Invoice) error {
	query := `
        INSERT INTO invoices (id, user_id, amount, description, client_name, client_email, status, lightning_invoice, payment_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query,
			inv.ID, inv.UserID, inv.Amount, inv.Description,
			inv.ClientName, inv.ClientEmail, inv.Status,
			inv.LightningInvoice, inv.PaymentHash, inv.CreatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
				return invoiceservice.ErrInvoiceExists
			}
			zap.L().Error("can't save invoice", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `
        SELECT ` + invoiceColumns + `
        FROM invoices
        WHERE id = $1
    `
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find invoice", zap.Error(err))
		return nil, err
	}
	return inv, nil
}

func (r *Repository) FindByUserID(ctx context.Context, userID int, limit int) ([]domain.Invoice, error) {
	query := `
        SELECT ` + invoiceColumns + `
        FROM invoices
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		zap.L().Error("can't get user invoices", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// FindPending returns every invoice still awaiting settlement. Paid invoices
// never come back here, which is what keeps the monitor from re-notifying.
func (r *Repository) FindPending(ctx context.Context) ([]domain.Invoice, error) {
	query := `
        SELECT ` + invoiceColumns + `
        FROM invoices
        WHERE status = $1
    `
	rows, err := r.db.Query(ctx, query, invoiceservice.StatusPending)
	if err != nil {
		zap.L().Error("can't get pending invoices", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// MarkPaid transitions an invoice to paid. The status guard makes it
// idempotent: a second call is a no-op that keeps the original paid_at.
// Returns whether this call performed the transition.
func (r *Repository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	query := `
        UPDATE invoices
        SET status = $1, paid_at = $2
        WHERE id = $3 AND status = $4
    `
	var updated bool
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, invoiceservice.StatusPaid, paidAt, id, invoiceservice.StatusPending)
		if err != nil {
			zap.L().Error("failed to mark invoice paid", zap.Error(err))
			return err
		}
		if tag.RowsAffected() > 0 {
			updated = true
			return nil
		}
		existing, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return invoiceservice.ErrInvoiceNotFound
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id string, userID int) error {
	query := `
        DELETE FROM invoices
        WHERE id = $1 AND user_id = $2
    `
	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		zap.L().Error("can't delete invoice", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return invoiceservice.ErrInvoiceNotFound
	}
	return nil
}

func (r *Repository) Stats(ctx context.Context, userID int) (*domain.UserStats, error) {
	query := `
        SELECT
            COUNT(*) AS total_invoices,
            COALESCE(SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END), 0) AS paid_invoices,
            COALESCE(SUM(CASE WHEN status = $1 THEN amount ELSE 0 END), 0) AS total_earned
        FROM invoices
        WHERE user_id = $2
    `
	var stats domain.UserStats
	err := r.db.QueryRow(ctx, query, invoiceservice.StatusPaid, userID).
		Scan(&stats.TotalInvoices, &stats.PaidInvoices, &stats.TotalEarned)
	if err != nil {
		zap.L().Error("can't compute user stats", zap.Error(err))
		return nil, err
	}
	return &stats, nil
}

func collectInvoices(rows pgx.Rows) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			zap.L().Error("can't scan invoice row", zap.Error(err))
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("invoice rows iteration failed", zap.Error(err))
		return nil, err
	}
	return invoices, nil
}
