package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"template_shop_server/internal/cart"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Recorder = (*PostgresRecorder)(nil)

type PostgresRecorder struct {
	db     DBTX
	logger *zap.Logger
}

func NewPostgresRecorder(db DBTX, logger *zap.Logger) *PostgresRecorder {
	return &PostgresRecorder{db: db, logger: logger.Named("PgOrderRecorder")}
}

const schema = `
CREATE TABLE IF NOT EXISTS template_orders (
    id             UUID PRIMARY KEY,
    session_id     TEXT NOT NULL,
    customer_name  TEXT NOT NULL,
    customer_email TEXT NOT NULL,
    items          JSONB NOT NULL,
    total          NUMERIC(12,2) NOT NULL,
    gateway        TEXT NOT NULL,
    payment_ref    TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the orders table when it is missing.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create template_orders: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, o Order) error {
	items, err := cart.Encode(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	query := `
        INSERT INTO template_orders
            (id, session_id, customer_name, customer_email, items, total, gateway, payment_ref, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING
    `
	_, err = r.db.Exec(ctx, query,
		o.ID, o.SessionID, o.CustomerName, o.CustomerEmail,
		string(items), o.Total.StringFixed(2), o.Gateway, o.PaymentRef, o.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record order", zap.String("order_id", o.ID), zap.Error(err))
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	r.logger.Debug("Order recorded", zap.String("order_id", o.ID))
	return nil
}
