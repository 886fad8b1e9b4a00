package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/protown/backend/internal/domain"
)

// InstrumentRepository handles database operations for payment instruments.
type InstrumentRepository struct {
	db *pgxpool.Pool
}

// NewInstrumentRepository creates a new InstrumentRepository.
func NewInstrumentRepository(db *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

const instrumentColumns = `
	id, professional_id, card_ref, brand, last4, exp_month, exp_year, is_default, created_at
`

func scanInstrument(row pgx.Row) (*domain.PaymentInstrument, error) {
	var ins domain.PaymentInstrument
	var expMonth, expYear *int
	err := row.Scan(
		&ins.ID, &ins.ProfessionalID, &ins.CardRef, &ins.Brand, &ins.Last4,
		&expMonth, &expYear, &ins.IsDefault, &ins.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expMonth != nil {
		ins.ExpMonth = *expMonth
	}
	if expYear != nil {
		ins.ExpYear = *expYear
	}
	return &ins, nil
}

// CreateInstrument inserts a validated instrument. The professional's first
// instrument becomes the default.
func (r *InstrumentRepository) CreateInstrument(ctx context.Context, ins *domain.PaymentInstrument) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM payment_instruments WHERE professional_id = $1`,
			ins.ProfessionalID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count instruments: %w", err)
		}
		if count == 0 {
			ins.IsDefault = true
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO payment_instruments (`+instrumentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			ins.ID, ins.ProfessionalID, ins.CardRef, ins.Brand, ins.Last4,
			nullableInt(ins.ExpMonth), nullableInt(ins.ExpYear), ins.IsDefault, ins.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create instrument: %w", err)
		}
		return nil
	})
}

// ListByProfessional returns a professional's instruments, newest first.
func (r *InstrumentRepository) ListByProfessional(ctx context.Context, professionalID string) ([]*domain.PaymentInstrument, error) {
	query := `
		SELECT ` + instrumentColumns + ` FROM payment_instruments
		WHERE professional_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, professionalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*domain.PaymentInstrument
	for rows.Next() {
		ins, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, ins)
	}
	return instruments, nil
}

// FindDefault returns the professional's default instrument, or nil when the
// professional has no instruments.
func (r *InstrumentRepository) FindDefault(ctx context.Context, professionalID string) (*domain.PaymentInstrument, error) {
	query := `
		SELECT ` + instrumentColumns + ` FROM payment_instruments
		WHERE professional_id = $1 AND is_default ORDER BY created_at DESC LIMIT 1
	`
	ins, err := scanInstrument(r.db.QueryRow(ctx, query, professionalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find default instrument: %w", err)
	}
	return ins, nil
}

// SetDefault marks one instrument as the default and unsets the others
// atomically.
func (r *InstrumentRepository) SetDefault(ctx context.Context, professionalID, instrumentID string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payment_instruments SET is_default = (id = $2)
			WHERE professional_id = $1
		`, professionalID, instrumentID)
		if err != nil {
			return fmt.Errorf("failed to set default instrument: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound("payment instrument not found")
		}

		var isDefault bool
		err = tx.QueryRow(ctx,
			`SELECT is_default FROM payment_instruments WHERE id = $1 AND professional_id = $2`,
			instrumentID, professionalID,
		).Scan(&isDefault)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound("payment instrument not found")
		}
		return err
	})
}

// DeleteInstrument removes an instrument. If the default was removed, the
// most recently created remaining instrument is promoted.
func (r *InstrumentRepository) DeleteInstrument(ctx context.Context, professionalID, instrumentID string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var wasDefault bool
		err := tx.QueryRow(ctx, `
			DELETE FROM payment_instruments WHERE id = $1 AND professional_id = $2
			RETURNING is_default
		`, instrumentID, professionalID).Scan(&wasDefault)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound("payment instrument not found")
			}
			return fmt.Errorf("failed to delete instrument: %w", err)
		}

		if wasDefault {
			_, err := tx.Exec(ctx, `
				UPDATE payment_instruments SET is_default = TRUE
				WHERE id = (
					SELECT id FROM payment_instruments
					WHERE professional_id = $1
					ORDER BY created_at DESC, id LIMIT 1
				)
			`, professionalID)
			if err != nil {
				return fmt.Errorf("failed to promote instrument: %w", err)
			}
		}
		return nil
	})
}

func nullableInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
