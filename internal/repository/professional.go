package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/protown/backend/internal/domain"
)

// ProfessionalRepository handles database operations for professionals and
// their activation records.
type ProfessionalRepository struct {
	db *pgxpool.Pool
}

// NewProfessionalRepository creates a new ProfessionalRepository.
func NewProfessionalRepository(db *pgxpool.Pool) *ProfessionalRepository {
	return &ProfessionalRepository{db: db}
}

const professionalColumns = `
	id, name, email, password_hash, phone, business_name,
	activation_state, verified, external_customer_id, pending_plan_id,
	active_subscription_id, abandoned_plan_id,
	last_failure_reason, last_failure_detail, created_at
`

func scanProfessional(row pgx.Row) (*domain.Professional, error) {
	var p domain.Professional
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Phone, &p.BusinessName,
		&p.ActivationState, &p.Verified, &p.ExternalCustomerID, &p.PendingPlanID,
		&p.ActiveSubscriptionID, &p.AbandonedPlanID,
		&p.LastFailureReason, &p.LastFailureDetail, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new professional.
func (r *ProfessionalRepository) Create(ctx context.Context, p *domain.Professional) error {
	query := `
		INSERT INTO professionals (` + professionalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Email, p.PasswordHash, p.Phone, p.BusinessName,
		p.ActivationState, p.Verified, p.ExternalCustomerID, p.PendingPlanID,
		p.ActiveSubscriptionID, p.AbandonedPlanID,
		p.LastFailureReason, p.LastFailureDetail, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create professional: %w", err)
	}
	return nil
}

// FindByID returns a professional by ID, or nil when absent.
func (r *ProfessionalRepository) FindByID(ctx context.Context, id string) (*domain.Professional, error) {
	query := `SELECT ` + professionalColumns + ` FROM professionals WHERE id = $1`
	p, err := scanProfessional(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find professional: %w", err)
	}
	return p, nil
}

// FindByEmail returns a professional by email, or nil when absent.
func (r *ProfessionalRepository) FindByEmail(ctx context.Context, email string) (*domain.Professional, error) {
	query := `SELECT ` + professionalColumns + ` FROM professionals WHERE email = $1`
	p, err := scanProfessional(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find professional: %w", err)
	}
	return p, nil
}

// List returns all professionals ordered by creation date.
func (r *ProfessionalRepository) List(ctx context.Context) ([]*domain.Professional, error) {
	query := `SELECT ` + professionalColumns + ` FROM professionals ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list professionals: %w", err)
	}
	defer rows.Close()

	var pros []*domain.Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan professional: %w", err)
		}
		pros = append(pros, p)
	}
	return pros, nil
}

// GetIntent returns the professional's activation intent, or nil when absent.
func (r *ProfessionalRepository) GetIntent(ctx context.Context, professionalID string) (*domain.ActivationIntent, error) {
	query := `
		SELECT professional_id, plan_variation_id, customer_id_hint, location_hint, created_at
		FROM activation_intents WHERE professional_id = $1
	`
	var intent domain.ActivationIntent
	err := r.db.QueryRow(ctx, query, professionalID).Scan(
		&intent.ProfessionalID, &intent.PlanVariationID,
		&intent.CustomerIDHint, &intent.LocationHint, &intent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activation intent: %w", err)
	}
	return &intent, nil
}

// UpdateActivation loads the professional's activation record under an
// exclusive row lease (SELECT ... FOR UPDATE) and runs fn against it. The
// mutated professional and the returned intent change commit as one
// transaction, so state, subscription id, verified flag, and intent
// consumption are all-or-nothing. A second caller for the same professional
// blocks on the row lock until this update commits.
func (r *ProfessionalRepository) UpdateActivation(
	ctx context.Context,
	professionalID string,
	fn func(p *domain.Professional, intent *domain.ActivationIntent) (*domain.IntentChange, error),
) (*domain.Professional, error) {
	var result *domain.Professional

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `SELECT ` + professionalColumns + ` FROM professionals WHERE id = $1 FOR UPDATE`
		p, err := scanProfessional(tx.QueryRow(ctx, query, professionalID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound("professional not found")
			}
			return fmt.Errorf("failed to lock professional: %w", err)
		}

		var intent *domain.ActivationIntent
		var loaded domain.ActivationIntent
		err = tx.QueryRow(ctx, `
			SELECT professional_id, plan_variation_id, customer_id_hint, location_hint, created_at
			FROM activation_intents WHERE professional_id = $1
		`, professionalID).Scan(
			&loaded.ProfessionalID, &loaded.PlanVariationID,
			&loaded.CustomerIDHint, &loaded.LocationHint, &loaded.CreatedAt,
		)
		if err == nil {
			intent = &loaded
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to load activation intent: %w", err)
		}

		change, err := fn(p, intent)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE professionals SET
				activation_state = $2, verified = $3, external_customer_id = $4,
				pending_plan_id = $5, active_subscription_id = $6, abandoned_plan_id = $7,
				last_failure_reason = $8, last_failure_detail = $9
			WHERE id = $1
		`,
			p.ID, p.ActivationState, p.Verified, p.ExternalCustomerID,
			p.PendingPlanID, p.ActiveSubscriptionID, p.AbandonedPlanID,
			p.LastFailureReason, p.LastFailureDetail,
		)
		if err != nil {
			return fmt.Errorf("failed to update activation record: %w", err)
		}

		if change != nil {
			if change.Clear {
				if _, err := tx.Exec(ctx, `DELETE FROM activation_intents WHERE professional_id = $1`, professionalID); err != nil {
					return fmt.Errorf("failed to clear activation intent: %w", err)
				}
			}
			if change.Put != nil {
				if err := upsertIntent(ctx, tx, change.Put); err != nil {
					return err
				}
			}
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PutIntent upserts the professional's activation intent; a new plan
// selection overwrites any prior one.
func (r *ProfessionalRepository) PutIntent(ctx context.Context, intent *domain.ActivationIntent) error {
	return upsertIntent(ctx, r.db, intent)
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertIntent(ctx context.Context, db execer, intent *domain.ActivationIntent) error {
	query := `
		INSERT INTO activation_intents (professional_id, plan_variation_id, customer_id_hint, location_hint, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (professional_id) DO UPDATE
		SET plan_variation_id = EXCLUDED.plan_variation_id,
		    customer_id_hint = EXCLUDED.customer_id_hint,
		    location_hint = EXCLUDED.location_hint,
		    created_at = EXCLUDED.created_at
	`
	_, err := db.Exec(ctx, query,
		intent.ProfessionalID, intent.PlanVariationID,
		intent.CustomerIDHint, intent.LocationHint, intent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert activation intent: %w", err)
	}
	return nil
}
