package repositories

import (
	"context"

	"github.com/MrEthical07/medconfirm/internal/database"
	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SubscriptionTypeRepository interface {
	List(ctx context.Context) ([]models.SubscriptionType, error)
	GetByID(ctx context.Context, id string) (*models.SubscriptionType, error)
	Create(ctx context.Context, st *models.SubscriptionType) error
	Update(ctx context.Context, st *models.SubscriptionType) error
	Delete(ctx context.Context, id string) error
}

type subscriptionTypeRepository struct {
	db database.Querier
}

func NewSubscriptionTypeRepository(db database.Querier) SubscriptionTypeRepository {
	return &subscriptionTypeRepository{db: db}
}

const subscriptionTypeColumns = `id, name, description, price_cents, currency, duration_days, active, created_at, updated_at`

func scanSubscriptionType(row pgx.Row) (*models.SubscriptionType, error) {
	var st models.SubscriptionType
	if err := row.Scan(&st.ID, &st.Name, &st.Description, &st.PriceCents, &st.Currency,
		&st.DurationDays, &st.Active, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *subscriptionTypeRepository) List(ctx context.Context) ([]models.SubscriptionType, error) {
	rows, err := r.db.Query(ctx, "SELECT "+subscriptionTypeColumns+" FROM subscription_types ORDER BY price_cents, name")
	if err != nil {
		return nil, mapError("list subscription types", err)
	}
	defer rows.Close()

	var out []models.SubscriptionType
	for rows.Next() {
		st, err := scanSubscriptionType(rows)
		if err != nil {
			return nil, mapError("scan subscription type", err)
		}
		out = append(out, *st)
	}
	return out, mapError("list subscription types", rows.Err())
}

func (r *subscriptionTypeRepository) GetByID(ctx context.Context, id string) (*models.SubscriptionType, error) {
	st, err := scanSubscriptionType(r.db.QueryRow(ctx, "SELECT "+subscriptionTypeColumns+" FROM subscription_types WHERE id = $1", id))
	if err != nil {
		return nil, mapError("get subscription type", err)
	}
	return st, nil
}

func (r *subscriptionTypeRepository) Create(ctx context.Context, st *models.SubscriptionType) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO subscription_types (id, name, description, price_cents, currency, duration_days, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, q, st.ID, st.Name, st.Description, st.PriceCents, st.Currency, st.DurationDays, st.Active).
		Scan(&st.CreatedAt, &st.UpdatedAt)
	return mapError("create subscription type", err)
}

func (r *subscriptionTypeRepository) Update(ctx context.Context, st *models.SubscriptionType) error {
	const q = `
		UPDATE subscription_types
		SET name = $2, description = $3, price_cents = $4, currency = $5, duration_days = $6, active = $7, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, q, st.ID, st.Name, st.Description, st.PriceCents, st.Currency, st.DurationDays, st.Active).
		Scan(&st.CreatedAt, &st.UpdatedAt)
	return mapError("update subscription type", err)
}

func (r *subscriptionTypeRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM subscription_types WHERE id = $1", id)
	if err != nil {
		return mapError("delete subscription type", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
