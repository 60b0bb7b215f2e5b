package repositories

import (
	"context"
	"time"

	"github.com/MrEthical07/medconfirm/internal/database"
	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type EventRepository interface {
	// List returns all events, or only those starting at or after since when
	// since is non-nil.
	List(ctx context.Context, since *time.Time) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
}

type eventRepository struct {
	db database.Querier
}

func NewEventRepository(db database.Querier) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, title, description, location, starts_at, ends_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepository) List(ctx context.Context, since *time.Time) ([]models.Event, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if since != nil {
		rows, err = r.db.Query(ctx, "SELECT "+eventColumns+" FROM events WHERE starts_at >= $1 ORDER BY starts_at", *since)
	} else {
		rows, err = r.db.Query(ctx, "SELECT "+eventColumns+" FROM events ORDER BY starts_at DESC")
	}
	if err != nil {
		return nil, mapError("list events", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, mapError("scan event", err)
		}
		out = append(out, *e)
	}
	return out, mapError("list events", rows.Err())
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id))
	if err != nil {
		return nil, mapError("get event", err)
	}
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO events (id, title, description, location, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, q, event.ID, event.Title, event.Description, event.Location, event.StartsAt, event.EndsAt).
		Scan(&event.CreatedAt, &event.UpdatedAt)
	return mapError("create event", err)
}

func (r *eventRepository) Update(ctx context.Context, event *models.Event) error {
	const q = `
		UPDATE events
		SET title = $2, description = $3, location = $4, starts_at = $5, ends_at = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, q, event.ID, event.Title, event.Description, event.Location, event.StartsAt, event.EndsAt).
		Scan(&event.CreatedAt, &event.UpdatedAt)
	return mapError("update event", err)
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return mapError("delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
