package repositories

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/medconfirm/internal/database"
	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type DoctorRepository interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	GetByID(ctx context.Context, id string) (*models.Doctor, error)
	GetByEmail(ctx context.Context, email string) (*models.Doctor, error)
	Create(ctx context.Context, doctor *models.Doctor) error
	Update(ctx context.Context, doctor *models.Doctor) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) (*models.Doctor, error)
	AssignSubscription(ctx context.Context, id, subscriptionTypeID string, expiresAt time.Time) (*models.Doctor, error)
	TouchUpdatedAt(ctx context.Context, id string) error
}

type doctorRepository struct {
	db database.Querier
}

func NewDoctorRepository(db database.Querier) DoctorRepository {
	return &doctorRepository{db: db}
}

const doctorColumns = `id, email, full_name, specialty, phone, status, email_confirmed,
	subscription_type_id, subscription_expires_at, created_at, updated_at`

func scanDoctor(row pgx.Row) (*models.Doctor, error) {
	var d models.Doctor
	err := row.Scan(&d.ID, &d.Email, &d.FullName, &d.Specialty, &d.Phone, &d.Status, &d.EmailConfirmed,
		&d.SubscriptionTypeID, &d.SubscriptionExpiresAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepository) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		n := strconv.Itoa(len(args))
		where = append(where, "(lower(email) LIKE $"+n+" OR lower(full_name) LIKE $"+n+")")
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM doctors"+clause, args...).Scan(&total); err != nil {
		return nil, 0, mapError("count doctors", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	q := "SELECT " + doctorColumns + " FROM doctors" + clause +
		" ORDER BY created_at DESC, id LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, mapError("list doctors", err)
	}
	defer rows.Close()

	doctors := make([]models.Doctor, 0, limit)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, mapError("scan doctor", err)
		}
		doctors = append(doctors, *d)
	}
	return doctors, total, mapError("list doctors", rows.Err())
}

func (r *doctorRepository) GetByID(ctx context.Context, id string) (*models.Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, "SELECT "+doctorColumns+" FROM doctors WHERE id = $1", id))
	if err != nil {
		return nil, mapError("get doctor", err)
	}
	return d, nil
}

// GetByEmail matches case-insensitively.
func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, "SELECT "+doctorColumns+" FROM doctors WHERE lower(email) = lower($1)", email))
	if err != nil {
		return nil, mapError("get doctor by email", err)
	}
	return d, nil
}

func (r *doctorRepository) Create(ctx context.Context, doctor *models.Doctor) error {
	if doctor.ID == "" {
		doctor.ID = uuid.NewString()
	}
	if doctor.Status == "" {
		doctor.Status = models.DoctorStatusPending
	}
	const q = `
		INSERT INTO doctors (id, email, full_name, specialty, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, q, doctor.ID, doctor.Email, doctor.FullName, doctor.Specialty, doctor.Phone, doctor.Status).
		Scan(&doctor.CreatedAt, &doctor.UpdatedAt)
	return mapError("create doctor", err)
}

func (r *doctorRepository) Update(ctx context.Context, doctor *models.Doctor) error {
	const q = `
		UPDATE doctors
		SET email = $2, full_name = $3, specialty = $4, phone = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, doctor.ID, doctor.Email, doctor.FullName, doctor.Specialty, doctor.Phone).
		Scan(&doctor.UpdatedAt)
	return mapError("update doctor", err)
}

func (r *doctorRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM doctors WHERE id = $1", id)
	if err != nil {
		return mapError("delete doctor", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *doctorRepository) SetStatus(ctx context.Context, id, status string) (*models.Doctor, error) {
	q := "UPDATE doctors SET status = $2, updated_at = now() WHERE id = $1 RETURNING " + doctorColumns
	d, err := scanDoctor(r.db.QueryRow(ctx, q, id, status))
	if err != nil {
		return nil, mapError("set doctor status", err)
	}
	return d, nil
}

func (r *doctorRepository) AssignSubscription(ctx context.Context, id, subscriptionTypeID string, expiresAt time.Time) (*models.Doctor, error) {
	q := `UPDATE doctors
		SET subscription_type_id = $2, subscription_expires_at = $3, updated_at = now()
		WHERE id = $1 RETURNING ` + doctorColumns
	d, err := scanDoctor(r.db.QueryRow(ctx, q, id, subscriptionTypeID, expiresAt))
	if err != nil {
		return nil, mapError("assign subscription", err)
	}
	return d, nil
}

// TouchUpdatedAt bumps updated_at and records that the email is confirmed.
func (r *doctorRepository) TouchUpdatedAt(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "UPDATE doctors SET updated_at = now(), email_confirmed = TRUE WHERE id = $1", id)
	if err != nil {
		return mapError("touch doctor", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
