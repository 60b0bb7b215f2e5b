package repositories

import (
	"context"

	"github.com/MrEthical07/medconfirm/internal/database"
	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AdminRepository interface {
	List(ctx context.Context) ([]models.Admin, error)
	GetByID(ctx context.Context, id string) (*models.Admin, error)
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	Create(ctx context.Context, admin *models.Admin) error
	UpdateFullName(ctx context.Context, id, fullName string) (*models.Admin, error)
	Delete(ctx context.Context, id string) error
}

type adminRepository struct {
	db database.Querier
}

func NewAdminRepository(db database.Querier) AdminRepository {
	return &adminRepository{db: db}
}

const adminColumns = `id, email, full_name, role, created_at, updated_at`

func scanAdmin(row pgx.Row) (*models.Admin, error) {
	var a models.Admin
	if err := row.Scan(&a.ID, &a.Email, &a.FullName, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *adminRepository) List(ctx context.Context) ([]models.Admin, error) {
	rows, err := r.db.Query(ctx, "SELECT "+adminColumns+" FROM admins ORDER BY created_at")
	if err != nil {
		return nil, mapError("list admins", err)
	}
	defer rows.Close()

	var out []models.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, mapError("scan admin", err)
		}
		out = append(out, *a)
	}
	return out, mapError("list admins", rows.Err())
}

func (r *adminRepository) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	a, err := scanAdmin(r.db.QueryRow(ctx, "SELECT "+adminColumns+" FROM admins WHERE id = $1", id))
	if err != nil {
		return nil, mapError("get admin", err)
	}
	return a, nil
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	a, err := scanAdmin(r.db.QueryRow(ctx, "SELECT "+adminColumns+" FROM admins WHERE lower(email) = lower($1)", email))
	if err != nil {
		return nil, mapError("get admin by email", err)
	}
	return a, nil
}

func (r *adminRepository) Create(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	if admin.Role == "" {
		admin.Role = models.AdminRoleAdmin
	}
	const q = `
		INSERT INTO admins (id, email, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, q, admin.ID, admin.Email, admin.FullName, admin.Role).
		Scan(&admin.CreatedAt, &admin.UpdatedAt)
	return mapError("create admin", err)
}

func (r *adminRepository) UpdateFullName(ctx context.Context, id, fullName string) (*models.Admin, error) {
	q := "UPDATE admins SET full_name = $2, updated_at = now() WHERE id = $1 RETURNING " + adminColumns
	a, err := scanAdmin(r.db.QueryRow(ctx, q, id, fullName))
	if err != nil {
		return nil, mapError("update admin", err)
	}
	return a, nil
}

func (r *adminRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM admins WHERE id = $1", id)
	if err != nil {
		return mapError("delete admin", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
