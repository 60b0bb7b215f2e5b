package repositories

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/medconfirm/internal/database"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("record already exists")
	ErrInvalidReference = errors.New("referenced record does not exist")
)

// mapError translates driver errors into repository sentinels.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s", ErrConflict, op)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %s", ErrInvalidReference, op)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
