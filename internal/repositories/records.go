package repositories

import (
	"context"
	"errors"

	"github.com/MrEthical07/medconfirm"
)

// ConfirmationRecords exposes doctors to the confirmation engine.
type ConfirmationRecords struct {
	doctors DoctorRepository
}

var _ medconfirm.RecordStore = (*ConfirmationRecords)(nil)

func NewConfirmationRecords(doctors DoctorRepository) *ConfirmationRecords {
	return &ConfirmationRecords{doctors: doctors}
}

// FindByEmail returns (nil, nil) when no doctor has this email.
func (r *ConfirmationRecords) FindByEmail(ctx context.Context, email string) (*medconfirm.DoctorRecord, error) {
	d, err := r.doctors.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &medconfirm.DoctorRecord{
		ID:             d.ID,
		Email:          d.Email,
		FullName:       d.FullName,
		Status:         d.Status,
		EmailConfirmed: d.EmailConfirmed,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

func (r *ConfirmationRecords) TouchUpdatedAt(ctx context.Context, id string) error {
	return r.doctors.TouchUpdatedAt(ctx, id)
}
