package repositories

import (
	"context"
	"time"

	"github.com/MrEthical07/medconfirm/internal/database"
	"github.com/MrEthical07/medconfirm/internal/models"
)

type StatsRepository interface {
	Dashboard(ctx context.Context, now time.Time) (models.DashboardStats, error)
}

type statsRepository struct {
	db database.Querier
}

func NewStatsRepository(db database.Querier) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Dashboard(ctx context.Context, now time.Time) (models.DashboardStats, error) {
	const q = `
		SELECT
			(SELECT count(*) FROM doctors),
			(SELECT count(*) FROM doctors WHERE status = 'active'),
			(SELECT count(*) FROM doctors WHERE status = 'pending'),
			(SELECT count(*) FROM doctors WHERE status = 'suspended'),
			(SELECT count(*) FROM doctors WHERE email_confirmed),
			(SELECT count(*) FROM doctors WHERE subscription_type_id IS NOT NULL AND subscription_expires_at > $1),
			(SELECT count(*) FROM subscription_types WHERE active),
			(SELECT count(*) FROM events WHERE starts_at >= $1)`

	var s models.DashboardStats
	err := r.db.QueryRow(ctx, q, now).Scan(
		&s.DoctorsTotal, &s.DoctorsActive, &s.DoctorsPending, &s.DoctorsSuspended,
		&s.EmailsConfirmed, &s.ActiveSubscriptions, &s.SubscriptionTypes, &s.UpcomingEvents,
	)
	if err != nil {
		return models.DashboardStats{}, mapError("dashboard stats", err)
	}
	return s, nil
}
