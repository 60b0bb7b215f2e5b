package services

import (
	"context"
	"time"

	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/MrEthical07/medconfirm/internal/repositories"
)

type DashboardService struct {
	stats repositories.StatsRepository
	now   func() time.Time
}

func NewDashboardService(stats repositories.StatsRepository) *DashboardService {
	return &DashboardService{stats: stats, now: time.Now}
}

func (s *DashboardService) Stats(ctx context.Context) (models.DashboardStats, error) {
	return s.stats.Dashboard(ctx, s.now().UTC())
}
