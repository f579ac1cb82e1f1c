package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/routong/routong-backend/pkg/logger"
	"gorm.io/gorm"
)

const notificationRetentionDays = 30

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  int
}

// NewNotificationCleanupJob prunes notifications past the retention window
// so the inbox table stays bounded.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notification-cleanup: repository required")
	}
	return newPruneJob(
		"notification-cleanup",
		params.Logger,
		params.DB,
		params.Retention,
		notificationRetentionDays,
		params.Repository.DeleteOlderThan,
	)
}
