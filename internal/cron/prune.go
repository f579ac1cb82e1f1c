package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/routong/routong-backend/pkg/logger"
	"gorm.io/gorm"
)

// pruneJob deletes rows older than a retention window inside a single
// transaction. The delete callback owns the table-specific query.
type pruneJob struct {
	name          string
	logg          *logger.Logger
	db            txRunner
	retentionDays int
	now           func() time.Time
	delete        func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retentionDays) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.delete(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retentionDays,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "retention prune complete")
	return nil
}

func newPruneJob(name string, logg *logger.Logger, db txRunner, retentionDays, fallbackDays int, del func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)) (*pruneJob, error) {
	switch {
	case logg == nil:
		return nil, fmt.Errorf("%s: logger required", name)
	case db == nil:
		return nil, fmt.Errorf("%s: db runner required", name)
	case del == nil:
		return nil, fmt.Errorf("%s: delete callback required", name)
	}
	if retentionDays <= 0 {
		retentionDays = fallbackDays
	}
	return &pruneJob{
		name:          name,
		logg:          logg,
		db:            db,
		retentionDays: retentionDays,
		now:           time.Now,
		delete:        del,
	}, nil
}
