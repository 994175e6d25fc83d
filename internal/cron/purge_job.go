package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Purger removes rows last touched before cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type PurgeJobParams struct {
	Name      string
	Logger    *logger.Logger
	DB        txRunner
	Purger    Purger
	Retention time.Duration
}

// NewPurgeJob builds a job deleting everything older than the retention
// window in a single transaction.
func NewPurgeJob(params PurgeJobParams) (Job, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("job name required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("purger required")
	}
	if params.Retention <= 0 {
		return nil, fmt.Errorf("%s: retention must be positive", params.Name)
	}
	return &purgeJob{
		name:      params.Name,
		logg:      params.Logger,
		db:        params.DB,
		purger:    params.Purger,
		retention: params.Retention,
		now:       time.Now,
	}, nil
}

type purgeJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	purger    Purger
	retention time.Duration
	now       func() time.Time
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purger.PurgeBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", j.name, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention_h":  j.retention.Hours(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "purge complete")
	return deleted, nil
}
