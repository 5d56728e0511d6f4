package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	defaultOutboxRetentionDays = 30
	defaultTerminalAttempts    = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Repository       outboxRetentionRepo
	RetentionDays    int
	TerminalAttempts int
}

// NewOutboxRetentionJob removes outbox rows that no publisher will pick up again.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultOutboxRetentionDays
	}
	attempts := params.TerminalAttempts
	if attempts <= 0 {
		attempts = defaultTerminalAttempts
	}
	return &outboxRetentionJob{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		retention:        time.Duration(days) * 24 * time.Hour,
		terminalAttempts: attempts,
		now:              time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg             *logger.Logger
	db               txRunner
	repo             outboxRetentionRepo
	retention        time.Duration
	terminalAttempts int
	now              func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.terminalAttempts)
		deleted = rows
		return err
	})
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox retention sweep complete")
	return nil
}
