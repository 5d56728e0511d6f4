package maintenance

import (
	"context"
	"errors"

	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

type tokenLister interface {
	Tokens(ctx context.Context) ([]string, error)
}

// NewPushTokenPruneJob drops expired device tokens from the registry.
// Listing the registry evicts every token past its TTL, so the job only
// needs to read it.
func NewPushTokenPruneJob(logg *logger.Logger, tokens tokenLister) (Job, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if tokens == nil {
		return nil, errors.New("token registry required")
	}
	return &pushTokenPruneJob{logg: logg, tokens: tokens}, nil
}

type pushTokenPruneJob struct {
	logg   *logger.Logger
	tokens tokenLister
}

func (j *pushTokenPruneJob) Name() string { return "push-token-prune" }

func (j *pushTokenPruneJob) Run(ctx context.Context) error {
	live, err := j.tokens.Tokens(ctx)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "live_tokens", len(live)), "push token registry pruned")
	return nil
}
