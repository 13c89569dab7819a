package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/pkg/timeutil"
)

type codeSweeper interface {
	CleanupExpired(ctx context.Context, now int64) (int64, error)
}

// VerificationCleanupJob drops pending registrations whose code expired.
type VerificationCleanupJob struct {
	sweeper codeSweeper
}

func NewVerificationCleanupJob(sweeper codeSweeper) *VerificationCleanupJob {
	return &VerificationCleanupJob{sweeper: sweeper}
}

func (j *VerificationCleanupJob) Name() string {
	return "verification_cleanup"
}

func (j *VerificationCleanupJob) Run(ctx context.Context) error {
	if j.sweeper == nil {
		return nil
	}
	removed, err := j.sweeper.CleanupExpired(ctx, timeutil.NowUnix())
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired verification codes removed", zap.Int64("count", removed))
	}
	return nil
}
