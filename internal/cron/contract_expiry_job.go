package cron

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/routong/routong-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expirySweeper interface {
	Tick(ctx context.Context) (int, error)
}

// ContractExpiryJobParams configure the deadline sweep.
type ContractExpiryJobParams struct {
	Logger     *logger.Logger
	Settlement expirySweeper
}

// NewContractExpiryJob builds the job that settles overdue contracts.
func NewContractExpiryJob(params ContractExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	return &contractExpiryJob{
		logg:       params.Logger,
		settlement: params.Settlement,
	}, nil
}

type contractExpiryJob struct {
	logg       *logger.Logger
	settlement expirySweeper
}

func (j *contractExpiryJob) Name() string { return "contract-expiry" }

func (j *contractExpiryJob) Run(ctx context.Context) error {
	settled, err := j.settlement.Tick(ctx)
	if err != nil {
		// partial progress still counts; whatever settled stays settled
		logCtx := j.logg.WithField(ctx, "contracts_settled", settled)
		j.logg.Error(logCtx, "expiry sweep finished with errors", err)
		return fmt.Errorf("contract expiry sweep: %w", err)
	}
	if settled > 0 {
		logCtx := j.logg.WithField(ctx, "contracts_settled", settled)
		j.logg.Info(logCtx, "expiry sweep settled overdue contracts")
	}
	return nil
}
