package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/consistency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type categoryRepairer interface {
	RepairOrphanedProducts(ctx context.Context) (*consistency.RepairReport, error)
}

func NewCategoryRepairJob(logg *logger.Logger, repairer categoryRepairer) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repairer == nil {
		return nil, fmt.Errorf("category repairer required")
	}
	return &categoryRepairJob{logg: logg, repairer: repairer}, nil
}

type categoryRepairJob struct {
	logg     *logger.Logger
	repairer categoryRepairer
}

func (j *categoryRepairJob) Name() string { return "category-repair" }

func (j *categoryRepairJob) Run(ctx context.Context) error {
	report, err := j.repairer.RepairOrphanedProducts(ctx)
	if err != nil {
		return fmt.Errorf("repair categories: %w", err)
	}
	if report.Repaired+report.Realigned == 0 {
		return nil
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"repaired":  report.Repaired,
		"realigned": report.Realigned,
	}), "category repair applied")
	return nil
}
