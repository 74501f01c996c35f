package mqtt

import (
	"context"

	"github.com/kilianp07/skyplan/core/model"
)

// PlanPublisher hands a finished plan to downstream consumers such as
// observatory schedulers or alert brokers.
type PlanPublisher interface {
	PublishPlan(ctx context.Context, plan model.CoveragePlan, summary model.Summary) error
}

// NopPublisher drops every plan.
type NopPublisher struct{}

func (NopPublisher) PublishPlan(context.Context, model.CoveragePlan, model.Summary) error {
	return nil
}
