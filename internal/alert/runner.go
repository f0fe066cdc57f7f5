package alert

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "meetsched/internal/log"
)

// Runner schedules evaluator passes on a cron expression.
type Runner struct {
	cron *cron.Cron
}

// StartRunner begins running the evaluator on the given cron spec
// (standard 5-field syntax). The returned Runner keeps firing until Stop.
func StartRunner(ctx context.Context, spec string, ev *Evaluator) (*Runner, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := ev.Run(ctx); err != nil {
			appLog.Error("scheduled alert pass failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("alert: invalid cron spec %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("alert runner started", "cron", spec)
	return &Runner{cron: c}, nil
}

// Stop halts the schedule and waits for an in-flight pass to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	appLog.Info("alert runner stopped")
}
