// Package notify delivers stage-transition notifications. The queue-backed
// dispatcher hands each recipient's message to the message broker; a
// downstream mail worker owns rendering and delivery.
package notify

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/hackdash/apiserver/internal/mq"
	"github.com/hackdash/apiserver/types"
	"go.uber.org/zap"
)

// QueueDispatcher publishes one message per recipient onto the
// notifications queue. Publishing is an at-least-once delivery attempt;
// a failed publish lands in the report's Failed list and never blocks the
// rest of the batch.
type QueueDispatcher struct {
	mq     *mq.MQ
	queue  string
	logger *zap.Logger
}

func NewQueueDispatcher(m *mq.MQ, queue string, logger *zap.Logger) *QueueDispatcher {
	return &QueueDispatcher{
		mq:     m,
		queue:  queue,
		logger: logger,
	}
}

// Dispatch fans the batch out to the queue, one message per recipient.
func (d *QueueDispatcher) Dispatch(ctx context.Context, batch []types.StageTransition) types.DispatchReport {
	report := types.DispatchReport{Sent: []string{}, Failed: []string{}}

	for _, transition := range batch {
		data, err := json.Marshal(transition)
		if err != nil {
			report.Failed = append(report.Failed, transition.RecipientEmail)
			d.logger.Error("failed to encode notification",
				zap.String("recipient", transition.RecipientEmail),
				zap.Error(err))
			continue
		}

		attrs := map[string]string{
			"hackathon_id": strconv.Itoa(transition.HackathonID),
			"old_stage":    string(transition.OldStage),
			"new_stage":    string(transition.NewStage),
		}
		if _, err := d.mq.Publish(ctx, d.queue, data, attrs); err != nil {
			report.Failed = append(report.Failed, transition.RecipientEmail)
			d.logger.Error("failed to publish notification",
				zap.String("recipient", transition.RecipientEmail),
				zap.Int("hackathon_id", transition.HackathonID),
				zap.Error(err))
			continue
		}
		report.Sent = append(report.Sent, transition.RecipientEmail)
	}
	return report
}

// LogDispatcher records transitions in the log instead of publishing them.
// Used when no broker is configured, e.g. in development.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, batch []types.StageTransition) types.DispatchReport {
	report := types.DispatchReport{Sent: []string{}, Failed: []string{}}
	for _, transition := range batch {
		d.logger.Info("stage notification",
			zap.String("recipient", transition.RecipientEmail),
			zap.Int("hackathon_id", transition.HackathonID),
			zap.String("old_stage", string(transition.OldStage)),
			zap.String("new_stage", string(transition.NewStage)))
		report.Sent = append(report.Sent, transition.RecipientEmail)
	}
	return report
}
