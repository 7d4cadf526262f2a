package audit

import (
	"context"
	"log/slog"
	"time"
)

// Relay drains pending audit records from one store and publishes them.
// The worker process runs one relay per store on a shared poll loop.
type Relay struct {
	Source    string
	Log       Log
	Publisher Publisher
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r Relay) RunOnce(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "iam.audit"
	}

	pending, err := r.Log.ListPendingAudit(ctx, limit)
	if err != nil {
		logger.Error("audit list pending failed",
			"event", "audit_relay_list_failed",
			"module", "internal/shared/audit",
			"layer", "worker",
			"source", r.Source,
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	for _, record := range pending {
		if err := r.Publisher.PublishAudit(ctx, topic, record); err != nil {
			logger.Error("audit publish failed",
				"event", "audit_relay_publish_failed",
				"module", "internal/shared/audit",
				"layer", "worker",
				"source", r.Source,
				"record_id", record.RecordID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Log.MarkAuditPublished(ctx, record.RecordID, now); err != nil {
			logger.Error("audit mark published failed",
				"event", "audit_relay_mark_failed",
				"module", "internal/shared/audit",
				"layer", "worker",
				"source", r.Source,
				"record_id", record.RecordID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("audit relay cycle completed",
			"event", "audit_relay_completed",
			"module", "internal/shared/audit",
			"layer", "worker",
			"source", r.Source,
			"published_count", len(pending),
		)
	}
	return nil
}
