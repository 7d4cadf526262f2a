package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLog struct {
	pending   []Record
	published map[string]time.Time
}

func (f *fakeLog) ListPendingAudit(_ context.Context, limit int) ([]Record, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeLog) MarkAuditPublished(_ context.Context, recordID string, publishedAt time.Time) error {
	if f.published == nil {
		f.published = make(map[string]time.Time)
	}
	f.published[recordID] = publishedAt
	remaining := make([]Record, 0, len(f.pending))
	for _, record := range f.pending {
		if record.RecordID != recordID {
			remaining = append(remaining, record)
		}
	}
	f.pending = remaining
	return nil
}

type fakePublisher struct {
	topics  []string
	records []Record
	fail    bool
}

func (f *fakePublisher) PublishAudit(_ context.Context, topic string, record Record) error {
	if f.fail {
		return errors.New("bus unavailable")
	}
	f.topics = append(f.topics, topic)
	f.records = append(f.records, record)
	return nil
}

func TestRelayPublishesAndMarksPending(t *testing.T) {
	log := &fakeLog{pending: []Record{
		{RecordID: "a", Identity: "admin", Operation: "insert", Entity: "groups", EntityKey: "g1"},
		{RecordID: "b", Identity: "admin", Operation: "delete", Entity: "groups", EntityKey: "g2"},
	}}
	publisher := &fakePublisher{}
	relay := Relay{Source: "group-graph", Log: log, Publisher: publisher, BatchSize: 10}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(publisher.records) != 2 {
		t.Fatalf("expected 2 published records, got %d", len(publisher.records))
	}
	if publisher.topics[0] != "iam.audit" {
		t.Fatalf("expected default topic iam.audit, got %s", publisher.topics[0])
	}
	if len(log.pending) != 0 {
		t.Fatalf("expected pending log drained, got %d rows", len(log.pending))
	}
	if _, ok := log.published["a"]; !ok {
		t.Fatalf("record a not marked published")
	}
}

func TestRelayStopsOnPublishFailure(t *testing.T) {
	log := &fakeLog{pending: []Record{{RecordID: "a"}}}
	publisher := &fakePublisher{fail: true}
	relay := Relay{Log: log, Publisher: publisher}

	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected publish error")
	}
	if len(log.published) != 0 {
		t.Fatalf("failed publish must not be marked published")
	}
}
