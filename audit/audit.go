// Package audit implements a non-authoritative observer that mirrors
// transaction commit and abort events into a relational table for
// operational visibility. A Sink is wired into a transaction through
// txn.Auditor; nothing in the coordinator's own correctness depends on
// it, so every write is fire-and-forget on a background queue rather
// than inline with the commit or abort path it observes.
package audit

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/cedarsql/txncoord/wire"
)

// RecordPO is the row shape a Sink appends to. TransactionID is the
// coordinator's own identifier, kept as its string form since nothing
// downstream needs to decode it back.
type RecordPO struct {
	gorm.Model
	TransactionID string `gorm:"index;column:transaction_id"`
	Outcome       string `gorm:"column:outcome"`
	TabletIDs     string `gorm:"column:tablet_ids"`
	Cause         string `gorm:"column:cause"`
}

func (RecordPO) TableName() string {
	return "transaction_audit_record"
}

type event struct {
	record RecordPO
}

// Sink records transaction outcomes into db through a bounded,
// buffered queue drained by a single background writer goroutine, so
// a slow or unavailable database never makes a caller's commit or
// abort wait on it.
type Sink struct {
	db     *gorm.DB
	events chan event
	done   chan struct{}
}

// NewSink starts a Sink's background writer over db. queueDepth bounds
// how many pending events can be buffered before RecordCommit/
// RecordAbort start silently dropping events rather than blocking the
// caller.
func NewSink(db *gorm.DB, queueDepth int) *Sink {
	s := &Sink{
		db:     db,
		events: make(chan event, queueDepth),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	defer close(s.done)
	for ev := range s.events {
		_ = s.db.WithContext(context.Background()).Create(&ev.record).Error
	}
}

// RecordCommit satisfies txn.Auditor. It never blocks: if the queue is
// full the event is dropped, since the sink's purpose is visibility,
// not a durable audit trail.
func (s *Sink) RecordCommit(id wire.TransactionID, tabletIDs []string) {
	s.enqueue(RecordPO{
		TransactionID: id.String(),
		Outcome:       "COMMITTED",
		TabletIDs:     joinTabletIDs(tabletIDs),
	})
}

// RecordAbort satisfies txn.Auditor.
func (s *Sink) RecordAbort(id wire.TransactionID, cause error) {
	var causeText string
	if cause != nil {
		causeText = cause.Error()
	}
	s.enqueue(RecordPO{
		TransactionID: id.String(),
		Outcome:       "ABORTED",
		Cause:         causeText,
	})
}

func (s *Sink) enqueue(record RecordPO) {
	select {
	case s.events <- event{record: record}:
	default:
	}
}

// Close stops accepting new events, waits up to 5 seconds for the
// queue to drain, and closes the underlying database connection,
// combining whatever errors either step produced.
func (s *Sink) Close() error {
	close(s.events)

	drained := make(chan struct{})
	go func() {
		<-s.done
		close(drained)
	}()

	var drainErr error
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		drainErr = context.DeadlineExceeded
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return multierr.Combine(drainErr, err)
	}
	return multierr.Combine(drainErr, sqlDB.Close())
}

func joinTabletIDs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	out := ids[0]
	for _, id := range ids[1:] {
		out += "," + id
	}
	return out
}
