// Package audit implements the audit channel (spec §6): an append-only,
// best-effort stream of suspicious-activity records that the engine never
// waits on.
package audit

import (
	"github.com/rs/zerolog"

	"github.com/finova-oss/rewardengine/internal/store"
)

// Sink receives audit records. Publish must never block the caller — spec
// §4.7: "log_suspicious (best-effort, never blocks)".
type Sink interface {
	Publish(record store.AuditRecord)
	// Drain returns up to n buffered records for an external consumer to
	// pull, and removes them from the buffer.
	Drain(n int) []store.AuditRecord
}

// ChannelSink is a bounded-buffer, drop-oldest implementation: a full
// channel overwrites its oldest unread record rather than blocking the
// producer, generalized from the teacher's non-blocking progress-logging
// pattern (internal/log/progress.go uses a buffered channel with a
// default-case select to the same end).
type ChannelSink struct {
	buf    chan store.AuditRecord
	log    zerolog.Logger
	capacity int
}

func NewChannelSink(capacity int, log zerolog.Logger) *ChannelSink {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ChannelSink{
		buf:      make(chan store.AuditRecord, capacity),
		log:      log.With().Str("component", "audit").Logger(),
		capacity: capacity,
	}
}

func (s *ChannelSink) Publish(record store.AuditRecord) {
	select {
	case s.buf <- record:
	default:
		// Buffer full: drop the oldest record to make room rather than
		// block the submitter.
		select {
		case <-s.buf:
		default:
		}
		select {
		case s.buf <- record:
		default:
			s.log.Warn().Str("user_id", record.UserID).Msg("audit buffer saturated, dropping record")
		}
	}
}

func (s *ChannelSink) Drain(n int) []store.AuditRecord {
	if n <= 0 {
		n = s.capacity
	}
	out := make([]store.AuditRecord, 0, n)
	for i := 0; i < n; i++ {
		select {
		case r := <-s.buf:
			out = append(out, r)
		default:
			return out
		}
	}
	return out
}
