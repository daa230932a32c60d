package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Log is the write/verify surface over an audit store. Writes are
// best-effort-degradable: a failed append is logged but never propagated,
// because an audit failure must not block the governed operation it
// describes.
type Log struct {
	store  Store
	logger *zap.Logger
}

// NewLog creates a Log over the given store.
func NewLog(store Store, logger *zap.Logger) *Log {
	return &Log{store: store, logger: logger}
}

// Record checksums and appends an entry. Returns the written entry, or nil
// when the append failed; either way the caller proceeds.
func (l *Log) Record(ctx context.Context, rec Record) *Entry {
	entry, err := newEntry(rec)
	if err != nil {
		l.logger.Error("audit entry build failed",
			zap.String("event", string(rec.Event)),
			zap.Error(err),
		)
		return nil
	}
	if err := l.store.Append(ctx, entry); err != nil {
		l.logger.Error("audit append failed",
			zap.String("event", string(rec.Event)),
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
		return nil
	}
	return entry
}

// Query returns entries matching the filter.
func (l *Log) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	entries, err := l.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	return entries, nil
}

// Verify recomputes the checksum of a stored entry and compares it against
// the one written at append time.
func (l *Log) Verify(ctx context.Context, id string) (bool, error) {
	entry, err := l.store.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("Verify: %w", err)
	}
	checksum, err := PayloadChecksum(entry.Payload)
	if err != nil {
		return false, fmt.Errorf("Verify: %w", err)
	}
	return checksum == entry.Checksum, nil
}

// IntegrityReport summarizes a bulk verification pass. A nonzero Failed
// count signals possible tampering or serialization drift and must be
// surfaced to an operator, never auto-corrected.
type IntegrityReport struct {
	Total     int      `json:"total"`
	Verified  int      `json:"verified"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// CheckIntegrity re-verifies every entry matching the filter and reports
// mismatches.
func (l *Log) CheckIntegrity(ctx context.Context, f Filter) (*IntegrityReport, error) {
	entries, err := l.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("CheckIntegrity: %w", err)
	}
	report := &IntegrityReport{Total: len(entries)}
	for _, entry := range entries {
		checksum, err := PayloadChecksum(entry.Payload)
		if err != nil || checksum != entry.Checksum {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, entry.ID)
			l.logger.Error("audit integrity violation",
				zap.String("entry_id", entry.ID),
				zap.String("event", string(entry.Event)),
			)
			continue
		}
		report.Verified++
	}
	return report, nil
}
