package storage

import (
	"context"
	"fmt"
	"time"
)

// SyncOperation is the kind of change to mirror to the spreadsheet.
type SyncOperation string

const (
	SyncUpsert  SyncOperation = "upsert"
	SyncDelete  SyncOperation = "delete"
	SyncReplace SyncOperation = "replace"
)

// SyncStatus tracks an outbox item.
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncProcessing SyncStatus = "processing"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
)

// SyncItem is one row of the sync outbox.
type SyncItem struct {
	ID            int64
	TransactionID string
	Operation     SyncOperation
	Payload       []byte
	Status        SyncStatus
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SyncQueueStats counts items per status.
type SyncQueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// SyncQueue is the durable outbox drained by the sync processor.
type SyncQueue interface {
	EnqueueSync(ctx context.Context, op SyncOperation, transactionID string, payload []byte) error
	DequeueSyncBatch(ctx context.Context, limit int, now time.Time) ([]SyncItem, error)
	MarkSyncProcessing(ctx context.Context, id int64) error
	MarkSyncComplete(ctx context.Context, id int64) error
	MarkSyncFailed(ctx context.Context, id int64, msg string) error
	RetrySyncLater(ctx context.Context, id int64, msg string, next time.Time) error
	ResetStaleProcessing(ctx context.Context) error
	CleanupCompletedSyncs(ctx context.Context, before time.Time) error
	RetryFailedSyncs(ctx context.Context) error
	SyncQueueStats(ctx context.Context) (SyncQueueStats, error)
}

// EnqueueSync implements SyncQueue
func (r *Repository) EnqueueSync(ctx context.Context, op SyncOperation, transactionID string, payload []byte) error {
	now := formatTime(time.Now())
	_, err := r.exec(ctx, `INSERT INTO sync_queue
		(transaction_id, operation, payload, status, attempts, last_error, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?, ?, ?)`,
		transactionID, string(op), string(payload), string(SyncPending), now, now, now)
	if err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

// DequeueSyncBatch implements SyncQueue
func (r *Repository) DequeueSyncBatch(ctx context.Context, limit int, now time.Time) ([]SyncItem, error) {
	rows, err := r.query(ctx, `SELECT id, transaction_id, operation, payload, status, attempts, last_error,
		next_attempt_at, created_at, updated_at
		FROM sync_queue
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY id
		LIMIT ?`, string(SyncPending), formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue sync batch: %w", err)
	}
	defer rows.Close()

	var out []SyncItem
	for rows.Next() {
		var (
			it                           SyncItem
			op, status, payload          string
			nextAt, createdAt, updatedAt string
		)
		if err := rows.Scan(&it.ID, &it.TransactionID, &op, &payload, &status, &it.Attempts, &it.LastError,
			&nextAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		it.Operation = SyncOperation(op)
		it.Status = SyncStatus(status)
		it.Payload = []byte(payload)
		it.NextAttemptAt = parseTime(nextAt)
		it.CreatedAt = parseTime(createdAt)
		it.UpdatedAt = parseTime(updatedAt)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) setSyncStatus(ctx context.Context, id int64, status SyncStatus) error {
	res, err := r.exec(ctx, `UPDATE sync_queue SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark sync %s: %w", status, err)
	}
	return requireAffected(res)
}

// MarkSyncProcessing implements SyncQueue
func (r *Repository) MarkSyncProcessing(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, SyncProcessing)
}

// MarkSyncComplete implements SyncQueue
func (r *Repository) MarkSyncComplete(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, SyncCompleted)
}

// MarkSyncFailed implements SyncQueue
func (r *Repository) MarkSyncFailed(ctx context.Context, id int64, msg string) error {
	_, err := r.exec(ctx, `UPDATE sync_queue SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		string(SyncFailed), msg, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark sync failed: %w", err)
	}
	return nil
}

// RetrySyncLater implements SyncQueue
func (r *Repository) RetrySyncLater(ctx context.Context, id int64, msg string, next time.Time) error {
	_, err := r.exec(ctx, `UPDATE sync_queue
		SET status = ?, attempts = attempts + 1, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?`,
		string(SyncPending), msg, formatTime(next), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("schedule sync retry: %w", err)
	}
	return nil
}

// ResetStaleProcessing implements SyncQueue
func (r *Repository) ResetStaleProcessing(ctx context.Context) error {
	_, err := r.exec(ctx, `UPDATE sync_queue SET status = ? WHERE status = ?`, string(SyncPending), string(SyncProcessing))
	if err != nil {
		return fmt.Errorf("reset stale processing: %w", err)
	}
	return nil
}

// CleanupCompletedSyncs implements SyncQueue
func (r *Repository) CleanupCompletedSyncs(ctx context.Context, before time.Time) error {
	_, err := r.exec(ctx, `DELETE FROM sync_queue WHERE status = ? AND updated_at < ?`, string(SyncCompleted), formatTime(before))
	if err != nil {
		return fmt.Errorf("cleanup completed syncs: %w", err)
	}
	return nil
}

// RetryFailedSyncs implements SyncQueue
func (r *Repository) RetryFailedSyncs(ctx context.Context) error {
	_, err := r.exec(ctx, `UPDATE sync_queue SET status = ?, attempts = 0, next_attempt_at = ? WHERE status = ?`,
		string(SyncPending), formatTime(time.Now()), string(SyncFailed))
	if err != nil {
		return fmt.Errorf("retry failed syncs: %w", err)
	}
	return nil
}

// SyncQueueStats implements SyncQueue
func (r *Repository) SyncQueueStats(ctx context.Context) (SyncQueueStats, error) {
	var s SyncQueueStats
	rows, err := r.query(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return s, fmt.Errorf("sync queue stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return s, fmt.Errorf("scan sync queue stats: %w", err)
		}
		switch SyncStatus(status) {
		case SyncPending:
			s.Pending = n
		case SyncProcessing:
			s.Processing = n
		case SyncCompleted:
			s.Completed = n
		case SyncFailed:
			s.Failed = n
		}
	}
	return s, rows.Err()
}
