package postgres

import (
	"context"
	"fmt"
	"time"

	"fishcharter/internal/models"
)

const syncTaskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (s *Store) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncPending
	}
	now := time.Now().UTC()
	err := s.queryRow(ctx, `INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("create sync task: %w", err)
	}
	task.CreatedAt = now
	return nil
}

func (s *Store) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return s.querySyncTasks(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue
		WHERE status IN ($1, $2) AND (next_retry_at IS NULL OR next_retry_at <= $3)
		ORDER BY created_at, id LIMIT $4`,
		models.SyncPending, models.SyncRetry, time.Now().UTC(), limit)
}

func (s *Store) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var sql string
	switch status {
	case models.SyncRetry:
		sql = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3, retry_count = retry_count + 1 WHERE id = $4`
	case models.SyncCompleted, models.SyncFailed:
		sql = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3, processed_at = NOW() WHERE id = $4`
	default:
		sql = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3 WHERE id = $4`
	}
	if _, err := s.exec(ctx, sql, status, errMsg, nextRetryAt, id); err != nil {
		return fmt.Errorf("update sync task status: %w", err)
	}
	return nil
}

func (s *Store) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	return s.querySyncTasks(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = $1 ORDER BY created_at DESC`, models.SyncFailed)
}

func (s *Store) querySyncTasks(ctx context.Context, sql string, args ...any) ([]models.SyncTask, error) {
	rows, err := s.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt); err != nil {
			return nil, fmt.Errorf("scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
