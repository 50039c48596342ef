package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/google/uuid"
)

// Enqueue persists a new task. delay pushes the first delivery into the
// future; zero means deliverable immediately.
func (s *Store) Enqueue(kind string, payload interface{}, delay time.Duration) (types.Task, error) {
	timer := logging.StartTimer(logging.CategoryQueue, "Enqueue")
	defer timer.Stop()

	var task types.Task
	if kind == "" {
		return task, fmt.Errorf("task kind required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return task, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task = types.Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   raw,
		Status:    types.TaskPending,
		NotBefore: time.Now().UTC().Add(delay),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO work_queue (id, kind, payload, status, not_before)
		 VALUES (?, ?, ?, ?, ?)`,
		task.ID, task.Kind, string(raw), string(task.Status), task.NotBefore,
	)
	if err != nil {
		logging.Get(logging.CategoryQueue).Error("Failed to enqueue %s task: %v", kind, err)
		return task, fmt.Errorf("failed to enqueue task: %w", err)
	}

	logging.Queue("Enqueued %s task %s (delay=%v)", kind, task.ID, delay)
	return task, nil
}

// LeaseDue atomically moves up to limit due pending tasks to leased and
// returns them. Each lease increments the attempt counter; the lease
// expires at now+leaseFor, after which RequeueStalled recovers the task.
func (s *Store) LeaseDue(now time.Time, limit int, leaseFor time.Duration) ([]types.Task, error) {
	timer := logging.StartTimer(logging.CategoryQueue, "LeaseDue")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, kind, payload, attempts, not_before, created_at, updated_at
		 FROM work_queue
		 WHERE status = ? AND (not_before IS NULL OR not_before <= ?)
		 ORDER BY not_before
		 LIMIT ?`,
		string(types.TaskPending), now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}

	var tasks []types.Task
	for rows.Next() {
		var t types.Task
		var payload string
		var notBefore sql.NullTime
		if err := rows.Scan(&t.ID, &t.Kind, &payload, &t.Attempts, &notBefore, &t.CreatedAt, &t.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		t.Payload = json.RawMessage(payload)
		if notBefore.Valid {
			t.NotBefore = notBefore.Time
		}
		t.Status = types.TaskLeased
		tasks = append(tasks, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	leasedUntil := now.UTC().Add(leaseFor)
	for i := range tasks {
		tasks[i].Attempts++
		tasks[i].LeasedUntil = leasedUntil
		if _, err := tx.Exec(
			`UPDATE work_queue
			 SET status = ?, attempts = attempts + 1, leased_until = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			string(types.TaskLeased), leasedUntil, tasks[i].ID,
		); err != nil {
			return nil, fmt.Errorf("failed to lease task %s: %w", tasks[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lease: %w", err)
	}

	if len(tasks) > 0 {
		logging.QueueDebug("Leased %d due tasks until %s", len(tasks), leasedUntil.Format(time.RFC3339))
	}
	return tasks, nil
}

// CompleteTask marks a leased task done.
func (s *Store) CompleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE work_queue SET status = ?, leased_until = NULL, last_error = '', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(types.TaskDone), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	logging.QueueDebug("Task %s done", id)
	return nil
}

// RetryTask returns a failed delivery to pending with a not-before delay.
func (s *Store) RetryTask(id, lastError string, notBefore time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE work_queue
		 SET status = ?, leased_until = NULL, last_error = ?, not_before = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(types.TaskPending), lastError, notBefore.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to retry task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	logging.Queue("Task %s scheduled for retry at %s", id, notBefore.Format(time.RFC3339))
	return nil
}

// FailTask marks a task failed permanently. Failed tasks are kept for
// inspection, not deleted.
func (s *Store) FailTask(id, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE work_queue
		 SET status = ?, leased_until = NULL, last_error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(types.TaskFailed), lastError, id,
	)
	if err != nil {
		return fmt.Errorf("failed to fail task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	logging.Get(logging.CategoryQueue).Warn("Task %s failed permanently: %s", id, lastError)
	return nil
}

// RequeueStalled returns leased tasks whose lease expired to pending.
// This is what makes delivery at-least-once across crashes.
func (s *Store) RequeueStalled(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE work_queue
		 SET status = ?, leased_until = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE status = ? AND leased_until IS NOT NULL AND leased_until < ?`,
		string(types.TaskPending), string(types.TaskLeased), now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stalled tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Queue("Requeued %d stalled tasks", n)
	}
	return int(n), nil
}

// GetTask returns one task by id.
func (s *Store) GetTask(id string) (types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t types.Task
	var payload string
	var notBefore, leasedUntil sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, kind, payload, status, attempts, not_before, leased_until, last_error, created_at, updated_at
		 FROM work_queue WHERE id = ?`, id,
	).Scan(&t.ID, &t.Kind, &payload, &t.Status, &t.Attempts, &notBefore, &leasedUntil, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("failed to get task: %w", err)
	}
	t.Payload = json.RawMessage(payload)
	if notBefore.Valid {
		t.NotBefore = notBefore.Time
	}
	if leasedUntil.Valid {
		t.LeasedUntil = leasedUntil.Time
	}
	return t, nil
}

// ListTasks returns tasks, optionally filtered by status, newest first.
func (s *Store) ListTasks(status types.TaskStatus, limit int) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, kind, payload, status, attempts, not_before, leased_until, last_error, created_at, updated_at
	          FROM work_queue`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var t types.Task
		var payload string
		var notBefore, leasedUntil sql.NullTime
		if err := rows.Scan(&t.ID, &t.Kind, &payload, &t.Status, &t.Attempts, &notBefore, &leasedUntil, &t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Payload = json.RawMessage(payload)
		if notBefore.Valid {
			t.NotBefore = notBefore.Time
		}
		if leasedUntil.Valid {
			t.LeasedUntil = leasedUntil.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// PurgeDoneTasks deletes done tasks older than the cutoff.
func (s *Store) PurgeDoneTasks(olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"DELETE FROM work_queue WHERE status = ? AND updated_at < ?",
		string(types.TaskDone), olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge done tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
