package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus represents how a run ended.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// RunRecord is one finished orchestration run.
type RunRecord struct {
	ID            string    `json:"id"`
	Objective     string    `json:"objective"`
	PlanObjective string    `json:"plan_objective,omitempty"`
	Answer        string    `json:"answer"`
	Status        RunStatus `json:"status"`
	FallbackPlan  bool      `json:"fallback_plan"`
	Drift         int       `json:"drift"`
	IntentOK      bool      `json:"intent_ok"`
	// FormatValid is nil when no output format was checked.
	FormatValid  *bool      `json:"format_valid,omitempty"`
	InputTokens  int64      `json:"input_tokens"`
	OutputTokens int64      `json:"output_tokens"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`

	Tasks           []TaskRecord           `json:"tasks,omitempty"`
	Transformations []TransformationRecord `json:"transformations,omitempty"`
}

// TaskRecord is the stored outcome of one task.
type TaskRecord struct {
	TaskID       int    `json:"task_id"`
	Role         string `json:"role"`
	Instruction  string `json:"instruction"`
	Dependencies []int  `json:"dependencies"`
	Success      bool   `json:"success"`
	Content      string `json:"content,omitempty"`
	Error        string `json:"error,omitempty"`
	RetryCount   int    `json:"retry_count"`
}

// TransformationRecord is one stored audit entry.
type TransformationRecord struct {
	Source     string    `json:"source"`
	Reason     string    `json:"reason"`
	Before     string    `json:"before"`
	After      string    `json:"after"`
	DriftScore int       `json:"drift_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// SaveRun stores a run with its task results and transformations.
// Saving the same run id twice replaces the earlier record.
func (db *DB) SaveRun(r *RunRecord) error {
	return db.Transaction(func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM transformations WHERE run_id = ?",
			"DELETE FROM task_results WHERE run_id = ?",
			"DELETE FROM runs WHERE id = ?",
		} {
			if _, err := tx.Exec(q, r.ID); err != nil {
				return fmt.Errorf("save run: clear previous: %w", err)
			}
		}

		var finished sql.NullString
		if r.FinishedAt != nil {
			finished = sql.NullString{String: formatTime(*r.FinishedAt), Valid: true}
		}
		var formatValid sql.NullBool
		if r.FormatValid != nil {
			formatValid = sql.NullBool{Bool: *r.FormatValid, Valid: true}
		}

		_, err := tx.Exec(`
			INSERT INTO runs (id, objective, plan_objective, answer, status, fallback_plan, drift,
				intent_ok, format_valid, input_tokens, output_tokens, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Objective, r.PlanObjective, r.Answer, string(r.Status), r.FallbackPlan, r.Drift,
			r.IntentOK, formatValid, r.InputTokens, r.OutputTokens, formatTime(r.StartedAt), finished)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}

		for i, t := range r.Tasks {
			deps, err := json.Marshal(t.Dependencies)
			if err != nil {
				return fmt.Errorf("marshal dependencies: %w", err)
			}
			_, err = tx.Exec(`
				INSERT INTO task_results (run_id, task_id, role, instruction, dependencies, success,
					content, error, retry_count, seq)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, r.ID, t.TaskID, t.Role, t.Instruction, string(deps), t.Success, t.Content, t.Error, t.RetryCount, i)
			if err != nil {
				return fmt.Errorf("save task %d: %w", t.TaskID, err)
			}
		}

		for i, tr := range r.Transformations {
			_, err := tx.Exec(`
				INSERT INTO transformations (run_id, seq, source, reason, before_text, after_text,
					drift_score, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, r.ID, i, tr.Source, tr.Reason, tr.Before, tr.After, tr.DriftScore, formatTime(tr.CreatedAt))
			if err != nil {
				return fmt.Errorf("save transformation %d: %w", i, err)
			}
		}
		return nil
	})
}

const runColumns = `id, objective, plan_objective, answer, status, fallback_plan, drift, intent_ok,
	format_valid, input_tokens, output_tokens, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		r           RunRecord
		planObj     sql.NullString
		answer      sql.NullString
		formatValid sql.NullBool
		startedAt   string
		finishedAt  sql.NullString
	)
	err := row.Scan(&r.ID, &r.Objective, &planObj, &answer, &r.Status, &r.FallbackPlan, &r.Drift,
		&r.IntentOK, &formatValid, &r.InputTokens, &r.OutputTokens, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	r.PlanObjective = planObj.String
	r.Answer = answer.String
	if formatValid.Valid {
		v := formatValid.Bool
		r.FormatValid = &v
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// GetRun retrieves a run with its tasks and transformations.
// Returns nil, nil if no run has the id.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	r, err := scanRun(db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if r.Tasks, err = db.listTasks(id); err != nil {
		return nil, err
	}
	if r.Transformations, err = db.listTransformations(id); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first, without tasks or
// transformations. A non-positive limit returns every run.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (db *DB) listTasks(runID string) ([]TaskRecord, error) {
	rows, err := db.Query(`
		SELECT task_id, role, instruction, dependencies, success, content, error, retry_count
		FROM task_results WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list task results: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var (
			t                             TaskRecord
			instruction, deps, content, e sql.NullString
		)
		if err := rows.Scan(&t.TaskID, &t.Role, &instruction, &deps, &t.Success, &content, &e, &t.RetryCount); err != nil {
			return nil, fmt.Errorf("scan task result: %w", err)
		}
		t.Instruction = instruction.String
		t.Content = content.String
		t.Error = e.String
		if deps.Valid && deps.String != "" {
			if err := json.Unmarshal([]byte(deps.String), &t.Dependencies); err != nil {
				return nil, fmt.Errorf("unmarshal dependencies: %w", err)
			}
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) listTransformations(runID string) ([]TransformationRecord, error) {
	rows, err := db.Query(`
		SELECT source, reason, before_text, after_text, drift_score, created_at
		FROM transformations WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list transformations: %w", err)
	}
	defer rows.Close()

	var out []TransformationRecord
	for rows.Next() {
		var (
			tr                    TransformationRecord
			reason, before, after sql.NullString
			createdAt             string
		)
		if err := rows.Scan(&tr.Source, &reason, &before, &after, &tr.DriftScore, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transformation: %w", err)
		}
		tr.Reason = reason.String
		tr.Before = before.String
		tr.After = after.String
		tr.CreatedAt, _ = parseTime(createdAt)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// PurgeOldRuns deletes runs started before the given age, with their tasks
// and transformations. Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM transformations WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)",
			"DELETE FROM task_results WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)",
		} {
			if _, err := tx.Exec(q, cutoff); err != nil {
				return fmt.Errorf("purge old runs: %w", err)
			}
		}
		result, err := tx.Exec("DELETE FROM runs WHERE started_at < ?", cutoff)
		if err != nil {
			return fmt.Errorf("purge old runs: %w", err)
		}
		count, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return count, err
}
