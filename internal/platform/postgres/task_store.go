package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/store"
)

// PostgresTaskStore implements store.TaskStore against the
// agent_task_snapshots table.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a task store over db, which may be a *sql.DB
// or an open transaction.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	return &PostgresTaskStore{db: db, logger: logger}
}

// WithTx returns a store bound to the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// SaveSnapshot implements store.TaskStore with an upsert keyed on task_id.
func (s *PostgresTaskStore) SaveSnapshot(ctx context.Context, snapshot *store.TaskSnapshot) error {
	checkpointJSON, err := marshalCheckpoint(snapshot.Checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	query := `
		INSERT INTO agent_task_snapshots (
			task_id, project_id, agent_type, status, input, checkpoint,
			output, error_message, prompt_tokens, completion_tokens, cost_usd,
			started_at, completed_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status,
			checkpoint = EXCLUDED.checkpoint,
			output = EXCLUDED.output,
			error_message = EXCLUDED.error_message,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			cost_usd = EXCLUDED.cost_usd,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		snapshot.TaskID,
		nullableUUID(snapshot.ProjectID),
		string(snapshot.AgentType),
		string(snapshot.Status),
		nullableJSON(snapshot.Input),
		checkpointJSON,
		snapshot.Output,
		snapshot.ErrorMessage,
		snapshot.PromptTokens,
		snapshot.CompletionTokens,
		snapshot.CostUSD,
		snapshot.StartedAt,
		snapshot.CompletedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save task snapshot: %w", mapError(err))
	}
	return nil
}

// SaveSnapshots implements store.TaskStore. A store bound to a plain
// connection runs the batch in one transaction; one already bound to a
// transaction reuses it.
func (s *PostgresTaskStore) SaveSnapshots(ctx context.Context, snapshots []*store.TaskSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	db, ok := s.db.(*sql.DB)
	if !ok {
		for _, snapshot := range snapshots {
			if err := s.SaveSnapshot(ctx, snapshot); err != nil {
				return err
			}
		}
		return nil
	}

	return store.RunInTransaction(ctx, db, s.logger, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.WithTx(tx)
		for _, snapshot := range snapshots {
			if err := txStore.SaveSnapshot(ctx, snapshot); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSnapshot implements store.TaskStore.
func (s *PostgresTaskStore) GetSnapshot(ctx context.Context, taskID uuid.UUID) (*store.TaskSnapshot, error) {
	query := snapshotSelect + ` WHERE task_id = $1`
	row := s.db.QueryRowContext(ctx, query, taskID)

	snapshot, err := scanSnapshot(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get task snapshot: %w", mapError(err))
	}
	return snapshot, nil
}

// ListUnfinished implements store.TaskStore.
func (s *PostgresTaskStore) ListUnfinished(ctx context.Context) ([]*store.TaskSnapshot, error) {
	query := snapshotSelect + `
		WHERE status IN ('pending', 'running', 'paused')
		ORDER BY updated_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfinished snapshots: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var snapshots []*store.TaskSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return snapshots, nil
}

// DeleteSnapshot implements store.TaskStore.
func (s *PostgresTaskStore) DeleteSnapshot(ctx context.Context, taskID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM agent_task_snapshots WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task snapshot: %w", mapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const snapshotSelect = `
	SELECT task_id, project_id, agent_type, status, input, checkpoint,
	       output, error_message, prompt_tokens, completion_tokens, cost_usd,
	       started_at, completed_at, updated_at
	FROM agent_task_snapshots
`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*store.TaskSnapshot, error) {
	var (
		snapshot       store.TaskSnapshot
		projectID      sql.Null[uuid.UUID]
		agentType      string
		status         string
		input          []byte
		checkpointJSON []byte
		errorMessage   sql.NullString
		startedAt      sql.NullTime
		completedAt    sql.NullTime
	)

	err := row.Scan(
		&snapshot.TaskID,
		&projectID,
		&agentType,
		&status,
		&input,
		&checkpointJSON,
		&snapshot.Output,
		&errorMessage,
		&snapshot.PromptTokens,
		&snapshot.CompletionTokens,
		&snapshot.CostUSD,
		&startedAt,
		&completedAt,
		&snapshot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		snapshot.ProjectID = projectID.V
	}
	snapshot.AgentType = domain.AgentType(agentType)
	snapshot.Status = domain.TaskStatus(status)
	snapshot.Input = input
	snapshot.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		snapshot.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		snapshot.CompletedAt = &t
	}

	if len(checkpointJSON) > 0 {
		var checkpoint domain.Checkpoint
		if err := json.Unmarshal(checkpointJSON, &checkpoint); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		snapshot.Checkpoint = &checkpoint
	}

	return &snapshot, nil
}

func marshalCheckpoint(checkpoint *domain.Checkpoint) ([]byte, error) {
	if checkpoint == nil {
		return nil, nil
	}
	return json.Marshal(checkpoint)
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
