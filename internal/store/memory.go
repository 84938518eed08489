package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTaskStore is an in-process TaskStore. It backs single-node
// deployments without a database and keeps tests hermetic.
type MemoryTaskStore struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*TaskSnapshot
}

// NewMemoryTaskStore creates an empty in-memory store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		snapshots: make(map[uuid.UUID]*TaskSnapshot),
	}
}

// SaveSnapshot implements TaskStore.
func (s *MemoryTaskStore) SaveSnapshot(ctx context.Context, snapshot *TaskSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	copied := *snapshot
	copied.UpdatedAt = time.Now().UTC()
	if snapshot.Checkpoint != nil {
		copied.Checkpoint = snapshot.Checkpoint.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.TaskID] = &copied
	return nil
}

// SaveSnapshots implements TaskStore. The map write is already atomic per
// snapshot, so the batch is a plain loop.
func (s *MemoryTaskStore) SaveSnapshots(ctx context.Context, snapshots []*TaskSnapshot) error {
	for _, snapshot := range snapshots {
		if err := s.SaveSnapshot(ctx, snapshot); err != nil {
			return err
		}
	}
	return nil
}

// GetSnapshot implements TaskStore.
func (s *MemoryTaskStore) GetSnapshot(ctx context.Context, taskID uuid.UUID) (*TaskSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *snapshot
	if snapshot.Checkpoint != nil {
		copied.Checkpoint = snapshot.Checkpoint.Clone()
	}
	return &copied, nil
}

// ListUnfinished implements TaskStore.
func (s *MemoryTaskStore) ListUnfinished(ctx context.Context) ([]*TaskSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var unfinished []*TaskSnapshot
	for _, snapshot := range s.snapshots {
		if snapshot.Status.IsTerminal() {
			continue
		}
		copied := *snapshot
		if snapshot.Checkpoint != nil {
			copied.Checkpoint = snapshot.Checkpoint.Clone()
		}
		unfinished = append(unfinished, &copied)
	}
	sort.Slice(unfinished, func(i, j int) bool {
		return unfinished[i].UpdatedAt.Before(unfinished[j].UpdatedAt)
	})
	return unfinished, nil
}

// DeleteSnapshot implements TaskStore.
func (s *MemoryTaskStore) DeleteSnapshot(ctx context.Context, taskID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[taskID]; !ok {
		return ErrNotFound
	}
	delete(s.snapshots, taskID)
	return nil
}
