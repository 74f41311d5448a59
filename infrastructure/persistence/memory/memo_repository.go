package memory

import (
	"context"
	"sort"
	"sync"

	"analyst-backend/domain/core/aggregates"
	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// MemoRepository is an in-memory memo store.
type MemoRepository struct {
	mu    sync.RWMutex
	memos map[string]*aggregates.Memo
}

// NewMemoRepository creates an empty in-memory memo repository
func NewMemoRepository() *MemoRepository {
	return &MemoRepository{memos: make(map[string]*aggregates.Memo)}
}

// Save inserts or updates a memo and its section tree
func (r *MemoRepository) Save(ctx context.Context, memo *aggregates.Memo) error {
	clone, err := cloneMemo(memo)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memos[memo.ID().String()] = clone
	return nil
}

// GetByID retrieves a memo by id
func (r *MemoRepository) GetByID(ctx context.Context, id valueobjects.MemoID) (*aggregates.Memo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	memo, ok := r.memos[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFound("memo not found: " + id.String())
	}
	return cloneMemo(memo)
}

// GetByOwner retrieves all of the owner's memos, newest first
func (r *MemoRepository) GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*aggregates.Memo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*aggregates.Memo
	for _, memo := range r.memos {
		if memo.BelongsTo(owner) {
			clone, err := cloneMemo(memo)
			if err != nil {
				return nil, err
			}
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, nil
}

// Delete removes a memo and its section tree
func (r *MemoRepository) Delete(ctx context.Context, id valueobjects.MemoID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memos[id.String()]; !ok {
		return pkgerrors.NewNotFound("memo not found: " + id.String())
	}
	delete(r.memos, id.String())
	return nil
}

func cloneMemo(memo *aggregates.Memo) (*aggregates.Memo, error) {
	clone, err := aggregates.ReconstructMemo(
		memo.ID(),
		memo.Owner(),
		memo.Version(),
		memo.Title(),
		memo.CompanyName(),
		memo.Stage(),
		memo.Status(),
		memo.GeneratedBy(),
		memo.SourceMemoID(),
		memo.Preferences(),
		memo.CreatedAt(),
		memo.UpdatedAt(),
	)
	if err != nil {
		return nil, err
	}
	for _, section := range memo.Sections() {
		err := clone.RestoreSection(
			section.Type(),
			section.Title(),
			section.Content(),
			section.Confidence(),
			section.Weight(),
			section.Subsections(),
			section.Visualizations(),
			section.UpdatedAt(),
		)
		if err != nil {
			return nil, err
		}
	}
	return clone, nil
}
