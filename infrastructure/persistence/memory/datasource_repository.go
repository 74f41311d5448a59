package memory

import (
	"context"
	"sort"
	"sync"

	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// DataSourceRepository is an in-memory data source store.
type DataSourceRepository struct {
	mu      sync.RWMutex
	sources map[string]*entities.DataSource
}

// NewDataSourceRepository creates an empty in-memory data source repository
func NewDataSourceRepository() *DataSourceRepository {
	return &DataSourceRepository{sources: make(map[string]*entities.DataSource)}
}

// Save inserts or updates a data source
func (r *DataSourceRepository) Save(ctx context.Context, source *entities.DataSource) error {
	clone, err := cloneDataSource(source)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.ID().String()] = clone
	return nil
}

// GetByID retrieves a data source by id
func (r *DataSourceRepository) GetByID(ctx context.Context, id valueobjects.DataSourceID) (*entities.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	source, ok := r.sources[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFound("data source not found: " + id.String())
	}
	return cloneDataSource(source)
}

// GetByOwner retrieves all of the owner's data sources
func (r *DataSourceRepository) GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*entities.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.DataSource
	for _, source := range r.sources {
		if source.BelongsTo(owner) {
			clone, err := cloneDataSource(source)
			if err != nil {
				return nil, err
			}
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

// GetByIDs retrieves the given data sources, skipping missing ids
func (r *DataSourceRepository) GetByIDs(ctx context.Context, ids []valueobjects.DataSourceID) ([]*entities.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.DataSource
	for _, id := range ids {
		if source, ok := r.sources[id.String()]; ok {
			clone, err := cloneDataSource(source)
			if err != nil {
				return nil, err
			}
			out = append(out, clone)
		}
	}
	return out, nil
}

// Delete removes a data source
func (r *DataSourceRepository) Delete(ctx context.Context, id valueobjects.DataSourceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[id.String()]; !ok {
		return pkgerrors.NewNotFound("data source not found: " + id.String())
	}
	delete(r.sources, id.String())
	return nil
}

func cloneDataSource(source *entities.DataSource) (*entities.DataSource, error) {
	return entities.ReconstructDataSource(
		source.ID(),
		source.Owner(),
		source.Type(),
		source.Name(),
		source.Description(),
		source.URL(),
		source.Status(),
		source.Content(),
		source.ConfidenceScore(),
		source.IsSelected(),
		source.Metadata(),
		source.CreatedAt(),
		source.UpdatedAt(),
	)
}
