package services

import (
	"context"

	"go.uber.org/zap"

	"analyst-backend/application/ports"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/domain/events"
	pkgerrors "analyst-backend/pkg/errors"
)

// IngestSourceCommand carries the fields for registering a data source.
type IngestSourceCommand struct {
	Type        entities.DataSourceType
	Name        string
	Description string
	Content     string
	URL         string
	Select      bool
}

// DataSourceService manages the catalogue of ingested artifacts.
type DataSourceService struct {
	sourceRepo ports.DataSourceRepository
	publisher  ports.EventPublisher
	logger     *zap.Logger
}

// NewDataSourceService creates a data source service
func NewDataSourceService(sourceRepo ports.DataSourceRepository, publisher ports.EventPublisher, logger *zap.Logger) *DataSourceService {
	return &DataSourceService{sourceRepo: sourceRepo, publisher: publisher, logger: logger}
}

// IngestSource registers a new data source. Pasted text completes
// immediately; other types stay pending until a producing agent fills them.
func (s *DataSourceService) IngestSource(ctx context.Context, owner valueobjects.Owner, cmd IngestSourceCommand) (*entities.DataSource, error) {
	source, err := entities.NewDataSource(owner, cmd.Type, cmd.Name, cmd.Content, cmd.URL)
	if err != nil {
		return nil, err
	}
	if cmd.Description != "" {
		source.SetDescription(cmd.Description)
	}
	if cmd.Type == entities.DataSourceTypeTextInput {
		if err := source.CompleteProcessing(cmd.Content, 1.0); err != nil {
			return nil, err
		}
	}
	if cmd.Select {
		source.Select()
	}

	if err := s.sourceRepo.Save(ctx, source); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting data source")
	}
	if err := s.publisher.Publish(ctx, events.NewDataSourceIngested(
		source.ID().String(), owner.String(), string(cmd.Type))); err != nil {
		s.logger.Warn("publishing ingestion event", zap.Error(err))
	}
	return source, nil
}

// GetSource retrieves an owner's data source
func (s *DataSourceService) GetSource(ctx context.Context, owner valueobjects.Owner, id valueobjects.DataSourceID) (*entities.DataSource, error) {
	source, err := s.sourceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !source.BelongsTo(owner) {
		return nil, pkgerrors.NewAccessDenied("data source belongs to another owner")
	}
	return source, nil
}

// ListSources retrieves all of the owner's data sources
func (s *DataSourceService) ListSources(ctx context.Context, owner valueobjects.Owner) ([]*entities.DataSource, error) {
	return s.sourceRepo.GetByOwner(ctx, owner)
}

// SelectSource marks a source for memo synthesis
func (s *DataSourceService) SelectSource(ctx context.Context, owner valueobjects.Owner, id valueobjects.DataSourceID) error {
	return s.mutate(ctx, owner, id, func(src *entities.DataSource) error {
		src.Select()
		return nil
	})
}

// DeselectSource clears a source's synthesis flag
func (s *DataSourceService) DeselectSource(ctx context.Context, owner valueobjects.Owner, id valueobjects.DataSourceID) error {
	return s.mutate(ctx, owner, id, func(src *entities.DataSource) error {
		src.Deselect()
		return nil
	})
}

// ArchiveSource removes a source from active consideration
func (s *DataSourceService) ArchiveSource(ctx context.Context, owner valueobjects.Owner, id valueobjects.DataSourceID) error {
	return s.mutate(ctx, owner, id, func(src *entities.DataSource) error {
		src.Archive()
		return nil
	})
}

// DeleteSource removes a data source
func (s *DataSourceService) DeleteSource(ctx context.Context, owner valueobjects.Owner, id valueobjects.DataSourceID) error {
	if _, err := s.GetSource(ctx, owner, id); err != nil {
		return err
	}
	return s.sourceRepo.Delete(ctx, id)
}

func (s *DataSourceService) mutate(ctx context.Context, owner valueobjects.Owner, id valueobjects.DataSourceID, fn func(*entities.DataSource) error) error {
	source, err := s.GetSource(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := fn(source); err != nil {
		return err
	}
	return s.sourceRepo.Save(ctx, source)
}
