package entities

import (
	"fmt"
	"time"

	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// DataSourceType identifies where an ingested artifact came from
type DataSourceType string

const (
	DataSourceTypeFileUpload           DataSourceType = "FILE_UPLOAD"
	DataSourceTypeTextInput            DataSourceType = "TEXT_INPUT"
	DataSourceTypeURLLink              DataSourceType = "URL_LINK"
	DataSourceTypeFounderVoice         DataSourceType = "FOUNDER_VOICE"
	DataSourceTypeBehavioralAssessment DataSourceType = "BEHAVIORAL_ASSESSMENT"
	DataSourceTypeDeepResearch         DataSourceType = "DEEP_RESEARCH"
)

// DataSourceStatus represents the processing state of a data source
type DataSourceStatus string

const (
	DataSourceStatusPending    DataSourceStatus = "PENDING"
	DataSourceStatusProcessing DataSourceStatus = "PROCESSING"
	DataSourceStatusCompleted  DataSourceStatus = "COMPLETED"
	DataSourceStatusFailed     DataSourceStatus = "FAILED"
	DataSourceStatusArchived   DataSourceStatus = "ARCHIVED"
)

// DataSource is an ingested artifact eligible for memo synthesis. Its status
// advances Pending -> Processing -> Completed|Failed as the producing agent
// runs; selection is a caller-controlled flag independent of status.
type DataSource struct {
	id              valueobjects.DataSourceID
	sourceType      DataSourceType
	name            string
	description     string
	url             string
	status          DataSourceStatus
	content         string
	confidenceScore float64
	isSelected      bool
	metadata        map[string]string
	owner           valueobjects.Owner
	createdAt       time.Time
	updatedAt       time.Time
}

// NewDataSource creates a pending data source
func NewDataSource(owner valueobjects.Owner, sourceType DataSourceType, name, content, url string) (*DataSource, error) {
	if owner.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner cannot be empty")
	}
	if name == "" {
		return nil, pkgerrors.NewValidation("data source name cannot be empty")
	}
	switch sourceType {
	case DataSourceTypeTextInput:
		if content == "" {
			return nil, pkgerrors.NewValidation("text input requires content")
		}
	case DataSourceTypeURLLink:
		if url == "" {
			return nil, pkgerrors.NewValidation("url link requires a url")
		}
	case DataSourceTypeFileUpload, DataSourceTypeFounderVoice,
		DataSourceTypeBehavioralAssessment, DataSourceTypeDeepResearch:
		// content arrives when the producing agent finishes
	default:
		return nil, pkgerrors.NewValidation(fmt.Sprintf("unknown data source type: %s", sourceType))
	}

	now := time.Now()
	return &DataSource{
		id:         valueobjects.NewDataSourceID(),
		sourceType: sourceType,
		name:       name,
		url:        url,
		status:     DataSourceStatusPending,
		content:    content,
		metadata:   make(map[string]string),
		owner:      owner,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructDataSource rebuilds a data source from repository data
func ReconstructDataSource(
	id valueobjects.DataSourceID,
	owner valueobjects.Owner,
	sourceType DataSourceType,
	name, description, url string,
	status DataSourceStatus,
	content string,
	confidenceScore float64,
	isSelected bool,
	metadata map[string]string,
	createdAt, updatedAt time.Time,
) (*DataSource, error) {
	if owner.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner cannot be empty")
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}

	return &DataSource{
		id:              id,
		sourceType:      sourceType,
		name:            name,
		description:     description,
		url:             url,
		status:          status,
		content:         content,
		confidenceScore: confidenceScore,
		isSelected:      isSelected,
		metadata:        metadata,
		owner:           owner,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}, nil
}

// ID returns the data source's unique identifier
func (d *DataSource) ID() valueobjects.DataSourceID { return d.id }

// Type returns the ingestion channel
func (d *DataSource) Type() DataSourceType { return d.sourceType }

// Name returns the display name
func (d *DataSource) Name() string { return d.name }

// Description returns the description
func (d *DataSource) Description() string { return d.description }

// URL returns the source url, if any
func (d *DataSource) URL() string { return d.url }

// Status returns the processing state
func (d *DataSource) Status() DataSourceStatus { return d.status }

// Content returns the ingested text content
func (d *DataSource) Content() string { return d.content }

// ConfidenceScore returns the producing agent's confidence in the content
func (d *DataSource) ConfidenceScore() float64 { return d.confidenceScore }

// IsSelected reports whether the caller marked this source for synthesis
func (d *DataSource) IsSelected() bool { return d.isSelected }

// Metadata returns a copy of the source metadata
func (d *DataSource) Metadata() map[string]string {
	m := make(map[string]string, len(d.metadata))
	for k, v := range d.metadata {
		m[k] = v
	}
	return m
}

// Owner returns the owning user
func (d *DataSource) Owner() valueobjects.Owner { return d.owner }

// CreatedAt returns the creation timestamp
func (d *DataSource) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last modification timestamp
func (d *DataSource) UpdatedAt() time.Time { return d.updatedAt }

// BelongsTo checks whether the source is owned by the given user
func (d *DataSource) BelongsTo(owner valueobjects.Owner) bool { return d.owner.Equals(owner) }

// SetDescription updates the description
func (d *DataSource) SetDescription(description string) {
	d.description = description
	d.touch()
}

// SetMetadata stores a metadata entry
func (d *DataSource) SetMetadata(key, value string) error {
	if key == "" {
		return pkgerrors.NewValidation("metadata key cannot be empty")
	}
	d.metadata[key] = value
	d.touch()
	return nil
}

// BeginProcessing transitions Pending -> Processing
func (d *DataSource) BeginProcessing() error {
	if d.status != DataSourceStatusPending {
		return pkgerrors.NewValidation(
			fmt.Sprintf("cannot begin processing a %s data source", d.status))
	}
	d.status = DataSourceStatusProcessing
	d.touch()
	return nil
}

// CompleteProcessing transitions Processing -> Completed and stores the
// content produced by the ingesting agent
func (d *DataSource) CompleteProcessing(content string, confidence float64) error {
	if d.status != DataSourceStatusProcessing && d.status != DataSourceStatusPending {
		return pkgerrors.NewValidation(
			fmt.Sprintf("cannot complete a %s data source", d.status))
	}
	if confidence < 0 || confidence > 1 {
		return pkgerrors.NewValidation("confidence must be between 0 and 1")
	}
	d.status = DataSourceStatusCompleted
	d.content = content
	d.confidenceScore = confidence
	d.touch()
	return nil
}

// FailProcessing transitions Processing -> Failed
func (d *DataSource) FailProcessing(reason string) error {
	if d.status != DataSourceStatusProcessing && d.status != DataSourceStatusPending {
		return pkgerrors.NewValidation(
			fmt.Sprintf("cannot fail a %s data source", d.status))
	}
	d.status = DataSourceStatusFailed
	d.SetMetadata("failure_reason", reason)
	d.touch()
	return nil
}

// Archive removes the source from active consideration without deleting it
func (d *DataSource) Archive() {
	d.status = DataSourceStatusArchived
	d.isSelected = false
	d.touch()
}

// Select marks the source for memo synthesis; allowed at any time
func (d *DataSource) Select() {
	d.isSelected = true
	d.touch()
}

// Deselect clears the synthesis flag
func (d *DataSource) Deselect() {
	d.isSelected = false
	d.touch()
}

func (d *DataSource) touch() {
	d.updatedAt = time.Now()
}
