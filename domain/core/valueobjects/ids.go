package valueobjects

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "analyst-backend/pkg/errors"
)

// AgentID is a value object that ensures valid agent identifiers
type AgentID struct {
	value string
}

// NewAgentID creates a new random AgentID
func NewAgentID() AgentID {
	return AgentID{value: uuid.New().String()}
}

// ParseAgentID creates an AgentID from a string, validating it's a proper UUID
func ParseAgentID(id string) (AgentID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return AgentID{}, pkgerrors.NewValidation("invalid agent ID: " + id)
	}
	return AgentID{value: id}, nil
}

// String returns the string representation of the AgentID
func (id AgentID) String() string { return id.value }

// Equals checks if two AgentIDs are equal
func (id AgentID) Equals(other AgentID) bool { return id.value == other.value }

// IsEmpty checks if the AgentID is empty
func (id AgentID) IsEmpty() bool { return id.value == "" }

// ExecutionID is a value object that ensures valid execution identifiers
type ExecutionID struct {
	value string
}

// NewExecutionID creates a new random ExecutionID
func NewExecutionID() ExecutionID {
	return ExecutionID{value: uuid.New().String()}
}

// ParseExecutionID creates an ExecutionID from a string, validating it's a proper UUID
func ParseExecutionID(id string) (ExecutionID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ExecutionID{}, pkgerrors.NewValidation("invalid execution ID: " + id)
	}
	return ExecutionID{value: id}, nil
}

// String returns the string representation of the ExecutionID
func (id ExecutionID) String() string { return id.value }

// Equals checks if two ExecutionIDs are equal
func (id ExecutionID) Equals(other ExecutionID) bool { return id.value == other.value }

// IsEmpty checks if the ExecutionID is empty
func (id ExecutionID) IsEmpty() bool { return id.value == "" }

// DataSourceID is a value object that ensures valid data source identifiers
type DataSourceID struct {
	value string
}

// NewDataSourceID creates a new random DataSourceID
func NewDataSourceID() DataSourceID {
	return DataSourceID{value: uuid.New().String()}
}

// ParseDataSourceID creates a DataSourceID from a string, validating it's a proper UUID
func ParseDataSourceID(id string) (DataSourceID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return DataSourceID{}, pkgerrors.NewValidation("invalid data source ID: " + id)
	}
	return DataSourceID{value: id}, nil
}

// String returns the string representation of the DataSourceID
func (id DataSourceID) String() string { return id.value }

// Equals checks if two DataSourceIDs are equal
func (id DataSourceID) Equals(other DataSourceID) bool { return id.value == other.value }

// IsEmpty checks if the DataSourceID is empty
func (id DataSourceID) IsEmpty() bool { return id.value == "" }

// MemoID is a value object that ensures valid memo identifiers
type MemoID struct {
	value string
}

// NewMemoID creates a new random MemoID
func NewMemoID() MemoID {
	return MemoID{value: uuid.New().String()}
}

// ParseMemoID creates a MemoID from a string, validating it's a proper UUID
func ParseMemoID(id string) (MemoID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return MemoID{}, pkgerrors.NewValidation("invalid memo ID: " + id)
	}
	return MemoID{value: id}, nil
}

// String returns the string representation of the MemoID
func (id MemoID) String() string { return id.value }

// Equals checks if two MemoIDs are equal
func (id MemoID) Equals(other MemoID) bool { return id.value == other.value }

// IsEmpty checks if the MemoID is empty
func (id MemoID) IsEmpty() bool { return id.value == "" }

// Owner identifies the user that owns an aggregate. All repository
// queries are scoped by it.
type Owner struct {
	value string
}

// NewOwner creates an Owner from a string with validation
func NewOwner(id string) (Owner, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Owner{}, pkgerrors.NewValidation("owner cannot be empty")
	}
	return Owner{value: id}, nil
}

// String returns the string representation of the Owner
func (o Owner) String() string { return o.value }

// Equals checks if two Owners are equal
func (o Owner) Equals(other Owner) bool { return o.value == other.value }

// IsEmpty checks if the Owner is empty
func (o Owner) IsEmpty() bool { return o.value == "" }
