package dynamodb

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

const executionKeyPrefix = "EXECUTION#"

// executionRecord is the persisted shape of an execution item. AgentPK lets
// the OwnerIndex also serve per-agent history queries.
type executionRecord struct {
	PK              string            `dynamodbav:"PK"`
	SK              string            `dynamodbav:"SK"`
	OwnerPK         string            `dynamodbav:"OwnerPK"`
	EntityType      string            `dynamodbav:"EntityType"`
	ExecutionID     string            `dynamodbav:"ExecutionID"`
	AgentID         string            `dynamodbav:"AgentID"`
	Status          string            `dynamodbav:"Status"`
	StartedAt       *time.Time        `dynamodbav:"StartedAt,omitempty"`
	CompletedAt     *time.Time        `dynamodbav:"CompletedAt,omitempty"`
	DurationSeconds int64             `dynamodbav:"DurationSeconds"`
	InputSnapshot   string            `dynamodbav:"InputSnapshot,omitempty"`
	OutputSnapshot  string            `dynamodbav:"OutputSnapshot,omitempty"`
	ErrorMessage    string            `dynamodbav:"ErrorMessage,omitempty"`
	ErrorCount      int               `dynamodbav:"ErrorCount"`
	ConfidenceScore float64           `dynamodbav:"ConfidenceScore"`
	Metrics         map[string]string `dynamodbav:"Metrics,omitempty"`
	CreatedAt       time.Time         `dynamodbav:"CreatedAt"`
	UpdatedAt       time.Time         `dynamodbav:"UpdatedAt"`
}

// ExecutionRepository is the DynamoDB execution store.
type ExecutionRepository struct {
	client *Client
}

// NewExecutionRepository creates a DynamoDB execution repository
func NewExecutionRepository(client *Client) *ExecutionRepository {
	return &ExecutionRepository{client: client}
}

// Save inserts or updates an execution
func (r *ExecutionRepository) Save(ctx context.Context, execution *entities.Execution) error {
	record := executionRecord{
		PK:              executionKeyPrefix + execution.ID().String(),
		SK:              metaSortKey,
		OwnerPK:         agentKeyPrefix + execution.AgentID().String(),
		EntityType:      "EXECUTION",
		ExecutionID:     execution.ID().String(),
		AgentID:         execution.AgentID().String(),
		Status:          string(execution.Status()),
		StartedAt:       execution.StartedAt(),
		CompletedAt:     execution.CompletedAt(),
		DurationSeconds: execution.DurationSeconds(),
		InputSnapshot:   execution.InputSnapshot(),
		OutputSnapshot:  execution.OutputSnapshot(),
		ErrorMessage:    execution.ErrorMessage(),
		ErrorCount:      execution.ErrorCount(),
		ConfidenceScore: execution.ConfidenceScore(),
		Metrics:         execution.Metrics(),
		CreatedAt:       execution.CreatedAt(),
		UpdatedAt:       execution.UpdatedAt(),
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling execution")
	}
	_, err = r.client.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.client.tableName(),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewExternal("writing execution: " + err.Error())
	}
	return nil
}

// GetByID retrieves an execution by id
func (r *ExecutionRepository) GetByID(ctx context.Context, id valueobjects.ExecutionID) (*entities.Execution, error) {
	out, err := r.client.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: r.client.tableName(),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: executionKeyPrefix + id.String()},
			"SK": &types.AttributeValueMemberS{Value: metaSortKey},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewExternal("reading execution: " + err.Error())
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFound("execution not found: " + id.String())
	}

	var record executionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling execution")
	}
	return fromExecutionRecord(record)
}

// GetByAgentID retrieves an agent's executions, newest first
func (r *ExecutionRepository) GetByAgentID(ctx context.Context, agentID valueobjects.AgentID) ([]*entities.Execution, error) {
	records, err := r.queryByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	executions := make([]*entities.Execution, 0, len(records))
	for _, record := range records {
		execution, err := fromExecutionRecord(record)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt().After(executions[j].CreatedAt())
	})
	return executions, nil
}

// DeleteByAgentID removes every execution belonging to the agent
func (r *ExecutionRepository) DeleteByAgentID(ctx context.Context, agentID valueobjects.AgentID) error {
	records, err := r.queryByAgent(ctx, agentID)
	if err != nil {
		return err
	}
	for _, record := range records {
		_, err := r.client.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: r.client.tableName(),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: record.PK},
				"SK": &types.AttributeValueMemberS{Value: record.SK},
			},
		})
		if err != nil {
			return pkgerrors.NewExternal("deleting execution: " + err.Error())
		}
	}
	return nil
}

func (r *ExecutionRepository) queryByAgent(ctx context.Context, agentID valueobjects.AgentID) ([]executionRecord, error) {
	keyCond := expression.Key("OwnerPK").Equal(expression.Value(agentKeyPrefix + agentID.String()))
	filter := expression.Name("EntityType").Equal(expression.Value("EXECUTION"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building execution query")
	}

	var records []executionRecord
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.db.Query(ctx, &dynamodb.QueryInput{
			TableName:                 r.client.tableName(),
			IndexName:                 aws.String(OwnerIndexName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, pkgerrors.NewExternal("querying executions: " + err.Error())
		}
		var page []executionRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.Wrap(err, "unmarshaling executions")
		}
		records = append(records, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return records, nil
}

func fromExecutionRecord(record executionRecord) (*entities.Execution, error) {
	id, err := valueobjects.ParseExecutionID(record.ExecutionID)
	if err != nil {
		return nil, err
	}
	agentID, err := valueobjects.ParseAgentID(record.AgentID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructExecution(
		id,
		agentID,
		entities.ExecutionStatus(record.Status),
		record.StartedAt,
		record.CompletedAt,
		record.DurationSeconds,
		record.InputSnapshot,
		record.OutputSnapshot,
		record.ErrorMessage,
		record.ErrorCount,
		record.ConfidenceScore,
		record.Metrics,
		record.CreatedAt,
		record.UpdatedAt,
	)
}
