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

const (
	agentKeyPrefix = "AGENT#"
	metaSortKey    = "META"
)

// agentRecord is the persisted shape of an agent item.
type agentRecord struct {
	PK             string            `dynamodbav:"PK"`
	SK             string            `dynamodbav:"SK"`
	OwnerPK        string            `dynamodbav:"OwnerPK"`
	EntityType     string            `dynamodbav:"EntityType"`
	AgentID        string            `dynamodbav:"AgentID"`
	Owner          string            `dynamodbav:"Owner"`
	Name           string            `dynamodbav:"Name"`
	Description    string            `dynamodbav:"Description,omitempty"`
	AgentType      string            `dynamodbav:"AgentType"`
	Enabled        bool              `dynamodbav:"Enabled"`
	Priority       int               `dynamodbav:"Priority"`
	TimeoutSeconds int               `dynamodbav:"TimeoutSeconds"`
	RetryAttempts  int               `dynamodbav:"RetryAttempts"`
	Status         string            `dynamodbav:"Status"`
	LastExecution  *time.Time        `dynamodbav:"LastExecution,omitempty"`
	Parameters     map[string]string `dynamodbav:"Parameters,omitempty"`
	CreatedAt      time.Time         `dynamodbav:"CreatedAt"`
	UpdatedAt      time.Time         `dynamodbav:"UpdatedAt"`
}

// AgentRepository is the DynamoDB agent store.
type AgentRepository struct {
	client *Client
}

// NewAgentRepository creates a DynamoDB agent repository
func NewAgentRepository(client *Client) *AgentRepository {
	return &AgentRepository{client: client}
}

// Save inserts or updates an agent
func (r *AgentRepository) Save(ctx context.Context, agent *entities.Agent) error {
	record := toAgentRecord(agent)
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling agent")
	}
	_, err = r.client.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.client.tableName(),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewExternal("writing agent: " + err.Error())
	}
	return nil
}

// GetByID retrieves an agent by id
func (r *AgentRepository) GetByID(ctx context.Context, id valueobjects.AgentID) (*entities.Agent, error) {
	out, err := r.client.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: r.client.tableName(),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: agentKeyPrefix + id.String()},
			"SK": &types.AttributeValueMemberS{Value: metaSortKey},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewExternal("reading agent: " + err.Error())
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFound("agent not found: " + id.String())
	}

	var record agentRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling agent")
	}
	return fromAgentRecord(record)
}

// GetByOwner retrieves all agents registered by the owner
func (r *AgentRepository) GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*entities.Agent, error) {
	records, err := r.queryByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	agents := make([]*entities.Agent, 0, len(records))
	for _, record := range records {
		agent, err := fromAgentRecord(record)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].CreatedAt().Before(agents[j].CreatedAt()) })
	return agents, nil
}

// FindNeedingExecution retrieves the owner's stale enabled agents ordered by
// priority ascending. Staleness is filtered in memory: the owner partition is
// small and the cutoff predicate does not map onto a key condition.
func (r *AgentRepository) FindNeedingExecution(ctx context.Context, owner valueobjects.Owner, cutoff time.Time) ([]*entities.Agent, error) {
	agents, err := r.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	var stale []*entities.Agent
	for _, agent := range agents {
		if agent.NeedsExecution(cutoff) {
			stale = append(stale, agent)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].Priority() < stale[j].Priority() })
	return stale, nil
}

// Owners lists every owner with at least one registered agent
func (r *AgentRepository) Owners(ctx context.Context) ([]valueobjects.Owner, error) {
	filter := expression.Name("EntityType").Equal(expression.Value("AGENT"))
	proj := expression.NamesList(expression.Name("Owner"))
	expr, err := expression.NewBuilder().WithFilter(filter).WithProjection(proj).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building owners scan")
	}

	seen := make(map[string]struct{})
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.db.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 r.client.tableName(),
			FilterExpression:          expr.Filter(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, pkgerrors.NewExternal("scanning owners: " + err.Error())
		}
		for _, item := range out.Items {
			var record struct {
				Owner string `dynamodbav:"Owner"`
			}
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				continue
			}
			seen[record.Owner] = struct{}{}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	owners := make([]valueobjects.Owner, 0, len(seen))
	for raw := range seen {
		owner, err := valueobjects.NewOwner(raw)
		if err != nil {
			continue
		}
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].String() < owners[j].String() })
	return owners, nil
}

// Delete removes an agent
func (r *AgentRepository) Delete(ctx context.Context, id valueobjects.AgentID) error {
	_, err := r.client.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: r.client.tableName(),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: agentKeyPrefix + id.String()},
			"SK": &types.AttributeValueMemberS{Value: metaSortKey},
		},
	})
	if err != nil {
		return pkgerrors.NewExternal("deleting agent: " + err.Error())
	}
	return nil
}

func (r *AgentRepository) queryByOwner(ctx context.Context, owner valueobjects.Owner) ([]agentRecord, error) {
	keyCond := expression.Key("OwnerPK").Equal(expression.Value("USER#" + owner.String()))
	filter := expression.Name("EntityType").Equal(expression.Value("AGENT"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building owner query")
	}

	var records []agentRecord
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
			return nil, pkgerrors.NewExternal("querying agents: " + err.Error())
		}
		var page []agentRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.Wrap(err, "unmarshaling agents")
		}
		records = append(records, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return records, nil
}

func toAgentRecord(agent *entities.Agent) agentRecord {
	return agentRecord{
		PK:             agentKeyPrefix + agent.ID().String(),
		SK:             metaSortKey,
		OwnerPK:        "USER#" + agent.Owner().String(),
		EntityType:     "AGENT",
		AgentID:        agent.ID().String(),
		Owner:          agent.Owner().String(),
		Name:           agent.Name(),
		Description:    agent.Description(),
		AgentType:      string(agent.Type()),
		Enabled:        agent.Enabled(),
		Priority:       agent.Priority(),
		TimeoutSeconds: agent.TimeoutSeconds(),
		RetryAttempts:  agent.RetryAttempts(),
		Status:         string(agent.Status()),
		LastExecution:  agent.LastExecution(),
		Parameters:     agent.Parameters(),
		CreatedAt:      agent.CreatedAt(),
		UpdatedAt:      agent.UpdatedAt(),
	}
}

func fromAgentRecord(record agentRecord) (*entities.Agent, error) {
	id, err := valueobjects.ParseAgentID(record.AgentID)
	if err != nil {
		return nil, err
	}
	owner, err := valueobjects.NewOwner(record.Owner)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructAgent(
		id,
		owner,
		record.Name,
		record.Description,
		entities.AgentType(record.AgentType),
		record.Enabled,
		record.Priority,
		record.TimeoutSeconds,
		record.RetryAttempts,
		entities.AgentStatus(record.Status),
		record.LastExecution,
		record.Parameters,
		record.CreatedAt,
		record.UpdatedAt,
	)
}
