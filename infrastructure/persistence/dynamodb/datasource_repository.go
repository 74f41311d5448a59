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

const dataSourceKeyPrefix = "DATASOURCE#"

type dataSourceRecord struct {
	PK              string            `dynamodbav:"PK"`
	SK              string            `dynamodbav:"SK"`
	OwnerPK         string            `dynamodbav:"OwnerPK"`
	EntityType      string            `dynamodbav:"EntityType"`
	DataSourceID    string            `dynamodbav:"DataSourceID"`
	Owner           string            `dynamodbav:"Owner"`
	SourceType      string            `dynamodbav:"SourceType"`
	Name            string            `dynamodbav:"Name"`
	Description     string            `dynamodbav:"Description,omitempty"`
	URL             string            `dynamodbav:"URL,omitempty"`
	Status          string            `dynamodbav:"Status"`
	Content         string            `dynamodbav:"Content,omitempty"`
	ConfidenceScore float64           `dynamodbav:"ConfidenceScore"`
	IsSelected      bool              `dynamodbav:"IsSelected"`
	Metadata        map[string]string `dynamodbav:"Metadata,omitempty"`
	CreatedAt       time.Time         `dynamodbav:"CreatedAt"`
	UpdatedAt       time.Time         `dynamodbav:"UpdatedAt"`
}

// DataSourceRepository is the DynamoDB data source store.
type DataSourceRepository struct {
	client *Client
}

// NewDataSourceRepository creates a DynamoDB data source repository
func NewDataSourceRepository(client *Client) *DataSourceRepository {
	return &DataSourceRepository{client: client}
}

// Save inserts or updates a data source
func (r *DataSourceRepository) Save(ctx context.Context, source *entities.DataSource) error {
	record := dataSourceRecord{
		PK:              dataSourceKeyPrefix + source.ID().String(),
		SK:              metaSortKey,
		OwnerPK:         "USER#" + source.Owner().String(),
		EntityType:      "DATASOURCE",
		DataSourceID:    source.ID().String(),
		Owner:           source.Owner().String(),
		SourceType:      string(source.Type()),
		Name:            source.Name(),
		Description:     source.Description(),
		URL:             source.URL(),
		Status:          string(source.Status()),
		Content:         source.Content(),
		ConfidenceScore: source.ConfidenceScore(),
		IsSelected:      source.IsSelected(),
		Metadata:        source.Metadata(),
		CreatedAt:       source.CreatedAt(),
		UpdatedAt:       source.UpdatedAt(),
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling data source")
	}
	_, err = r.client.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.client.tableName(),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewExternal("writing data source: " + err.Error())
	}
	return nil
}

// GetByID retrieves a data source by id
func (r *DataSourceRepository) GetByID(ctx context.Context, id valueobjects.DataSourceID) (*entities.DataSource, error) {
	out, err := r.client.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: r.client.tableName(),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: dataSourceKeyPrefix + id.String()},
			"SK": &types.AttributeValueMemberS{Value: metaSortKey},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewExternal("reading data source: " + err.Error())
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFound("data source not found: " + id.String())
	}

	var record dataSourceRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshaling data source")
	}
	return fromDataSourceRecord(record)
}

// GetByOwner retrieves all of the owner's data sources
func (r *DataSourceRepository) GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*entities.DataSource, error) {
	keyCond := expression.Key("OwnerPK").Equal(expression.Value("USER#" + owner.String()))
	filter := expression.Name("EntityType").Equal(expression.Value("DATASOURCE"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building data source query")
	}

	var sources []*entities.DataSource
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
			return nil, pkgerrors.NewExternal("querying data sources: " + err.Error())
		}
		var page []dataSourceRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.Wrap(err, "unmarshaling data sources")
		}
		for _, record := range page {
			source, err := fromDataSourceRecord(record)
			if err != nil {
				return nil, err
			}
			sources = append(sources, source)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].CreatedAt().Before(sources[j].CreatedAt()) })
	return sources, nil
}

// GetByIDs retrieves the given data sources, skipping missing ids
func (r *DataSourceRepository) GetByIDs(ctx context.Context, ids []valueobjects.DataSourceID) ([]*entities.DataSource, error) {
	var sources []*entities.DataSource
	for _, id := range ids {
		source, err := r.GetByID(ctx, id)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// Delete removes a data source
func (r *DataSourceRepository) Delete(ctx context.Context, id valueobjects.DataSourceID) error {
	_, err := r.client.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: r.client.tableName(),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: dataSourceKeyPrefix + id.String()},
			"SK": &types.AttributeValueMemberS{Value: metaSortKey},
		},
	})
	if err != nil {
		return pkgerrors.NewExternal("deleting data source: " + err.Error())
	}
	return nil
}

func fromDataSourceRecord(record dataSourceRecord) (*entities.DataSource, error) {
	id, err := valueobjects.ParseDataSourceID(record.DataSourceID)
	if err != nil {
		return nil, err
	}
	owner, err := valueobjects.NewOwner(record.Owner)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructDataSource(
		id,
		owner,
		entities.DataSourceType(record.SourceType),
		record.Name,
		record.Description,
		record.URL,
		entities.DataSourceStatus(record.Status),
		record.Content,
		record.ConfidenceScore,
		record.IsSelected,
		record.Metadata,
		record.CreatedAt,
		record.UpdatedAt,
	)
}
