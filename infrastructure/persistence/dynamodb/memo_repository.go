package dynamodb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"analyst-backend/domain/core/aggregates"
	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

const (
	memoKeyPrefix    = "MEMO#"
	sectionKeyPrefix = "SECTION#"
)

// memoRecord is the memo root item. Sections are separate items under the
// same partition so the whole aggregate loads with one query.
type memoRecord struct {
	PK           string            `dynamodbav:"PK"`
	SK           string            `dynamodbav:"SK"`
	OwnerPK      string            `dynamodbav:"OwnerPK"`
	EntityType   string            `dynamodbav:"EntityType"`
	MemoID       string            `dynamodbav:"MemoID"`
	Owner        string            `dynamodbav:"Owner"`
	Version      int               `dynamodbav:"Version"`
	Title        string            `dynamodbav:"Title"`
	CompanyName  string            `dynamodbav:"CompanyName,omitempty"`
	Stage        string            `dynamodbav:"Stage"`
	Status       string            `dynamodbav:"Status"`
	GeneratedBy  string            `dynamodbav:"GeneratedBy"`
	SourceMemoID string            `dynamodbav:"SourceMemoID,omitempty"`
	Preferences  map[string]string `dynamodbav:"Preferences,omitempty"`
	CreatedAt    time.Time         `dynamodbav:"CreatedAt"`
	UpdatedAt    time.Time         `dynamodbav:"UpdatedAt"`
}

type sectionRecord struct {
	PK             string                     `dynamodbav:"PK"`
	SK             string                     `dynamodbav:"SK"`
	OwnerPK        string                     `dynamodbav:"OwnerPK"`
	EntityType     string                     `dynamodbav:"EntityType"`
	SectionType    string                     `dynamodbav:"SectionType"`
	Title          string                     `dynamodbav:"Title"`
	Content        string                     `dynamodbav:"Content"`
	Weight         float64                    `dynamodbav:"Weight"`
	Confidence     float64                    `dynamodbav:"Confidence"`
	Subsections    []aggregates.Subsection    `dynamodbav:"Subsections,omitempty"`
	Visualizations []aggregates.Visualization `dynamodbav:"Visualizations,omitempty"`
	UpdatedAt      time.Time                  `dynamodbav:"UpdatedAt"`
}

// MemoRepository is the DynamoDB memo store.
type MemoRepository struct {
	client *Client
}

// NewMemoRepository creates a DynamoDB memo repository
func NewMemoRepository(client *Client) *MemoRepository {
	return &MemoRepository{client: client}
}

// Save writes the memo root and every section item
func (r *MemoRepository) Save(ctx context.Context, memo *aggregates.Memo) error {
	root := memoRecord{
		PK:           memoKeyPrefix + memo.ID().String(),
		SK:           metaSortKey,
		OwnerPK:      "USER#" + memo.Owner().String(),
		EntityType:   "MEMO",
		MemoID:       memo.ID().String(),
		Owner:        memo.Owner().String(),
		Version:      memo.Version(),
		Title:        memo.Title(),
		CompanyName:  memo.CompanyName(),
		Stage:        string(memo.Stage()),
		Status:       string(memo.Status()),
		GeneratedBy:  memo.GeneratedBy().String(),
		SourceMemoID: memo.SourceMemoID().String(),
		Preferences:  memo.Preferences(),
		CreatedAt:    memo.CreatedAt(),
		UpdatedAt:    memo.UpdatedAt(),
	}
	if err := r.put(ctx, root); err != nil {
		return err
	}

	for _, section := range memo.Sections() {
		record := sectionRecord{
			PK:             memoKeyPrefix + memo.ID().String(),
			SK:             sectionKeyPrefix + string(section.Type()),
			OwnerPK:        "USER#" + memo.Owner().String(),
			EntityType:     "MEMO_SECTION",
			SectionType:    string(section.Type()),
			Title:          section.Title(),
			Content:        section.Content(),
			Weight:         section.Weight(),
			Confidence:     section.Confidence(),
			Subsections:    section.Subsections(),
			Visualizations: section.Visualizations(),
			UpdatedAt:      section.UpdatedAt(),
		}
		if err := r.put(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads a memo and its sections with a single partition query
func (r *MemoRepository) GetByID(ctx context.Context, id valueobjects.MemoID) (*aggregates.Memo, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(memoKeyPrefix + id.String()))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building memo query")
	}

	out, err := r.client.db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 r.client.tableName(),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, pkgerrors.NewExternal("querying memo: " + err.Error())
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFound("memo not found: " + id.String())
	}
	return assembleMemo(out.Items)
}

// GetByOwner retrieves all of the owner's memos, newest first
func (r *MemoRepository) GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*aggregates.Memo, error) {
	keyCond := expression.Key("OwnerPK").Equal(expression.Value("USER#" + owner.String()))
	filter := expression.Name("EntityType").Equal(expression.Value("MEMO"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building memo list query")
	}

	var memos []*aggregates.Memo
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
			return nil, pkgerrors.NewExternal("querying memos: " + err.Error())
		}
		var page []memoRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.Wrap(err, "unmarshaling memos")
		}
		for _, record := range page {
			id, err := valueobjects.ParseMemoID(record.MemoID)
			if err != nil {
				return nil, err
			}
			// Load the full aggregate so sections come along.
			memo, err := r.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			memos = append(memos, memo)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Slice(memos, func(i, j int) bool { return memos[i].CreatedAt().After(memos[j].CreatedAt()) })
	return memos, nil
}

// Delete removes the memo root and all of its section items
func (r *MemoRepository) Delete(ctx context.Context, id valueobjects.MemoID) error {
	keyCond := expression.Key("PK").Equal(expression.Value(memoKeyPrefix + id.String()))
	proj := expression.NamesList(expression.Name("PK"), expression.Name("SK"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithProjection(proj).Build()
	if err != nil {
		return pkgerrors.Wrap(err, "building memo delete query")
	}

	out, err := r.client.db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 r.client.tableName(),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return pkgerrors.NewExternal("querying memo items: " + err.Error())
	}
	for _, item := range out.Items {
		_, err := r.client.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: r.client.tableName(),
			Key: map[string]types.AttributeValue{
				"PK": item["PK"],
				"SK": item["SK"],
			},
		})
		if err != nil {
			return pkgerrors.NewExternal("deleting memo item: " + err.Error())
		}
	}
	return nil
}

func (r *MemoRepository) put(ctx context.Context, record interface{}) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling memo item")
	}
	_, err = r.client.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.client.tableName(),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewExternal("writing memo item: " + err.Error())
	}
	return nil
}

func assembleMemo(items []map[string]types.AttributeValue) (*aggregates.Memo, error) {
	var root *memoRecord
	var sections []sectionRecord
	for _, item := range items {
		sk := ""
		if v, ok := item["SK"].(*types.AttributeValueMemberS); ok {
			sk = v.Value
		}
		switch {
		case sk == metaSortKey:
			var record memoRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, pkgerrors.Wrap(err, "unmarshaling memo root")
			}
			root = &record
		case strings.HasPrefix(sk, sectionKeyPrefix):
			var record sectionRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, pkgerrors.Wrap(err, "unmarshaling memo section")
			}
			sections = append(sections, record)
		}
	}
	if root == nil {
		return nil, pkgerrors.NewNotFound("memo root item missing")
	}

	id, err := valueobjects.ParseMemoID(root.MemoID)
	if err != nil {
		return nil, err
	}
	owner, err := valueobjects.NewOwner(root.Owner)
	if err != nil {
		return nil, err
	}
	generatedBy, err := valueobjects.ParseAgentID(root.GeneratedBy)
	if err != nil {
		return nil, err
	}
	var sourceMemoID valueobjects.MemoID
	if root.SourceMemoID != "" {
		sourceMemoID, err = valueobjects.ParseMemoID(root.SourceMemoID)
		if err != nil {
			return nil, err
		}
	}

	memo, err := aggregates.ReconstructMemo(
		id,
		owner,
		root.Version,
		root.Title,
		root.CompanyName,
		aggregates.MemoStage(root.Stage),
		aggregates.MemoStatus(root.Status),
		generatedBy,
		sourceMemoID,
		root.Preferences,
		root.CreatedAt,
		root.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, section := range sections {
		err := memo.RestoreSection(
			aggregates.SectionType(section.SectionType),
			section.Title,
			section.Content,
			section.Confidence,
			section.Weight,
			section.Subsections,
			section.Visualizations,
			section.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
	}
	return memo, nil
}
