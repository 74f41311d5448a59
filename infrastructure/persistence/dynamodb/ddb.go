// Package dynamodb provides the production repositories over a single
// DynamoDB table. Items are keyed PK/SK with an OwnerIndex GSI for
// owner-scoped queries.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// OwnerIndexName is the GSI projecting items by owner.
const OwnerIndexName = "OwnerIndex"

// Client bundles the DynamoDB client with its table configuration.
type Client struct {
	db    *dynamodb.Client
	table string
}

// NewClient builds a DynamoDB client for the region and table
func NewClient(ctx context.Context, region, table string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &Client{db: dynamodb.NewFromConfig(cfg), table: table}, nil
}

// NewClientFromConfig wraps an existing aws.Config, used by the lambda entry
func NewClientFromConfig(cfg aws.Config, table string) *Client {
	return &Client{db: dynamodb.NewFromConfig(cfg), table: table}
}

func (c *Client) tableName() *string { return aws.String(c.table) }
