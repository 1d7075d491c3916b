package processdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoRepo.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoRepo implements Repo on a DynamoDB table keyed by "Id".
type DynamoRepo struct {
	Client DynamoAPI
	Table  string
}

// NewDynamoRepo builds a DynamoRepo from the default AWS config chain.
func NewDynamoRepo(ctx context.Context, region, table string) (*DynamoRepo, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("DYNAMODB_TABLE is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &DynamoRepo{Client: dynamodb.NewFromConfig(cfg), Table: table}, nil
}

// GetByID reads the record with a strongly consistent read.
func (r *DynamoRepo) GetByID(ctx context.Context, id string) (ProcessData, error) {
	if strings.TrimSpace(id) == "" {
		return ProcessData{}, ErrMissingID
	}
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.Table),
		Key:            map[string]ddbtypes.AttributeValue{"Id": &ddbtypes.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return ProcessData{}, fmt.Errorf("dynamodb get item table=%s id=%s: %w", r.Table, id, err)
	}
	if len(out.Item) == 0 {
		return ProcessData{}, ErrNotFound
	}

	var rec ProcessData
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return ProcessData{}, fmt.Errorf("decode item id=%s: %w", id, err)
	}
	return rec, nil
}

// Save writes the full item guarded by a condition on the stored version.
func (r *DynamoRepo) Save(ctx context.Context, rec ProcessData) (ProcessData, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return ProcessData{}, ErrMissingID
	}

	now := time.Now().UTC()
	expected := rec.Version
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.Version++
	rec.UpdatedAt = now

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return ProcessData{}, fmt.Errorf("encode item id=%s: %w", rec.ID, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.Table),
		Item:      item,
	}
	input.ExpressionAttributeNames = map[string]string{"#v": "Version"}
	if expected == 0 {
		// Items written upstream may carry no Version attribute yet.
		input.ConditionExpression = aws.String("attribute_not_exists(Id) OR attribute_not_exists(#v)")
	} else {
		input.ConditionExpression = aws.String("#v = :v")
		input.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{
			":v": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		}
	}

	if _, err := r.Client.PutItem(ctx, input); err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ProcessData{}, ErrConflict
		}
		return ProcessData{}, fmt.Errorf("dynamodb put item table=%s id=%s: %w", r.Table, rec.ID, err)
	}
	return rec, nil
}

var _ Repo = (*DynamoRepo)(nil)
