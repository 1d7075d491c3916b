package processdata

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo evaluates the two condition expressions DynamoRepo uses.
type fakeDynamo struct {
	items map[string]map[string]ddbtypes.AttributeValue
	puts  []*dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := params.Key["Id"].(*ddbtypes.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, params)
	id := params.Item["Id"].(*ddbtypes.AttributeValueMemberS).Value
	existing, ok := f.items[id]

	switch aws.ToString(params.ConditionExpression) {
	case "attribute_not_exists(Id) OR attribute_not_exists(#v)":
		if _, versioned := existing["Version"]; ok && versioned {
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	case "#v = :v":
		want := params.ExpressionAttributeValues[":v"].(*ddbtypes.AttributeValueMemberN).Value
		if !ok {
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("missing")}
		}
		got, _ := existing["Version"].(*ddbtypes.AttributeValueMemberN)
		if got == nil || got.Value != want {
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("version")}
		}
	}
	f.items[id] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoRepoSaveAndGet(t *testing.T) {
	client := newFakeDynamo()
	repo := &DynamoRepo{Client: client, Table: "process-data"}
	ctx := context.Background()

	created, err := repo.Save(ctx, ProcessData{
		ID:                "proc-1",
		OutputBucket:      "out",
		TextractOutputKey: "textract/job-1",
		TaskToken:         "token",
		Queries:           []DocumentQuery{{QueryID: "q1", QueryText: "Who is the vendor?"}},
	})
	if err != nil {
		t.Fatalf("Save create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	got, err := repo.GetByID(ctx, "proc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.TextractOutputKey != "textract/job-1" || got.Queries[0].QueryText != "Who is the vendor?" {
		t.Fatalf("unexpected record: %+v", got)
	}

	got.ClearTextractJobData()
	updated, err := repo.Save(ctx, got)
	if err != nil {
		t.Fatalf("Save update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	var stored ProcessData
	if err := attributevalue.UnmarshalMap(client.items["proc-1"], &stored); err != nil {
		t.Fatalf("UnmarshalMap: %v", err)
	}
	if stored.TaskToken != "" || stored.TextractOutputKey != "" {
		t.Fatalf("expected job fields cleared, got %+v", stored)
	}
	if _, ok := client.items["proc-1"]["TaskToken"]; ok {
		t.Fatalf("expected TaskToken attribute to be omitted")
	}
}

func TestDynamoRepoConflicts(t *testing.T) {
	repo := &DynamoRepo{Client: newFakeDynamo(), Table: "process-data"}
	ctx := context.Background()

	if _, err := repo.Save(ctx, ProcessData{ID: "proc-1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := repo.Save(ctx, ProcessData{ID: "proc-1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate create, got %v", err)
	}
	if _, err := repo.Save(ctx, ProcessData{ID: "proc-1", Version: 7}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on stale version, got %v", err)
	}
}

func TestDynamoRepoSavesItemWrittenWithoutVersion(t *testing.T) {
	client := newFakeDynamo()
	client.items["proc-2"] = map[string]ddbtypes.AttributeValue{
		"Id":                &ddbtypes.AttributeValueMemberS{Value: "proc-2"},
		"OutputBucket":      &ddbtypes.AttributeValueMemberS{Value: "out"},
		"TextractOutputKey": &ddbtypes.AttributeValueMemberS{Value: "textract/job-2"},
		"TaskToken":         &ddbtypes.AttributeValueMemberS{Value: "token"},
	}
	repo := &DynamoRepo{Client: client, Table: "process-data"}
	ctx := context.Background()

	got, err := repo.GetByID(ctx, "proc-2")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Version != 0 {
		t.Fatalf("expected version 0, got %d", got.Version)
	}

	got.ClearTextractJobData()
	saved, err := repo.Save(ctx, got)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("expected version 1, got %d", saved.Version)
	}

	reloaded, err := repo.GetByID(ctx, "proc-2")
	if err != nil {
		t.Fatalf("GetByID after save: %v", err)
	}
	if reloaded.TaskToken != "" || reloaded.TextractOutputKey != "" || reloaded.OutputBucket != "out" {
		t.Fatalf("unexpected record after save: %+v", reloaded)
	}

	// Once versioned, a second create-style write is a conflict again.
	if _, err := repo.Save(ctx, got); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale unversioned write, got %v", err)
	}
}

func TestDynamoRepoGetMissing(t *testing.T) {
	repo := &DynamoRepo{Client: newFakeDynamo(), Table: "process-data"}

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), ""); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}
