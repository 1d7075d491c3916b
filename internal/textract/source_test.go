package textract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstextract "github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docanalysis-backend/internal/shared/storage/object/local"
)

const partOne = `{
  "DocumentMetadata": {"Pages": 2},
  "JobStatus": "SUCCEEDED",
  "NextToken": "abc",
  "AnalyzeDocumentModelVersion": "1.0",
  "Blocks": [
    {"BlockType": "PAGE", "Id": "page-1", "Page": 1, "Confidence": 99.9,
     "Geometry": {"BoundingBox": {"Width": 1, "Height": 1, "Left": 0, "Top": 0}, "Polygon": [{"X": 0, "Y": 0}]}},
    {"BlockType": "QUERY", "Id": "q-1", "Page": 1,
     "Query": {"Text": "What is the invoice total?", "Alias": "invoice_total"},
     "Relationships": [{"Type": "ANSWER", "Ids": ["r-10"]}]}
  ]
}`

const partTwo = `{
  "DocumentMetadata": {"Pages": 2},
  "JobStatus": "SUCCEEDED",
  "Warnings": [{"ErrorCode": "UNSUPPORTED_FEATURE", "Pages": [2]}],
  "Blocks": [
    {"BlockType": "QUERY_RESULT", "Id": "r-10", "Page": 2, "Text": "$99.00", "Confidence": 93.25}
  ]
}`

func seed(t *testing.T, store *local.Store, bucket string, objects map[string]string) {
	t.Helper()
	for key, body := range objects {
		_, err := store.SaveWithKey(context.Background(), bucket, key, "application/json", strings.NewReader(body))
		require.NoError(t, err)
	}
}

func TestOutputSourceMergesPartsInNumericOrder(t *testing.T) {
	store := local.New(t.TempDir())
	// Part 10 is lexically before 2; it must come last.
	seed(t, store, "out", map[string]string{
		"textract/job-1/.s3_access_check": "",
		"textract/job-1/1":                partOne,
		"textract/job-1/2":                partTwo,
		"textract/job-1/10":               `{"JobStatus":"SUCCEEDED","Blocks":[{"BlockType":"LINE","Id":"last","Page":2}]}`,
	})

	model, err := NewOutputSource(store).GetBlocksForAnalysis(context.Background(), "out", "textract/job-1/")
	require.NoError(t, err)
	require.Equal(t, 4, model.Len())
	assert.Equal(t, 2, model.Pages())
	assert.Equal(t, "last", aws.ToString(model.blocks[3].Id))

	answers := QueryResults(model, "invoice_total")
	require.Len(t, answers, 1)
	assert.Equal(t, "$99.00", answers[0].Text)
	assert.InDelta(t, 93.25, answers[0].Confidence, 0.001)
	assert.Equal(t, 2, answers[0].Page)
}

func TestOutputSourceReadsSingleDocumentKey(t *testing.T) {
	store := local.New(t.TempDir())
	seed(t, store, "out", map[string]string{"analysis/doc.json": partTwo})

	model, err := NewOutputSource(store).GetBlocksForAnalysis(context.Background(), "out", "analysis/doc.json")
	require.NoError(t, err)
	assert.Equal(t, 1, model.Len())
}

func TestOutputSourceErrors(t *testing.T) {
	store := local.New(t.TempDir())
	seed(t, store, "out", map[string]string{
		"failed/1": `{"JobStatus":"FAILED","StatusMessage":"unsupported document"}`,
		"big/1":    partOne,
		"bad/1":    `{not json`,
	})
	src := NewOutputSource(store)
	ctx := context.Background()

	_, err := src.GetBlocksForAnalysis(ctx, "", "textract/job-1")
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = src.GetBlocksForAnalysis(ctx, "out", " ")
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = src.GetBlocksForAnalysis(ctx, "out", "missing/job")
	assert.ErrorIs(t, err, ErrOutputNotFound)

	_, err = src.GetBlocksForAnalysis(ctx, "out", "failed")
	assert.ErrorIs(t, err, ErrJobFailed)

	_, err = src.GetBlocksForAnalysis(ctx, "out", "bad")
	require.Error(t, err)

	src.MaxPartBytes = 16
	_, err = src.GetBlocksForAnalysis(ctx, "out", "big")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestOrderParts(t *testing.T) {
	got := orderParts([]string{"p/10", "p/.s3_access_check", "p/2", "p/manifest.json", "p/1"})
	assert.Equal(t, []string{"p/1", "p/2", "p/10", "p/manifest.json"}, got)
}

type fakeJobAPI struct {
	pages []*awstextract.GetDocumentAnalysisOutput
	err   error
	calls []awstextract.GetDocumentAnalysisInput
}

func (f *fakeJobAPI) GetDocumentAnalysis(ctx context.Context, params *awstextract.GetDocumentAnalysisInput, optFns ...func(*awstextract.Options)) (*awstextract.GetDocumentAnalysisOutput, error) {
	f.calls = append(f.calls, *params)
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func TestJobSourcePagesThroughResults(t *testing.T) {
	api := &fakeJobAPI{pages: []*awstextract.GetDocumentAnalysisOutput{
		{
			JobStatus:        types.JobStatusSucceeded,
			DocumentMetadata: &types.DocumentMetadata{Pages: aws.Int32(1)},
			Blocks:           []types.Block{queryBlock("q1", "vendor_name", 1, "r1")},
			NextToken:        aws.String("t-1"),
		},
		{
			JobStatus: types.JobStatusSucceeded,
			Blocks:    []types.Block{resultBlock("r1", "Acme", 90, 1)},
		},
	}}

	model, err := (&JobSource{Client: api}).GetBlocksForAnalysis(context.Background(), "ignored", "textract-output/job-42")
	require.NoError(t, err)
	require.Len(t, api.calls, 2)
	assert.Equal(t, "job-42", aws.ToString(api.calls[0].JobId))
	assert.Nil(t, api.calls[0].NextToken)
	assert.Equal(t, "t-1", aws.ToString(api.calls[1].NextToken))
	assert.Equal(t, []QueryAnswer{{Text: "Acme", Confidence: 90, Page: 1}}, QueryResults(model, "vendor_name"))
}

func TestJobSourceStatusErrors(t *testing.T) {
	ctx := context.Background()

	_, err := (&JobSource{Client: &fakeJobAPI{}}).GetBlocksForAnalysis(ctx, "b", "")
	assert.ErrorIs(t, err, ErrInvalidLocation)

	failed := &fakeJobAPI{pages: []*awstextract.GetDocumentAnalysisOutput{{JobStatus: types.JobStatusFailed, StatusMessage: aws.String("bad pdf")}}}
	_, err = (&JobSource{Client: failed}).GetBlocksForAnalysis(ctx, "b", "out/job")
	assert.ErrorIs(t, err, ErrJobFailed)

	running := &fakeJobAPI{pages: []*awstextract.GetDocumentAnalysisOutput{{JobStatus: types.JobStatusInProgress}}}
	_, err = (&JobSource{Client: running}).GetBlocksForAnalysis(ctx, "b", "out/job")
	assert.ErrorIs(t, err, ErrJobInProgress)

	invalid := &fakeJobAPI{err: &types.InvalidJobIdException{Message: aws.String("unknown job")}}
	_, err = (&JobSource{Client: invalid}).GetBlocksForAnalysis(ctx, "b", "out/job")
	assert.ErrorIs(t, err, ErrOutputNotFound)

	boom := &fakeJobAPI{err: errors.New("throttled")}
	_, err = (&JobSource{Client: boom}).GetBlocksForAnalysis(ctx, "b", "out/job")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOutputNotFound)
}

func TestJobIDFromOutputKey(t *testing.T) {
	assert.Equal(t, "job-1", JobIDFromOutputKey("prefix/job-1"))
	assert.Equal(t, "job-1", JobIDFromOutputKey("/prefix/job-1/"))
	assert.Equal(t, "job-1", JobIDFromOutputKey("job-1"))
	assert.Equal(t, "", JobIDFromOutputKey("  "))
}
