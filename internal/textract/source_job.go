package textract

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awstextract "github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

const maxJobPages = 1000

// JobAPI is the subset of the Textract client used by JobSource.
type JobAPI interface {
	GetDocumentAnalysis(ctx context.Context, params *awstextract.GetDocumentAnalysisInput, optFns ...func(*awstextract.Options)) (*awstextract.GetDocumentAnalysisOutput, error)
}

// JobSource reads analysis results straight from the Textract API. The job id
// is the last segment of the output key, matching Textract's
// <prefix>/<jobId> output layout.
type JobSource struct {
	Client JobAPI
}

// NewJobSource builds a JobSource from the default AWS config chain.
func NewJobSource(ctx context.Context, region string) (*JobSource, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &JobSource{Client: awstextract.NewFromConfig(cfg)}, nil
}

// GetBlocksForAnalysis pages through GetDocumentAnalysis for the job named by key.
func (s *JobSource) GetBlocksForAnalysis(ctx context.Context, bucket, key string) (*AnalysisModel, error) {
	jobID := JobIDFromOutputKey(key)
	if jobID == "" {
		return nil, fmt.Errorf("bucket=%q key=%q: %w", bucket, key, ErrInvalidLocation)
	}

	var (
		blocks []types.Block
		pages  int
		token  *string
	)
	for i := 0; i < maxJobPages; i++ {
		out, err := s.Client.GetDocumentAnalysis(ctx, &awstextract.GetDocumentAnalysisInput{
			JobId:     aws.String(jobID),
			NextToken: token,
		})
		if err != nil {
			var notFound *types.InvalidJobIdException
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("job %s: %w", jobID, ErrOutputNotFound)
			}
			return nil, fmt.Errorf("textract get document analysis job=%s: %w", jobID, err)
		}

		switch out.JobStatus {
		case types.JobStatusFailed:
			return nil, fmt.Errorf("job %s: %s: %w", jobID, aws.ToString(out.StatusMessage), ErrJobFailed)
		case types.JobStatusInProgress:
			return nil, fmt.Errorf("job %s: %w", jobID, ErrJobInProgress)
		}

		if out.DocumentMetadata != nil {
			if p := int(aws.ToInt32(out.DocumentMetadata.Pages)); p > pages {
				pages = p
			}
		}
		blocks = append(blocks, out.Blocks...)

		token = out.NextToken
		if aws.ToString(token) == "" {
			return NewAnalysisModel(blocks, pages), nil
		}
	}
	return nil, fmt.Errorf("job %s: more than %d result pages", jobID, maxJobPages)
}

// JobIDFromOutputKey returns the final path segment of an output key.
func JobIDFromOutputKey(key string) string {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return ""
	}
	return path.Base(key)
}

var _ Service = (*JobSource)(nil)
