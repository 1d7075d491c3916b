package textract

import (
	"context"
	"errors"
)

var (
	// ErrInvalidLocation means the bucket or key needed to find the output is empty or malformed.
	ErrInvalidLocation = errors.New("invalid analysis output location")
	// ErrOutputNotFound means nothing was stored at the output location.
	ErrOutputNotFound = errors.New("analysis output not found")
	// ErrJobFailed means Textract reported the job as failed.
	ErrJobFailed = errors.New("textract job failed")
	// ErrJobInProgress means the job has not finished yet.
	ErrJobInProgress = errors.New("textract job still in progress")
)

// Service fetches the analysis blocks produced for a document.
type Service interface {
	GetBlocksForAnalysis(ctx context.Context, bucket, key string) (*AnalysisModel, error)
}
