package textract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"docanalysis-backend/internal/shared/storage/object"
	"docanalysis-backend/internal/shared/telemetry"
)

const (
	defaultMaxPartBytes = 64 << 20
	accessCheckObject   = ".s3_access_check"
)

// outputDocument is one part of an asynchronous Textract job's S3 output. The
// shape matches GetDocumentAnalysis responses.
type outputDocument struct {
	DocumentMetadata *types.DocumentMetadata `json:"DocumentMetadata"`
	JobStatus        types.JobStatus         `json:"JobStatus"`
	StatusMessage    *string                 `json:"StatusMessage"`
	Blocks           []types.Block           `json:"Blocks"`
	Warnings         []types.Warning         `json:"Warnings"`
}

// OutputSource reads analysis results that Textract wrote to an output bucket.
type OutputSource struct {
	Store        object.ObjectStore
	MaxPartBytes int64
}

// NewOutputSource constructs an OutputSource over store.
func NewOutputSource(store object.ObjectStore) *OutputSource {
	return &OutputSource{Store: store, MaxPartBytes: defaultMaxPartBytes}
}

// GetBlocksForAnalysis merges every numbered part under key. When key has no
// parts beneath it, key itself is read as a single output document.
func (s *OutputSource) GetBlocksForAnalysis(ctx context.Context, bucket, key string) (*AnalysisModel, error) {
	bucket = strings.TrimSpace(bucket)
	key = strings.Trim(strings.TrimSpace(key), "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("bucket=%q key=%q: %w", bucket, key, ErrInvalidLocation)
	}

	listed, err := s.Store.List(ctx, bucket, key+"/")
	if err != nil {
		return nil, fmt.Errorf("list analysis output bucket=%s key=%s: %w", bucket, key, err)
	}
	parts := orderParts(listed)
	if len(parts) == 0 {
		parts = []string{key}
	}

	var (
		blocks []types.Block
		pages  int
	)
	for _, part := range parts {
		doc, err := s.readPart(ctx, bucket, part)
		if err != nil {
			return nil, err
		}
		if doc.JobStatus == types.JobStatusFailed {
			return nil, fmt.Errorf("part %s: %s: %w", part, aws.ToString(doc.StatusMessage), ErrJobFailed)
		}
		if doc.DocumentMetadata != nil {
			if p := int(aws.ToInt32(doc.DocumentMetadata.Pages)); p > pages {
				pages = p
			}
		}
		for _, w := range doc.Warnings {
			telemetry.Warn("textract.output.warning", map[string]any{
				"bucket":     bucket,
				"key":        part,
				"error_code": aws.ToString(w.ErrorCode),
				"pages":      w.Pages,
			})
		}
		blocks = append(blocks, doc.Blocks...)
	}

	telemetry.Debug("textract.output.loaded", map[string]any{
		"bucket": bucket,
		"key":    key,
		"parts":  len(parts),
		"blocks": len(blocks),
	})
	return NewAnalysisModel(blocks, pages), nil
}

func (s *OutputSource) readPart(ctx context.Context, bucket, key string) (outputDocument, error) {
	body, err := s.Store.Open(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return outputDocument{}, fmt.Errorf("bucket=%s key=%s: %w", bucket, key, ErrOutputNotFound)
		}
		return outputDocument{}, fmt.Errorf("open analysis output bucket=%s key=%s: %w", bucket, key, err)
	}
	defer body.Close()

	limit := s.MaxPartBytes
	if limit <= 0 {
		limit = defaultMaxPartBytes
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return outputDocument{}, fmt.Errorf("read analysis output bucket=%s key=%s: %w", bucket, key, err)
	}
	if int64(len(data)) > limit {
		return outputDocument{}, fmt.Errorf("analysis output bucket=%s key=%s exceeds %d bytes", bucket, key, limit)
	}

	var doc outputDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return outputDocument{}, fmt.Errorf("decode analysis output bucket=%s key=%s: %w", bucket, key, err)
	}
	return doc, nil
}

// orderParts drops hidden objects (the access-check marker) and sorts numbered
// parts numerically; anything else follows in lexical order.
func orderParts(keys []string) []string {
	type part struct {
		key string
		n   int
		num bool
	}
	var parts []part
	for _, k := range keys {
		base := path.Base(k)
		if base == accessCheckObject || strings.HasPrefix(base, ".") {
			continue
		}
		n, err := strconv.Atoi(base)
		parts = append(parts, part{key: k, n: n, num: err == nil})
	}
	sort.SliceStable(parts, func(i, j int) bool {
		a, b := parts[i], parts[j]
		if a.num != b.num {
			return a.num
		}
		if a.num {
			return a.n < b.n
		}
		return a.key < b.key
	})

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.key)
	}
	return out
}

var _ Service = (*OutputSource)(nil)
