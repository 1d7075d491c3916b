package processdata

import "time"

// ProcessData is the workflow state persisted for one document.
type ProcessData struct {
	ID                string          `json:"Id" dynamodbav:"Id"`
	InputBucket       string          `json:"InputBucket,omitempty" dynamodbav:"InputBucket,omitempty"`
	InputKey          string          `json:"InputKey,omitempty" dynamodbav:"InputKey,omitempty"`
	OutputBucket      string          `json:"OutputBucket,omitempty" dynamodbav:"OutputBucket,omitempty"`
	TextractJobID     string          `json:"TextractJobId,omitempty" dynamodbav:"TextractJobId,omitempty"`
	TextractOutputKey string          `json:"TextractOutputKey,omitempty" dynamodbav:"TextractOutputKey,omitempty"`
	TaskToken         string          `json:"TaskToken,omitempty" dynamodbav:"TaskToken,omitempty"`
	Queries           []DocumentQuery `json:"Queries" dynamodbav:"Queries"`
	Version           int64           `json:"Version" dynamodbav:"Version"`
	CreatedAt         time.Time       `json:"CreatedAt" dynamodbav:"CreatedAt"`
	UpdatedAt         time.Time       `json:"UpdatedAt" dynamodbav:"UpdatedAt"`
}

// DocumentQuery is a named extraction request. QueryID doubles as the
// Textract query alias.
type DocumentQuery struct {
	QueryID   string        `json:"QueryId" dynamodbav:"QueryId"`
	QueryText string        `json:"QueryText,omitempty" dynamodbav:"QueryText,omitempty"`
	Results   []QueryResult `json:"Result" dynamodbav:"Result"`
	IsValid   bool          `json:"IsValid" dynamodbav:"IsValid"`
}

// QueryResult is one answer found for a query.
type QueryResult struct {
	Text       string  `json:"Text" dynamodbav:"Text"`
	Confidence float64 `json:"Confidence" dynamodbav:"Confidence"`
	Page       int     `json:"Page,omitempty" dynamodbav:"Page,omitempty"`
}

// ClearTextractJobData drops the fields that only matter while a Textract job
// is in flight.
func (p *ProcessData) ClearTextractJobData() {
	p.TaskToken = ""
	p.TextractJobID = ""
	p.TextractOutputKey = ""
}

// HasPendingJob reports whether a Textract job is still attached to the record.
func (p ProcessData) HasPendingJob() bool {
	return p.TaskToken != "" || p.TextractJobID != "" || p.TextractOutputKey != ""
}

// Clone returns a deep copy so callers can mutate queries without touching the stored copy.
func (p ProcessData) Clone() ProcessData {
	out := p
	if p.Queries != nil {
		out.Queries = make([]DocumentQuery, len(p.Queries))
		for i, q := range p.Queries {
			out.Queries[i] = q
			if q.Results != nil {
				out.Queries[i].Results = append([]QueryResult(nil), q.Results...)
			}
		}
	}
	return out
}
