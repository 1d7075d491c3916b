package textract

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// QueryAnswer is one QUERY_RESULT block linked to a query.
type QueryAnswer struct {
	Text       string
	Confidence float64
	Page       int
}

// QueryResults returns the answers Textract produced for the query whose alias
// equals queryID. A query asked across several pages yields one QUERY block per
// page; answers are returned in block order, then relationship order.
func QueryResults(model *AnalysisModel, queryID string) []QueryAnswer {
	queryID = strings.TrimSpace(queryID)
	if queryID == "" || model == nil {
		return nil
	}

	var out []QueryAnswer
	for _, q := range model.BlocksByType(types.BlockTypeQuery) {
		if q.Query == nil || strings.TrimSpace(aws.ToString(q.Query.Alias)) != queryID {
			continue
		}
		for _, rel := range q.Relationships {
			if rel.Type != types.RelationshipTypeAnswer {
				continue
			}
			for _, id := range rel.Ids {
				answer, ok := model.Block(id)
				if !ok || answer.BlockType != types.BlockTypeQueryResult {
					continue
				}
				text := strings.TrimSpace(aws.ToString(answer.Text))
				if text == "" {
					continue
				}
				out = append(out, QueryAnswer{
					Text:       text,
					Confidence: float64(aws.ToFloat32(answer.Confidence)),
					Page:       int(aws.ToInt32(answer.Page)),
				})
			}
		}
	}
	return out
}
