package textract

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// AnalysisModel is a read-only, id-indexed view over the blocks of one
// document analysis.
type AnalysisModel struct {
	blocks []types.Block
	byID   map[string]int
	pages  int
}

// NewAnalysisModel indexes blocks by id. pages may be zero when the source did
// not report document metadata; it is then derived from block page numbers.
func NewAnalysisModel(blocks []types.Block, pages int) *AnalysisModel {
	m := &AnalysisModel{
		blocks: blocks,
		byID:   make(map[string]int, len(blocks)),
		pages:  pages,
	}
	for i, b := range blocks {
		if id := aws.ToString(b.Id); id != "" {
			m.byID[id] = i
		}
		if p := int(aws.ToInt32(b.Page)); p > m.pages {
			m.pages = p
		}
	}
	return m
}

// Block returns the block with the given id.
func (m *AnalysisModel) Block(id string) (types.Block, bool) {
	if m == nil {
		return types.Block{}, false
	}
	i, ok := m.byID[id]
	if !ok {
		return types.Block{}, false
	}
	return m.blocks[i], true
}

// BlocksByType returns blocks of type t in document order.
func (m *AnalysisModel) BlocksByType(t types.BlockType) []types.Block {
	if m == nil {
		return nil
	}
	var out []types.Block
	for _, b := range m.blocks {
		if b.BlockType == t {
			out = append(out, b)
		}
	}
	return out
}

// Len is the number of blocks.
func (m *AnalysisModel) Len() int {
	if m == nil {
		return 0
	}
	return len(m.blocks)
}

// Pages is the number of pages in the analysed document.
func (m *AnalysisModel) Pages() int {
	if m == nil {
		return 0
	}
	return m.pages
}
