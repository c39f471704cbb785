// Package search provides fuzzy full-text lookup over registered steps.
package search

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/pkg/errors"

	"github.com/phobologic/stepguide/internal/model"
)

// Field names of an indexed step.
const (
	FieldStepValue = "step_value"
	FieldStepText  = "step_text"
	FieldName      = "name"
	FieldFile      = "file"
)

const defaultLimit = 10

// Hit is one search result.
type Hit struct {
	StepValue string  `yaml:"step_value"`
	StepText  string  `yaml:"step_text"`
	Name      string  `yaml:"name"`
	File      string  `yaml:"file"`
	Score     float64 `yaml:"score"`
}

// Index is an in-memory step index.
type Index struct {
	idx bleve.Index
}

// CreateIndexMapping creates the mapping for step documents.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Step text - analyzed for fuzzy search
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = true
	docMapping.AddFieldMappingsAt(FieldStepText, textField)

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = standard.Name
	nameField.Store = true
	docMapping.AddFieldMappingsAt(FieldName, nameField)

	valueField := bleve.NewTextFieldMapping()
	valueField.Analyzer = keyword.Name
	valueField.Store = true
	docMapping.AddFieldMappingsAt(FieldStepValue, valueField)

	fileField := bleve.NewTextFieldMapping()
	fileField.Analyzer = keyword.Name
	fileField.Store = true
	docMapping.AddFieldMappingsAt(FieldFile, fileField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Build indexes methods into a new in-memory index, one document per step
// value.
func Build(methods []model.Method) (*Index, error) {
	idx, err := bleve.NewMemOnly(CreateIndexMapping())
	if err != nil {
		return nil, errors.Wrap(err, "creating step index")
	}

	batch := idx.NewBatch()
	for _, m := range methods {
		doc := map[string]interface{}{
			FieldStepValue: m.StepValue,
			FieldStepText:  m.StepText,
			FieldName:      splitName(m.Name),
			FieldFile:      m.FileName,
		}
		if err := batch.Index(m.StepValue, doc); err != nil {
			_ = idx.Close()
			return nil, errors.Wrapf(err, "indexing %q", m.StepValue)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, errors.Wrap(err, "writing step index")
	}

	return &Index{idx: idx}, nil
}

// Len returns the number of indexed steps.
func (i *Index) Len() (int, error) {
	n, err := i.idx.DocCount()
	return int(n), err
}

// Close releases the index.
func (i *Index) Close() error {
	return i.idx.Close()
}

// Search matches q against step texts, tolerating one edit per term, and
// against method names with a lower weight. limit <= 0 uses a default.
func (i *Index) Search(q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	textQuery := bleve.NewMatchQuery(q)
	textQuery.SetField(FieldStepText)
	textQuery.SetFuzziness(1)
	textQuery.SetBoost(2.0)

	nameQuery := bleve.NewMatchQuery(q)
	nameQuery.SetField(FieldName)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(textQuery, nameQuery), limit, 0, false)
	req.Fields = []string{FieldStepValue, FieldStepText, FieldName, FieldFile}

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, errors.Wrap(err, "searching steps")
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{StepValue: h.ID, Score: h.Score}
		if v, ok := h.Fields[FieldStepText].(string); ok {
			hit.StepText = v
		}
		if v, ok := h.Fields[FieldFile].(string); ok {
			hit.File = v
		}
		if v, ok := h.Fields[FieldName].(string); ok {
			hit.Name = strings.ReplaceAll(v, " ", ".")
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// splitName turns "Sample.Steps.SaySomething" into space-separated words so
// each qualifier segment is its own term.
func splitName(name string) string {
	return strings.ReplaceAll(name, ".", " ")
}
