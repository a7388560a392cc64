package videoindex

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for analysis documents.
//
// Title, summary and topics carry English stemming; owner and category ids
// are keyword fields used as filters; score and timestamp are numeric for
// range queries and sorting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	text := func(field string, store, vectors bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = en.AnalyzerName
		fm.Store = store
		fm.IncludeTermVectors = vectors
		doc.AddFieldMappingsAt(field, fm)
	}
	text(fieldTitle, true, true)
	text(fieldSummary, true, true)
	text(fieldReasoning, false, false)

	channel := bleve.NewTextFieldMapping()
	channel.Analyzer = simple.Name
	channel.Store = true
	doc.AddFieldMappingsAt(fieldChannel, channel)

	kw := func(field string, store bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = store
		doc.AddFieldMappingsAt(field, fm)
	}
	kw(fieldUserID, false)
	kw(fieldCategoryID, true)
	kw(fieldVideoID, true)
	kw(fieldTopics, true)
	kw(fieldModel, true)

	score := bleve.NewNumericFieldMapping()
	score.Store = true
	doc.AddFieldMappingsAt(fieldScore, score)

	analyzed := bleve.NewNumericFieldMapping()
	analyzed.Store = true
	doc.AddFieldMappingsAt(fieldAnalyzedAt, analyzed)

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}
