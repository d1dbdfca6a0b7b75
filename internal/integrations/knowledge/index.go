package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/lofty-concierge/server/internal/agent/model"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// Document is one searchable chunk of business knowledge.
type Document struct {
	ID     string
	Text   string
	Source string
	Topic  string
	Role   string
}

// BleveIndex is a BM25 keyword index over knowledge chunks.
type BleveIndex struct {
	index bleve.Index
	path  string
}

// Open opens the index at path, creating it when missing. A corrupted index
// is removed and recreated empty.
func Open(path string) (*BleveIndex, error) {
	index, err := bleve.Open(path)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create knowledge index: %w", err)
		}
		logx.Info().Str("path", path).Msg("Knowledge index created")
	case err != nil:
		logx.Warn().Err(err).Str("path", path).Msg("Knowledge index unreadable, recreating")
		if index != nil {
			_ = index.Close()
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("remove corrupted knowledge index: %w", err)
		}
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("recreate knowledge index: %w", err)
		}
	}
	return &BleveIndex{index: index, path: path}, nil
}

// NewMemOnly builds an index that lives only in memory.
func NewMemOnly() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create in-memory knowledge index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	for _, name := range []string{"source", "topic", "role"} {
		field := bleve.NewTextFieldMapping()
		field.Analyzer = keyword.Name
		field.Store = true
		field.Index = true
		doc.AddFieldMappingsAt(name, field)
	}

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true
	text.Index = true
	doc.AddFieldMappingsAt("text", text)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

// Index writes the documents in one batch, replacing any with the same id.
func (b *BleveIndex) Index(docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("knowledge document without id")
		}
		err := batch.Index(d.ID, map[string]interface{}{
			"text":   d.Text,
			"source": d.Source,
			"topic":  d.Topic,
			"role":   d.Role,
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", d.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("write knowledge batch: %w", err)
	}
	return nil
}

func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Search returns the topK best matching chunks in rank order.
func (b *BleveIndex) Search(ctx context.Context, query string, topK int) ([]model.Passage, error) {
	if topK <= 0 {
		topK = 6
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("text")

	req := bleve.NewSearchRequest(q)
	req.Size = topK
	req.Fields = []string{"text", "source"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}

	passages := make([]model.Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		p := model.Passage{Score: hit.Score}
		if v, ok := hit.Fields["text"].(string); ok {
			p.Text = v
		}
		if v, ok := hit.Fields["source"].(string); ok {
			p.Source = v
		}
		passages = append(passages, p)
	}
	return passages, nil
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}

var _ model.Searcher = (*BleveIndex)(nil)
