package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lofty-concierge/server/internal/agent/model"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// Retriever turns a user query into a knowledge context blob.
type Retriever struct {
	searcher model.Searcher
	bias     map[model.Segment]string
	topK     int
	timeout  time.Duration
}

func New(searcher model.Searcher, policy *model.DialoguePolicy, cfg model.RetrievalConfig) *Retriever {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 6
	}
	return &Retriever{
		searcher: searcher,
		bias:     policy.Segments.Bias,
		topK:     topK,
		timeout:  cfg.Timeout,
	}
}

// Retrieve searches with the segment bias phrase appended and joins the hits as
// "[Source: label] text" blocks. Search failures are logged and yield "".
func (r *Retriever) Retrieve(ctx context.Context, query string, segment model.Segment) string {
	if r == nil || r.searcher == nil || strings.TrimSpace(query) == "" {
		return ""
	}

	q := strings.TrimSpace(query)
	if bias := strings.TrimSpace(r.bias[segment]); bias != "" {
		q = q + " " + bias
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	passages, err := r.searcher.Search(ctx, q, r.topK)
	if err != nil {
		logx.Warn().Err(err).Str("segment", string(segment)).Msg("knowledge search failed; continuing without context")
		return ""
	}
	return Format(passages)
}

// Format renders passages in rank order, skipping empty ones.
func Format(passages []model.Passage) string {
	blocks := make([]string, 0, len(passages))
	for _, p := range passages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		source := strings.TrimSpace(p.Source)
		if source == "" {
			source = "knowledge base"
		}
		blocks = append(blocks, fmt.Sprintf("[Source: %s] %s", source, text))
	}
	return strings.Join(blocks, "\n\n")
}
