package usecase

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"mailpilot-backend/internal/response/domain"
	"mailpilot-backend/pkg/chroma"
)

// SemanticIndex is the retrieval collaborator. Failures are tolerated:
// retrieval degrades to an empty context, never to a pipeline error.
type SemanticIndex interface {
	Search(ctx context.Context, userID, query string, k int) ([]chroma.SearchResult, error)
	Upsert(ctx context.Context, userID, sourceID, direction, subject, body string, timestamp time.Time) error
}

// Retrieval tuning constants.
const (
	minSimilarity    = 0.3
	outboundBoost    = 0.1
	recencyBoost     = 0.05
	recencyWindow    = 30 * 24 * time.Hour
	minTruncateChars = 100
	queryBodyWords   = 50
)

// RetrievedContext is the packed, budgeted context for one message.
type RetrievedContext struct {
	Fragments     []chroma.SearchResult
	TotalChars    int
	AvgSimilarity float64
}

// Sources returns the provenance IDs of the packed fragments, in order.
func (c *RetrievedContext) Sources() []string {
	out := make([]string, 0, len(c.Fragments))
	for _, f := range c.Fragments {
		out = append(out, f.SourceID)
	}
	return out
}

// Text joins the packed fragments into the prompt context block.
func (c *RetrievedContext) Text() string {
	if len(c.Fragments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c.Fragments))
	for _, f := range c.Fragments {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// ContextRetriever queries the semantic index, ranks the hits and packs
// them into a character budget.
type ContextRetriever struct {
	index   SemanticIndex
	budget  int
	topK    int
	timeout time.Duration
}

func NewContextRetriever(index SemanticIndex, budget, topK int, timeout time.Duration) *ContextRetriever {
	if budget <= 0 {
		budget = 2000
	}
	if topK <= 0 {
		topK = 10
	}
	return &ContextRetriever{index: index, budget: budget, topK: topK, timeout: timeout}
}

// Retrieve never returns an error: an unreachable or slow index yields
// an empty context and the pipeline carries on with weaker signals.
func (r *ContextRetriever) Retrieve(ctx context.Context, msg *domain.IncomingMessage) *RetrievedContext {
	empty := &RetrievedContext{}
	if r.index == nil {
		return empty
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	query := buildQuery(msg)
	hits, err := r.index.Search(ctx, msg.UserID, query, r.topK)
	if err != nil {
		log.Printf("[Retriever] Semantic index unavailable, using empty context: %v", err)
		return empty
	}

	now := time.Now()
	filtered := make([]chroma.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < minSimilarity {
			continue
		}
		if h.SourceID == msg.ID {
			continue
		}
		filtered = append(filtered, h)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		bi, bj := boostedScore(filtered[i], now), boostedScore(filtered[j], now)
		if bi != bj {
			return bi > bj
		}
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	packed := &RetrievedContext{}
	var simSum float64
	for _, f := range filtered {
		remaining := r.budget - packed.TotalChars
		if remaining <= 0 {
			break
		}
		if len(f.Text) > remaining {
			if remaining < minTruncateChars {
				break
			}
			f.Text = f.Text[:remaining]
		}
		packed.Fragments = append(packed.Fragments, f)
		packed.TotalChars += len(f.Text)
		simSum += f.Similarity
	}
	if len(packed.Fragments) > 0 {
		packed.AvgSimilarity = simSum / float64(len(packed.Fragments))
	}
	return packed
}

func boostedScore(f chroma.SearchResult, now time.Time) float64 {
	score := f.Similarity
	if f.Direction == "outbound" {
		score += outboundBoost
	}
	if !f.Timestamp.IsZero() && now.Sub(f.Timestamp) < recencyWindow {
		score += recencyBoost
	}
	return score
}

// buildQuery forms the index query from the subject and the opening of
// the body.
func buildQuery(msg *domain.IncomingMessage) string {
	words := strings.Fields(msg.Body)
	if len(words) > queryBodyWords {
		words = words[:queryBodyWords]
	}
	return strings.TrimSpace(msg.Subject + " " + strings.Join(words, " "))
}
