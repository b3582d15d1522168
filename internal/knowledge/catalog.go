// Package knowledge implements the tenant knowledge catalog lookup: a
// semantic pass over precomputed embeddings when available, then keyword
// overlap scoring. The single best entry above threshold wins, with its
// answer template's placeholders already resolved against the tenant
// profile, so the rest of the pipeline never sees raw templates.
package knowledge

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/config"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/patterns"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/contracts"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/rs/zerolog/log"
)

// Hit is the best catalog entry for a query with its confidence score.
type Hit struct {
	Entry  models.KnowledgeEntry
	Answer string // placeholder-resolved answer
	Score  float64
}

// Catalog scores tenant knowledge entries against incoming text. The
// embedder is optional; without it (or without entry embeddings) only the
// keyword strategy runs.
type Catalog struct {
	embedder          contracts.EmbeddingDriver
	semanticThreshold float64
	keywordMinOverlap float64
}

// NewCatalog creates a catalog lookup with the configured thresholds.
func NewCatalog(embedder contracts.EmbeddingDriver, cfg config.CascadeConfig) *Catalog {
	return &Catalog{
		embedder:          embedder,
		semanticThreshold: cfg.SemanticThreshold,
		keywordMinOverlap: cfg.KeywordMinOverlap,
	}
}

// Lookup returns the single best entry for the text, or nil when both
// strategies miss. An empty catalog is a miss, not an error.
func (c *Catalog) Lookup(ctx context.Context, text string, entries []models.KnowledgeEntry, profile *models.TenantProfile) *Hit {
	if len(entries) == 0 {
		return nil
	}

	if hit := c.semanticLookup(ctx, text, entries); hit != nil {
		hit.Answer = Resolve(hit.Entry.Answer, profile)
		return hit
	}
	if hit := c.keywordLookup(text, entries); hit != nil {
		hit.Answer = Resolve(hit.Entry.Answer, profile)
		return hit
	}
	return nil
}

// semanticLookup embeds the query and ranks entries by cosine similarity.
// Any failure degrades to the keyword strategy.
func (c *Catalog) semanticLookup(ctx context.Context, text string, entries []models.KnowledgeEntry) *Hit {
	if c.embedder == nil {
		return nil
	}
	withVectors := false
	for i := range entries {
		if len(entries[i].Embedding) > 0 {
			withVectors = true
			break
		}
	}
	if !withVectors {
		return nil
	}

	vectors, err := c.embedder.Embed(ctx, []string{text})
	if err != nil || len(vectors) == 0 {
		log.Debug().Err(err).Msg("Semantic lookup unavailable, falling back to keywords")
		return nil
	}
	query := vectors[0]

	var candidates []Hit
	for _, e := range entries {
		if len(e.Embedding) != len(query) {
			continue
		}
		score := cosineSimilarity(query, e.Embedding)
		if score >= c.semanticThreshold {
			candidates = append(candidates, Hit{Entry: e, Score: score})
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	best := candidates[0]
	return &best
}

// keywordLookup scores each entry by the fraction of its keyword set
// present in the input, with a small priority boost. Entries below the
// minimum overlap are excluded.
func (c *Catalog) keywordLookup(text string, entries []models.KnowledgeEntry) *Hit {
	normalized := patterns.Normalize(text)

	var best *Hit
	for _, e := range entries {
		if len(e.Keywords) == 0 {
			continue
		}
		matched := 0
		for _, kw := range e.Keywords {
			if strings.Contains(normalized, strings.ToLower(kw)) {
				matched++
			}
		}
		overlap := float64(matched) / float64(len(e.Keywords))
		if overlap < c.keywordMinOverlap {
			continue
		}
		score := overlap * (1 + float64(e.Priority)*0.1)
		if score > 1 {
			score = 1
		}
		if best == nil || score > best.Score {
			best = &Hit{Entry: e, Score: score}
		}
	}
	return best
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
