package chroma

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
)

// Collection names: every user's history goes into the private
// collection (filtered by user_id at query time); curated organisation
// wide material lives in the shared collection and is searched for
// everyone.
const (
	historyCollection = "message_history"
	sharedCollection  = "message_history_shared"
)

// SearchResult is one scored fragment of prior communication.
type SearchResult struct {
	Text       string
	SourceID   string
	Similarity float64
	Direction  string // "inbound" or "outbound"
	Timestamp  time.Time
}

// Config holds the Chroma Cloud connection settings.
type Config struct {
	APIKey       string
	Tenant       string
	Database     string
	GeminiAPIKey string
}

type ChromaClient struct {
	client    chroma.Client
	embedFunc *gemini.GeminiEmbeddingFunction
	history   chroma.Collection
	shared    chroma.Collection
}

func NewChromaClient(cfg Config) (*ChromaClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}

	// The Gemini embedding function reads its key from the environment
	if cfg.GeminiAPIKey != "" {
		os.Setenv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	var client chroma.Client
	if cfg.Database != "" && cfg.Tenant != "" {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.APIKey),
			chroma.WithDatabaseAndTenant(cfg.Database, cfg.Tenant),
		)
	} else if cfg.Tenant != "" {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.APIKey),
			chroma.WithTenant(cfg.Tenant),
		)
	} else {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.APIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	ctx := context.Background()
	history, err := client.GetOrCreateCollection(
		ctx,
		historyCollection,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	shared, err := client.GetOrCreateCollection(
		ctx,
		sharedCollection,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared collection: %w", err)
	}

	log.Printf("[Chroma] Initialized client with collections: %s, %s", historyCollection, sharedCollection)

	return &ChromaClient{
		client:    client,
		embedFunc: embedFunc,
		history:   history,
		shared:    shared,
	}, nil
}

// Upsert indexes a message (or sent reply) so future retrievals can
// ground on it. The source ID keys the document, so re-ingesting the
// same message never duplicates it.
func (c *ChromaClient) Upsert(ctx context.Context, userID, sourceID, direction, subject, body string, timestamp time.Time) error {
	text := fmt.Sprintf("Subject: %s\n\nBody: %s", subject, body)
	if len(text) > 10000 {
		// Truncate if too long (embedding models have token limits)
		text = text[:10000]
	}

	metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
		"user_id":   userID,
		"source_id": sourceID,
		"direction": direction,
		"timestamp": timestamp.UTC().Format(time.RFC3339),
		"subject":   subject,
	})
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}

	err = c.history.Upsert(
		ctx,
		chroma.WithIDs(chroma.DocumentID(sourceID)),
		chroma.WithMetadatas(metadata),
		chroma.WithTexts(text),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert message embedding: %w", err)
	}

	return nil
}

// Search queries the user's own history plus the shared collection and
// returns up to k results per collection, scored by similarity.
func (c *ChromaClient) Search(ctx context.Context, userID, query string, k int) ([]SearchResult, error) {
	var results []SearchResult

	where := chroma.EqString("user_id", userID)
	own, err := c.queryCollection(ctx, c.history, query, k, where)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	results = append(results, own...)

	shared, err := c.queryCollection(ctx, c.shared, query, k, nil)
	if err != nil {
		// The shared collection is optional; degrade to own history only.
		log.Printf("[Chroma] Shared collection query failed: %v", err)
	} else {
		results = append(results, shared...)
	}

	return results, nil
}

func (c *ChromaClient) queryCollection(ctx context.Context, collection chroma.Collection, query string, k int, where chroma.WhereFilter) ([]SearchResult, error) {
	opts := []chroma.CollectionQueryOption{
		chroma.WithQueryTexts(query),
		chroma.WithNResults(k),
		chroma.WithIncludeQuery(chroma.IncludeDocuments, chroma.IncludeMetadatas, chroma.IncludeDistances),
	}
	if where != nil {
		opts = append(opts, chroma.WithWhereQuery(where))
	}

	queryResult, err := collection.Query(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if queryResult == nil || queryResult.CountGroups() == 0 {
		return nil, nil
	}

	idGroups := queryResult.GetIDGroups()
	docGroups := queryResult.GetDocumentsGroups()
	metaGroups := queryResult.GetMetadatasGroups()
	distGroups := queryResult.GetDistancesGroups()

	if len(idGroups) == 0 || len(idGroups[0]) == 0 {
		return nil, nil
	}

	group := idGroups[0]
	results := make([]SearchResult, 0, len(group))
	for i := range group {
		result := SearchResult{SourceID: string(group[i])}

		if len(docGroups) > 0 && i < len(docGroups[0]) {
			result.Text = docGroups[0][i].ContentString()
		}
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			// Cosine distance to similarity.
			result.Similarity = 1.0 - float64(distGroups[0][i])
		}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) && metaGroups[0][i] != nil {
			meta := metaGroups[0][i]
			if direction, ok := meta.GetString("direction"); ok {
				result.Direction = direction
			}
			if raw, ok := meta.GetString("timestamp"); ok {
				if ts, err := time.Parse(time.RFC3339, raw); err == nil {
					result.Timestamp = ts
				}
			}
			if sourceID, ok := meta.GetString("source_id"); ok && sourceID != "" {
				result.SourceID = sourceID
			}
		}

		results = append(results, result)
	}

	return results, nil
}
