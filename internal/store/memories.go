package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/famulus-ai/famulus/internal/models"
)

// MemoryConfig holds the memory store configuration
type MemoryConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
	Dimensions    int
	RetentionDays int
}

// DefaultMemoryConfig returns the default memory store configuration
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		RedisURL:      "localhost:6379",
		Dimensions:    384,
		RetentionDays: 365,
	}
}

// MemoryStore keeps long-term memories in Redis with a FLAT vector index
// for similarity search.
type MemoryStore struct {
	client    *redis.Client
	embedder  *Embedder
	indexName string
	ttl       time.Duration
}

// NewMemoryStore connects to Redis and ensures the vector index exists
func NewMemoryStore(config *MemoryConfig) (*MemoryStore, error) {
	if config == nil {
		config = DefaultMemoryConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisURL,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &MemoryStore{
		client:    client,
		embedder:  NewEmbedder(config.Dimensions),
		indexName: "memory:idx",
		ttl:       time.Duration(config.RetentionDays) * 24 * time.Hour,
	}

	if err := store.createIndex(ctx, config.Dimensions); err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	return store, nil
}

// createIndex creates the Redis vector search index if absent
func (s *MemoryStore) createIndex(ctx context.Context, dimensions int) error {
	_, err := s.client.Do(ctx, "FT.INFO", s.indexName).Result()
	if err == nil {
		return nil // Index already exists
	}

	args := []interface{}{
		"FT.CREATE", s.indexName,
		"ON", "HASH",
		"PREFIX", "1", "memory:item:",
		"SCHEMA",
		"content", "TEXT",
		"user_id", "TAG",
		"embedding", "VECTOR", "FLAT", "6",
		"DIM", dimensions,
		"DISTANCE_METRIC", "COSINE",
		"TYPE", "FLOAT32",
		"created_at", "NUMERIC", "SORTABLE",
	}

	if err := s.client.Do(ctx, args...).Err(); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Store saves a memory with its embedding
func (s *MemoryStore) Store(ctx context.Context, memory *models.Memory) error {
	if memory.ID == "" {
		memory.ID = "memory:item:" + uuid.NewString()
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}
	if len(memory.Embedding) == 0 {
		memory.Embedding = s.embedder.Embed(memory.Content)
	}

	embeddingBytes := serializeEmbedding(memory.Embedding)

	tagsJSON, err := json.Marshal(memory.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, memory.ID, map[string]interface{}{
		"content":    memory.Content,
		"user_id":    memory.UserID,
		"embedding":  embeddingBytes,
		"tags":       tagsJSON,
		"created_at": memory.CreatedAt.Unix(),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, memory.ID, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	return nil
}

// Search performs similarity search over stored memories
func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]*models.Memory, error) {
	embedding := s.embedder.Embed(query)
	embeddingBytes := serializeEmbedding(embedding)

	args := []interface{}{
		"FT.SEARCH", s.indexName,
		fmt.Sprintf("*=>[KNN %d @embedding $query_vec]", k),
		"PARAMS", "2", "query_vec", embeddingBytes,
		"DIALECT", "2",
		"RETURN", "5", "content", "user_id", "tags", "created_at", "__embedding_score",
		"LIMIT", "0", k,
	}

	result, err := s.client.Do(ctx, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	memories, err := parseSearchResults(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	return memories, nil
}

// parseSearchResults parses Redis FT.SEARCH output into Memory values.
// Redis returns: [total, id1, [field, value, ...], id2, [...], ...] or the
// nested [id, [fields]] form depending on server version; both are handled.
func parseSearchResults(result interface{}) ([]*models.Memory, error) {
	results, ok := result.([]interface{})
	if !ok || len(results) < 2 {
		return []*models.Memory{}, nil
	}

	var memories []*models.Memory
	i := 1
	for i < len(results) {
		var id string
		var fields []interface{}

		switch v := results[i].(type) {
		case []interface{}:
			// Nested [id, [fields]] document
			if len(v) >= 2 {
				id = fmt.Sprint(v[0])
				fields, _ = v[1].([]interface{})
			}
			i++
		default:
			id = fmt.Sprint(v)
			if i+1 < len(results) {
				fields, _ = results[i+1].([]interface{})
			}
			i += 2
		}

		if id == "" {
			continue
		}

		memory := &models.Memory{ID: id}
		for j := 0; j+1 < len(fields); j += 2 {
			field := fmt.Sprint(fields[j])
			value := fmt.Sprint(fields[j+1])

			switch field {
			case "content":
				memory.Content = value
			case "user_id":
				memory.UserID = value
			case "tags":
				json.Unmarshal([]byte(value), &memory.Tags)
			case "__embedding_score":
				var dist float64
				fmt.Sscanf(value, "%f", &dist)
				// Cosine distance; lower is better. Convert to a score.
				memory.Score = 1 - dist
			case "created_at":
				var ts int64
				fmt.Sscanf(value, "%d", &ts)
				memory.CreatedAt = time.Unix(ts, 0)
			}
		}
		memories = append(memories, memory)
	}

	return memories, nil
}

// Delete removes a memory
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, id).Err()
}

// Count returns the number of stored memories
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	iter := s.client.Scan(ctx, 0, "memory:item:*", 0).Iterator()
	count := int64(0)
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// Close closes the Redis connection
func (s *MemoryStore) Close() error {
	return s.client.Close()
}

// serializeEmbedding converts a float32 slice to the little-endian byte
// layout Redis expects for vector fields.
func serializeEmbedding(embedding []float32) []byte {
	out := make([]byte, len(embedding)*4)
	for i, val := range embedding {
		bits := math.Float32bits(val)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

// Embedder produces deterministic hash-based embeddings. It stands in for
// a real sentence-embedding model so the memory store works without an
// external embedding service.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates an embedder with the given dimensionality
func NewEmbedder(dimensions int) *Embedder {
	return &Embedder{dimensions: dimensions}
}

// Embed generates a unit-length embedding for text
func (e *Embedder) Embed(text string) []float32 {
	text = strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(text)

	embedding := make([]float32, e.dimensions)

	for i, word := range words {
		hash := wordHash(word)
		position := float32(i) / float32(len(words))

		for j := 0; j < 4; j++ {
			idx := (hash + uint32(j)*2654435761) % uint32(e.dimensions)
			weight := 1.0 / (1.0 + position) // Earlier words weigh more
			embedding[idx] += weight
		}
	}

	var magnitude float32
	for _, val := range embedding {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	if magnitude > 0 {
		for i := range embedding {
			embedding[i] /= magnitude
		}
	}

	return embedding
}

// Dimensions returns the embedding dimensionality
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func wordHash(s string) uint32 {
	hash := uint32(0)
	for _, c := range s {
		hash = hash*31 + uint32(c)
	}
	return hash
}
