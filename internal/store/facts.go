package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/famulus-ai/famulus/internal/models"
)

// FactStore keeps subject/predicate/object facts in Dgraph
type FactStore struct {
	client *dgo.Dgraph
	conn   *grpc.ClientConn
}

// NewFactStore connects to the Dgraph alpha gRPC endpoint
func NewFactStore(alphaURL string) (*FactStore, error) {
	conn, err := grpc.Dial(alphaURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Dgraph: %w", err)
	}

	client := dgo.NewDgraphClient(api.NewDgraphClient(conn))

	store := &FactStore{
		client: client,
		conn:   conn,
	}

	if err := store.initSchema(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema sets up the Dgraph schema for facts
func (s *FactStore) initSchema(ctx context.Context) error {
	schema := `
		type Fact {
			fact.id: string
			fact.user: string
			fact.subject: string
			fact.predicate: string
			fact.object: string
			fact.statement: string
			fact.confidence: float
			fact.created: datetime
		}

		fact.id: string @index(exact) @upsert .
		fact.user: string @index(exact) .
		fact.subject: string @index(fulltext, term) .
		fact.predicate: string @index(term) .
		fact.object: string @index(fulltext, term) .
		fact.statement: string @index(fulltext) .
		fact.confidence: float .
		fact.created: datetime @index(hour) .
	`

	op := &api.Operation{Schema: schema}
	return s.client.Alter(ctx, op)
}

// dgraphFact is the wire representation of a fact node
type dgraphFact struct {
	UID        string    `json:"uid,omitempty"`
	ID         string    `json:"fact.id"`
	User       string    `json:"fact.user"`
	Subject    string    `json:"fact.subject"`
	Predicate  string    `json:"fact.predicate"`
	Object     string    `json:"fact.object"`
	Statement  string    `json:"fact.statement"`
	Confidence float64   `json:"fact.confidence"`
	Created    time.Time `json:"fact.created"`
	DgraphType string    `json:"dgraph.type,omitempty"`
}

// Store persists one fact
func (s *FactStore) Store(ctx context.Context, fact *models.Fact) error {
	if fact.ID == "" {
		fact.ID = "fact:" + uuid.NewString()
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now()
	}

	node := dgraphFact{
		ID:         fact.ID,
		User:       fact.UserID,
		Subject:    fact.Subject,
		Predicate:  fact.Predicate,
		Object:     fact.Object,
		Statement:  fact.Statement,
		Confidence: fact.Confidence,
		Created:    fact.CreatedAt,
		DgraphType: "Fact",
	}

	payload, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal fact: %w", err)
	}

	mutation := &api.Mutation{
		CommitNow: true,
		SetJson:   payload,
	}

	txn := s.client.NewTxn()
	defer txn.Discard(ctx)

	if _, err := txn.Mutate(ctx, mutation); err != nil {
		return fmt.Errorf("failed to store fact: %w", err)
	}
	return nil
}

// Query finds a user's facts whose statement matches the search text
func (s *FactStore) Query(ctx context.Context, userID, text string, limit int) ([]*models.Fact, error) {
	q := `query facts($user: string, $text: string, $limit: int) {
		facts(func: alloftext(fact.statement, $text), first: $limit) @filter(eq(fact.user, $user)) {
			fact.id
			fact.user
			fact.subject
			fact.predicate
			fact.object
			fact.statement
			fact.confidence
			fact.created
		}
	}`

	vars := map[string]string{
		"$user":  userID,
		"$text":  text,
		"$limit": fmt.Sprintf("%d", limit),
	}

	txn := s.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	resp, err := txn.QueryWithVars(ctx, q, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}

	var result struct {
		Facts []dgraphFact `json:"facts"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return nil, fmt.Errorf("failed to parse fact query: %w", err)
	}

	facts := make([]*models.Fact, len(result.Facts))
	for i, node := range result.Facts {
		facts[i] = &models.Fact{
			ID:         node.ID,
			UserID:     node.User,
			Subject:    node.Subject,
			Predicate:  node.Predicate,
			Object:     node.Object,
			Statement:  node.Statement,
			Confidence: node.Confidence,
			CreatedAt:  node.Created,
		}
	}
	return facts, nil
}

// Close closes the Dgraph connection
func (s *FactStore) Close() error {
	return s.conn.Close()
}
