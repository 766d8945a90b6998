// Package mongo provides a MongoDB-backed chunk store.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	docqaerrors "github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/rag/document"
)

// Store implements docstore.Store using MongoDB.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Config holds MongoDB connection configuration.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// DefaultConfig returns the default MongoDB configuration.
func DefaultConfig() *Config {
	return &Config{
		URI:        "mongodb://localhost:27017",
		Database:   "docqa",
		Collection: "chunks",
	}
}

type mongoChunk struct {
	ID         string         `bson:"_id"`
	DocumentID string         `bson:"document_id"`
	Content    string         `bson:"content"`
	SourceID   string         `bson:"source_id"`
	Ordinal    int            `bson:"ordinal"`
	Metadata   map[string]any `bson:"metadata,omitempty"`
	CreatedAt  time.Time      `bson:"created_at"`
}

// New connects to MongoDB and prepares the chunk collection.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}
	if err := s.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "ordinal", Value: 1}},
	}
	_, err := s.collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// AddChunks persists a batch of chunks.
func (s *Store) AddChunks(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]any, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, mongoChunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Content:    c.Content,
			SourceID:   c.SourceID,
			Ordinal:    c.Ordinal,
			Metadata:   c.Metadata,
			CreatedAt:  now,
		})
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// ChunksBySource returns all chunks ingested from one source, in order.
func (s *Store) ChunksBySource(ctx context.Context, sourceID string) ([]document.Chunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ordinal", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"source_id": sourceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find chunks: %w", err)
	}
	chunks, err := s.decodeAll(ctx, cursor)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, docqaerrors.ErrNotFound
	}
	return chunks, nil
}

// All returns every stored chunk in insertion order.
func (s *Store) All(ctx context.Context) ([]document.Chunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "ordinal", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find chunks: %w", err)
	}
	return s.decodeAll(ctx, cursor)
}

// Count reports the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (s *Store) decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]document.Chunk, error) {
	defer cursor.Close(ctx)
	var chunks []document.Chunk
	for cursor.Next(ctx) {
		var mc mongoChunk
		if err := cursor.Decode(&mc); err != nil {
			return nil, fmt.Errorf("decode chunk: %w", err)
		}
		chunks = append(chunks, document.Chunk{
			ID:         mc.ID,
			DocumentID: mc.DocumentID,
			Content:    mc.Content,
			SourceID:   mc.SourceID,
			Ordinal:    mc.Ordinal,
			Metadata:   mc.Metadata,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
