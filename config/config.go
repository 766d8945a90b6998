// Package config loads and validates the service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	WebSearch WebSearchConfig `yaml:"websearch"`
	Session   SessionConfig   `yaml:"session"`
	DocStore  DocStoreConfig  `yaml:"docstore"`
	Vector    VectorConfig    `yaml:"vector"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type ProviderConfig struct {
	Name   string `yaml:"name"` // openai, claude, or gemini
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	APIKey    string `yaml:"api_key"`
}

type RetrievalConfig struct {
	SearchTopK int `yaml:"search_top_k"`
	KeepTopN   int `yaml:"keep_top_n"`
}

type RerankConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type WebSearchConfig struct {
	APIKey string `yaml:"api_key"`
}

type SessionConfig struct {
	Backend string      `yaml:"backend"` // memory or redis
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type DocStoreConfig struct {
	Backend string      `yaml:"backend"` // memory or mongo
	Mongo   MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type VectorConfig struct {
	Backend  string         `yaml:"backend"` // memory or pgvector
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Table    string `yaml:"table"`
}

type IngestConfig struct {
	Paths     []string `yaml:"paths"`
	Chunker   string   `yaml:"chunker"` // simple or token
	ChunkSize int      `yaml:"chunk_size"`
	Overlap   int      `yaml:"overlap"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":4000"},
		Provider:  ProviderConfig{Name: "openai"},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small", Dimension: 1536},
		Retrieval: RetrievalConfig{SearchTopK: 3, KeepTopN: 5},
		Session:   SessionConfig{Backend: "memory", Redis: RedisConfig{Addr: "localhost:6379"}},
		DocStore:  DocStoreConfig{Backend: "memory", Mongo: MongoConfig{URI: "mongodb://localhost:27017", Database: "docqa", Collection: "chunks"}},
		Vector: VectorConfig{Backend: "memory", Postgres: PostgresConfig{
			Host: "127.0.0.1", Port: 5432, User: "postgres", DBName: "docqa", SSLMode: "disable", Table: "chunks",
		}},
		Ingest:    IngestConfig{Chunker: "token", ChunkSize: 800, Overlap: 200},
	}
}

// Load reads a YAML file over the defaults and validates the result. API
// keys left empty fall back to their environment variables at wiring time.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural mistakes.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("server.addr", c.Server.Addr)
	v.ValidateOneOf("provider.name", c.Provider.Name, "openai", "claude", "gemini")
	v.RequireNonEmpty("embedding.model", c.Embedding.Model)
	v.RequirePositive("embedding.dimension", c.Embedding.Dimension)
	v.RequirePositive("retrieval.search_top_k", c.Retrieval.SearchTopK)
	v.RequirePositive("retrieval.keep_top_n", c.Retrieval.KeepTopN)
	v.ValidateOneOf("session.backend", c.Session.Backend, "memory", "redis")
	v.ValidateOneOf("docstore.backend", c.DocStore.Backend, "memory", "mongo")
	v.ValidateOneOf("vector.backend", c.Vector.Backend, "memory", "pgvector")
	v.ValidateOneOf("ingest.chunker", c.Ingest.Chunker, "simple", "token")
	v.RequirePositive("ingest.chunk_size", c.Ingest.ChunkSize)
	if c.Ingest.Overlap < 0 || c.Ingest.Overlap >= c.Ingest.ChunkSize {
		v.ValidateRange("ingest.overlap", c.Ingest.Overlap, 0, c.Ingest.ChunkSize-1)
	}
	if c.Vector.Backend == "pgvector" {
		v.RequireNonEmpty("vector.postgres.host", c.Vector.Postgres.Host)
		v.ValidatePort("vector.postgres.port", c.Vector.Postgres.Port)
		v.RequireNonEmpty("vector.postgres.dbname", c.Vector.Postgres.DBName)
	}
	return v.Error()
}
