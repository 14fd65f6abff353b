// Package config loads and validates the declarative pipeline configuration:
// entity definitions, field mappings, relationships, processing order, and
// output settings. The loaded Config is immutable by convention and injected
// into the orchestrator and stores; there is no process-wide singleton.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"spendgraph/pkg/domain"
)

// EntityProcessing controls whether and when an entity type is processed.
type EntityProcessing struct {
	Enabled bool `yaml:"enabled"`
	// Order positions the entity in the per-record processing sequence.
	// Orders must be distinct across enabled entities, and a relationship
	// target must never order after the type referencing it.
	Order int `yaml:"order"`
}

// Entity configures one extracted entity type.
type Entity struct {
	// Type is filled from the entities map key during load.
	Type          domain.EntityType              `yaml:"-"`
	KeyFields     []string                       `yaml:"key_fields"`
	Processing    EntityProcessing               `yaml:"processing"`
	FieldMappings map[string]domain.FieldMapping `yaml:"field_mappings"`
	Relationships []domain.Relationship          `yaml:"relationships"`
}

// Input configures CSV reading.
type Input struct {
	// Encoding names the expected input encoding. utf-8-sig (UTF-8 with an
	// optional BOM, which is stripped) is the default and the only
	// supported value.
	Encoding  string `yaml:"encoding"`
	BatchSize int    `yaml:"batch_size"`
}

// Output configures artifact layout and JSON rendering.
type Output struct {
	Directory           string `yaml:"directory"`
	EntitiesSubfolder   string `yaml:"entities_subfolder"`
	TransactionBaseName string `yaml:"transaction_base_name"`
	RecordsPerChunk     int    `yaml:"records_per_chunk"`
	MaxChunkSizeMB      int    `yaml:"max_chunk_size_mb"`
	CreateIndex         bool   `yaml:"create_index"`
	Indent              int    `yaml:"indent"`
	EnsureASCII         bool   `yaml:"ensure_ascii"`
}

// Processing configures run-level behavior.
type Processing struct {
	// EntitySaveFrequency is the record interval between checkpoint saves.
	// Zero disables periodic checkpointing; the final save always runs.
	EntitySaveFrequency int `yaml:"entity_save_frequency"`
	// TransactionEntity names the entity type whose resolved fields form
	// the per-record chunk output. Defaults to "transaction".
	TransactionEntity domain.EntityType `yaml:"transaction_entity"`
}

// Checkpoint selects an optional durable mirror for entity-store snapshots.
type Checkpoint struct {
	// Driver is one of "", "sqlite", "postgres". Empty disables mirroring.
	Driver string `yaml:"driver"`
	// Path is the SQLite database file when driver=sqlite.
	Path string `yaml:"path"`
	// DSN is the Postgres connection string when driver=postgres.
	DSN string `yaml:"dsn"`
}

// Blob selects the artifact storage backend.
type Blob struct {
	// Driver is one of "fs" (default), "memory", "s3".
	Driver string `yaml:"driver"`
	// S3 settings apply when driver=s3.
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Config is the parsed pipeline configuration.
type Config struct {
	Entities   map[domain.EntityType]*Entity `yaml:"entities"`
	Input      Input                         `yaml:"input"`
	Output     Output                        `yaml:"output"`
	Processing Processing                    `yaml:"processing"`
	Checkpoint Checkpoint                    `yaml:"checkpoint"`
	Blob       Blob                          `yaml:"blob"`
}

// Load reads, decodes, defaults, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates configuration bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for typ, entity := range c.Entities {
		entity.Type = typ
		for i := range entity.Relationships {
			if entity.Relationships[i].Source == "" {
				entity.Relationships[i].Source = typ
			}
		}
	}
	if c.Input.Encoding == "" {
		c.Input.Encoding = "utf-8-sig"
	}
	if c.Input.BatchSize <= 0 {
		c.Input.BatchSize = 1000
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "output"
	}
	if c.Output.EntitiesSubfolder == "" {
		c.Output.EntitiesSubfolder = "entities"
	}
	if c.Output.TransactionBaseName == "" {
		c.Output.TransactionBaseName = "transactions"
	}
	if c.Output.RecordsPerChunk <= 0 {
		c.Output.RecordsPerChunk = 10000
	}
	if c.Output.MaxChunkSizeMB <= 0 {
		c.Output.MaxChunkSizeMB = 50
	}
	if c.Processing.TransactionEntity == "" {
		c.Processing.TransactionEntity = domain.EntityTransaction
	}
	if c.Blob.Driver == "" {
		c.Blob.Driver = "fs"
	}
}

// EnabledEntities returns the enabled entity configurations sorted by
// ascending processing order.
func (c *Config) EnabledEntities() []*Entity {
	out := make([]*Entity, 0, len(c.Entities))
	for _, entity := range c.Entities {
		if entity.Processing.Enabled {
			out = append(out, entity)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Processing.Order < out[j].Processing.Order
	})
	return out
}

// Entity returns the configuration for the named type.
func (c *Config) Entity(typ domain.EntityType) (*Entity, bool) {
	entity, ok := c.Entities[typ]
	return entity, ok
}
