package plugin

import (
	"errors"
	"log/slog"

	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/internal/options"
	"github.com/arloliu/espcodec/schema"
	"github.com/arloliu/espcodec/stream"
)

// SchemaSet resolves the schema of a record type. A nil schema keeps the
// record opaque. records.Registry implements it.
type SchemaSet interface {
	Schema(sig format.Signature) *schema.Schema
	Header() *schema.Schema
}

// Config holds the settings of a plugin load or merge.
type Config struct {
	logger      *slog.Logger
	strings     stream.StringLookup
	schemas     SchemaSet
	skipCorrupt bool
	eager       bool
}

// Option configures a Config.
type Option = options.Option[*Config]

func newConfig() *Config {
	return &Config{logger: slog.New(slog.DiscardHandler)}
}

// WithLogger sets the logger for skipped records and master changes.
// Logging is discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return options.New(func(c *Config) error {
		if logger == nil {
			return errors.New("plugin: nil logger")
		}
		c.logger = logger

		return nil
	})
}

// WithStringTable sets the string table localized strings are resolved
// against. Without one, localized strings of a localized plugin read as
// stream.LookupFailed but keep their ids.
func WithStringTable(table stream.StringLookup) Option {
	return options.NoError(func(c *Config) {
		c.strings = table
	})
}

// WithSchemas replaces the game's built-in record schemas.
func WithSchemas(schemas SchemaSet) Option {
	return options.NoError(func(c *Config) {
		c.schemas = schemas
	})
}

// WithSkipCorrupt keeps loading past records and groups of unknown type and
// records whose body does not match their schema. Such records are kept
// opaque. Truncated data and size mismatches still abort the load.
func WithSkipCorrupt() Option {
	return options.NoError(func(c *Config) {
		c.skipCorrupt = true
	})
}

// WithEagerDecode decodes every record with a schema while loading instead
// of on first access.
func WithEagerDecode() Option {
	return options.NoError(func(c *Config) {
		c.eager = true
	})
}
