package dataset

import (
	"errors"

	"github.com/arloliu/hic/blobstore"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/index"
	"github.com/arloliu/hic/internal/options"
	"github.com/arloliu/hic/internal/resource"
	"github.com/arloliu/hic/materialize"
)

// DefaultChannels is the number of I/O channels opened per file.
const DefaultChannels = 2

// Config holds reader settings. Build it with Option values.
type Config struct {
	Channels          int
	Compression       format.CompressionType
	Logger            *Logger
	Metrics           Metrics
	BlockCache        BlockCache
	IndexPolicy       index.Policy
	ExpectedThreshold int32
	Resources         *resource.Controller
	IORateLimit       int64
	Store             blobstore.Store
	Mmap              bool
	SaveAllIntoRAM    bool
	ChunkSize         int
}

// Option configures a Reader.
type Option = options.Option[*Config]

// DefaultConfig returns the settings used when no option is given.
func DefaultConfig() *Config {
	return &Config{
		Channels:          DefaultChannels,
		Compression:       format.CompressionZlib,
		IndexPolicy:       index.DefaultPolicy(),
		ExpectedThreshold: format.DefaultExpectedThreshold,
		ChunkSize:         materialize.DefaultChunkSize,
	}
}

// WithChannels sets the number of independent (stream, decompressor) pairs.
func WithChannels(n int) Option {
	return options.Named("WithChannels", func(c *Config) error {
		if n <= 0 {
			return errors.New("channel count must be positive")
		}
		c.Channels = n

		return nil
	})
}

// WithCompression selects the block codec. Files written by the standard
// tools use zlib.
func WithCompression(t format.CompressionType) Option {
	return options.Named("WithCompression", func(c *Config) error {
		switch t {
		case format.CompressionNone, format.CompressionZlib, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4:
			c.Compression = t
			return nil
		default:
			return errors.New("unsupported compression type")
		}
	})
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *Logger) Option {
	return options.NoError(func(c *Config) {
		c.Logger = l
	})
}

// WithMetrics injects a metrics sink.
func WithMetrics(m Metrics) Option {
	return options.NoError(func(c *Config) {
		c.Metrics = m
	})
}

// WithBlockCache replaces the default unbounded block cache, for example with
// an LRU owned by the caller.
func WithBlockCache(cache BlockCache) Option {
	return options.NoError(func(c *Config) {
		c.BlockCache = cache
	})
}

// WithDynamicBlockIndex indexes zoom levels with a bin size below maxBinSize
// and at least minBlocks blocks on demand. maxBinSize 0 disables it.
func WithDynamicBlockIndex(maxBinSize, minBlocks int32) Option {
	return options.Named("WithDynamicBlockIndex", func(c *Config) error {
		if maxBinSize < 0 || minBlocks < 0 {
			return errors.New("thresholds must not be negative")
		}
		c.IndexPolicy = index.Policy{Dynamic: maxBinSize > 0, MaxBinSize: maxBinSize, MinBlocks: minBlocks}

		return nil
	})
}

// WithExpectedThreshold sets the bin size below which expected values are
// loaded on demand.
func WithExpectedThreshold(binSize int32) Option {
	return options.Named("WithExpectedThreshold", func(c *Config) error {
		if binSize <= 0 {
			return errors.New("threshold must be positive")
		}
		c.ExpectedThreshold = binSize

		return nil
	})
}

// WithMemoryController shares a memory and I/O budget between readers.
func WithMemoryController(rc *resource.Controller) Option {
	return options.NoError(func(c *Config) {
		c.Resources = rc
	})
}

// WithIORateLimit caps read throughput when no controller is shared.
func WithIORateLimit(bytesPerSec int64) Option {
	return options.Named("WithIORateLimit", func(c *Config) error {
		if bytesPerSec < 0 {
			return errors.New("rate must not be negative")
		}
		c.IORateLimit = bytesPerSec

		return nil
	})
}

// WithStore reads the file from store instead of resolving the path.
func WithStore(store blobstore.Store) Option {
	return options.NoError(func(c *Config) {
		c.Store = store
	})
}

// WithMmap maps local files instead of reading them with pread.
func WithMmap(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.Mmap = enabled
	})
}

// WithSaveAllIntoRAM lets whole-zoom iteration load records into memory when
// they fit.
func WithSaveAllIntoRAM(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.SaveAllIntoRAM = enabled
	})
}

// WithChunkSize bounds the records per in-memory chunk.
func WithChunkSize(n int) Option {
	return options.Named("WithChunkSize", func(c *Config) error {
		if n <= 0 {
			return errors.New("chunk size must be positive")
		}
		c.ChunkSize = n

		return nil
	})
}

func (c *Config) finish() {
	if c.Logger == nil {
		c.Logger = NoopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = NoopMetrics{}
	}
	if c.BlockCache == nil {
		c.BlockCache = NewMapBlockCache()
	}
	if c.Resources == nil && c.IORateLimit > 0 {
		c.Resources = resource.NewController(resource.Config{IOLimitBytesPerSec: c.IORateLimit})
	}
}
