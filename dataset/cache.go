package dataset

import (
	"github.com/arloliu/hic/block"
	"github.com/arloliu/hic/internal/syncmap"
)

// BlockCache stores decoded blocks by region id. Implementations must be safe
// for concurrent use. Empty blocks are cached too; they record that a block
// was read and holds nothing.
type BlockCache interface {
	Get(regionID string) (*block.Block, bool)
	Put(regionID string, b *block.Block)
}

// MapBlockCache is an unbounded concurrent BlockCache.
type MapBlockCache struct {
	m *syncmap.Map[*block.Block]
}

// NewMapBlockCache creates an empty MapBlockCache.
func NewMapBlockCache() *MapBlockCache {
	return &MapBlockCache{m: syncmap.New[*block.Block]()}
}

// Get implements BlockCache.
func (c *MapBlockCache) Get(regionID string) (*block.Block, bool) {
	return c.m.Load(regionID)
}

// Put implements BlockCache. The first stored block for a region wins.
func (c *MapBlockCache) Put(regionID string, b *block.Block) {
	c.m.LoadOrStore(regionID, b)
}

// Len returns the number of cached blocks.
func (c *MapBlockCache) Len() int { return c.m.Len() }

// Clear drops every cached block.
func (c *MapBlockCache) Clear() { c.m.Clear() }
