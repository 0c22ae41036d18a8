package ne

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/nedump/pkg/logflags"
)

const nameCacheSize = 512

// nameCache memoizes length-prefixed strings by absolute file offset.
// Module names, imported names and resource names are all referenced by
// offset and the same offset is often referenced many times (every
// relocation against the same module, every entry of a named type).
type nameCache struct {
	cache *lru.Cache
}

func newNameCache(log logflags.Logger) *nameCache {
	cache, err := lru.New(nameCacheSize)
	if err != nil {
		// only possible with a non-positive size
		log.Errorf("could not create name cache: %v", err)
		return &nameCache{}
	}
	return &nameCache{cache: cache}
}

// pstring returns the length-prefixed string at the absolute offset off.
func (nc *nameCache) pstring(c *cursor, off int64) string {
	if nc.cache != nil {
		if v, ok := nc.cache.Get(off); ok {
			return v.(string)
		}
	}
	c.seek(off)
	s := c.pstring()
	if nc.cache != nil && c.err == nil {
		nc.cache.Add(off, s)
	}
	return s
}
