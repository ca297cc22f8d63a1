package interpreter

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

type cacheKey struct {
	utterance       string
	disableFallback bool
}

// cacheEntry stores a parse outcome. A nil ctx records text that did not parse.
type cacheEntry struct {
	ctx *routine.IntentContext
}

// Cached remembers recent parse outcomes of another Parser.
// Transport errors are never cached.
type Cached struct {
	next  Parser
	cache *expirable.LRU[cacheKey, cacheEntry]
}

// NewCached wraps next with an LRU of size entries that expire after ttl.
func NewCached(next Parser, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[cacheKey, cacheEntry](size, nil, ttl),
	}
}

// Parse implements Parser.
func (c *Cached) Parse(ctx context.Context, req protocol.ParseUtterance) (*routine.IntentContext, error) {
	key := cacheKey{utterance: strings.TrimSpace(req.Utterance), disableFallback: req.DisableFallback}
	if e, ok := c.cache.Get(key); ok {
		return clone(e.ctx), nil
	}

	ic, err := c.next.Parse(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cacheEntry{ctx: clone(ic)})
	return ic, nil
}

// Len returns the number of cached outcomes.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func clone(ic *routine.IntentContext) *routine.IntentContext {
	if ic == nil {
		return nil
	}
	out := ic.Clone()
	return &out
}
