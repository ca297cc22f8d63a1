package ops

import (
	"sort"
	"sync"

	"github.com/hpungsan/routines/internal/routine"
)

// ChangeKind says what happened to the cache.
type ChangeKind string

const (
	ChangePut    ChangeKind = "put"
	ChangeRemove ChangeKind = "remove"
	ChangeReset  ChangeKind = "reset"
)

// Change is delivered to subscribers after the cache is mutated.
// Name is empty for ChangeReset.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Name string     `json:"name,omitempty"`
}

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 16

// Cache is the local mirror of the registry used for rendering.
// Reads are safe from any goroutine. Only the Synchronizer mutates it, and only
// after the registry acknowledged the write.
type Cache struct {
	mu       sync.RWMutex
	routines map[string]routine.Definition

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan Change
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		routines: map[string]routine.Definition{},
		subs:     map[int]chan Change{},
	}
}

// Snapshot returns a deep copy of the cache contents.
func (c *Cache) Snapshot() map[string]routine.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]routine.Definition, len(c.routines))
	for name, def := range c.routines {
		out[name] = def.Clone()
	}
	return out
}

// Get returns a copy of the named routine.
func (c *Cache) Get(name string) (routine.Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.routines[name]
	if !ok {
		return routine.Definition{}, false
	}
	return def.Clone(), true
}

// Names returns the cached routine names in sorted order.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.routines))
	for name := range c.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of cached routines.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routines)
}

// Subscribe registers for change notifications. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
// A subscriber that falls behind misses events instead of blocking writers.
func (c *Cache) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Cache) put(def routine.Definition) {
	c.mu.Lock()
	c.routines[def.Nickname] = def.Clone()
	c.mu.Unlock()

	c.notify(Change{Kind: ChangePut, Name: def.Nickname})
}

func (c *Cache) remove(name string) {
	c.mu.Lock()
	_, existed := c.routines[name]
	delete(c.routines, name)
	c.mu.Unlock()

	if existed {
		c.notify(Change{Kind: ChangeRemove, Name: name})
	}
}

func (c *Cache) replace(all map[string]routine.Definition) {
	next := make(map[string]routine.Definition, len(all))
	for name, def := range all {
		next[name] = def.Clone()
	}

	c.mu.Lock()
	c.routines = next
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeReset})
}

func (c *Cache) notify(ch Change) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, sub := range c.subs {
		select {
		case sub <- ch:
		default:
		}
	}
}
