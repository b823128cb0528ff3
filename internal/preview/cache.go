package preview

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/ptui/internal/logging"
	"github.com/llehouerou/ptui/internal/metrics"
	"github.com/llehouerou/ptui/internal/render"
)

// ErrOverBudget is returned when a single entry is larger than the whole
// cache budget. Such entries are delivered but never cached.
var ErrOverBudget = errors.New("entry exceeds cache budget")

// errNoRoom is returned when every evictable entry is pinned.
var errNoRoom = errors.New("cache budget held by pinned entries")

// Entry is a completed preview. Its fields are never modified after the
// entry is created.
type Entry struct {
	Payload []byte

	DecodedWidth, DecodedHeight int
	Decoder                     string
	Backend                     render.Backend
	Requested                   render.Backend
	// Cols and Rows are the cells the payload occupies.
	Cols, Rows int

	CreatedAt time.Time
	SizeBytes int64
	// Placeholder marks a failure artifact. Placeholders are never cached.
	Placeholder bool
}

type cacheItem struct {
	key          Key
	entry        *Entry
	lastAccessed time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int
	Bytes     int64
	Budget    int64
	Hits      uint64
	Misses    uint64
	Joins     uint64
	Evictions uint64
}

// Cache maps keys to completed entries within a byte budget, evicting the
// least recently accessed entries first. It also tracks the in-flight job
// for each key so a key is produced at most once at a time.
//
// The mutex guards metadata only; entry payloads are read without locking.
type Cache struct {
	mu       sync.Mutex
	budget   int64
	size     int64
	ll       *list.List // front is most recently accessed
	items    map[Key]*list.Element
	inflight map[Key]*Job
	pins     map[Key]int
	now      func() time.Time

	hits, misses, joins, evictions uint64
}

// NewCache creates a cache holding at most budget bytes of payload.
func NewCache(budget int64) *Cache {
	return &Cache{
		budget:   budget,
		ll:       list.New(),
		items:    make(map[Key]*list.Element),
		inflight: make(map[Key]*Job),
		pins:     make(map[Key]int),
		now:      time.Now,
	}
}

// Get returns the entry for key and marks it as recently accessed.
func (c *Cache) Get(key Key) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key Key) (*Entry, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	it := el.Value.(*cacheItem)
	it.lastAccessed = c.now()
	c.ll.MoveToFront(el)
	return it.entry, true
}

// Contains reports whether key is cached without touching it.
func (c *Cache) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// acquire returns the cached entry for key, or the job producing it. When
// neither exists, newJob is called and the job is registered as in flight;
// started reports that the caller must run it. A hit is pinned when pin is
// set.
func (c *Cache) acquire(key Key, pin bool, newJob func() *Job) (entry *Entry, job *Job, started bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.getLocked(key); ok {
		c.hits++
		metrics.CacheHits.Inc()
		if pin {
			c.pins[key]++
		}
		return e, nil, false
	}
	if j, ok := c.inflight[key]; ok {
		c.joins++
		metrics.CacheJoins.Inc()
		return nil, j, false
	}

	c.misses++
	metrics.CacheMisses.Inc()
	j := newJob()
	c.inflight[key] = j
	return nil, j, true
}

// complete publishes a job's result: the entry is cached (unless it is a
// placeholder), pinned pins times, and the job is released from the
// in-flight table before its Done channel is closed.
func (c *Cache) complete(job *Job, entry *Entry, jobErr error, pins int) {
	c.mu.Lock()
	if c.inflight[job.key] == job {
		delete(c.inflight, job.key)
	}
	if entry != nil && !entry.Placeholder {
		if err := c.insertLocked(job.key, entry); err != nil {
			logging.Warn("preview: not caching %s (%s): %v",
				job.req.Path, humanize.IBytes(uint64(entry.SizeBytes)), err)
		}
	}
	if pins > 0 {
		c.pins[job.key] += pins
	}
	c.mu.Unlock()

	job.finish(entry, jobErr)
}

// Insert adds an entry under key. Inserting a key that is already cached
// keeps the first entry and returns nil.
func (c *Cache) Insert(key Key, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(key, entry)
}

func (c *Cache) insertLocked(key Key, entry *Entry) error {
	if _, ok := c.items[key]; ok {
		return nil
	}
	if entry.SizeBytes > c.budget {
		metrics.CacheOversize.Inc()
		return ErrOverBudget
	}
	if !c.makeRoomLocked(entry.SizeBytes) {
		return errNoRoom
	}

	el := c.ll.PushFront(&cacheItem{key: key, entry: entry, lastAccessed: c.now()})
	c.items[key] = el
	c.size += entry.SizeBytes
	c.updateGaugesLocked()
	return nil
}

// makeRoomLocked evicts unpinned entries, oldest first, until n more bytes
// fit. It evicts nothing when that is impossible.
func (c *Cache) makeRoomLocked(n int64) bool {
	if c.size+n <= c.budget {
		return true
	}

	var victims []*list.Element
	freed := int64(0)
	for el := c.ll.Back(); el != nil && c.size-freed+n > c.budget; el = el.Prev() {
		it := el.Value.(*cacheItem)
		if c.pins[it.key] > 0 {
			continue
		}
		victims = append(victims, el)
		freed += it.entry.SizeBytes
	}
	if c.size-freed+n > c.budget {
		return false
	}

	for _, el := range victims {
		c.removeLocked(el)
		c.evictions++
		metrics.CacheEvictions.Inc()
	}
	return true
}

func (c *Cache) removeLocked(el *list.Element) {
	it := el.Value.(*cacheItem)
	c.ll.Remove(el)
	delete(c.items, it.key)
	c.size -= it.entry.SizeBytes
}

// Pin protects key from eviction until a matching Unpin.
func (c *Cache) Pin(key Key) {
	c.mu.Lock()
	c.pins[key]++
	c.mu.Unlock()
}

// Unpin releases one Pin.
func (c *Cache) Unpin(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unpinLocked(key)
}

func (c *Cache) unpinLocked(key Key) {
	switch n := c.pins[key]; {
	case n > 1:
		c.pins[key] = n - 1
	case n == 1:
		delete(c.pins, key)
	}
}

// Keys returns cached keys from most to least recently accessed.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.items))
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*cacheItem).key)
	}
	return keys
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.items),
		Bytes:     c.size,
		Budget:    c.budget,
		Hits:      c.hits,
		Misses:    c.misses,
		Joins:     c.joins,
		Evictions: c.evictions,
	}
}

// Clear drops every cached entry. In-flight jobs are not affected.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[Key]*list.Element)
	c.pins = make(map[Key]int)
	c.size = 0
	c.updateGaugesLocked()
}

func (c *Cache) updateGaugesLocked() {
	metrics.CacheSizeBytes.Set(float64(c.size))
	metrics.CacheEntries.Set(float64(len(c.items)))
}
