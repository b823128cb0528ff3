package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/ptui/internal/config"
	"github.com/llehouerou/ptui/internal/decode"
	"github.com/llehouerou/ptui/internal/render"
)

type fakeDecoder struct {
	mu      sync.Mutex
	calls   []string
	gates   map[string]chan struct{}
	started chan string
	panicOn string
	failOn  string
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{gates: make(map[string]chan struct{}), started: make(chan string, 64)}
}

// hold makes decodes of path block until the returned func is called.
func (d *fakeDecoder) hold(path string) func() {
	g := make(chan struct{})
	d.mu.Lock()
	d.gates[path] = g
	d.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(g) }) }
}

func (d *fakeDecoder) Decode(_ context.Context, path string, _, _ int) (*decode.Image, error) {
	d.mu.Lock()
	d.calls = append(d.calls, path)
	g := d.gates[path]
	d.mu.Unlock()
	d.started <- path

	if g != nil {
		<-g
	}
	if path == d.panicOn {
		panic("decoder exploded")
	}
	if path == d.failOn {
		return nil, &decode.Error{Kind: decode.Corrupt, Path: path, Err: fmt.Errorf("bad data")}
	}

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)
	return &decode.Image{Pixels: img, Width: 8, Height: 8, Decoder: "fake", Scale: decode.ScaleFull}, nil
}

func (d *fakeDecoder) callCount(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == path {
			n++
		}
	}
	return n
}

func (d *fakeDecoder) order() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type fakeFiles map[string]Stat

func (f fakeFiles) Stat(path string) (Stat, error) {
	st, ok := f[path]
	if !ok {
		return Stat{}, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return st, nil
}

func testFiles(paths ...string) fakeFiles {
	f := fakeFiles{}
	for i, p := range paths {
		f[p] = Stat{ModTime: time.Unix(1700000000+int64(i), 0), Size: int64(100 + i)}
	}
	return f
}

type fixture struct {
	s     *Scheduler
	dec   *fakeDecoder
	store *config.Store
}

func newFixture(t *testing.T, workers int, budget int64, paths ...string) *fixture {
	t.Helper()
	dec := newFakeDecoder()
	store := config.NewStore(config.Default())
	s, err := NewScheduler(Options{
		Workers:       workers,
		PrefetchDepth: 2,
		Cache:         NewCache(budget),
		Config:        store,
		Decoder:       dec,
		Files:         testFiles(paths...),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return &fixture{s: s, dec: dec, store: store}
}

func (f *fixture) waitStarted(t *testing.T, path string) {
	t.Helper()
	select {
	case got := <-f.dec.started:
		require.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("decode of %s never started", path)
	}
}

// drainUntil polls Drain until n results have been collected.
func (f *fixture) drainUntil(t *testing.T, n int) []Result {
	t.Helper()
	var out []Result
	require.Eventually(t, func() bool {
		out = append(out, f.s.Drain()...)
		return len(out) >= n
	}, 5*time.Second, 5*time.Millisecond)
	return out
}

func req(path string) Request {
	return Request{Path: path, Cols: 8, Rows: 4}
}

func TestNewScheduler_InvalidOptions(t *testing.T) {
	_, err := NewScheduler(Options{Workers: 0})
	require.Error(t, err)

	_, err = NewScheduler(Options{Workers: 1})
	require.Error(t, err)
}

func TestScheduler_SingleFlight(t *testing.T) {
	f := newFixture(t, 4, 1<<20, "a.png")
	release := f.dec.hold("a.png")

	const n = 10
	var wg sync.WaitGroup
	gens := make(chan Generation, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gens <- f.s.Schedule(req("a.png"), Slot(fmt.Sprintf("slot-%d", i)))
		}()
	}
	wg.Wait()
	close(gens)
	release()

	results := f.drainUntil(t, n)
	require.Len(t, results, n)
	assert.Equal(t, 1, f.dec.callCount("a.png"))

	first := results[0].Entry
	require.NotNil(t, first)
	seen := map[Generation]bool{}
	for _, r := range results {
		assert.Equal(t, OutcomeHit, r.Kind)
		assert.Same(t, first, r.Entry)
		seen[r.Generation] = true
	}
	for g := range gens {
		assert.True(t, seen[g], "generation %d not delivered", g)
	}

	st := f.s.Cache().Stats()
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(n-1), st.Joins)
}

func TestScheduler_GenerationsIncrease(t *testing.T) {
	f := newFixture(t, 2, 1<<20, "a.png", "b.png")

	g1 := f.s.Schedule(req("a.png"), "one")
	g2 := f.s.Schedule(req("b.png"), "two")
	g3 := f.s.Schedule(req("a.png"), "three")
	assert.Less(t, g1, g2)
	assert.Less(t, g2, g3)
}

func TestScheduler_IdempotentCacheRead(t *testing.T) {
	f := newFixture(t, 2, 1<<20, "a.png")

	f.s.Schedule(req("a.png"), SlotFocus)
	results := f.drainUntil(t, 1)
	require.Equal(t, OutcomeHit, results[0].Kind)
	payload := results[0].Entry.Payload

	for range 3 {
		out := f.s.GetOrSchedule(req("a.png"))
		require.Equal(t, OutcomeHit, out.Kind)
		assert.Equal(t, payload, out.Entry.Payload)
		assert.Same(t, results[0].Entry, out.Entry)
	}
	assert.Equal(t, 1, f.dec.callCount("a.png"))
}

func TestScheduler_CachedHitDeliveredOnDrain(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "a.png")

	f.s.Schedule(req("a.png"), SlotFocus)
	f.drainUntil(t, 1)

	gen := f.s.Schedule(req("a.png"), SlotFocus)
	results := f.s.Drain()
	require.Len(t, results, 1)
	assert.Equal(t, gen, results[0].Generation)
	assert.Equal(t, OutcomeHit, results[0].Kind)
	assert.False(t, f.s.Pending())
}

func TestScheduler_SupersededResultNotDelivered(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "a.png", "b.png")
	release := f.dec.hold("a.png")

	genA := f.s.Schedule(req("a.png"), SlotFocus)
	jobA := f.s.GetOrSchedule(req("a.png")).Job
	require.NotNil(t, jobA)
	f.waitStarted(t, "a.png")

	genB := f.s.Schedule(req("b.png"), SlotFocus)
	release()

	results := f.drainUntil(t, 1)
	// Give A's delivery a chance to show up if it were going to.
	time.Sleep(20 * time.Millisecond)
	results = append(results, f.s.Drain()...)

	require.Len(t, results, 1)
	assert.Equal(t, genB, results[0].Generation)
	assert.NotEqual(t, genA, results[0].Generation)
	assert.Equal(t, "b.png", results[0].Request.Path)

	// A still ran to completion and filled the cache.
	<-jobA.Done()
	assert.Equal(t, JobCancelled, jobA.State())
	assert.Equal(t, OutcomeHit, f.s.GetOrSchedule(req("a.png")).Kind)
}

func TestScheduler_SharedJobNotCancelledBySameSlotRequest(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "a.png")
	release := f.dec.hold("a.png")

	f.s.Schedule(req("a.png"), SlotFocus)
	job := f.s.GetOrSchedule(req("a.png")).Job
	gen := f.s.Schedule(req("a.png"), SlotFocus)
	release()

	results := f.drainUntil(t, 1)
	require.Len(t, results, 1)
	assert.Equal(t, gen, results[0].Generation)
	<-job.Done()
	assert.Equal(t, JobDone, job.State())
}

func TestScheduler_RejoinedJobNotReportedCancelled(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "a.png")
	release := f.dec.hold("a.png")

	f.s.Schedule(req("a.png"), SlotFocus)
	job := f.s.GetOrSchedule(req("a.png")).Job
	require.NotNil(t, job)
	f.waitStarted(t, "a.png")

	f.s.Cancel(SlotFocus)
	assert.Equal(t, JobCancelled, job.State())

	gen := f.s.Schedule(req("a.png"), SlotFocus)
	assert.Same(t, job, f.s.GetOrSchedule(req("a.png")).Job, "rejoins the in-flight job")
	assert.Equal(t, JobRunning, job.State())
	release()

	results := f.drainUntil(t, 1)
	require.Len(t, results, 1)
	assert.Equal(t, gen, results[0].Generation)
	<-job.Done()
	assert.Equal(t, JobDone, job.State())
}

func TestScheduler_ConfigBumpInvalidates(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "a.png")

	f.s.Schedule(req("a.png"), SlotFocus)
	f.drainUntil(t, 1)
	require.Equal(t, OutcomeHit, f.s.GetOrSchedule(req("a.png")).Kind)

	f.store.Bump()

	out := f.s.GetOrSchedule(req("a.png"))
	assert.Equal(t, OutcomeScheduled, out.Kind)
	<-out.Job.Done()
	assert.Equal(t, 2, f.dec.callCount("a.png"))
	assert.Equal(t, 2, f.s.Cache().Stats().Entries, "old version entries age out, they are not swept")
}

func TestScheduler_JobSeesSnapshotFromScheduleTime(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "a.png")
	release := f.dec.hold("a.png")

	f.s.Schedule(req("a.png"), SlotFocus)
	job := f.s.GetOrSchedule(req("a.png")).Job
	f.waitStarted(t, "a.png")

	cfg := config.Default()
	cfg.Converter.Selected = config.ConverterJp2a
	_, err := f.store.Replace(cfg)
	require.NoError(t, err)
	release()

	results := f.drainUntil(t, 1)
	assert.Equal(t, render.BackendANSI, results[0].Entry.Backend)
	assert.Equal(t, config.ConverterChafa, job.Request().Kind)
}

func TestScheduler_PanicBecomesFailed(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "boom.png", "ok.png")
	f.dec.panicOn = "boom.png"

	f.s.Schedule(req("boom.png"), SlotFocus)
	job := f.s.GetOrSchedule(req("boom.png")).Job
	results := f.drainUntil(t, 1)

	r := results[0]
	assert.Equal(t, OutcomeError, r.Kind)
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "decoder exploded")
	require.NotNil(t, r.Entry)
	assert.True(t, r.Entry.Placeholder)
	assert.Equal(t, JobFailed, job.State())
	assert.Contains(t, job.Reason(), "panic")

	// The pool survives and failures are not cached.
	assert.False(t, f.s.Cache().Contains(job.Key()))
	f.s.Schedule(req("ok.png"), SlotFocus)
	results = f.drainUntil(t, 1)
	assert.Equal(t, OutcomeHit, results[0].Kind)
}

func TestScheduler_DecodeErrorPlaceholder(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "bad.png")
	f.dec.failOn = "bad.png"

	f.s.Schedule(Request{Path: "bad.png", Cols: 100, Rows: 5}, SlotFocus)
	results := f.drainUntil(t, 1)

	r := results[0]
	assert.Equal(t, OutcomeError, r.Kind)
	assert.True(t, decode.IsKind(r.Err, decode.Corrupt))
	assert.True(t, r.Entry.Placeholder)
	assert.Contains(t, string(r.Entry.Payload), "Failed to decode image")
}

func TestScheduler_MissingFile(t *testing.T) {
	f := newFixture(t, 1, 1<<20)

	gen := f.s.Schedule(req("gone.png"), SlotFocus)
	results := f.s.Drain()
	require.Len(t, results, 1)
	assert.Equal(t, gen, results[0].Generation)
	assert.Equal(t, OutcomeError, results[0].Kind)
	assert.True(t, decode.IsKind(results[0].Err, decode.IoError))
	assert.True(t, results[0].Entry.Placeholder)
	assert.Empty(t, f.dec.order())
}

func TestScheduler_VisibleBeforePrefetch(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "busy.png", "p1.png", "p2.png", "v.png")
	release := f.dec.hold("busy.png")

	f.s.Schedule(req("busy.png"), "other")
	f.waitStarted(t, "busy.png")

	f.s.Prefetch(req("p1.png"), req("p2.png"))
	f.s.Schedule(req("v.png"), SlotFocus)
	release()

	f.drainUntil(t, 2)
	require.Eventually(t, func() bool { return len(f.dec.order()) == 4 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"busy.png", "v.png", "p1.png", "p2.png"}, f.dec.order())
}

func TestScheduler_PrefetchPromotedWhenRequested(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "busy.png", "p1.png", "p2.png")
	release := f.dec.hold("busy.png")

	f.s.Schedule(req("busy.png"), "other")
	f.waitStarted(t, "busy.png")

	f.s.Prefetch(req("p1.png"), req("p2.png"))
	f.s.Schedule(req("p2.png"), SlotFocus)
	release()

	f.drainUntil(t, 2)
	require.Eventually(t, func() bool { return len(f.dec.order()) == 3 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"busy.png", "p2.png", "p1.png"}, f.dec.order())
}

func TestScheduler_PrefetchDepthAndNoDelivery(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "p1.png", "p2.png", "p3.png")

	f.s.Prefetch(req("p1.png"), req("p2.png"), req("p3.png"))
	require.Eventually(t, func() bool {
		return f.s.Cache().Contains(mustKey(t, f, "p2.png"))
	}, 5*time.Second, 5*time.Millisecond)

	assert.Empty(t, f.s.Drain())
	assert.Equal(t, 0, f.dec.callCount("p3.png"))
}

func mustKey(t *testing.T, f *fixture, path string) Key {
	t.Helper()
	p := f.s.prepare(req(path), f.store.Current())
	require.NoError(t, p.err)
	return p.key
}

func TestScheduler_OversizeEntryDeliveredNotCached(t *testing.T) {
	f := newFixture(t, 1, 16, "a.png")

	f.s.Schedule(req("a.png"), SlotFocus)
	results := f.drainUntil(t, 1)
	require.Equal(t, OutcomeHit, results[0].Kind)
	assert.Greater(t, results[0].Entry.SizeBytes, int64(16))
	assert.NotEmpty(t, results[0].Entry.Payload)

	out := f.s.GetOrSchedule(req("a.png"))
	assert.Equal(t, OutcomeScheduled, out.Kind)
}

func TestScheduler_DeliveredEntryPinnedUntilDrain(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "a.png")

	f.s.Schedule(req("a.png"), SlotFocus)
	job := f.s.GetOrSchedule(req("a.png")).Job
	<-job.Done()

	c := f.s.Cache()
	c.mu.Lock()
	pins := c.pins[job.Key()]
	c.mu.Unlock()
	assert.Equal(t, 1, pins)

	f.drainUntil(t, 1)
	c.mu.Lock()
	_, pinned := c.pins[job.Key()]
	c.mu.Unlock()
	assert.False(t, pinned)
}

func TestScheduler_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t, 2, 1<<20, "a.png")
	f.s.Close()
	f.s.Close()

	f.s.Schedule(req("a.png"), SlotFocus)
	results := f.s.Drain()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrClosed)
}

func TestScheduler_CloseFailsQueuedJobs(t *testing.T) {
	f := newFixture(t, 1, 1<<20, "busy.png", "queued.png")
	release := f.dec.hold("busy.png")

	f.s.Schedule(req("busy.png"), "other")
	f.waitStarted(t, "busy.png")
	f.s.Schedule(req("queued.png"), SlotFocus)
	queued := f.s.GetOrSchedule(req("queued.png")).Job

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()
	f.s.Close()

	<-queued.Done()
	assert.Equal(t, JobFailed, queued.State())
	_, err := queued.Result()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSaveASCII(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "cat.jpg")
	entry := &Entry{Payload: []byte("\x1b[38;2;1;2;3m@@\x1b[m\n::"), Backend: render.BackendASCII}

	path, err := SaveASCII(entry, img)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cat.ascii"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "@@\n::\n", string(data))

	_, err = SaveASCII(entry, img)
	require.ErrorIs(t, err, os.ErrExist)
}

func TestSaveASCII_RejectsNonText(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "cat.jpg")

	for _, e := range []*Entry{
		nil,
		{Payload: []byte("x"), Backend: render.BackendKitty},
		{Payload: []byte("x"), Backend: render.BackendANSI},
		{Payload: []byte("x"), Backend: render.BackendASCII, Placeholder: true},
	} {
		_, err := SaveASCII(e, img)
		assert.ErrorIs(t, err, ErrNotText)
	}
	_, err := os.Stat(ASCIIPath(img))
	assert.True(t, os.IsNotExist(err))
}
