package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/querystate/internal/clock"
	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/adapter"
	"github.com/vango-dev/querystate/pkg/options"
)

func serializeAny(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported %T", v)
	}
}

func newTestQueue(t *testing.T, initial url.Values, opts ...Option) (*Queue, *clock.Fake, *adapter.Memory) {
	t.Helper()
	fake := clock.NewFake(time.Unix(1700000000, 0))
	q := New(append([]Option{WithClock(fake)}, opts...)...)
	return q, fake, adapter.NewMemory(initial)
}

func mustEnqueue(t *testing.T, q *Queue, key string, value any, opts options.Resolved) {
	t.Helper()
	if _, _, err := q.Enqueue(key, value, serializeAny, opts); err != nil {
		t.Fatalf("Enqueue(%s): %v", key, err)
	}
}

func mustResult(t *testing.T, f *Future) url.Values {
	t.Helper()
	if !f.Settled() {
		t.Fatal("future not settled")
	}
	params, err := f.Result()
	if err != nil {
		t.Fatalf("future rejected: %v", err)
	}
	return params
}

func TestQueue_EndToEndLatLng(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)
	opts := options.Resolve()

	q.Enqueue("lat", 42.0, serializeAny, opts)
	q.Enqueue("lng", 12.0, serializeAny, opts)
	f := q.ScheduleFlush(mem, 1)

	fake.Advance(0)
	params := mustResult(t, f)
	if params.Get("lat") != "42" || params.Get("lng") != "12" {
		t.Fatalf("params: got %v, want lat=42 lng=12", params)
	}
	if got := mem.SearchParams().Encode(); got != "lat=42&lng=12" {
		t.Fatalf("URL: got %q, want lat=42&lng=12", got)
	}
	if len(mem.Calls()) != 1 {
		t.Fatalf("navigations: got %d, want 1", len(mem.Calls()))
	}
}

func TestQueue_EnqueueReturnsSerialized(t *testing.T) {
	q, _, _ := newTestQueue(t, nil)

	query, ok, err := q.Enqueue("page", 3, serializeAny, options.Resolve())
	if err != nil || !ok || query != "3" {
		t.Fatalf("Enqueue(3): got %q, %v, %v", query, ok, err)
	}
	query, ok, err = q.Enqueue("page", nil, serializeAny, options.Resolve())
	if err != nil || ok || query != "" {
		t.Fatalf("Enqueue(nil): got %q, %v, %v", query, ok, err)
	}
	if _, ok, queued := q.Pending("page"); !queued || ok {
		t.Fatalf("Pending: got ok=%v queued=%v, want removal queued", ok, queued)
	}
}

func TestQueue_SerializeErrorLeavesQueueUntouched(t *testing.T) {
	q, _, _ := newTestQueue(t, nil)

	if _, _, err := q.Enqueue("page", struct{}{}, serializeAny, options.Resolve()); err == nil {
		t.Fatal("Enqueue: want serializer error")
	}
	if q.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", q.Len())
	}
}

func TestQueue_LastWriteWinsWithinWindow(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)
	opts := options.Resolve()

	for _, v := range []string{"g", "go", "gol", "gola"} {
		mustEnqueue(t, q, "q", v, opts)
		q.ScheduleFlush(mem, 1)
	}
	if q.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", q.Len())
	}
	fake.Advance(0)

	calls := mem.Calls()
	if len(calls) != 1 {
		t.Fatalf("navigations: got %d, want 1", len(calls))
	}
	if diff := cmp.Diff(url.Values{"q": {"gola"}}, calls[0].Params); diff != "" {
		t.Fatalf("committed params (-want +got):\n%s", diff)
	}
}

func TestQueue_FutureSharedWithinWindow(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)
	opts := options.Resolve()

	mustEnqueue(t, q, "a", "1", opts)
	f1 := q.ScheduleFlush(mem, 1)
	mustEnqueue(t, q, "b", "2", opts)
	f2 := q.ScheduleFlush(mem, 1)
	if f1 != f2 {
		t.Fatal("futures in the same window should be identical")
	}

	fake.Advance(0)
	p1, p2 := mustResult(t, f1), mustResult(t, f2)
	if diff := cmp.Diff(p1, p2); diff != "" {
		t.Fatalf("shared future results differ:\n%s", diff)
	}

	mustEnqueue(t, q, "c", "3", opts)
	if f3 := q.ScheduleFlush(mem, 1); f3 == f1 {
		t.Fatal("a new window should get a new future")
	}
}

func TestQueue_ZeroThrottleStillDefers(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)

	mustEnqueue(t, q, "a", "1", options.Resolve(options.Throttle(0)))
	f := q.ScheduleFlush(mem, 1)
	if f.Settled() || len(mem.Calls()) != 0 {
		t.Fatal("flush ran synchronously")
	}
	fake.Advance(0)
	if !f.Settled() {
		t.Fatal("flush did not run on the next tick")
	}
}

func TestQueue_ThrottleSinceLastFlush(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)
	opts := options.Resolve(options.Throttle(50 * time.Millisecond))

	// The first flush is immediate; there is no previous navigation.
	mustEnqueue(t, q, "a", "1", opts)
	first := q.ScheduleFlush(mem, 1)
	fake.Advance(0)
	mustResult(t, first)

	mustEnqueue(t, q, "a", "2", opts)
	second := q.ScheduleFlush(mem, 1)
	fake.Advance(49 * time.Millisecond)
	if second.Settled() {
		t.Fatal("second flush ran inside the throttle window")
	}
	fake.Advance(time.Millisecond)
	if got := mustResult(t, second).Get("a"); got != "2" {
		t.Fatalf("a: got %q, want 2", got)
	}
}

func TestQueue_CallLevelThrottleWins(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)

	group := options.Throttle(50 * time.Millisecond)
	key := options.Throttle(200 * time.Millisecond)
	call := options.Throttle(10 * time.Millisecond)

	mustEnqueue(t, q, "x", "0", options.Resolve(options.Options{}, key, group))
	warm := q.ScheduleFlush(mem, 1)
	fake.Advance(0)
	mustResult(t, warm)

	mustEnqueue(t, q, "x", "1", options.Resolve(call, key, group))
	f := q.ScheduleFlush(mem, 1)
	fake.Advance(9 * time.Millisecond)
	if f.Settled() {
		t.Fatal("flushed before 10ms")
	}
	fake.Advance(time.Millisecond)
	if !f.Settled() {
		t.Fatal("not flushed at 10ms")
	}
}

func TestQueue_LargestThrottleInWindowApplies(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)

	mustEnqueue(t, q, "a", "0", options.Resolve(options.Throttle(0)))
	warm := q.ScheduleFlush(mem, 1)
	fake.Advance(0)
	mustResult(t, warm)

	mustEnqueue(t, q, "a", "1", options.Resolve(options.Throttle(10*time.Millisecond)))
	f := q.ScheduleFlush(mem, 1)
	mustEnqueue(t, q, "b", "1", options.Resolve(options.Throttle(30*time.Millisecond)))

	fake.Advance(20 * time.Millisecond)
	if f.Settled() {
		t.Fatal("flushed before the largest throttle elapsed")
	}
	fake.Advance(10 * time.Millisecond)
	mustResult(t, f)
}

func TestQueue_RateLimitFactor(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)
	opts := options.Resolve(options.Throttle(50 * time.Millisecond))

	mustEnqueue(t, q, "a", "1", opts)
	warm := q.ScheduleFlush(mem, 2)
	fake.Advance(0)
	mustResult(t, warm)

	mustEnqueue(t, q, "a", "2", opts)
	f := q.ScheduleFlush(mem, 2)
	fake.Advance(99 * time.Millisecond)
	if f.Settled() {
		t.Fatal("flushed before throttle*factor")
	}
	fake.Advance(time.Millisecond)
	mustResult(t, f)
}

func TestQueue_CombinedNavigationOptions(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)

	mustEnqueue(t, q, "a", "1", options.Resolve(options.Replace()))
	mustEnqueue(t, q, "b", "1", options.Resolve(options.Push()))
	mustEnqueue(t, q, "c", "1", options.Resolve(options.Shallow(false)))
	mustEnqueue(t, q, "d", "1", options.Resolve(options.Scroll(true)))
	q.ScheduleFlush(mem, 1)
	fake.Advance(0)

	calls := mem.Calls()
	if len(calls) != 1 {
		t.Fatalf("navigations: got %d, want 1", len(calls))
	}
	want := options.Navigation{History: options.HistoryPush, Shallow: false, Scroll: true}
	if calls[0].Navigation != want {
		t.Fatalf("navigation: got %+v, want %+v", calls[0].Navigation, want)
	}
}

func TestQueue_SameKeyOptionsLatestWins(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)

	mustEnqueue(t, q, "a", "1", options.Resolve(options.Push()))
	mustEnqueue(t, q, "a", "2", options.Resolve(options.Replace()))
	q.ScheduleFlush(mem, 1)
	fake.Advance(0)

	if got := mem.Calls()[0].Navigation.History; got != options.HistoryReplace {
		t.Fatalf("history: got %v, want replace", got)
	}
}

func TestQueue_RemoveKeepsUnrelatedKeys(t *testing.T) {
	q, fake, mem := newTestQueue(t, url.Values{"page": {"2"}, "sort": {"asc"}})

	mustEnqueue(t, q, "page", nil, options.Resolve())
	f := q.ScheduleFlush(mem, 1)
	fake.Advance(0)

	params := mustResult(t, f)
	if _, ok := params["page"]; ok {
		t.Fatal("page should be removed")
	}
	if params.Get("sort") != "asc" {
		t.Fatalf("sort: got %q, want asc", params.Get("sort"))
	}
}

func TestQueue_EmptyWindowResolvesWithoutNavigation(t *testing.T) {
	q, fake, mem := newTestQueue(t, url.Values{"tab": {"files"}})

	f := q.ScheduleFlush(mem, 1)
	fake.Advance(0)

	if got := mustResult(t, f).Get("tab"); got != "files" {
		t.Fatalf("tab: got %q, want files", got)
	}
	if len(mem.Calls()) != 0 {
		t.Fatal("empty window should not navigate")
	}
}

func TestQueue_AdapterFailureRejectsAndClears(t *testing.T) {
	q, fake, mem := newTestQueue(t, url.Values{"q": {"old"}})
	boom := stderrors.New("history quota exceeded")
	mem.FailNext(boom)

	mustEnqueue(t, q, "q", "new", options.Resolve(options.Throttle(0)))
	mustEnqueue(t, q, "page", "2", options.Resolve(options.Throttle(0)))
	f1 := q.ScheduleFlush(mem, 1)
	f2 := q.ScheduleFlush(mem, 1)
	fake.Advance(0)

	for i, f := range []*Future{f1, f2} {
		_, err := f.Result()
		if !stderrors.Is(err, boom) {
			t.Fatalf("future %d: got %v, want boom", i, err)
		}
		if errors.Code(err) != "E300" {
			t.Fatalf("future %d: code %q, want E300", i, errors.Code(err))
		}
	}
	if q.Len() != 0 {
		t.Fatalf("failed batch still pending: %d", q.Len())
	}
	if got := mem.SearchParams().Get("q"); got != "old" {
		t.Fatalf("URL partially applied: q=%q", got)
	}

	mustEnqueue(t, q, "sort", "asc", options.Resolve(options.Throttle(0)))
	f3 := q.ScheduleFlush(mem, 1)
	fake.Advance(0)
	params := mustResult(t, f3)
	if diff := cmp.Diff(url.Values{"q": {"old"}, "sort": {"asc"}}, params); diff != "" {
		t.Fatalf("next window polluted by failed batch (-want +got):\n%s", diff)
	}
}

type panickingAdapter struct{ adapter.Adapter }

func (panickingAdapter) UpdateURL(context.Context, url.Values, options.Navigation) error {
	panic("router unmounted")
}

func TestQueue_AdapterPanicRejects(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)

	mustEnqueue(t, q, "a", "1", options.Resolve())
	f := q.ScheduleFlush(panickingAdapter{mem}, 1)
	fake.Advance(0)

	if _, err := f.Result(); errors.Code(err) != "E301" {
		t.Fatalf("Result: got %v, want E301", err)
	}
}

func TestQueue_NilAdapter(t *testing.T) {
	q, _, _ := newTestQueue(t, nil)
	f := q.ScheduleFlush(nil, 1)
	if _, err := f.Result(); errors.Code(err) != "E302" {
		t.Fatalf("Result: got %v, want E302", err)
	}
}

func TestQueue_Reset(t *testing.T) {
	q, fake, mem := newTestQueue(t, nil)

	mustEnqueue(t, q, "a", "1", options.Resolve())
	f := q.ScheduleFlush(mem, 1)
	q.Reset()

	if _, err := f.Result(); !stderrors.Is(err, ErrReset) {
		t.Fatalf("Result: got %v, want ErrReset", err)
	}
	fake.Advance(time.Second)
	if len(mem.Calls()) != 0 {
		t.Fatal("reset window should not navigate")
	}
	if q.Len() != 0 {
		t.Fatal("Reset should drop pending updates")
	}
}

type recordingTransition struct {
	name  string
	order *[]string
}

func (r *recordingTransition) Start(apply func()) {
	*r.order = append(*r.order, r.name+":start")
	apply()
	*r.order = append(*r.order, r.name+":end")
}

func TestQueue_TransitionsWrapNavigation(t *testing.T) {
	var order []string
	outer := &recordingTransition{name: "outer", order: &order}
	inner := &recordingTransition{name: "inner", order: &order}

	q, fake, mem := newTestQueue(t, nil)
	mustEnqueue(t, q, "a", "1", options.Resolve(options.WithTransition(outer)))
	mustEnqueue(t, q, "b", "1", options.Resolve(options.WithTransition(inner)))
	mustEnqueue(t, q, "c", "1", options.Resolve(options.WithTransition(outer)))
	q.ScheduleFlush(mem, 1)
	fake.Advance(0)

	want := []string{"outer:start", "inner:start", "inner:end", "outer:end"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("transition order (-want +got):\n%s", diff)
	}
	if len(mem.Calls()) != 1 {
		t.Fatalf("navigations: got %d, want 1", len(mem.Calls()))
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	enqueued []string
	flushes  []int
	errs     []error
}

func (r *recordingObserver) Enqueued(key string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, fmt.Sprintf("%s:%v", key, removed))
}

func (r *recordingObserver) Flushed(keys int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes = append(r.flushes, keys)
	r.errs = append(r.errs, err)
}

func TestQueue_Observer(t *testing.T) {
	obs := &recordingObserver{}
	q, fake, mem := newTestQueue(t, nil, WithObserver(obs))

	mustEnqueue(t, q, "a", "1", options.Resolve())
	mustEnqueue(t, q, "b", nil, options.Resolve())
	q.ScheduleFlush(mem, 1)
	fake.Advance(0)

	if diff := cmp.Diff([]string{"a:false", "b:true"}, obs.enqueued); diff != "" {
		t.Fatalf("enqueued (-want +got):\n%s", diff)
	}
	if len(obs.flushes) != 1 || obs.flushes[0] != 2 || obs.errs[0] != nil {
		t.Fatalf("flushes: got %v %v", obs.flushes, obs.errs)
	}
}

func TestQueue_ConcurrentWritersConverge(t *testing.T) {
	q := New()
	mem := adapter.NewMemory(nil)
	opts := options.Resolve(options.Throttle(0))

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + strconv.Itoa(i)
			if _, _, err := q.Enqueue(key, i, serializeAny, opts); err != nil {
				errs <- err
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			params, err := q.ScheduleFlush(mem, 1).Wait(ctx)
			if err != nil {
				errs <- err
				return
			}
			if params.Get(key) != strconv.Itoa(i) {
				errs <- fmt.Errorf("%s missing from committed params %v", key, params)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if got := len(mem.SearchParams()); got != writers {
		t.Fatalf("keys in URL: got %d, want %d", got, writers)
	}
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Wait(ctx); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Wait: got %v, want context.Canceled", err)
	}
	if params, err := f.Result(); params != nil || err != nil {
		t.Fatalf("Result before settle: got %v, %v", params, err)
	}
}

func TestFuture_SettlesOnce(t *testing.T) {
	f := newFuture()
	f.settle(url.Values{"a": {"1"}}, nil)
	f.settle(nil, stderrors.New("late"))

	params, err := f.Wait(context.Background())
	if err != nil || params.Get("a") != "1" {
		t.Fatalf("Wait: got %v, %v", params, err)
	}

	params.Set("a", "mutated")
	if again, _ := f.Result(); again.Get("a") != "1" {
		t.Fatal("Result should return a copy")
	}
}

func TestResolved(t *testing.T) {
	f := Resolved(url.Values{"a": {"1"}})
	if !f.Settled() {
		t.Fatal("Resolved future should be settled")
	}
}
