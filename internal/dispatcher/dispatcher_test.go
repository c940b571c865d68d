package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type logLine struct {
	level string
	msg   string
}

// recorder collects log lines from handler wrappers.
type recorder struct {
	mu    sync.Mutex
	lines []logLine
}

func (r *recorder) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, logLine{level, msg})
}

func (r *recorder) Debug(msg string, _ ...any) { r.add("debug", msg) }
func (r *recorder) Info(msg string, _ ...any)  { r.add("info", msg) }
func (r *recorder) Error(msg string, _ ...any) { r.add("error", msg) }

func (r *recorder) levels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	for i, l := range r.lines {
		out[i] = l.level
	}
	return out
}

func setup(t *testing.T) (*Dispatcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	d, err := New(rec, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, rec
}

func scanEvent(path string) Event {
	return Event{Kind: KindScan, Path: path, Timestamp: time.Now()}
}

func TestDispatch_Synchronous(t *testing.T) {
	d, _ := setup(t)

	var seen Event
	d.Register(KindScan, func(e Event) (any, error) {
		seen = e
		return e.Path + " scanned", nil
	})

	result, err := d.Dispatch(scanEvent("incoming/garden.pud"))
	require.NoError(t, err)
	assert.Equal(t, "incoming/garden.pud scanned", result)
	assert.Equal(t, "incoming/garden.pud", seen.Path)
}

func TestDispatch_UnknownKind(t *testing.T) {
	d, _ := setup(t)

	_, err := d.Dispatch(Event{Kind: "rename"})
	assert.ErrorContains(t, err, "unknown event kind: rename")
	assert.False(t, d.HasHandler("rename"))
}

func TestDispatch_HandlerError(t *testing.T) {
	d, _ := setup(t)
	boom := errors.New("bad chunk")
	d.Register(KindScan, func(Event) (any, error) { return nil, boom })

	_, err := d.Dispatch(scanEvent("broken.pud"))
	assert.ErrorIs(t, err, boom)
}

func TestBuffered_ProcessesInOrder(t *testing.T) {
	d, _ := setup(t)

	var mu sync.Mutex
	var order []string
	d.Register(KindScan, func(e Event) (any, error) {
		mu.Lock()
		order = append(order, e.Path)
		mu.Unlock()
		return nil, nil
	}, Buffered(16))
	require.True(t, d.HasHandler(KindScan))

	var want []string
	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("map%d.pud", i)
		want = append(want, path)
		result, err := d.Dispatch(scanEvent(path))
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	require.NoError(t, d.Close())
	assert.Equal(t, want, order)
}

func TestBuffered_DropsWhenFull(t *testing.T) {
	d, _ := setup(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d.Register(KindScan, func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}, Buffered(2))
	defer close(release)

	_, err := d.Dispatch(scanEvent("a.pud"))
	require.NoError(t, err)
	<-started

	for _, p := range []string{"b.pud", "c.pud"} {
		_, err := d.Dispatch(scanEvent(p))
		require.NoError(t, err)
	}
	_, err = d.Dispatch(scanEvent("d.pud"))
	assert.ErrorContains(t, err, "queue full")
}

func TestBuffered_BlockingWaitsForRoom(t *testing.T) {
	d, _ := setup(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d.Register(KindScan, func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}, Buffered(1), Blocking())

	_, err := d.Dispatch(scanEvent("a.pud"))
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(scanEvent("b.pud"))
	require.NoError(t, err)

	var sent atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Dispatch(scanEvent("c.pud"))
		sent.Store(true)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, sent.Load(), "dispatch returned while the queue was full")

	close(release)
	<-done
	assert.True(t, sent.Load())
}

func TestLogged(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantEnd string
	}{
		{"success", nil, "debug"},
		{"failure", errors.New("truncated"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rec := setup(t)
			d.Register(KindScan, func(Event) (any, error) { return nil, tt.err }, Logged())

			_, err := d.Dispatch(scanEvent("a.pud"))
			assert.Equal(t, tt.err, err)
			assert.Equal(t, []string{"debug", tt.wantEnd}, rec.levels())
		})
	}
}

func TestLogged_RunsOnWorker(t *testing.T) {
	d, rec := setup(t)

	var handled atomic.Int32
	d.Register(KindScan, func(Event) (any, error) {
		handled.Add(1)
		return nil, nil
	}, Buffered(4), Logged())

	result, err := d.Dispatch(scanEvent("a.pud"))
	require.NoError(t, err)
	assert.Equal(t, "queued", result)

	require.NoError(t, d.Close())
	assert.EqualValues(t, 1, handled.Load())
	assert.Equal(t, []string{"debug", "debug"}, rec.levels())
}

func TestClose_DrainsAndRejects(t *testing.T) {
	d, _ := setup(t)

	var handled atomic.Int32
	d.Register(KindScan, func(Event) (any, error) {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil, nil
	}, Buffered(8), Blocking())

	for i := 0; i < 5; i++ {
		_, err := d.Dispatch(scanEvent(fmt.Sprintf("%d.pud", i)))
		require.NoError(t, err)
	}

	require.NoError(t, d.Close())
	assert.EqualValues(t, 5, handled.Load())

	_, err := d.Dispatch(scanEvent("late.pud"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, d.Close(), "second close is a no-op")
}

func sumCounter(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	d, err := New(&recorder{}, mp.Meter("test"))
	require.NoError(t, err)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d.Register(KindScan, func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}, Buffered(1))

	_, err = d.Dispatch(scanEvent("a.pud"))
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(scanEvent("b.pud"))
	require.NoError(t, err)
	_, err = d.Dispatch(scanEvent("c.pud"))
	require.Error(t, err)

	close(release)
	require.NoError(t, d.Close())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.EqualValues(t, 2, sumCounter(t, rm, "pudscan.watch.events.processed"))
	assert.EqualValues(t, 1, sumCounter(t, rm, "pudscan.watch.events.dropped"))
}
