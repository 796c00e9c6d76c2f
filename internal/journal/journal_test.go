package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

var testNow = time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)

func testConfig(dir string) Config {
	cfg := DefaultConfig(dir)
	cfg.FlushInterval = 0
	return cfg
}

func newOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.New(order.Params{
		Symbol:   "AAPL",
		Quantity: 10,
		Action:   schema.ActionBuy,
		Kind:     order.Market(),
	}, order.ExecSettings{}, order.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return o
}

func startWriter(t *testing.T, cfg Config) *Writer {
	t.Helper()
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	return w
}

func TestConfigValidate(t *testing.T) {
	testCases := map[string]struct {
		cfg     Config
		wantErr bool
	}{
		"default":          {cfg: DefaultConfig("x")},
		"empty dir":        {cfg: DefaultConfig(""), wantErr: true},
		"negative age":     {cfg: Config{Dir: "x", SegmentMaxDuration: -1}.withDefaults(), wantErr: true},
		"negative flush":   {cfg: Config{Dir: "x", FlushInterval: -1}.withDefaults(), wantErr: true},
		"defaults applied": {cfg: Config{Dir: "x"}.withDefaults()},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWriterLifecycle(t *testing.T) {
	w, err := NewWriter(testConfig(t.TempDir()))
	require.NoError(t, err)

	_, err = w.TryAppend(Entry{Title: "early"})
	assert.True(t, errors.Is(err, ErrNotStarted))

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, errors.Is(w.Start(context.Background()), ErrAlreadyStarted))

	require.NoError(t, w.Close())
	_, err = w.TryAppend(Entry{Title: "late"})
	assert.True(t, errors.Is(err, ErrClosed))
	require.NoError(t, w.Close())
}

func TestWriteAndFold(t *testing.T) {
	dir := t.TempDir()
	w := startWriter(t, testConfig(dir))

	o := newOrder(t)
	w.NotifyOutcome(execution.Outcome{
		RequestID: "r1",
		Kind:      execution.RequestExecute,
		Result:    schema.ResultNoLiquidity,
		OrderID:   o.ID(),
		Message:   "pending",
		At:        testNow,
		Order:     o.View(),
	})
	require.NoError(t, o.Execute(4, testNow.Add(time.Second)))
	w.NotifyOutcome(execution.Outcome{
		RequestID: "r2",
		Kind:      execution.RequestExecute,
		Result:    schema.ResultPartial,
		OrderID:   o.ID(),
		At:        testNow.Add(time.Second),
		Order:     o.View(),
	})
	w.Notify("Execution System Shutdown", "bye")
	require.NoError(t, w.Close())

	entries, err := ReadAll(context.Background(), dir, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i, e := range entries {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
	assert.Equal(t, "r1", entries[0].RequestID)
	assert.Equal(t, "Order Pending", entries[0].Title)
	assert.Equal(t, schema.ResultPartial, entries[1].Result)
	assert.Equal(t, execution.RequestExecute, entries[1].Kind)
	assert.Empty(t, entries[2].Orders)
	assert.Equal(t, "bye", entries[2].Message)

	latest := Fold(entries)
	require.Contains(t, latest, o.ID())
	assert.Equal(t, order.StatusPartial, latest[o.ID()].Status)
	assert.Equal(t, schema.Quantity(4), latest[o.ID()].FilledQuantity)
	assert.Equal(t, schema.Quantity(6), latest[o.ID()].RemainingQuantity)

	tally := Tally(entries)
	assert.Equal(t, 1, tally[schema.ResultNoLiquidity])
	assert.Equal(t, 1, tally[schema.ResultPartial])
	assert.Len(t, tally, 2)
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.SegmentMaxBytes = 1
	w := startWriter(t, cfg)

	for i := 0; i < 3; i++ {
		w.Notify("title", "message")
	}
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, defaultFilePrefix+"-*"+segmentSuffix))
	require.NoError(t, err)
	assert.Len(t, files, 3)

	entries, err := ReadAll(context.Background(), dir, defaultFilePrefix)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(3), entries[2].Seq)
}

func TestReaderDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	w := startWriter(t, testConfig(dir))
	w.Notify("title", "message")
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, "*"+segmentSuffix))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	data[recordHeaderSize] ^= 0xff
	require.NoError(t, os.WriteFile(files[0], data, 0o644))

	_, err = ReadAll(context.Background(), dir, "")
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

type recordingClock struct {
	sleeps []time.Duration
}

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func TestPlaybackPacing(t *testing.T) {
	dir := t.TempDir()
	w := startWriter(t, testConfig(dir))
	for _, offset := range []time.Duration{0, 2 * time.Second, 6 * time.Second} {
		_, err := w.TryAppend(Entry{Title: "tick", At: testNow.Add(offset)})
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	clock := &recordingClock{}
	p, err := NewPlayback(PlaybackConfig{Dir: dir, Speed: 2})
	require.NoError(t, err)

	var count int
	require.NoError(t, p.WithClock(clock).Run(context.Background(), func(Entry) error {
		count++
		return nil
	}))
	assert.Equal(t, 3, count)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
}

func TestPlaybackValidate(t *testing.T) {
	_, err := NewPlayback(PlaybackConfig{})
	assert.Error(t, err)
	_, err = NewPlayback(PlaybackConfig{Dir: "x", Speed: -1})
	assert.Error(t, err)
}
