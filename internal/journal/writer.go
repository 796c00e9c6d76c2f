package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrQueueFull      = errors.New("journal queue full")
	ErrClosed         = errors.New("journal writer closed")
	ErrNotStarted     = errors.New("journal writer not started")
	ErrAlreadyStarted = errors.New("journal writer already started")
)

type failure struct{ err error }

// Writer appends entries to journal segments from a bounded queue. It implements
// execution.OutcomeSink; entries that cannot be queued are logged and dropped.
type Writer struct {
	cfg   Config
	ch    chan Entry
	wg    sync.WaitGroup
	err   atomic.Value
	seq   atomic.Uint64
	clock func() time.Time

	started atomic.Bool
	closed  atomic.Bool
	mu      sync.RWMutex
}

// NewWriter validates cfg and creates the target directory.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal dir")
	}
	return &Writer{
		cfg:   cfg,
		ch:    make(chan Entry, cfg.QueueSize),
		clock: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops accepting entries, writes the queued ones and closes the segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed.CompareAndSwap(false, true) {
		close(w.ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer loop.
func (w *Writer) Err() error {
	if v, ok := w.err.Load().(failure); ok {
		return v.err
	}
	return nil
}

// TryAppend enqueues an entry without blocking and returns its sequence number.
func (w *Writer) TryAppend(e Entry) (uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed.Load() {
		return 0, ErrClosed
	}
	if !w.started.Load() {
		return 0, ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return 0, err
	}
	if e.At.IsZero() {
		e.At = w.clock()
	}
	e.Seq = w.seq.Add(1)

	select {
	case w.ch <- e:
		return e.Seq, nil
	default:
		return 0, ErrQueueFull
	}
}

func (w *Writer) Notify(title, message string) {
	if _, err := w.TryAppend(Entry{Title: title, Message: message}); err != nil {
		logs.Warnf("journal notification dropped, title: %s, err: %+v", title, err)
	}
}

func (w *Writer) NotifyOutcome(out execution.Outcome) {
	if _, err := w.TryAppend(FromOutcome(out)); err != nil {
		logs.Warnf("journal outcome dropped, request: %s, err: %+v", out.RequestID, err)
	}
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg         *segment
		segID       uint64
		headerBuf   = make([]byte, recordHeaderSize)
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *time.Ticker
		syncTicker  *time.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(w.cfg.FlushInterval)
		flushC = flushTicker.C
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = time.NewTicker(w.cfg.SyncInterval)
		syncC = syncTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if syncTicker != nil {
			syncTicker.Stop()
		}
		if err := seg.close(); err != nil {
			w.setErr(err)
		}
	}()

	write := func(e Entry) bool {
		if err := w.write(&seg, &segID, headerBuf, e); err != nil {
			logs.Errorf("journal write failed, seq: %d, err: %+v", e.Seq, err)
			w.setErr(err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-w.ch:
					if !ok || !write(e) {
						return
					}
				default:
					return
				}
			}
		case e, ok := <-w.ch:
			if !ok || !write(e) {
				return
			}
		case <-flushC:
			if err := seg.flush(); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := seg.sync(); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) write(seg **segment, segID *uint64, headerBuf []byte, e Entry) error {
	payload, err := sonic.ConfigFastest.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal entry")
	}

	now := w.clock()
	size := int64(recordHeaderSize + len(payload) + recordChecksumSize)
	if w.shouldRotate(*seg, now, size) {
		if err := (*seg).close(); err != nil {
			return err
		}
		opened, err := w.open(segID, now)
		if err != nil {
			return err
		}
		*seg = opened
	}

	encodeHeader(headerBuf, recordHeader{seq: e.Seq, ts: e.At.UnixNano(), payloadLen: uint32(len(payload))})
	var sum [recordChecksumSize]byte
	binary.LittleEndian.PutUint32(sum[:], checksum(headerBuf, payload))

	for _, chunk := range [][]byte{headerBuf, payload, sum[:]} {
		if _, err := (*seg).buf.Write(chunk); err != nil {
			return errors.Wrap(err, "write record")
		}
	}
	(*seg).size += size
	return nil
}

func (w *Writer) shouldRotate(seg *segment, now time.Time, next int64) bool {
	if seg == nil {
		return true
	}
	if seg.size > 0 && seg.size+next > w.cfg.SegmentMaxBytes {
		return true
	}
	return w.cfg.SegmentMaxDuration > 0 && now.Sub(seg.openedAt) >= w.cfg.SegmentMaxDuration
}

func (w *Writer) open(segID *uint64, now time.Time) (*segment, error) {
	ts := now.Format("20060102-150405")
	for {
		*segID++
		name := fmt.Sprintf("%s-%s-%06d%s", w.cfg.FilePrefix, ts, *segID, segmentSuffix)
		file, err := os.OpenFile(filepath.Join(w.cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, errors.Wrap(err, "open segment")
		}
		return &segment{
			file:     file,
			buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
			openedAt: now,
		}, nil
	}
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	w.err.CompareAndSwap(nil, failure{err: err})
}

type segment struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

func (s *segment) flush() error {
	if s == nil {
		return nil
	}
	return s.buf.Flush()
}

func (s *segment) sync() error {
	if s == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	if s == nil {
		return nil
	}
	if err := s.sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
