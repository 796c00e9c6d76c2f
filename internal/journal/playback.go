package journal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yanun0323/errors"
)

// PlaybackConfig controls journal playback.
type PlaybackConfig struct {
	Dir             string
	FilePrefix      string
	Speed           float64
	DisableChecksum bool
	MaxPayloadSize  int
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid playback config: Dir is empty")
	}
	if c.Speed < 0 {
		return errors.New("invalid playback config: Speed must be >= 0")
	}
	if c.MaxPayloadSize < 0 {
		return errors.New("invalid playback config: MaxPayloadSize must be >= 0")
	}
	return nil
}

// Clock allows deterministic pacing in tests.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays journal entries in segment order. With Speed > 0 the gaps between
// entry timestamps are reproduced, divided by Speed.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

func (p *Playback) Run(ctx context.Context, handler func(Entry) error) error {
	if handler == nil {
		return errors.New("playback handler is nil")
	}
	files, err := p.segments()
	if err != nil {
		return err
	}

	var prev time.Time
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prev); err != nil {
			return err
		}
	}
	return nil
}

// ReadAll collects every entry under dir without pacing.
func ReadAll(ctx context.Context, dir, prefix string) ([]Entry, error) {
	p, err := NewPlayback(PlaybackConfig{Dir: dir, FilePrefix: prefix})
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = p.Run(ctx, func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func (p *Playback) segments() ([]string, error) {
	dirEntries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "read journal dir")
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range dirEntries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(Entry) error, prev *time.Time) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open segment")
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxPayloadSize:  p.cfg.MaxPayloadSize,
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "read %s", path)
		}

		if err := p.pace(ctx, e.At, prev); err != nil {
			return err
		}
		if err := handler(e); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, at time.Time, prev *time.Time) error {
	if p.cfg.Speed <= 0 || at.IsZero() {
		return nil
	}
	if !prev.IsZero() {
		if delta := at.Sub(*prev); delta > 0 {
			if err := p.clock.Sleep(ctx, time.Duration(float64(delta)/p.cfg.Speed)); err != nil {
				return err
			}
		}
	}
	*prev = at
	return nil
}
