package journal

import (
	"time"

	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 64 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "outcomes"
	segmentSuffix                = ".journal"
)

var defaultSegmentMaxDuration = time.Hour

// Config controls journal writer behavior.
type Config struct {
	Dir                string        `mapstructure:"dir"`
	FilePrefix         string        `mapstructure:"file_prefix"`
	SegmentMaxBytes    int64         `mapstructure:"segment_max_bytes"`
	SegmentMaxDuration time.Duration `mapstructure:"segment_max_duration"`
	QueueSize          int           `mapstructure:"queue_size"`
	BufferSize         int           `mapstructure:"buffer_size"`
	FlushInterval      time.Duration `mapstructure:"flush_interval"`
	SyncInterval       time.Duration `mapstructure:"sync_interval"`
}

func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		FilePrefix:         defaultFilePrefix,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FlushInterval:      time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid journal config: Dir is empty")
	}
	if c.SegmentMaxBytes <= 0 {
		return errors.New("invalid journal config: SegmentMaxBytes must be > 0")
	}
	if c.SegmentMaxDuration < 0 {
		return errors.New("invalid journal config: SegmentMaxDuration must be >= 0")
	}
	if c.QueueSize <= 0 {
		return errors.New("invalid journal config: QueueSize must be > 0")
	}
	if c.BufferSize <= 0 {
		return errors.New("invalid journal config: BufferSize must be > 0")
	}
	if c.FlushInterval < 0 || c.SyncInterval < 0 {
		return errors.New("invalid journal config: intervals must be >= 0")
	}
	return nil
}
