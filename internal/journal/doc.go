/*
Journal records execution outcomes in append-only segments.

# Module
  - writer: single goroutine, bounded queue, size/age rotation
  - reader: sequential record decoding with checksum
  - playback: ordered replay across segments, optional pacing

# Source
  - outcomes from execution (as an OutcomeSink)
  - plain notifications from execution

# Produce
  - order state reconstruction via Fold
*/
package journal
