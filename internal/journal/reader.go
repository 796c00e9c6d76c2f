package journal

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

var ErrPayloadTooLarge = errors.New("journal payload too large")

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes journal records sequentially.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	payload   []byte
}

func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Next returns the next entry, or io.EOF at a clean end of input. A record cut short
// by a crash yields io.ErrUnexpectedEOF.
func (r *Reader) Next() (Entry, error) {
	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return Entry{}, io.EOF
		}
		return Entry{}, err
	}

	h, err := decodeHeader(r.headerBuf)
	if err != nil {
		return Entry{}, err
	}
	if r.opts.MaxPayloadSize > 0 && h.payloadLen > uint32(r.opts.MaxPayloadSize) {
		return Entry{}, ErrPayloadTooLarge
	}

	if cap(r.payload) < int(h.payloadLen) {
		r.payload = make([]byte, h.payloadLen)
	}
	r.payload = r.payload[:h.payloadLen]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return Entry{}, err
	}

	var sum [recordChecksumSize]byte
	if _, err := io.ReadFull(r.r, sum[:]); err != nil {
		return Entry{}, err
	}
	if !r.opts.DisableChecksum && binary.LittleEndian.Uint32(sum[:]) != checksum(r.headerBuf, r.payload) {
		return Entry{}, ErrChecksumMismatch
	}

	var e Entry
	if err := sonic.Unmarshal(r.payload, &e); err != nil {
		return Entry{}, errors.Wrapf(err, "decode entry %d", h.seq)
	}
	return e, nil
}
