package journal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/yanun0323/errors"
)

// Record layout, little endian:
//
//	0:4   magic
//	4:6   version
//	6:8   header size
//	8:12  payload length
//	12:16 reserved
//	16:24 sequence
//	24:32 unix nano timestamp
//	payload
//	crc32c over header and payload
const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 32
	recordChecksumSize        = 4
)

var (
	recordMagic = [4]byte{'E', 'X', 'J', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic         = errors.New("journal invalid magic")
	ErrUnsupportedRecordVer = errors.New("journal unsupported record version")
	ErrInvalidHeaderSize    = errors.New("journal invalid header size")
	ErrChecksumMismatch     = errors.New("journal checksum mismatch")
)

type recordHeader struct {
	seq        uint64
	ts         int64
	payloadLen uint32
}

func encodeHeader(dst []byte, h recordHeader) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint32(dst[8:12], h.payloadLen)
	binary.LittleEndian.PutUint32(dst[12:16], 0)
	binary.LittleEndian.PutUint64(dst[16:24], h.seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(h.ts))
}

func decodeHeader(src []byte) (recordHeader, error) {
	if len(src) < recordHeaderSize {
		return recordHeader{}, ErrInvalidHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return recordHeader{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(src[4:6]); v != recordVersion {
		return recordHeader{}, ErrUnsupportedRecordVer
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != recordHeaderSize {
		return recordHeader{}, ErrInvalidHeaderSize
	}
	return recordHeader{
		payloadLen: binary.LittleEndian.Uint32(src[8:12]),
		seq:        binary.LittleEndian.Uint64(src[16:24]),
		ts:         int64(binary.LittleEndian.Uint64(src[24:32])),
	}, nil
}

func checksum(header, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}
