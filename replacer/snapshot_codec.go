package replacer

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// CompressionType represents the compression algorithm of an encoded snapshot
type CompressionType uint8

const (
	CompressionNone   CompressionType = 0
	CompressionLZ4    CompressionType = 1
	CompressionSnappy CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Encoded snapshot layout:
// [0-1]: Magic number
// [2]: Compression type (0=none, 1=LZ4, 2=Snappy)
// [3]: Format version
// [4-7]: Size of the msgpack payload
// [8-15]: xxhash64 of the msgpack payload
// [16+]: Payload, compressed as declared

const (
	SnapshotMagic      = 0xE71C
	snapshotVersion    = 1
	snapshotHeaderSize = 16
)

// EncodeSnapshot serializes a snapshot with msgpack and compresses it.
// Payloads that do not shrink are stored uncompressed.
func EncodeSnapshot[F FrameID](snap *Snapshot[F], compression CompressionType) ([]byte, error) {
	raw, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, NewError(ErrCodeInternal, "EncodeSnapshot", "failed to marshal snapshot", err)
	}

	var payload []byte
	switch compression {
	case CompressionNone:
		payload = raw

	case CompressionLZ4:
		payload = make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, payload, nil)
		if err != nil {
			return nil, NewError(ErrCodeCompression, "EncodeSnapshot", "LZ4 compression failed", err)
		}
		payload = payload[:n]

	case CompressionSnappy:
		payload = snappy.Encode(nil, raw)

	default:
		return nil, NewError(ErrCodeCompression, "EncodeSnapshot",
			fmt.Sprintf("unsupported compression type: %d", compression), nil)
	}

	// lz4 reports incompressible input with n == 0
	if compression != CompressionNone && (len(payload) == 0 || len(payload) >= len(raw)) {
		compression = CompressionNone
		payload = raw
	}

	buf := make([]byte, snapshotHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], SnapshotMagic)
	buf[2] = uint8(compression)
	buf[3] = snapshotVersion
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(raw)))
	binary.LittleEndian.PutUint64(buf[8:16], xxhash.Sum64(raw))
	copy(buf[snapshotHeaderSize:], payload)

	return buf, nil
}

// DecodeSnapshot verifies and decodes a snapshot produced by EncodeSnapshot
func DecodeSnapshot[F FrameID](data []byte) (*Snapshot[F], error) {
	const op = "DecodeSnapshot"

	if len(data) < snapshotHeaderSize {
		return nil, ErrSnapshotCorrupted(op, fmt.Sprintf("data too short for header: %d bytes", len(data)), nil)
	}
	if magic := binary.LittleEndian.Uint16(data[0:2]); magic != SnapshotMagic {
		return nil, ErrSnapshotCorrupted(op, fmt.Sprintf("invalid magic number: got %04x, expected %04x", magic, SnapshotMagic), nil)
	}
	if version := data[3]; version != snapshotVersion {
		return nil, ErrSnapshotCorrupted(op, fmt.Sprintf("unsupported format version %d", version), nil)
	}

	compression := CompressionType(data[2])
	rawSize := int(binary.LittleEndian.Uint32(data[4:8]))
	checksum := binary.LittleEndian.Uint64(data[8:16])
	payload := data[snapshotHeaderSize:]

	var raw []byte
	switch compression {
	case CompressionNone:
		raw = payload

	case CompressionLZ4:
		raw = make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, NewError(ErrCodeCompression, op, "LZ4 decompression failed", err)
		}
		raw = raw[:n]

	case CompressionSnappy:
		var err error
		raw, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, NewError(ErrCodeCompression, op, "snappy decompression failed", err)
		}

	default:
		return nil, ErrSnapshotCorrupted(op, fmt.Sprintf("unsupported compression type: %d", compression), nil)
	}

	if len(raw) != rawSize {
		return nil, ErrSnapshotCorrupted(op, fmt.Sprintf("size mismatch: got %d, expected %d", len(raw), rawSize), nil)
	}
	if sum := xxhash.Sum64(raw); sum != checksum {
		return nil, ErrSnapshotCorrupted(op, fmt.Sprintf("checksum mismatch: got %016x, expected %016x", sum, checksum), nil)
	}

	snap := &Snapshot[F]{}
	if err := msgpack.Unmarshal(raw, snap); err != nil {
		return nil, ErrSnapshotCorrupted(op, "failed to unmarshal snapshot", err)
	}
	return snap, nil
}
