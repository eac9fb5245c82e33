package object

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how backends encode envelopes at rest. Every stored
// value starts with its Compression tag byte, so a store can hold a mix of
// encodings and the setting can change without rewriting old objects. The
// object ID is always computed over the uncompressed envelope.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
	CompressionLZ4  Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses the name produced by Compression.String. The empty
// string selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "zstd":
		return CompressionZstd, nil
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use through
// EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("object: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("object: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress encodes raw with c and prepends the tag byte. Inputs that do not
// shrink are stored with CompressionNone.
func Compress(c Compression, raw []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
	case CompressionZstd:
		out := make([]byte, 1, len(raw)/2+1)
		out[0] = byte(CompressionZstd)
		out = zstdEncoder.EncodeAll(raw, out)
		if len(out) < len(raw)+1 {
			return out, nil
		}
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(raw))
		out := make([]byte, 1+binary.MaxVarintLen64+bound)
		out[0] = byte(CompressionLZ4)
		n := 1 + binary.PutUvarint(out[1:], uint64(len(raw)))
		written, err := lz4.CompressBlock(raw, out[n:], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written > 0 && n+written < len(raw)+1 {
			return out[:n+written], nil
		}
	default:
		return nil, fmt.Errorf("unsupported compression %d", c)
	}
	out := make([]byte, 1+len(raw))
	out[0] = byte(CompressionNone)
	copy(out[1:], raw)
	return out, nil
}

// lz4MaxRatio bounds how far one compressed byte can expand in an LZ4 block.
const lz4MaxRatio = 255

// Decompress reverses Compress.
func Decompress(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: empty stored value", ErrDecode)
	}
	body := stored[1:]
	switch Compression(stored[0]) {
	case CompressionNone:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrDecode, err)
		}
		return out, nil
	case CompressionLZ4:
		size, n := binary.Uvarint(body)
		if n <= 0 {
			return nil, fmt.Errorf("%w: lz4: bad length prefix", ErrDecode)
		}
		if limit := uint64(len(body[n:]))*lz4MaxRatio + lz4MaxRatio; size > limit {
			return nil, fmt.Errorf("%w: lz4: length %d exceeds %d for %d compressed bytes", ErrDecode, size, limit, len(body[n:]))
		}
		out := make([]byte, size)
		read, err := lz4.UncompressBlock(body[n:], out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrDecode, err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("%w: lz4: got %d bytes, expected %d", ErrDecode, read, size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrDecode, stored[0])
	}
}
