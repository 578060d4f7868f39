package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/codec"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/klauspost/compress/zstd"
)

// Envelope layout:
//
//	magic     [4]byte  "TWX1"
//	flags     uint8    bit 0: body is zstd compressed
//	expiresAt int64    unix nanoseconds, 0 = never
//	checksum  uint64   xxhash64 of the uncompressed payload
//	body      []byte   CBOR-encoded index, optionally compressed
var envelopeMagic = [4]byte{'T', 'W', 'X', '1'}

const (
	envelopeHeaderSize = 4 + 1 + 8 + 8
	flagZstd           = 1 << 0
)

var (
	errExpired   = errors.New("cache: entry expired")
	errCorrupted = errors.New("cache: entry corrupted")
)

// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("cache: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("cache: zstd decoder initialization failed: " + err.Error())
	}
}

// sealIndex encodes an index into a store value.
func sealIndex(idx *types.Index, compress bool, expiresAt time.Time) ([]byte, error) {
	payload, err := codec.EncodeIndex(idx)
	if err != nil {
		return nil, err
	}

	var flags uint8
	body := payload
	if compress {
		body = zstdEncoder.EncodeAll(payload, nil)
		flags |= flagZstd
	}

	var expires int64
	if !expiresAt.IsZero() {
		expires = expiresAt.UnixNano()
	}

	buf := make([]byte, envelopeHeaderSize, envelopeHeaderSize+len(body))
	copy(buf[0:4], envelopeMagic[:])
	buf[4] = flags
	binary.BigEndian.PutUint64(buf[5:13], uint64(expires))
	binary.BigEndian.PutUint64(buf[13:21], xxhash.Sum64(payload))
	return append(buf, body...), nil
}

// openIndex decodes a store value. Expired entries return errExpired, any
// structural problem returns an error wrapping errCorrupted.
func openIndex(data []byte, now time.Time) (*types.Index, error) {
	if len(data) < envelopeHeaderSize {
		return nil, fmt.Errorf("%w: short envelope (%d bytes)", errCorrupted, len(data))
	}
	if !bytes.Equal(data[0:4], envelopeMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", errCorrupted)
	}

	flags := data[4]
	expires := int64(binary.BigEndian.Uint64(data[5:13]))
	checksum := binary.BigEndian.Uint64(data[13:21])
	body := data[envelopeHeaderSize:]

	if expires != 0 && now.UnixNano() >= expires {
		return nil, errExpired
	}

	payload := body
	if flags&flagZstd != 0 {
		decoded, err := zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decompress: %v", errCorrupted, err)
		}
		payload = decoded
	}

	if xxhash.Sum64(payload) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", errCorrupted)
	}

	idx, err := codec.DecodeIndex(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupted, err)
	}
	return idx, nil
}
