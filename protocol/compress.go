package protocol

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// compressThreshold is the smallest block value worth compressing.
const compressThreshold = 1024

// The encoder and decoder are shared; both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("protocol: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(MaxFrameSize),
	)
	if err != nil {
		panic("protocol: zstd decoder initialization failed: " + err.Error())
	}
}

// compressValue returns the wire form of a block value and whether it is
// compressed. Small or incompressible values are sent as is.
func compressValue(value []byte) ([]byte, bool) {
	if len(value) <= compressThreshold {
		return value, false
	}
	compressed := zstdEncoder.EncodeAll(value, make([]byte, 0, len(value)))
	if len(compressed) >= len(value) {
		return value, false
	}
	return compressed, true
}

func decompressValue(wire []byte) ([]byte, error) {
	value, err := zstdDecoder.DecodeAll(wire, nil)
	if err != nil {
		return nil, fmt.Errorf("protocol: decompress block: %w", err)
	}
	return value, nil
}
