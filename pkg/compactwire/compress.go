package compactwire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// codecs holds lazily created compressors; zstd encoders and decoders are
// expensive to build and safe to reuse.
type codecs struct {
	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

// compress returns no payload at all for an empty batch, whatever the flags.
func (c *codecs) compress(flags byte, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch flags & compressionMask {
	case FlagZstd:
		if c.zenc == nil {
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				return nil, err
			}
			c.zenc = enc
		}
		return c.zenc.EncodeAll(raw, nil), nil
	case FlagBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return raw, nil
}

// decompress inflates src, refusing to produce more than rawLen bytes.
func (c *codecs) decompress(flags byte, src []byte, rawLen int) ([]byte, error) {
	if rawLen == 0 {
		if len(src) != 0 {
			return nil, ErrLengthMismatch
		}
		return nil, nil
	}
	var out []byte
	switch flags & compressionMask {
	case FlagZstd:
		if c.zdec == nil {
			dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPayload))
			if err != nil {
				return nil, err
			}
			c.zdec = dec
		}
		var err error
		out, err = c.zdec.DecodeAll(src, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
	case FlagBrotli:
		var err error
		out, err = io.ReadAll(io.LimitReader(brotli.NewReader(bytes.NewReader(src)), int64(rawLen)+1))
		if err != nil {
			return nil, fmt.Errorf("brotli: %w", err)
		}
	default:
		return src, nil
	}
	if len(out) != rawLen {
		return nil, ErrLengthMismatch
	}
	return out, nil
}

func (c *codecs) Close() {
	if c.zenc != nil {
		_ = c.zenc.Close()
		c.zenc = nil
	}
	if c.zdec != nil {
		c.zdec.Close()
		c.zdec = nil
	}
}
