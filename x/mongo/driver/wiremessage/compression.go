package wiremessage

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// CompressorID identifies a wire-level compression algorithm, sent in the
// OP_COMPRESSED envelope and negotiated during the handshake's "compression"
// array.
type CompressorID byte

// The compressors this driver supports, grounded on the legacy connection
// package's compressor.Compressor abstraction but implemented directly
// against the two third-party codecs in the pack plus stdlib zlib.
const (
	CompressorNoop   CompressorID = 0
	CompressorSnappy CompressorID = 1
	CompressorZlib   CompressorID = 2
	CompressorZstd   CompressorID = 3
)

func (id CompressorID) String() string {
	switch id {
	case CompressorNoop:
		return "noop"
	case CompressorSnappy:
		return "snappy"
	case CompressorZlib:
		return "zlib"
	case CompressorZstd:
		return "zstd"
	default:
		return fmt.Sprintf("CompressorID(%d)", id)
	}
}

// CompressorIDForName maps a negotiated compressor name to its ID, and
// reports whether it is recognized.
func CompressorIDForName(name string) (CompressorID, bool) {
	switch name {
	case "snappy":
		return CompressorSnappy, true
	case "zlib":
		return CompressorZlib, true
	case "zstd":
		return CompressorZstd, true
	default:
		return CompressorNoop, false
	}
}

// zstdEncoder/zstdDecoder are safe for concurrent use and expensive to
// build, so the package keeps one of each instead of allocating per message.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Compress appends the compressed form of src to dst using the given
// compressor. level configures zlib's compression level (zlibCompressionLevel,
// spec.md's connection-string options); it's ignored for every other
// compressor. Omitting it (or passing an invalid level) falls back to
// zlib.DefaultCompression.
func Compress(dst, src []byte, id CompressorID, level ...int) ([]byte, error) {
	switch id {
	case CompressorSnappy:
		return append(dst, snappy.Encode(nil, src)...), nil
	case CompressorZlib:
		lvl := zlib.DefaultCompression
		if len(level) > 0 {
			lvl = level[0]
		}
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, lvl)
		if err != nil {
			w = zlib.NewWriter(&buf)
		}
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return append(dst, buf.Bytes()...), nil
	case CompressorZstd:
		return zstdEncoder.EncodeAll(src, dst), nil
	default:
		return nil, fmt.Errorf("wiremessage: unsupported compressor %s", id)
	}
}

// Decompress appends the decompressed form of src (whose decompressed
// length is uncompressedSize) to dst.
func Decompress(dst, src []byte, id CompressorID, uncompressedSize int32) ([]byte, error) {
	switch id {
	case CompressorSnappy:
		out, err := snappy.Decode(nil, src)
		if err != nil {
			return nil, err
		}
		return append(dst, out...), nil
	case CompressorZlib:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		buf := make([]byte, uncompressedSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return append(dst, buf...), nil
	case CompressorZstd:
		out, err := zstdDecoder.DecodeAll(src, dst)
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("wiremessage: unsupported compressor %s", id)
	}
}

// Compressed is a decoded OP_COMPRESSED envelope.
type Compressed struct {
	Header            Header
	OriginalOpCode    OpCode
	UncompressedSize  int32
	CompressorID      CompressorID
	CompressedMessage []byte
}

// Append encodes c to dst.
func (c Compressed) Append(dst []byte) []byte {
	idx := len(dst)
	c.Header.OpCode = OpCompressed
	dst = c.Header.AppendHeader(dst)
	dst = appendInt32(dst, int32(c.OriginalOpCode))
	dst = appendInt32(dst, c.UncompressedSize)
	dst = append(dst, byte(c.CompressorID))
	dst = append(dst, c.CompressedMessage...)
	binaryPutUint32(dst[idx:], uint32(len(dst)-idx))
	return dst
}

// ReadCompressed decodes an OP_COMPRESSED body (bytes after the header).
func ReadCompressed(hdr Header, src []byte) (Compressed, error) {
	if len(src) < 9 {
		return Compressed{}, fmt.Errorf("wiremessage: OP_COMPRESSED body too short")
	}
	c := Compressed{Header: hdr}
	c.OriginalOpCode = OpCode(readInt32(src))
	c.UncompressedSize = readInt32(src[4:])
	c.CompressorID = CompressorID(src[8])
	c.CompressedMessage = src[9:]
	return c, nil
}

func binaryPutUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
