package shard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Binary layout, little-endian:
//
//	[0:4)   magic "PRS1"
//	[4:5)   format version
//	[5:6)   compression type
//	[6:8)   reserved
//	[8:16)  similar pair count
//	[16:24) dissimilar pair count
//	[24:32) uncompressed payload size
//	[32:)   payload: similar pairs then dissimilar pairs, 2x uint32 each
const (
	magic         uint32 = 0x31535250 // "PRS1"
	formatVersion uint8  = 1

	// HeaderSize is the fixed number of bytes a header read fetches.
	HeaderSize = 32

	pairSize = 8
)

// CompressionType defines the payload compression algorithm.
type CompressionType uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// CompressionByName returns a compression type by its stable name.
func CompressionByName(name string) (CompressionType, bool) {
	switch name {
	case "none":
		return CompressionNone, true
	case "lz4":
		return CompressionLZ4, true
	case "zstd":
		return CompressionZSTD, true
	default:
		return CompressionNone, false
	}
}

var (
	errBadMagic          = errors.New("bad magic")
	errBadVersion        = errors.New("unsupported format version")
	errBadCompression    = errors.New("unsupported compression type")
	errTruncated         = errors.New("truncated shard")
	errPayloadSizeWrong  = errors.New("payload size does not match header counts")
	errDecompressedWrong = errors.New("decompressed payload size mismatch")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode serializes a shard with the given payload compression.
func Encode(s *Shard, compression CompressionType) ([]byte, error) {
	payload := make([]byte, (len(s.Similar)+len(s.Dissimilar))*pairSize)
	off := 0
	for _, p := range s.Similar {
		binary.LittleEndian.PutUint32(payload[off:], p.I)
		binary.LittleEndian.PutUint32(payload[off+4:], p.J)
		off += pairSize
	}
	for _, p := range s.Dissimilar {
		binary.LittleEndian.PutUint32(payload[off:], p.I)
		binary.LittleEndian.PutUint32(payload[off+4:], p.J)
		off += pairSize
	}

	compressed, actual, err := compressPayload(payload, compression)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, HeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(buf[0:], magic)
	buf[4] = formatVersion
	buf[5] = byte(actual)
	binary.LittleEndian.PutUint64(buf[8:], uint64(len(s.Similar)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(len(s.Dissimilar)))
	binary.LittleEndian.PutUint64(buf[24:], uint64(len(payload)))
	copy(buf[HeaderSize:], compressed)
	return buf, nil
}

// DecodeHeader parses the fixed-size shard header. data must hold at least
// HeaderSize bytes.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errTruncated
	}
	if binary.LittleEndian.Uint32(data[0:]) != magic {
		return Header{}, errBadMagic
	}
	if data[4] != formatVersion {
		return Header{}, fmt.Errorf("%w: %d", errBadVersion, data[4])
	}
	if ct := CompressionType(data[5]); ct > CompressionZSTD {
		return Header{}, fmt.Errorf("%w: %d", errBadCompression, data[5])
	}
	h := Header{
		SimilarCount:    binary.LittleEndian.Uint64(data[8:]),
		DissimilarCount: binary.LittleEndian.Uint64(data[16:]),
	}
	if binary.LittleEndian.Uint64(data[24:]) != h.TotalPairs()*pairSize {
		return Header{}, errPayloadSizeWrong
	}
	return h, nil
}

// Decode parses a complete encoded shard.
func Decode(slideID string, data []byte) (*Shard, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}

	payload, err := decompressPayload(data[HeaderSize:], CompressionType(data[5]), h.TotalPairs()*pairSize)
	if err != nil {
		return nil, err
	}

	s := &Shard{
		SlideID:    slideID,
		Similar:    make([]Pair, h.SimilarCount),
		Dissimilar: make([]Pair, h.DissimilarCount),
	}
	off := 0
	for i := range s.Similar {
		s.Similar[i] = Pair{
			I: binary.LittleEndian.Uint32(payload[off:]),
			J: binary.LittleEndian.Uint32(payload[off+4:]),
		}
		off += pairSize
	}
	for i := range s.Dissimilar {
		s.Dissimilar[i] = Pair{
			I: binary.LittleEndian.Uint32(payload[off:]),
			J: binary.LittleEndian.Uint32(payload[off+4:]),
		}
		off += pairSize
	}
	return s, nil
}

// compressPayload returns the encoded payload and the compression type that
// was actually applied. Incompressible payloads are stored uncompressed.
func compressPayload(payload []byte, compression CompressionType) ([]byte, CompressionType, error) {
	switch compression {
	case CompressionNone:
		return payload, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		var c lz4.Compressor
		n, err := c.CompressBlock(payload, dst)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 || n >= len(payload) {
			return payload, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		compressed := enc.EncodeAll(payload, nil)
		if len(compressed) >= len(payload) {
			return payload, CompressionNone, nil
		}
		return compressed, CompressionZSTD, nil
	default:
		return nil, 0, fmt.Errorf("%w: %d", errBadCompression, compression)
	}
}

func decompressPayload(data []byte, compression CompressionType, uncompressedSize uint64) ([]byte, error) {
	switch compression {
	case CompressionNone:
		if uint64(len(data)) != uncompressedSize {
			return nil, errTruncated
		}
		return data, nil
	case CompressionLZ4:
		dst := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, err
		}
		if uint64(n) != uncompressedSize {
			return nil, errDecompressedWrong
		}
		return dst, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		dst, err := dec.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, err
		}
		if uint64(len(dst)) != uncompressedSize {
			return nil, errDecompressedWrong
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("%w: %d", errBadCompression, compression)
	}
}
