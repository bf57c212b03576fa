// File container for an encoded entry stream.
//
// Layout: a 16-byte header (magic, version, flags, checksum algorithm,
// payload length), the entry stream payload — optionally zstd-compressed —
// and an 8-byte big-endian checksum of the payload as stored. The checksum
// covers the bytes on disk, so verification happens before decompression
// and a corrupt file never reaches the entry decoder.
package flatwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// ContainerHeaderSize is the fixed size of the container header in bytes.
const ContainerHeaderSize = 16

const (
	containerVersion = 1
	flagCompressed   = 1 << 0
)

var containerMagic = [4]byte{'F', 'L', 'W', '1'}

// Checksum algorithm constants.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Best distribution
)

// ContainerConfig controls how a container is written. The zero value means
// uncompressed with an xxHash3 checksum.
type ContainerConfig struct {
	Compress  bool // zstd-compress the entry stream
	Algorithm int  // checksum algorithm, AlgXXHash3 if zero
}

// Shared encoder/decoder — both are documented as safe for concurrent use.
// Allocated once at init because zstd encoder/decoder construction is
// expensive. SpeedFastest: entry streams are already compact thanks to
// prefix elision, so ratio gains beyond the fast level are marginal.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// checksum hashes data to 64 bits with the selected algorithm.
func checksum(data []byte, alg int) (uint64, error) {
	switch alg {
	case AlgXXHash3:
		return xxh3.Hash(data), nil
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(data)
		return h.Sum64(), nil
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		h.Write(data)
		return binary.BigEndian.Uint64(h.Sum(nil)), nil
	default:
		return 0, fmt.Errorf("%w: checksum algorithm %d", ErrCorruptHeader, alg)
	}
}

// EncodeContainer encodes d as a self-contained container image. The
// document must flatten in canonical order; call SortKeys first otherwise.
func EncodeContainer(d *Document, cfg ContainerConfig) ([]byte, error) {
	alg := cfg.Algorithm
	if alg == 0 {
		alg = AlgXXHash3
	}

	buf := make([]byte, ContainerHeaderSize)
	enc := NewEncoder(sliceWriter{&buf})
	if err := enc.WriteDocument(d); err != nil {
		return nil, err
	}

	payload := buf[ContainerHeaderSize:]
	flags := byte(0)
	if cfg.Compress {
		payload = zstdEncoder.EncodeAll(payload, nil)
		buf = append(buf[:ContainerHeaderSize], payload...)
		flags |= flagCompressed
	}

	copy(buf[0:4], containerMagic[:])
	buf[4] = containerVersion
	buf[5] = flags
	buf[6] = byte(alg)
	buf[7] = 0
	binary.BigEndian.PutUint64(buf[8:16], uint64(len(payload)))

	sum, err := checksum(payload, alg)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(buf, sum), nil
}

// DecodeContainer verifies and decodes a container image back into a
// document.
func DecodeContainer(data []byte) (*Document, error) {
	payload, err := containerPayload(data)
	if err != nil {
		return nil, err
	}
	return Reconstruct(NewDecoder(bytes.NewReader(payload)).Entries())
}

// containerPayload validates the header and checksum and returns the raw
// entry stream, decompressing if needed.
func containerPayload(data []byte) ([]byte, error) {
	if len(data) < ContainerHeaderSize+8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptHeader, len(data))
	}
	if [4]byte(data[0:4]) != containerMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptHeader)
	}
	if data[4] != containerVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorruptHeader, data[4])
	}
	flags := data[5]
	alg := int(data[6])
	payloadLen := binary.BigEndian.Uint64(data[8:16])
	if uint64(len(data)) != ContainerHeaderSize+payloadLen+8 {
		return nil, fmt.Errorf("%w: payload length %d in %d-byte image", ErrCorruptHeader, payloadLen, len(data))
	}

	payload := data[ContainerHeaderSize : ContainerHeaderSize+payloadLen]
	want := binary.BigEndian.Uint64(data[len(data)-8:])
	got, err := checksum(payload, alg)
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("%w: %016x != %016x", ErrChecksum, got, want)
	}

	if flags&flagCompressed != 0 {
		out, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrDecompress, err)
		}
		return out, nil
	}
	return payload, nil
}

// WriteFile encodes d into a container file at name.
func WriteFile(name string, d *Document, cfg ContainerConfig) error {
	data, err := EncodeContainer(d, cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

// ReadFile decodes a container file back into a document.
func ReadFile(name string) (*Document, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return DecodeContainer(data)
}

// sliceWriter appends to a caller-owned byte slice.
type sliceWriter struct {
	buf *[]byte
}

func (w sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
