// Package trace decodes the 32-byte fixed-width instruction records that
// make up a warp's gzip-compressed trace file (see SPEC_FULL.md
// §TRACE-FORMAT, resolved against original_source/.../trace.h).
package trace

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/macsim/macsim/internal/sim/opcode"
)

// RecordSize is the fixed stride of every instruction record on disk.
const RecordSize = 32

// Record is one decoded instruction.
type Record struct {
	Opcode     opcode.Opcode
	AccessSize uint8
	Address    uint64
	PC         uint64
	// Opaque carries the bytes this simulator has no use for (reserved
	// fields at offsets 2..7 and 24..31), forwarded unmodified in case a
	// downstream consumer (the inspector) wants to display them.
	Opaque [14]byte
}

// Decode parses one RecordSize-byte record. buf must be exactly RecordSize
// bytes.
func Decode(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, fmt.Errorf("trace: record must be %d bytes, got %d", RecordSize, len(buf))
	}
	var r Record
	r.Opcode = opcode.Opcode(buf[0])
	r.AccessSize = buf[1]
	copy(r.Opaque[:6], buf[2:8])
	r.Address = binary.LittleEndian.Uint64(buf[8:16])
	r.PC = binary.LittleEndian.Uint64(buf[16:24])
	copy(r.Opaque[6:14], buf[24:32])
	return r, nil
}

// Encode serializes r back into a RecordSize-byte buffer, the inverse of
// Decode. Used by test fixtures that synthesize trace files.
func Encode(r Record) []byte {
	buf := make([]byte, RecordSize)
	buf[0] = byte(r.Opcode)
	buf[1] = r.AccessSize
	copy(buf[2:8], r.Opaque[:6])
	binary.LittleEndian.PutUint64(buf[8:16], r.Address)
	binary.LittleEndian.PutUint64(buf[16:24], r.PC)
	copy(buf[24:32], r.Opaque[6:14])
	return buf
}

// Reader sequentially decodes records from a gzip-compressed warp trace
// file.
type Reader struct {
	f  *os.File
	gz *gzip.Reader
}

// Open opens the gzip-compressed trace file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: decompress %s: %w", path, err)
	}
	return &Reader{f: f, gz: gz}, nil
}

// Next reads and decodes the next record. It returns io.EOF once the file
// is exhausted.
func (r *Reader) Next() (Record, error) {
	buf := make([]byte, RecordSize)
	if _, err := io.ReadFull(r.gz, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, io.EOF
		}
		return Record{}, err
	}
	return Decode(buf)
}

// Close releases the underlying file and gzip stream.
func (r *Reader) Close() error {
	gzErr := r.gz.Close()
	fErr := r.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
