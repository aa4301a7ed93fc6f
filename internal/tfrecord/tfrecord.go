// Package tfrecord - reads and writes the TFRecord container format.
//
// Each record is framed as:
//
//	uint64 length | uint32 masked crc32c(length) | data | uint32 masked crc32c(data)
//
// all little-endian.
package tfrecord

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"iter"
)

const (
	headerSize = 12
	footerSize = 4
	maskDelta  = 0xa282ead8

	// DefaultBufferSize - read buffer used when none is configured.
	DefaultBufferSize = 256 << 20
	// MaxRecordSize - frames declaring a larger payload are treated as corrupt.
	MaxRecordSize = 1 << 30
)

// ErrCorrupt - a frame failed its checksum or declared an impossible length.
var ErrCorrupt = errors.New("corrupt tfrecord frame")

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	crc := crc32.Checksum(b, crcTable)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

type readerOpts struct {
	bufferSize int
	verify     bool
}

// ReaderOpt - configures a Reader.
type ReaderOpt func(*readerOpts)

// WithBufferSize - size of the read buffer. Uses DefaultBufferSize by default.
func WithBufferSize(n int) ReaderOpt {
	return func(o *readerOpts) {
		o.bufferSize = n
	}
}

// WithChecksums - verify frame checksums. Enabled by default.
func WithChecksums(verify bool) ReaderOpt {
	return func(o *readerOpts) {
		o.verify = verify
	}
}

// Reader - sequential record reader.
type Reader struct {
	r      *bufio.Reader
	verify bool
	offset int64
	header [headerSize]byte
	footer [footerSize]byte
}

// NewReader - wraps r in a buffered record reader.
func NewReader(r io.Reader, opts ...ReaderOpt) *Reader {
	o := readerOpts{bufferSize: DefaultBufferSize, verify: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Reader{
		r:      bufio.NewReaderSize(r, max(o.bufferSize, 16)),
		verify: o.verify,
	}
}

func (r *Reader) corrupt(reason string) error {
	return fmt.Errorf("%w. offset: %v %v", ErrCorrupt, r.offset, reason)
}

// Next - returns the next record. io.EOF marks a clean end of input;
// a frame cut short returns io.ErrUnexpectedEOF.
func (r *Reader) Next() ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint64(r.header[:8])
	if r.verify && maskedCRC(r.header[:8]) != binary.LittleEndian.Uint32(r.header[8:]) {
		return nil, r.corrupt("length checksum mismatch")
	}
	if length > MaxRecordSize {
		return nil, r.corrupt(fmt.Sprintf("length %v too large", length))
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, unexpected(err)
	}
	if _, err := io.ReadFull(r.r, r.footer[:]); err != nil {
		return nil, unexpected(err)
	}
	if r.verify && maskedCRC(data) != binary.LittleEndian.Uint32(r.footer[:]) {
		return nil, r.corrupt("data checksum mismatch")
	}
	r.offset += int64(headerSize + len(data) + footerSize)
	return data, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// All - iterates over every record. A read error is yielded once and ends the sequence.
func (r *Reader) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Writer - appends framed records to w.
type Writer struct {
	w      io.Writer
	header [headerSize]byte
	footer [footerSize]byte
}

// NewWriter - creates a record writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write - frames and writes one record.
func (w *Writer) Write(rec []byte) error {
	binary.LittleEndian.PutUint64(w.header[:8], uint64(len(rec)))
	binary.LittleEndian.PutUint32(w.header[8:], maskedCRC(w.header[:8]))
	binary.LittleEndian.PutUint32(w.footer[:], maskedCRC(rec))
	if _, err := w.w.Write(w.header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(rec); err != nil {
		return err
	}
	_, err := w.w.Write(w.footer[:])
	return err
}
