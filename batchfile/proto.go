package batchfile

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tsawler/go-synth90k/vision/dataloader"
)

// magic starts every proto batch file. It is followed by one length-delimited
// metadata message and then one length-delimited message per batch.
var magic = []byte("S90KBAT1")

// maxRecordSize bounds a single record to keep a corrupt length prefix from
// triggering a huge allocation
const maxRecordSize = 1 << 30

// Metadata message fields
const (
	metaVersion     protowire.Number = 1
	metaFramework   protowire.Number = 2
	metaCreatedAt   protowire.Number = 3
	metaSplit       protowire.Number = 4
	metaDescription protowire.Number = 5
)

// Batch message fields
const (
	batchN       protowire.Number = 1
	batchHeight  protowire.Number = 2
	batchWidth   protowire.Number = 3
	batchImages  protowire.Number = 4 // packed fixed32
	batchLabels  protowire.Number = 5 // packed varint
	batchLengths protowire.Number = 6 // packed varint
	batchPaths   protowire.Number = 7
	batchIndices protowire.Number = 8 // packed varint
	batchLabeled protowire.Number = 9
)

// Writer streams batches in the proto format
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter writes the file header and metadata to w
func NewWriter(w io.Writer, meta Metadata) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic); err != nil {
		return nil, errors.Wrap(err, "failed to write header")
	}

	writer := &Writer{w: bw}
	if err := writer.writeRecord(marshalMetadata(meta)); err != nil {
		return nil, err
	}
	return writer, nil
}

// Write appends one batch
func (w *Writer) Write(b *dataloader.Batch) error {
	if err := Validate(b); err != nil {
		return err
	}
	w.buf = marshalBatch(w.buf[:0], b)
	return w.writeRecord(w.buf)
}

// Flush writes buffered data to the underlying writer
func (w *Writer) Flush() error {
	return errors.Wrap(w.w.Flush(), "failed to flush batch file")
}

func (w *Writer) writeRecord(msg []byte) error {
	var prefix [binaryMaxVarintLen]byte
	header := protowire.AppendVarint(prefix[:0], uint64(len(msg)))
	if _, err := w.w.Write(header); err != nil {
		return errors.Wrap(err, "failed to write record length")
	}
	if _, err := w.w.Write(msg); err != nil {
		return errors.Wrap(err, "failed to write record")
	}
	return nil
}

const binaryMaxVarintLen = 10

// Reader streams batches from the proto format
type Reader struct {
	r    *bufio.Reader
	meta Metadata
}

// NewReader checks the file header and reads the metadata
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	header := make([]byte, len(magic))
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "missing header")
	}
	if !bytes.Equal(header, magic) {
		return nil, errors.Wrap(ErrCorrupt, "bad header")
	}

	reader := &Reader{r: br}
	msg, err := reader.readRecord()
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.Wrap(ErrCorrupt, "missing metadata")
	}
	if reader.meta, err = unmarshalMetadata(msg); err != nil {
		return nil, err
	}
	return reader, nil
}

// Metadata returns the file metadata
func (r *Reader) Metadata() Metadata {
	return r.meta
}

// Next returns the next batch, or nil at the end of the file
func (r *Reader) Next() (*dataloader.Batch, error) {
	msg, err := r.readRecord()
	if err != nil || msg == nil {
		return nil, err
	}
	return unmarshalBatch(msg)
}

// readRecord returns nil, nil on a clean end of file
func (r *Reader) readRecord() ([]byte, error) {
	var prefix []byte
	for {
		c, err := r.r.ReadByte()
		if err == io.EOF && len(prefix) == 0 {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, "truncated record length")
		}
		prefix = append(prefix, c)
		if c < 0x80 {
			break
		}
		if len(prefix) >= binaryMaxVarintLen {
			return nil, errors.Wrap(ErrCorrupt, "record length overflow")
		}
	}

	size, n := protowire.ConsumeVarint(prefix)
	if n < 0 {
		return nil, errors.Wrap(protowire.ParseError(n), "bad record length")
	}
	if size > maxRecordSize {
		return nil, errors.Wrapf(ErrCorrupt, "record of %d bytes exceeds limit", size)
	}

	msg := make([]byte, size)
	if _, err := io.ReadFull(r.r, msg); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "truncated record")
	}
	return msg, nil
}

func marshalMetadata(m Metadata) []byte {
	var b []byte
	b = protowire.AppendTag(b, metaVersion, protowire.BytesType)
	b = protowire.AppendString(b, m.Version)
	b = protowire.AppendTag(b, metaFramework, protowire.BytesType)
	b = protowire.AppendString(b, m.Framework)
	if !m.CreatedAt.IsZero() {
		b = protowire.AppendTag(b, metaCreatedAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	}
	if m.Split != "" {
		b = protowire.AppendTag(b, metaSplit, protowire.BytesType)
		b = protowire.AppendString(b, m.Split)
	}
	if m.Description != "" {
		b = protowire.AppendTag(b, metaDescription, protowire.BytesType)
		b = protowire.AppendString(b, m.Description)
	}
	return b
}

func unmarshalMetadata(b []byte) (Metadata, error) {
	var m Metadata
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return m, errors.Wrap(protowire.ParseError(n), "bad metadata")
		}
		b = b[n:]

		switch {
		case num == metaCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return m, errors.Wrap(protowire.ParseError(n), "bad metadata created_at")
			}
			m.CreatedAt = time.Unix(0, int64(v))
			b = b[n:]
		case typ == protowire.BytesType && num >= metaVersion && num <= metaDescription:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return m, errors.Wrap(protowire.ParseError(n), "bad metadata string")
			}
			switch num {
			case metaVersion:
				m.Version = s
			case metaFramework:
				m.Framework = s
			case metaSplit:
				m.Split = s
			case metaDescription:
				m.Description = s
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return m, errors.Wrap(protowire.ParseError(n), "bad metadata field")
			}
			b = b[n:]
		}
	}
	return m, nil
}

func marshalBatch(b []byte, batch *dataloader.Batch) []byte {
	b = protowire.AppendTag(b, batchN, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(batch.N))
	b = protowire.AppendTag(b, batchHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(batch.Height))
	b = protowire.AppendTag(b, batchWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(batch.Width))

	if len(batch.Images) > 0 {
		packed := make([]byte, 0, 4*len(batch.Images))
		for _, v := range batch.Images {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		b = protowire.AppendTag(b, batchImages, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}

	if batch.Labeled() {
		b = protowire.AppendTag(b, batchLabeled, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
		b = appendPackedInt32(b, batchLabels, batch.Labels)
		b = appendPackedInt32(b, batchLengths, batch.Lengths)
	}

	for _, p := range batch.Paths {
		b = protowire.AppendTag(b, batchPaths, protowire.BytesType)
		b = protowire.AppendString(b, p)
	}

	if len(batch.Indices) > 0 {
		var packed []byte
		for _, v := range batch.Indices {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = protowire.AppendTag(b, batchIndices, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func appendPackedInt32(b []byte, num protowire.Number, values []int32) []byte {
	if len(values) == 0 {
		return b
	}
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, uint64(int64(v)))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func unmarshalBatch(b []byte) (*dataloader.Batch, error) {
	batch := &dataloader.Batch{}
	labeled := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "bad batch")
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && (num == batchN || num == batchHeight || num == batchWidth || num == batchLabeled):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "bad batch field")
			}
			switch num {
			case batchN:
				batch.N = int(v)
			case batchHeight:
				batch.Height = int(v)
			case batchWidth:
				batch.Width = int(v)
			case batchLabeled:
				labeled = protowire.DecodeBool(v)
			}
			b = b[n:]

		case typ == protowire.BytesType && num == batchPaths:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "bad batch path")
			}
			batch.Paths = append(batch.Paths, s)
			b = b[n:]

		case typ == protowire.BytesType && (num == batchImages || num == batchLabels || num == batchLengths || num == batchIndices):
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "bad packed field")
			}
			b = b[n:]

			var err error
			switch num {
			case batchImages:
				batch.Images, err = consumePackedFloat32(packed)
			case batchLabels:
				batch.Labels, err = consumePackedInt32(packed)
			case batchLengths:
				batch.Lengths, err = consumePackedInt32(packed)
			case batchIndices:
				var values []int32
				values, err = consumePackedInt32(packed)
				batch.Indices = make([]int, len(values))
				for i, v := range values {
					batch.Indices[i] = int(v)
				}
			}
			if err != nil {
				return nil, err
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "bad batch field")
			}
			b = b[n:]
		}
	}

	if labeled {
		if batch.Labels == nil {
			batch.Labels = []int32{}
		}
		if batch.Lengths == nil {
			batch.Lengths = []int32{}
		}
	}
	if batch.Images == nil {
		batch.Images = []float32{}
	}
	if batch.Indices == nil {
		batch.Indices = []int{}
	}
	if batch.Paths == nil {
		batch.Paths = []string{}
	}
	return batch, nil
}

func consumePackedFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.Wrapf(ErrCorrupt, "packed float field of %d bytes", len(b))
	}
	out := make([]float32, 0, len(b)/4)
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "bad packed float")
		}
		out = append(out, math.Float32frombits(v))
		b = b[n:]
	}
	return out, nil
}

func consumePackedInt32(b []byte) ([]int32, error) {
	var out []int32
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "bad packed varint")
		}
		out = append(out, int32(v))
		b = b[n:]
	}
	return out, nil
}
