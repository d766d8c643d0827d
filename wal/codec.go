package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

var (
	// ErrInvalidCRC indicates a record whose checksum does not match its
	// contents, typically a torn write at the tail of the log.
	ErrInvalidCRC = errors.New("invalid WAL record checksum")
	// ErrInvalidType indicates a record with an unknown operation type.
	ErrInvalidType = errors.New("invalid WAL record type")
	// ErrShortRead indicates a record payload shorter than its declared fields.
	ErrShortRead = errors.New("short read in WAL record")
	// ErrRecordTooLarge guards against absurd length prefixes from corruption.
	ErrRecordTooLarge = errors.New("WAL record too large")
)

// maxRecordSize bounds a single record payload (corruption sanity check).
const maxRecordSize = 100 * 1024 * 1024

// Record framing:
//
//	[CRC32: 4 bytes] [Type: 1 byte] [SeqNum: 8 bytes] [Length: 4 bytes] [Payload: Length bytes]
//
// The CRC covers the 13-byte header and the payload. All integers are
// little-endian; strings are length-prefixed; vectors are stored as raw
// float32 bits. Payload per type:
//
//	OpCreateCollection: [Name] [Dimension: 4] [Metric]
//	OpUpsert:           [Collection] [ID] [Dim: 4] [Vector: Dim*4] [MetaCount: 4] ([Key] [Value])*
//	OpDeleteEmbedding:  [Collection] [ID]
//	OpDropCollection:   [Name]
func encodeEntry(w io.Writer, entry *Entry) error {
	payload, err := encodePayload(entry)
	if err != nil {
		return err
	}

	header := make([]byte, 13)
	header[0] = byte(entry.Type)
	binary.LittleEndian.PutUint64(header[1:], entry.SeqNum)
	binary.LittleEndian.PutUint32(header[9:], uint32(len(payload)))

	crc := crc32.NewIEEE()
	crc.Write(header)
	crc.Write(payload)

	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc.Sum32())
	if _, err := w.Write(crcBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

func encodePayload(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer

	switch entry.Type {
	case OpCreateCollection:
		writeString(&buf, entry.Collection)
		writeUint32(&buf, entry.Dimension)
		writeString(&buf, entry.Metric)
	case OpUpsert:
		writeString(&buf, entry.Collection)
		writeString(&buf, entry.ID)
		writeUint32(&buf, uint32(len(entry.Vector)))
		for _, v := range entry.Vector {
			writeUint32(&buf, math.Float32bits(v))
		}
		writeUint32(&buf, uint32(len(entry.Metadata)))
		for k, v := range entry.Metadata {
			writeString(&buf, k)
			writeString(&buf, v)
		}
	case OpDeleteEmbedding:
		writeString(&buf, entry.Collection)
		writeString(&buf, entry.ID)
	case OpDropCollection:
		writeString(&buf, entry.Collection)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, entry.Type)
	}

	return buf.Bytes(), nil
}

// decodeEntry reads one record from r. It returns ErrInvalidCRC for torn or
// bit-rotted records and io.EOF / io.ErrUnexpectedEOF for a truncated tail.
func decodeEntry(r io.Reader, entry *Entry) error {
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return err
	}
	checksum := binary.LittleEndian.Uint32(crcBuf[:])

	header := make([]byte, 13)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	opType := OperationType(header[0])
	seqNum := binary.LittleEndian.Uint64(header[1:])
	length := binary.LittleEndian.Uint32(header[9:])

	if length > maxRecordSize {
		return ErrRecordTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	crc := crc32.NewIEEE()
	crc.Write(header)
	crc.Write(payload)
	if crc.Sum32() != checksum {
		return ErrInvalidCRC
	}

	*entry = Entry{Type: opType, SeqNum: seqNum}

	switch opType {
	case OpCreateCollection:
		return parseCreateCollection(payload, entry)
	case OpUpsert:
		return parseUpsert(payload, entry)
	case OpDeleteEmbedding:
		return parseDeleteEmbedding(payload, entry)
	case OpDropCollection:
		return parseDropCollection(payload, entry)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidType, opType)
	}
}

func parseCreateCollection(payload []byte, entry *Entry) error {
	name, offset, err := readString(payload, 0)
	if err != nil {
		return err
	}
	entry.Collection = name

	if len(payload) < offset+4 {
		return ErrShortRead
	}
	entry.Dimension = binary.LittleEndian.Uint32(payload[offset:])
	offset += 4

	metric, _, err := readString(payload, offset)
	if err != nil {
		return err
	}
	entry.Metric = metric
	return nil
}

func parseUpsert(payload []byte, entry *Entry) error {
	collection, offset, err := readString(payload, 0)
	if err != nil {
		return err
	}
	entry.Collection = collection

	id, offset, err := readString(payload, offset)
	if err != nil {
		return err
	}
	entry.ID = id

	if len(payload) < offset+4 {
		return ErrShortRead
	}
	dim := binary.LittleEndian.Uint32(payload[offset:])
	offset += 4

	if uint32(len(payload)-offset) < dim*4 {
		return ErrShortRead
	}
	entry.Vector = make([]float32, dim)
	for i := 0; i < int(dim); i++ {
		entry.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[offset:]))
		offset += 4
	}

	if len(payload) < offset+4 {
		return ErrShortRead
	}
	count := binary.LittleEndian.Uint32(payload[offset:])
	offset += 4

	if count > 0 {
		entry.Metadata = make(map[string]string, count)
		for i := uint32(0); i < count; i++ {
			var k, v string
			k, offset, err = readString(payload, offset)
			if err != nil {
				return err
			}
			v, offset, err = readString(payload, offset)
			if err != nil {
				return err
			}
			entry.Metadata[k] = v
		}
	}
	return nil
}

func parseDeleteEmbedding(payload []byte, entry *Entry) error {
	collection, offset, err := readString(payload, 0)
	if err != nil {
		return err
	}
	entry.Collection = collection

	id, _, err := readString(payload, offset)
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

func parseDropCollection(payload []byte, entry *Entry) error {
	name, _, err := readString(payload, 0)
	if err != nil {
		return err
	}
	entry.Collection = name
	return nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	buf.Write(scratch[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(payload []byte, offset int) (string, int, error) {
	if len(payload) < offset+4 {
		return "", 0, ErrShortRead
	}
	strLen := binary.LittleEndian.Uint32(payload[offset:])
	offset += 4
	if strLen > uint32(len(payload)-offset) {
		return "", 0, ErrShortRead
	}
	s := string(payload[offset : offset+int(strLen)])
	return s, offset + int(strLen), nil
}
