package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"
)

// CurrentSchemaVersion is the encoding version written by Encode. Version 1
// records, which carried one-byte lengths for the user id and IP, still decode.
const CurrentSchemaVersion = 2

const legacySchemaVersion = 1

// ErrCorrupt is returned when a stored session blob cannot be decoded.
var ErrCorrupt = errors.New("session: corrupt record")

const maxAttributes = 255

// Encode serializes s in the current schema.
//
// Layout (big endian): version u8, id u8-len, user u16-len, created i64 unix nanos,
// last-activity i64, fingerprint [32], ip u16-len, user-agent u16-len,
// accept-language u16-len, attribute count u8, then per attribute key u8-len and
// value u16-len. Attributes are written in key order.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	if err := writeShort(&buf, "id", s.ID); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "userID", s.UserID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastActivity.UnixNano()); err != nil {
		return nil, err
	}
	buf.Write(s.Fingerprint[:])

	if err := writeLong(&buf, "ip", s.Metadata.IP); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "userAgent", s.Metadata.UserAgent); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "acceptLanguage", s.Metadata.AcceptLanguage); err != nil {
		return nil, err
	}

	if len(s.Metadata.Attributes) > maxAttributes {
		return nil, errors.New("too many attributes")
	}
	keys := make([]string, 0, len(s.Metadata.Attributes))
	for k := range s.Metadata.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte(byte(len(keys)))
	for _, k := range keys {
		if err := writeShort(&buf, "attribute key", k); err != nil {
			return nil, err
		}
		if err := writeLong(&buf, "attribute value", s.Metadata.Attributes[k]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*Session, error) {
	s, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return s, nil
}

func decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	// Version 1 wrote the user id and IP with one-byte lengths.
	var readVar func(*bytes.Reader) (string, error)
	switch version {
	case CurrentSchemaVersion:
		readVar = readLong
	case legacySchemaVersion:
		readVar = readShort
	default:
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}
	if s.ID, err = readShort(reader); err != nil {
		return nil, err
	}
	if s.UserID, err = readVar(reader); err != nil {
		return nil, err
	}

	var created, last int64
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &last); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, created)
	s.LastActivity = time.Unix(0, last)

	if _, err := io.ReadFull(reader, s.Fingerprint[:]); err != nil {
		return nil, err
	}

	if s.Metadata.IP, err = readVar(reader); err != nil {
		return nil, err
	}
	if s.Metadata.UserAgent, err = readLong(reader); err != nil {
		return nil, err
	}
	if s.Metadata.AcceptLanguage, err = readLong(reader); err != nil {
		return nil, err
	}

	count, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		s.Metadata.Attributes = make(map[string]string, count)
		for i := 0; i < int(count); i++ {
			k, err := readShort(reader)
			if err != nil {
				return nil, err
			}
			v, err := readLong(reader)
			if err != nil {
				return nil, err
			}
			s.Metadata.Attributes[k] = v
		}
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes")
	}
	return s, nil
}

func writeShort(buf *bytes.Buffer, field, v string) error {
	if len(v) > math.MaxUint8 {
		return fmt.Errorf("%s too long", field)
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func writeLong(buf *bytes.Buffer, field, v string) error {
	if len(v) > math.MaxUint16 {
		return fmt.Errorf("%s too long", field)
	}
	_ = binary.Write(buf, binary.BigEndian, uint16(len(v)))
	buf.WriteString(v)
	return nil
}

func readShort(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readLong(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readN(r *bytes.Reader, n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
