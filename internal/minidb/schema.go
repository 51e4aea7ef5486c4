package minidb

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPrimaryKey = errors.New("invalid primary key, expected integer")

type ColumnKind int

const (
	Int4 ColumnKind = iota + 1
	Text
)

func (k ColumnKind) String() string {
	switch k {
	case Int4:
		return "INT4"
	case Text:
		return "TEXT"
	default:
		return "UNKNOWN"
	}
}

// Column is an unnamed column definition, rows address columns by
// position. Int4 columns always have size 4, text columns carry their
// declared size and are zero padded on disk.
type Column struct {
	Kind ColumnKind
	Size uint32
}

// ParseColumn parses a column definition token, either "int" or
// "text(N)".
func ParseColumn(token string) (Column, error) {
	if token == "int" {
		return Column{Kind: Int4, Size: 4}, nil
	}
	if strings.HasPrefix(token, "text(") && strings.HasSuffix(token, ")") {
		rawSize := token[len("text(") : len(token)-1]
		size, err := strconv.ParseUint(rawSize, 10, 32)
		if err != nil {
			return Column{}, fmt.Errorf("could not parse text column size %q: %w", rawSize, err)
		}
		if size == 0 {
			return Column{}, fmt.Errorf("text column size must be positive")
		}
		return Column{Kind: Text, Size: uint32(size)}, nil
	}
	return Column{}, fmt.Errorf("unknown column type %q", token)
}

type Schema struct {
	Columns []Column
}

func (s *Schema) IsDefined() bool {
	return len(s.Columns) > 0
}

func (s *Schema) AddColumn(aColumn Column) {
	s.Columns = append(s.Columns, aColumn)
}

func (s *Schema) Clear() {
	s.Columns = nil
}

// RowSize is the fixed serialized size of one row
func (s *Schema) RowSize() uint64 {
	size := uint64(0)
	for _, aColumn := range s.Columns {
		size += uint64(aColumn.Size)
	}
	return size
}

// ParseRow validates raw value tokens against the schema and returns
// typed values, int32 for int columns and string for text columns.
func (s *Schema) ParseRow(tokens []string) ([]any, error) {
	if len(tokens) != len(s.Columns) {
		return nil, fmt.Errorf("expected %d values, got %d", len(s.Columns), len(tokens))
	}
	values := make([]any, 0, len(s.Columns))
	for i, aColumn := range s.Columns {
		switch aColumn.Kind {
		case Int4:
			n, err := strconv.ParseInt(tokens[i], 10, 32)
			if err != nil {
				if i == 0 {
					return nil, fmt.Errorf("%w: %q", ErrInvalidPrimaryKey, tokens[i])
				}
				return nil, fmt.Errorf("could not parse %q as int: %w", tokens[i], err)
			}
			values = append(values, int32(n))
		case Text:
			if uint32(len(tokens[i])) > aColumn.Size {
				return nil, fmt.Errorf("value %q exceeds column size %d", tokens[i], aColumn.Size)
			}
			values = append(values, tokens[i])
		default:
			return nil, fmt.Errorf("unknown column kind %d", aColumn.Kind)
		}
	}
	return values, nil
}

// SerializeRow encodes typed values into the fixed width row format,
// int32 as 4 little endian bytes, text zero padded to the column size.
func (s *Schema) SerializeRow(values []any) ([]byte, error) {
	if len(values) != len(s.Columns) {
		return nil, fmt.Errorf("expected %d values, got %d", len(s.Columns), len(values))
	}
	buf := make([]byte, s.RowSize())
	i := uint64(0)
	for idx, aColumn := range s.Columns {
		switch aColumn.Kind {
		case Int4:
			n, ok := values[idx].(int32)
			if !ok {
				return nil, fmt.Errorf("could not cast value %v to int32", values[idx])
			}
			marshalInt32(buf, n, i)
		case Text:
			text, ok := values[idx].(string)
			if !ok {
				return nil, fmt.Errorf("could not cast value %v to string", values[idx])
			}
			if uint32(len(text)) > aColumn.Size {
				return nil, fmt.Errorf("value %q exceeds column size %d", text, aColumn.Size)
			}
			copy(buf[i:i+uint64(aColumn.Size)], text)
		default:
			return nil, fmt.Errorf("unknown column kind %d", aColumn.Kind)
		}
		i += uint64(aColumn.Size)
	}
	return buf, nil
}

// DeserializeRow decodes a fixed width row buffer back into typed
// values, stripping the zero padding from text columns.
func (s *Schema) DeserializeRow(buf []byte) ([]any, error) {
	if uint64(len(buf)) < s.RowSize() {
		return nil, fmt.Errorf("row buffer too short, expected %d bytes, got %d", s.RowSize(), len(buf))
	}
	values := make([]any, 0, len(s.Columns))
	i := uint64(0)
	for _, aColumn := range s.Columns {
		switch aColumn.Kind {
		case Int4:
			values = append(values, unmarshalInt32(buf, i))
		case Text:
			raw := buf[i : i+uint64(aColumn.Size)]
			values = append(values, string(bytes.TrimRight(raw, "\x00")))
		default:
			return nil, fmt.Errorf("unknown column kind %d", aColumn.Kind)
		}
		i += uint64(aColumn.Size)
	}
	return values, nil
}

func (s *Schema) Size() uint64 {
	// 4 bytes for column count plus 1 byte kind and 4 bytes size per column
	return 4 + uint64(len(s.Columns))*5
}

func (s *Schema) Marshal(buf []byte) ([]byte, error) {
	size := s.Size()
	if uint64(cap(buf)) >= size {
		buf = buf[:size]
	} else {
		buf = make([]byte, size)
	}

	i := uint64(0)

	marshalUint32(buf, uint32(len(s.Columns)), i)
	i += 4

	for _, aColumn := range s.Columns {
		buf[i] = byte(aColumn.Kind)
		i += 1
		marshalUint32(buf, aColumn.Size, i)
		i += 4
	}

	return buf[:size], nil
}

func (s *Schema) Unmarshal(buf []byte) (uint64, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("%w: schema buffer too short", ErrCorruptPage)
	}

	i := uint64(0)

	count := unmarshalUint32(buf, i)
	i += 4

	if uint64(len(buf)) < 4+uint64(count)*5 {
		return 0, fmt.Errorf("%w: schema buffer too short for %d columns", ErrCorruptPage, count)
	}
	s.Columns = make([]Column, 0, count)
	for idx := uint32(0); idx < count; idx++ {
		aColumn := Column{
			Kind: ColumnKind(buf[i]),
			Size: unmarshalUint32(buf, i+1),
		}
		if aColumn.Kind != Int4 && aColumn.Kind != Text {
			return 0, fmt.Errorf("%w: unrecognised column kind byte %d", ErrCorruptPage, buf[i])
		}
		i += 5
		s.Columns = append(s.Columns, aColumn)
	}

	return i, nil
}
