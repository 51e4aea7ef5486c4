package minidb

import (
	"fmt"
	"strings"
)

type Row struct {
	Key     int32
	Columns []Column
	Values  []any
}

// String renders the row as a tuple, e.g. (1, user1, person1@example.com)
func (r Row) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, value := range r.Values {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", value)
	}
	sb.WriteString(")")
	return sb.String()
}

func marshalUint32(buf []byte, n uint32, i uint64) []byte {
	buf[i+0] = byte(n >> 0)
	buf[i+1] = byte(n >> 8)
	buf[i+2] = byte(n >> 16)
	buf[i+3] = byte(n >> 24)
	return buf
}

func unmarshalUint32(buf []byte, i uint64) uint32 {
	return 0 |
		(uint32(buf[i+0]) << 0) |
		(uint32(buf[i+1]) << 8) |
		(uint32(buf[i+2]) << 16) |
		(uint32(buf[i+3]) << 24)
}

func marshalInt32(buf []byte, n int32, i uint64) []byte {
	buf[i+0] = byte(n >> 0)
	buf[i+1] = byte(n >> 8)
	buf[i+2] = byte(n >> 16)
	buf[i+3] = byte(n >> 24)
	return buf
}

func unmarshalInt32(buf []byte, i uint64) int32 {
	return 0 |
		(int32(buf[i+0]) << 0) |
		(int32(buf[i+1]) << 8) |
		(int32(buf[i+2]) << 16) |
		(int32(buf[i+3]) << 24)
}

func marshalPageRef(buf []byte, ref PageRef, i uint64) []byte {
	if !ref.Valid {
		return marshalUint32(buf, PageRefNotSet, i)
	}
	return marshalUint32(buf, uint32(ref.Idx), i)
}

func unmarshalPageRef(buf []byte, i uint64) PageRef {
	n := unmarshalUint32(buf, i)
	if n == PageRefNotSet {
		return PageRef{}
	}
	return PageRef{Idx: PageIndex(n), Valid: true}
}
