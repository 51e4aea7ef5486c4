package minidb

import (
	"errors"
	"fmt"
)

const (
	PageTypeInternal = 0
	PageTypeLeaf     = 1
)

var ErrCorruptPage = errors.New("corrupt page")

type Header struct {
	IsInternal bool
	IsRoot     bool
	Parent     PageRef
}

func (h *Header) Size() uint64 {
	return 1 + 1 + 4
}

func (h *Header) Marshal(buf []byte) {
	i := uint64(0)
	if h.IsInternal {
		buf[i] = PageTypeInternal
	} else {
		buf[i] = PageTypeLeaf
	}
	i += 1

	if h.IsRoot {
		buf[i] = 1
	} else {
		buf[i] = 0
	}
	i += 1

	marshalPageRef(buf, h.Parent, i)
}

func (h *Header) Unmarshal(buf []byte) (uint64, error) {
	if buf[0] != PageTypeInternal && buf[0] != PageTypeLeaf {
		return 0, fmt.Errorf("%w: unrecognised page type byte %d", ErrCorruptPage, buf[0])
	}
	h.IsInternal = buf[0] == PageTypeInternal
	h.IsRoot = buf[1] == 1
	h.Parent = unmarshalPageRef(buf, 2)

	return h.Size(), nil
}
