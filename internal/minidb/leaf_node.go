package minidb

import (
	"fmt"
)

const (
	// Page size: 4096
	// Leaf header size: 6 (base header) + 4 (next leaf) + 4 (cell count)
	// Cell overhead: 4 (key) + 4 (value size)
	// 4096 - 14 - 8
	MaxCellValueSize = 4074
)

type LeafNodeHeader struct {
	Header
	NextLeaf PageRef
	Cells    uint32
}

func (h *LeafNodeHeader) Size() uint64 {
	return h.Header.Size() + 4 + 4
}

func (h *LeafNodeHeader) Marshal(buf []byte) ([]byte, error) {
	size := h.Size()
	if uint64(cap(buf)) >= size {
		buf = buf[:size]
	} else {
		buf = make([]byte, size)
	}

	i := uint64(0)

	h.Header.Marshal(buf[i:])
	i += h.Header.Size()

	marshalPageRef(buf, h.NextLeaf, i)
	i += 4

	marshalUint32(buf, h.Cells, i)

	return buf[:size], nil
}

func (h *LeafNodeHeader) Unmarshal(buf []byte) (uint64, error) {
	i := uint64(0)

	hi, err := h.Header.Unmarshal(buf[i:])
	if err != nil {
		return 0, err
	}
	i += hi

	h.NextLeaf = unmarshalPageRef(buf, i)
	i += 4

	h.Cells = unmarshalUint32(buf, i)

	return h.Size(), nil
}

type Cell struct {
	Key   int32
	Value []byte
}

func (c *Cell) Size() uint64 {
	// 4 bytes for key, 4 bytes for value size
	return 4 + 4 + uint64(len(c.Value))
}

func (c *Cell) Marshal(buf []byte) ([]byte, error) {
	size := c.Size()
	if uint64(cap(buf)) >= size {
		buf = buf[:size]
	} else {
		buf = make([]byte, size)
	}

	i := uint64(0)

	marshalInt32(buf, c.Key, i)
	i += 4

	marshalUint32(buf, uint32(len(c.Value)), i)
	i += 4

	copy(buf[i:], c.Value)
	i += uint64(len(c.Value))

	return buf[:i], nil
}

func (c *Cell) Unmarshal(buf []byte) (uint64, error) {
	if uint64(len(buf)) < 8 {
		return 0, fmt.Errorf("%w: truncated leaf cell", ErrCorruptPage)
	}

	i := uint64(0)

	c.Key = unmarshalInt32(buf, i)
	i += 4

	valueSize := unmarshalUint32(buf, i)
	i += 4

	if uint64(len(buf)) < i+uint64(valueSize) {
		return 0, fmt.Errorf("%w: leaf cell value size %d exceeds page bounds", ErrCorruptPage, valueSize)
	}
	c.Value = make([]byte, valueSize)
	copy(c.Value, buf[i:i+uint64(valueSize)])
	i += uint64(valueSize)

	return i, nil
}

type LeafNode struct {
	Header LeafNodeHeader
	Cells  []Cell
}

func NewLeafNode(cells ...Cell) *LeafNode {
	aNode := LeafNode{
		Cells: make([]Cell, 0, len(cells)),
	}
	if len(cells) > 0 {
		aNode.Header.Cells = uint32(len(cells))
		aNode.Cells = append(aNode.Cells, cells...)
	}
	return &aNode
}

func (n *LeafNode) Size() uint64 {
	size := n.Header.Size()
	for idx := range n.Cells {
		size += n.Cells[idx].Size()
	}
	return size
}

func (n *LeafNode) Marshal(buf []byte) ([]byte, error) {
	size := n.Size()
	if uint64(cap(buf)) >= size {
		buf = buf[:size]
	} else {
		buf = make([]byte, size)
	}

	i := uint64(0)

	hbuf, err := n.Header.Marshal(buf[i:])
	if err != nil {
		return nil, err
	}
	i += uint64(len(hbuf))

	for idx := range n.Cells {
		cbuf, err := n.Cells[idx].Marshal(buf[i:])
		if err != nil {
			return nil, err
		}
		i += uint64(len(cbuf))
	}

	return buf[:i], nil
}

func (n *LeafNode) Unmarshal(buf []byte) (uint64, error) {
	i := uint64(0)

	hi, err := n.Header.Unmarshal(buf[i:])
	if err != nil {
		return 0, err
	}
	i += hi

	n.Cells = make([]Cell, 0, n.Header.Cells)
	for idx := 0; idx < int(n.Header.Cells); idx++ {
		n.Cells = append(n.Cells, Cell{})
		ci, err := n.Cells[idx].Unmarshal(buf[i:])
		if err != nil {
			return 0, err
		}
		i += ci
	}

	return i, nil
}

// Find returns the index of the cell holding key. If the key is not
// present, it returns the index at which it would be inserted.
func (n *LeafNode) Find(key int32) (uint32, bool) {
	var (
		minIdx uint32
		maxIdx = n.Header.Cells
	)
	for i := maxIdx; i != minIdx; {
		index := (minIdx + i) / 2
		keyAtIdx := n.Cells[index].Key
		if key == keyAtIdx {
			return index, true
		}
		if key < keyAtIdx {
			i = index
		} else {
			minIdx = index + 1
		}
	}
	return minIdx, false
}

func (n *LeafNode) InsertAt(cellIdx uint32, aCell Cell) {
	n.Cells = append(n.Cells, Cell{})
	for i := uint32(len(n.Cells)) - 1; i > cellIdx; i-- {
		n.Cells[i] = n.Cells[i-1]
	}
	n.Cells[cellIdx] = aCell
	n.Header.Cells += 1
}

func (n *LeafNode) Keys() []int32 {
	keys := make([]int32, 0, n.Header.Cells)
	for idx := range n.Header.Cells {
		keys = append(keys, n.Cells[idx].Key)
	}
	return keys
}

func (n *LeafNode) MaxSpace() uint64 {
	return PageSize - n.Header.Size()
}

func (n *LeafNode) TakenSpace() uint64 {
	takenPageSize := uint64(0)
	for i := uint32(0); i < n.Header.Cells; i++ {
		takenPageSize += n.Cells[i].Size()
	}
	return takenPageSize
}

func (n *LeafNode) AvailableSpace() uint64 {
	return n.MaxSpace() - n.TakenSpace()
}

func (n *LeafNode) HasSpaceFor(value []byte) bool {
	return 4+4+uint64(len(value)) <= n.AvailableSpace()
}
