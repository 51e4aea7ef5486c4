package minidb

import (
	"fmt"
	"slices"
)

const (
	// Page size: 4096
	// Header size: 6 (base header) + 4 (key count) + 4 (child count)
	// Key size: 4, child size: 4, one more child than keys
	// (4096 - 6 - 4 - 4 - 4) / (4 + 4)
	InternalNodeMaxKeys = 509
)

type InternalNode struct {
	Header   Header
	Keys     []int32
	Children []PageIndex
}

func NewInternalNode() *InternalNode {
	aNode := InternalNode{
		Header: Header{
			IsInternal: true,
		},
		Keys:     make([]int32, 0),
		Children: make([]PageIndex, 0),
	}
	return &aNode
}

func (n *InternalNode) Size() uint64 {
	return n.Header.Size() + 4 + 4*uint64(len(n.Keys)) + 4 + 4*uint64(len(n.Children))
}

func (n *InternalNode) Marshal(buf []byte) ([]byte, error) {
	size := n.Size()
	if uint64(cap(buf)) >= size {
		buf = buf[:size]
	} else {
		buf = make([]byte, size)
	}

	i := uint64(0)

	n.Header.Marshal(buf[i:])
	i += n.Header.Size()

	marshalUint32(buf, uint32(len(n.Keys)), i)
	i += 4
	for _, key := range n.Keys {
		marshalInt32(buf, key, i)
		i += 4
	}

	marshalUint32(buf, uint32(len(n.Children)), i)
	i += 4
	for _, childIdx := range n.Children {
		marshalUint32(buf, uint32(childIdx), i)
		i += 4
	}

	return buf[:size], nil
}

func (n *InternalNode) Unmarshal(buf []byte) (uint64, error) {
	i := uint64(0)

	hi, err := n.Header.Unmarshal(buf[i:])
	if err != nil {
		return 0, err
	}
	i += hi

	keysNum := unmarshalUint32(buf, i)
	i += 4
	if keysNum > InternalNodeMaxKeys {
		return 0, fmt.Errorf("%w: internal node key count %d exceeds page capacity", ErrCorruptPage, keysNum)
	}
	n.Keys = make([]int32, 0, keysNum)
	for idx := uint32(0); idx < keysNum; idx++ {
		n.Keys = append(n.Keys, unmarshalInt32(buf, i))
		i += 4
	}

	childrenNum := unmarshalUint32(buf, i)
	i += 4
	if childrenNum != keysNum+1 {
		return 0, fmt.Errorf("%w: internal node has %d keys but %d children", ErrCorruptPage, keysNum, childrenNum)
	}
	n.Children = make([]PageIndex, 0, childrenNum)
	for idx := uint32(0); idx < childrenNum; idx++ {
		n.Children = append(n.Children, PageIndex(unmarshalUint32(buf, i)))
		i += 4
	}

	return i, nil
}

// ChildFor returns the position of the child whose subtree covers key,
// the first position whose separator is greater than the key.
func (n *InternalNode) ChildFor(key int32) uint32 {
	var (
		minIdx uint32
		maxIdx = uint32(len(n.Keys))
	)
	for i := maxIdx; i != minIdx; {
		index := (minIdx + i) / 2
		if key < n.Keys[index] {
			i = index
		} else {
			minIdx = index + 1
		}
	}
	return minIdx
}

// InsertKeyChild inserts a separator key at its sorted position and the
// child page immediately to the right of it.
func (n *InternalNode) InsertKeyChild(key int32, childIdx PageIndex) {
	pos := n.ChildFor(key)
	n.Keys = slices.Insert(n.Keys, int(pos), key)
	n.Children = slices.Insert(n.Children, int(pos)+1, childIdx)
}

func (n *InternalNode) IsFull() bool {
	return uint32(len(n.Keys)) >= InternalNodeMaxKeys
}
