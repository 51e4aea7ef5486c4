package minidb

import (
	"math"
)

const (
	PageSize = 4096 // 4 kilobytes
)

type PageIndex uint32

// PageRefNotSet is the on disk marker for an absent page reference
const PageRefNotSet = math.MaxUint32

// PageRef is an optional reference to another page. An absent reference
// is marshaled as PageRefNotSet.
type PageRef struct {
	Idx   PageIndex
	Valid bool
}

func NewPageRef(pageIdx PageIndex) PageRef {
	return PageRef{Idx: pageIdx, Valid: true}
}

type Page struct {
	Index        PageIndex
	InternalNode *InternalNode
	LeafNode     *LeafNode
}

func (p *Page) parent() PageRef {
	if p.LeafNode != nil {
		return p.LeafNode.Header.Parent
	} else if p.InternalNode != nil {
		return p.InternalNode.Header.Parent
	}
	return PageRef{}
}

func (p *Page) setParent(parent PageRef) {
	if p.LeafNode != nil {
		p.LeafNode.Header.Parent = parent
	} else if p.InternalNode != nil {
		p.InternalNode.Header.Parent = parent
	}
}

func (p *Page) setRoot(isRoot bool) {
	if p.LeafNode != nil {
		p.LeafNode.Header.IsRoot = isRoot
	} else if p.InternalNode != nil {
		p.InternalNode.Header.IsRoot = isRoot
	}
}
