package minidb

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrRowTooBig    = errors.New("row is too big to fit a page")
)

type BTree struct {
	RootPageIdx PageIndex

	pager  Pager
	logger *zap.Logger
}

func NewBTree(logger *zap.Logger, aPager Pager, rootPageIdx PageIndex) *BTree {
	return &BTree{
		RootPageIdx: rootPageIdx,
		pager:       aPager,
		logger:      logger,
	}
}

// Seek descends from the root to the leaf whose key range covers key and
// returns a cursor at the cell where the key is or would be inserted.
func (t *BTree) Seek(ctx context.Context, key int32) (*Cursor, error) {
	aPage, err := t.pager.GetPage(ctx, t.RootPageIdx)
	if err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	for aPage.LeafNode == nil {
		if aPage.InternalNode == nil {
			return nil, fmt.Errorf("page %d is neither internal nor leaf node", aPage.Index)
		}
		childPos := aPage.InternalNode.ChildFor(key)
		aPage, err = t.pager.GetPage(ctx, aPage.InternalNode.Children[childPos])
		if err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
	}

	cellIdx, _ := aPage.LeafNode.Find(key)

	return &Cursor{
		Tree:    t,
		PageIdx: aPage.Index,
		CellIdx: cellIdx,
	}, nil
}

func (t *BTree) Insert(ctx context.Context, key int32, value []byte) error {
	if uint64(len(value)) > MaxCellValueSize {
		return fmt.Errorf("insert key %d: %w", key, ErrRowTooBig)
	}

	aCursor, err := t.Seek(ctx, key)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	aPage, err := t.pager.GetPage(ctx, aCursor.PageIdx)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	if aCursor.CellIdx < aPage.LeafNode.Header.Cells {
		if aPage.LeafNode.Cells[aCursor.CellIdx].Key == key {
			return fmt.Errorf("insert key %d: %w", key, ErrDuplicateKey)
		}
	}

	t.logger.Sugar().With(
		"page_index", int(aCursor.PageIdx),
		"cell_index", int(aCursor.CellIdx),
		"key", int(key),
	).Debug("inserting row")

	if !aPage.LeafNode.HasSpaceFor(value) {
		return t.leafNodeSplitInsert(ctx, aPage, key, value)
	}

	aPage.LeafNode.InsertAt(aCursor.CellIdx, Cell{Key: key, Value: value})

	return nil
}

// leafNodeSplitInsert moves the upper half of the cells to a new right
// sibling, links it into the leaf chain and places the pending value
// into whichever half covers its key. The split key then propagates to
// the parent. Capacity checks and page allocations happen before any
// state is touched so a failed insert leaves the tree as it was.
func (t *BTree) leafNodeSplitInsert(ctx context.Context, aSplitPage *Page, key int32, value []byte) error {
	var (
		oldLeaf  = aSplitPage.LeafNode
		mid      = oldLeaf.Header.Cells / 2
		splitKey = oldLeaf.Cells[mid].Key
	)

	// Work out how full the half covering the pending value will be
	// after the split
	destSpace := uint64(0)
	if key >= splitKey {
		for idx := mid; idx < oldLeaf.Header.Cells; idx++ {
			destSpace += oldLeaf.Cells[idx].Size()
		}
	} else {
		for idx := uint32(0); idx < mid; idx++ {
			destSpace += oldLeaf.Cells[idx].Size()
		}
	}
	if 4+4+uint64(len(value)) > oldLeaf.MaxSpace()-destSpace {
		return fmt.Errorf("insert key %d: %w", key, ErrRowTooBig)
	}

	aNewPage, err := t.pager.AllocatePage(ctx)
	if err != nil {
		return fmt.Errorf("leaf node split insert: %w", err)
	}
	var aNewRootPage *Page
	if oldLeaf.Header.IsRoot {
		aNewRootPage, err = t.pager.AllocatePage(ctx)
		if err != nil {
			return fmt.Errorf("leaf node split insert: %w", err)
		}
	}

	t.logger.Sugar().With(
		"key", int(key),
		"page_index", int(aSplitPage.Index),
		"new_page_index", int(aNewPage.Index),
	).Debug("leaf node split insert")

	newLeaf := aNewPage.LeafNode
	newLeaf.Header.Parent = oldLeaf.Header.Parent
	newLeaf.Cells = append(newLeaf.Cells, oldLeaf.Cells[mid:]...)
	newLeaf.Header.Cells = uint32(len(newLeaf.Cells))
	oldLeaf.Cells = oldLeaf.Cells[:mid]
	oldLeaf.Header.Cells = mid

	// Keep the leaf chain in ascending key order
	newLeaf.Header.NextLeaf = oldLeaf.Header.NextLeaf
	oldLeaf.Header.NextLeaf = NewPageRef(aNewPage.Index)

	destPage := aSplitPage
	if key >= splitKey {
		destPage = aNewPage
	}
	cellIdx, _ := destPage.LeafNode.Find(key)
	destPage.LeafNode.InsertAt(cellIdx, Cell{Key: key, Value: value})

	if aNewRootPage != nil {
		return t.createNewRoot(ctx, aSplitPage, splitKey, aNewPage.Index, aNewRootPage)
	}

	return t.propagateSplit(ctx, oldLeaf.Header.Parent.Idx, splitKey, aNewPage.Index)
}

// propagateSplit walks up from a split child, inserting the split key
// and the new right sibling into each parent and splitting parents as
// they overflow. The loop ends at the first parent with room, or at the
// root which grows the tree by one level.
func (t *BTree) propagateSplit(ctx context.Context, parentIdx PageIndex, splitKey int32, newChildIdx PageIndex) error {
	for {
		aParentPage, err := t.pager.GetPage(ctx, parentIdx)
		if err != nil {
			return fmt.Errorf("propagate split: %w", err)
		}
		if aParentPage.InternalNode == nil {
			return fmt.Errorf("propagate split: page %d is not an internal node", parentIdx)
		}

		aNewChildPage, err := t.pager.GetPage(ctx, newChildIdx)
		if err != nil {
			return fmt.Errorf("propagate split: %w", err)
		}
		aNewChildPage.setParent(NewPageRef(parentIdx))

		aParent := aParentPage.InternalNode
		if !aParent.IsFull() {
			aParent.InsertKeyChild(splitKey, newChildIdx)
			return nil
		}

		// Splitting the parent takes one page for the new sibling and,
		// at the root, another one for the new root. Allocate both
		// before mutating so a full pager cannot leave the node half
		// split.
		aNewParentPage, err := t.pager.AllocatePage(ctx)
		if err != nil {
			return fmt.Errorf("propagate split: %w", err)
		}
		var aNewRootPage *Page
		if aParent.Header.IsRoot {
			aNewRootPage, err = t.pager.AllocatePage(ctx)
			if err != nil {
				return fmt.Errorf("propagate split: %w", err)
			}
		}

		promotedKey, err := t.internalNodeSplitInsert(ctx, aParentPage, aNewParentPage, splitKey, newChildIdx)
		if err != nil {
			return err
		}

		if aNewRootPage != nil {
			return t.createNewRoot(ctx, aParentPage, promotedKey, aNewParentPage.Index, aNewRootPage)
		}

		splitKey = promotedKey
		newChildIdx = aNewParentPage.Index
		parentIdx = aParent.Header.Parent.Idx
	}
}

// internalNodeSplitInsert inserts the key and child first so the median
// reflects the full key set, then moves the upper half to the new right
// sibling. The median key is promoted, it ends up in neither half.
func (t *BTree) internalNodeSplitInsert(ctx context.Context, aSplitPage, aNewPage *Page, key int32, childIdx PageIndex) (int32, error) {
	aNode := aSplitPage.InternalNode
	aNode.InsertKeyChild(key, childIdx)

	t.logger.Sugar().With(
		"key", int(key),
		"page_index", int(aSplitPage.Index),
		"new_page_index", int(aNewPage.Index),
	).Debug("internal node split insert")

	newNode := NewInternalNode()
	newNode.Header.Parent = aNode.Header.Parent
	aNewPage.LeafNode = nil
	aNewPage.InternalNode = newNode

	mid := uint32(len(aNode.Keys)) / 2
	promotedKey := aNode.Keys[mid]

	newNode.Keys = append(newNode.Keys, aNode.Keys[mid+1:]...)
	newNode.Children = append(newNode.Children, aNode.Children[mid+1:]...)
	aNode.Keys = aNode.Keys[:mid]
	aNode.Children = aNode.Children[:mid+1]

	// Children moved to the new node get their parent updated
	for _, movedChildIdx := range newNode.Children {
		aChildPage, err := t.pager.GetPage(ctx, movedChildIdx)
		if err != nil {
			return 0, fmt.Errorf("internal node split insert: %w", err)
		}
		aChildPage.setParent(NewPageRef(aNewPage.Index))
	}

	return promotedKey, nil
}

// createNewRoot turns a pre-allocated page into the new root holding a
// single separator key and two children. The tree root page index
// changes, the tree grows taller by one level.
func (t *BTree) createNewRoot(ctx context.Context, oldRootPage *Page, splitKey int32, rightChildIdx PageIndex, aNewRootPage *Page) error {
	t.logger.Sugar().With(
		"root_index", int(aNewRootPage.Index),
		"left_child_index", int(oldRootPage.Index),
		"right_child_index", int(rightChildIdx),
	).Debug("create new root")

	newRootNode := NewInternalNode()
	newRootNode.Header.IsRoot = true
	newRootNode.Keys = append(newRootNode.Keys, splitKey)
	newRootNode.Children = append(newRootNode.Children, oldRootPage.Index, rightChildIdx)
	aNewRootPage.LeafNode = nil
	aNewRootPage.InternalNode = newRootNode

	rightChildPage, err := t.pager.GetPage(ctx, rightChildIdx)
	if err != nil {
		return fmt.Errorf("create new root: %w", err)
	}

	oldRootPage.setRoot(false)
	oldRootPage.setParent(NewPageRef(aNewRootPage.Index))
	rightChildPage.setRoot(false)
	rightChildPage.setParent(NewPageRef(aNewRootPage.Index))

	t.RootPageIdx = aNewRootPage.Index

	return nil
}

// findRootPage locates the root of record by walking parent references
// up from the first tree page.
func findRootPage(ctx context.Context, aPager Pager) (PageIndex, error) {
	aPage, err := aPager.GetPage(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("find root page: %w", err)
	}
	for hops := uint32(0); aPage.parent().Valid; hops++ {
		if hops > aPager.TotalPages() {
			return 0, fmt.Errorf("%w: parent reference cycle detected", ErrCorruptPage)
		}
		aPage, err = aPager.GetPage(ctx, aPage.parent().Idx)
		if err != nil {
			return 0, fmt.Errorf("find root page: %w", err)
		}
	}
	return aPage.Index, nil
}

// BFS visits every page of the tree in breadth first order.
func (t *BTree) BFS(ctx context.Context, f func(*Page)) error {
	aRootPage, err := t.pager.GetPage(ctx, t.RootPageIdx)
	if err != nil {
		return err
	}

	queue := make([]*Page, 0, 1)
	queue = append(queue, aRootPage)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		f(current)

		if current.InternalNode != nil {
			for _, childIdx := range current.InternalNode.Children {
				aPage, err := t.pager.GetPage(ctx, childIdx)
				if err != nil {
					return err
				}
				queue = append(queue, aPage)
			}
		}
	}

	return nil
}
