package minidb

import (
	"context"
	"fmt"
)

type Cursor struct {
	Tree       *BTree
	PageIdx    PageIndex
	CellIdx    uint32
	EndOfTable bool
}

// SeekFirst positions a cursor at the first cell of the leftmost leaf.
func (t *BTree) SeekFirst(ctx context.Context) (*Cursor, error) {
	aPage, err := t.pager.GetPage(ctx, t.RootPageIdx)
	if err != nil {
		return nil, fmt.Errorf("seek first: %w", err)
	}
	for aPage.LeafNode == nil {
		aPage, err = t.pager.GetPage(ctx, aPage.InternalNode.Children[0])
		if err != nil {
			return nil, fmt.Errorf("seek first: %w", err)
		}
	}
	return &Cursor{
		Tree:       t,
		PageIdx:    aPage.Index,
		CellIdx:    0,
		EndOfTable: aPage.LeafNode.Header.Cells == 0,
	}, nil
}

// FetchCell returns the cell under the cursor and advances it, following
// the leaf chain once the current leaf is exhausted.
func (c *Cursor) FetchCell(ctx context.Context) (Cell, error) {
	aPage, err := c.Tree.pager.GetPage(ctx, c.PageIdx)
	if err != nil {
		return Cell{}, fmt.Errorf("fetch cell: %w", err)
	}
	if aPage.LeafNode == nil {
		return Cell{}, fmt.Errorf("fetch cell: page %d is not a leaf node", c.PageIdx)
	}
	aCell := aPage.LeafNode.Cells[c.CellIdx]

	// There are still more cells in the page, move cursor to next cell and return
	if c.CellIdx < aPage.LeafNode.Header.Cells-1 {
		c.CellIdx += 1
		return aCell, nil
	}

	// If there is no leaf page to the right, set end of table flag and return
	if !aPage.LeafNode.Header.NextLeaf.Valid {
		c.EndOfTable = true
		return aCell, nil
	}

	// Otherwise, move the cursor to the start of the next leaf page
	c.PageIdx = aPage.LeafNode.Header.NextLeaf.Idx
	c.CellIdx = 0

	return aCell, nil
}
