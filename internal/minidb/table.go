package minidb

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrSchemaNotDefined = errors.New("schema is not defined")

// Table ties the schema stored in the metadata page together with the
// B tree holding the rows.
type Table struct {
	schema *Schema
	pager  Pager
	tree   *BTree
	logger *zap.Logger
}

// Open initialises a table from the pager. A brand new database file
// gets a root leaf page allocated straight away, otherwise the schema
// is read from the metadata page and the root located by following
// parent references up from the first tree page.
func Open(ctx context.Context, logger *zap.Logger, aPager Pager) (*Table, error) {
	aTable := &Table{
		schema: new(Schema),
		pager:  aPager,
		logger: logger,
	}

	if aPager.TotalPages() == 0 {
		aRootPage, err := aPager.AllocatePage(ctx)
		if err != nil {
			return nil, fmt.Errorf("allocating root page: %w", err)
		}
		aRootPage.LeafNode.Header.IsRoot = true
		aTable.tree = NewBTree(logger, aPager, aRootPage.Index)
		return aTable, nil
	}

	if _, err := aTable.schema.Unmarshal(aPager.GetMeta(ctx)); err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}

	rootPageIdx, err := findRootPage(ctx, aPager)
	if err != nil {
		return nil, err
	}
	aTable.tree = NewBTree(logger, aPager, rootPageIdx)

	logger.Sugar().With(
		"root_page", int(rootPageIdx),
		"total_pages", int(aPager.TotalPages()),
	).Debug("opened existing table")

	return aTable, nil
}

// SetSchema appends column definitions to the schema. Clear drops the
// schema, there is no way to redefine columns on a non empty table.
func (t *Table) SetSchema(columns []Column) {
	for _, aColumn := range columns {
		t.schema.AddColumn(aColumn)
	}
}

// Insert parses the value tokens against the schema, serializes them
// and stores the row under its primary key (the first column).
func (t *Table) Insert(ctx context.Context, tokens []string) error {
	if !t.schema.IsDefined() {
		return ErrSchemaNotDefined
	}

	values, err := t.schema.ParseRow(tokens)
	if err != nil {
		return err
	}
	key, ok := values[0].(int32)
	if !ok {
		return ErrInvalidPrimaryKey
	}

	value, err := t.schema.SerializeRow(values)
	if err != nil {
		return err
	}

	return t.tree.Insert(ctx, key, value)
}

// SelectAll returns every row in primary key order by walking the leaf
// chain from the leftmost cell.
func (t *Table) SelectAll(ctx context.Context) ([]Row, error) {
	if !t.schema.IsDefined() {
		return nil, ErrSchemaNotDefined
	}

	aCursor, err := t.tree.SeekFirst(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0)
	for !aCursor.EndOfTable {
		aCell, err := aCursor.FetchCell(ctx)
		if err != nil {
			return nil, err
		}
		values, err := t.schema.DeserializeRow(aCell.Value)
		if err != nil {
			return nil, fmt.Errorf("deserializing row %d: %w", aCell.Key, err)
		}
		rows = append(rows, Row{
			Key:     aCell.Key,
			Columns: t.schema.Columns,
			Values:  values,
		})
	}

	return rows, nil
}

// Save writes the schema into the metadata page and flushes all cached
// pages to the database file.
func (t *Table) Save(ctx context.Context) error {
	meta := make([]byte, PageSize)
	if _, err := t.schema.Marshal(meta); err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := t.pager.Flush(ctx, meta); err != nil {
		return err
	}

	t.logger.Sugar().With(
		"total_pages", int(t.pager.TotalPages()),
	).Debug("saved table")

	return nil
}

// Clear drops the schema and all rows, truncates the database file and
// starts over with an empty root leaf page.
func (t *Table) Clear(ctx context.Context) error {
	if err := t.pager.Clear(ctx); err != nil {
		return err
	}
	t.schema.Clear()

	aRootPage, err := t.pager.AllocatePage(ctx)
	if err != nil {
		return fmt.Errorf("allocating root page: %w", err)
	}
	aRootPage.LeafNode.Header.IsRoot = true
	t.tree = NewBTree(t.logger, t.pager, aRootPage.Index)

	return nil
}

func (t *Table) Close() error {
	return t.pager.Close()
}
