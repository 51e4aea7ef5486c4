package minidb

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowTokens(aRow Row) []string {
	return []string{
		strconv.Itoa(int(aRow.Key)),
		aRow.Values[1].(string),
		aRow.Values[2].(string),
	}
}

func reopenTable(t *testing.T, fileName string, maxPages uint32) *Table {
	t.Helper()

	dbFile, err := os.OpenFile(fileName, os.O_RDWR, 0600)
	require.NoError(t, err)

	aPager, err := NewPager(dbFile, PageSize, maxPages)
	require.NoError(t, err)

	aTable, err := Open(context.Background(), testLogger, aPager)
	require.NoError(t, err)

	return aTable
}

func TestTable_InsertAndSelect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager, _ := newTestPager(t, 0)

	aTable, err := Open(ctx, testLogger, aPager)
	require.NoError(t, err)
	aTable.SetSchema(testColumns)

	rows := gen.Rows(10)
	for _, aRow := range rows {
		require.NoError(t, aTable.Insert(ctx, rowTokens(aRow)))
	}

	expected := make([]Row, len(rows))
	copy(expected, rows)
	sort.Slice(expected, func(i, j int) bool { return expected[i].Key < expected[j].Key })

	actual, err := aTable.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.Equal(t, expected[i].Key, actual[i].Key)
		assert.Equal(t, expected[i].Values, actual[i].Values)
	}
}

func TestTable_Insert_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager, _ := newTestPager(t, 0)

	aTable, err := Open(ctx, testLogger, aPager)
	require.NoError(t, err)

	t.Run("no schema defined", func(t *testing.T) {
		err := aTable.Insert(ctx, []string{"1", "john", "john@example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaNotDefined)

		_, err = aTable.SelectAll(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaNotDefined)
	})

	t.Run("primary key is not an integer", func(t *testing.T) {
		aTable.SetSchema(testColumns)

		err := aTable.Insert(ctx, []string{"abc", "john", "john@example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPrimaryKey)
	})

	t.Run("wrong number of values", func(t *testing.T) {
		err := aTable.Insert(ctx, []string{"1", "john"})
		require.Error(t, err)
		assert.ErrorContains(t, err, "expected 3 values")
	})

	t.Run("duplicate key", func(t *testing.T) {
		require.NoError(t, aTable.Insert(ctx, []string{"1", "john", "john@example.com"}))

		err := aTable.Insert(ctx, []string{"1", "jane", "jane@example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateKey)

		// The original row is untouched
		rows, err := aTable.SelectAll(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []any{int32(1), "john", "john@example.com"}, rows[0].Values)
	})
}

func TestTable_SaveAndReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager, fileName := newTestPager(t, 0)

	aTable, err := Open(ctx, testLogger, aPager)
	require.NoError(t, err)
	aTable.SetSchema(testColumns)

	// Enough rows to split the root leaf
	rows := gen.Rows(20)
	for _, aRow := range rows {
		require.NoError(t, aTable.Insert(ctx, rowTokens(aRow)))
	}

	require.NoError(t, aTable.Save(ctx))
	require.NoError(t, aTable.Close())

	expected := make([]Row, len(rows))
	copy(expected, rows)
	sort.Slice(expected, func(i, j int) bool { return expected[i].Key < expected[j].Key })

	reopenedTable := reopenTable(t, fileName, 0)
	assert.GreaterOrEqual(t, int(reopenedTable.pager.TotalPages()), 3)

	actual, err := reopenedTable.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.Equal(t, expected[i].Key, actual[i].Key)
		assert.Equal(t, expected[i].Values, actual[i].Values)
	}

	// The reopened table accepts further inserts, generated keys are
	// always greater than zero so the new row sorts first
	require.NoError(t, reopenedTable.Insert(ctx, []string{"0", "john", "john@example.com"}))

	actual, err = reopenedTable.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, actual, len(expected)+1)
	assert.Equal(t, int32(0), actual[0].Key)
}

func TestTable_Clear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager, fileName := newTestPager(t, 0)

	aTable, err := Open(ctx, testLogger, aPager)
	require.NoError(t, err)
	aTable.SetSchema(testColumns)

	for _, aRow := range gen.Rows(5) {
		require.NoError(t, aTable.Insert(ctx, rowTokens(aRow)))
	}
	require.NoError(t, aTable.Save(ctx))

	require.NoError(t, aTable.Clear(ctx))

	// Both rows and schema are gone
	_, err = aTable.SelectAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaNotDefined)

	// The table works again once a new schema is created
	aTable.SetSchema([]Column{{Kind: Int4, Size: 4}, {Kind: Text, Size: 10}})
	require.NoError(t, aTable.Insert(ctx, []string{"7", "xyz"}))
	require.NoError(t, aTable.Save(ctx))

	reopenedTable := reopenTable(t, fileName, 0)
	rows, err := reopenedTable.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{int32(7), "xyz"}, rows[0].Values)
}

func TestTable_TableFull(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager, _ := newTestPager(t, 3)

	aTable, err := Open(ctx, testLogger, aPager)
	require.NoError(t, err)

	// Two 1994 byte rows fill a leaf page
	aTable.SetSchema([]Column{{Kind: Int4, Size: 4}, {Kind: Text, Size: 1990}})

	for _, key := range []string{"1", "2", "3"} {
		require.NoError(t, aTable.Insert(ctx, []string{key, strings.Repeat("a", 50)}))
	}

	err = aTable.Insert(ctx, []string{"4", strings.Repeat("a", 50)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTableFull)

	// All previously inserted rows are still there
	rows, err := aTable.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, aRow := range rows {
		assert.Equal(t, int32(i+1), aRow.Key)
	}
}

// Drives raw statement strings through PrepareStatement and the table,
// the same path the REPL takes.
func TestTable_StatementRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager, _ := newTestPager(t, 0)

	aTable, err := Open(ctx, testLogger, aPager)
	require.NoError(t, err)

	statements := []string{
		"create int text(32) text(255)",
		"insert 2 jane jane@example.com",
		"insert 1 john john@example.com",
	}
	for _, input := range statements {
		stmt, err := PrepareStatement(input)
		require.NoError(t, err)

		switch stmt.Kind {
		case CreateTable:
			aTable.SetSchema(stmt.Columns)
		case Insert:
			require.NoError(t, aTable.Insert(ctx, stmt.Values))
		}
	}

	stmt, err := PrepareStatement("select")
	require.NoError(t, err)
	require.Equal(t, Select, stmt.Kind)

	rows, err := aTable.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "(1, john, john@example.com)", rows[0].String())
	assert.Equal(t, "(2, jane, jane@example.com)", rows[1].String())
}

func TestOpen_CorruptMeta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager, fileName := newTestPager(t, 0)

	aTable, err := Open(ctx, testLogger, aPager)
	require.NoError(t, err)
	aTable.SetSchema(testColumns)
	require.NoError(t, aTable.Insert(ctx, []string{"1", "john", "john@example.com"}))
	require.NoError(t, aTable.Save(ctx))
	require.NoError(t, aTable.Close())

	// Overwrite the first column kind in the metadata page with an
	// unknown value
	dbFile, err := os.OpenFile(fileName, os.O_RDWR, 0600)
	require.NoError(t, err)
	_, err = dbFile.WriteAt([]byte{9}, 4)
	require.NoError(t, err)

	aPager, err = NewPager(dbFile, PageSize, 0)
	require.NoError(t, err)

	_, err = Open(ctx, testLogger, aPager)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptPage)
}
