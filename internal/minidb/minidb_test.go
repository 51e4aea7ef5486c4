package minidb

import (
	"os"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"minidb/internal/pkg/logging"
)

var (
	gen = newDataGen(uint64(time.Now().Unix()))

	testColumns = []Column{
		{
			Kind: Int4,
			Size: 4,
		},
		{
			Kind: Text,
			Size: 32,
		},
		{
			Kind: Text,
			Size: 255,
		},
	}

	testLogger *zap.Logger
)

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "debug"
	}

	var err error
	testLogger, err = logging.NewLogger(level)
	if err != nil {
		panic(err)
	}
}

type dataGen struct {
	*gofakeit.Faker
}

func newDataGen(seed uint64) *dataGen {
	g := dataGen{
		Faker: gofakeit.New(seed),
	}

	return &g
}

func (g *dataGen) Row() Row {
	key := int32(g.IntRange(1, 1<<30))
	return Row{
		Key:     key,
		Columns: testColumns,
		Values: []any{
			key,
			g.Username(),
			g.Email(),
		},
	}
}

func (g *dataGen) Rows(number int) []Row {
	// Make sure all rows will have a unique key, this is important in some tests
	keyMap := map[int32]struct{}{}
	rows := make([]Row, 0, number)
	for range number {
		aRow := g.Row()
		_, ok := keyMap[aRow.Key]
		for ok {
			aRow = g.Row()
			_, ok = keyMap[aRow.Key]
		}
		rows = append(rows, aRow)
		keyMap[aRow.Key] = struct{}{}
	}
	return rows
}

func newTestPager(t *testing.T, maxPages uint32) (*pagerImpl, string) {
	t.Helper()

	tempFile, err := os.CreateTemp("", "testdb")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tempFile.Name()) })

	aPager, err := NewPager(tempFile, PageSize, maxPages)
	require.NoError(t, err)

	return aPager, tempFile.Name()
}
