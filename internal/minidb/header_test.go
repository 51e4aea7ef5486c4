package minidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_Marshal(t *testing.T) {
	t.Parallel()

	t.Run("leaf node header", func(t *testing.T) {
		aHeader := Header{
			IsInternal: false,
			IsRoot:     false,
			Parent:     NewPageRef(3),
		}

		buf := make([]byte, aHeader.Size())
		aHeader.Marshal(buf)
		assert.Equal(t, byte(PageTypeLeaf), buf[0])

		var recreated Header
		_, err := recreated.Unmarshal(buf)
		require.NoError(t, err)
		assert.Equal(t, aHeader, recreated)
	})

	t.Run("internal node header", func(t *testing.T) {
		aHeader := Header{
			IsInternal: true,
			IsRoot:     false,
			Parent:     NewPageRef(0),
		}

		buf := make([]byte, aHeader.Size())
		aHeader.Marshal(buf)
		assert.Equal(t, byte(PageTypeInternal), buf[0])

		var recreated Header
		_, err := recreated.Unmarshal(buf)
		require.NoError(t, err)
		assert.Equal(t, aHeader, recreated)
	})

	t.Run("root header without parent", func(t *testing.T) {
		aHeader := Header{
			IsInternal: true,
			IsRoot:     true,
		}

		buf := make([]byte, aHeader.Size())
		aHeader.Marshal(buf)

		// An absent parent reference is stored as the not set marker
		assert.Equal(t, uint32(PageRefNotSet), unmarshalUint32(buf, 2))

		var recreated Header
		_, err := recreated.Unmarshal(buf)
		require.NoError(t, err)
		assert.Equal(t, aHeader, recreated)
		assert.False(t, recreated.Parent.Valid)
	})
}

func TestHeader_Unmarshal_UnknownPageType(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 6)
	buf[0] = 42

	var aHeader Header
	_, err := aHeader.Unmarshal(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptPage)
}
