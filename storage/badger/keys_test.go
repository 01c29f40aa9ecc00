package badger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks(t *testing.T) {
	data := []byte("abcdefghij")

	chunks := splitChunks(data, 4)
	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("efgh"), []byte("ij")}, chunks)
	assert.Equal(t, data, bytes.Join(chunks, nil))

	assert.Len(t, splitChunks(data, 5), 2)
	assert.Equal(t, [][]byte{data}, splitChunks(data, 0), "no limit keeps data whole")
	assert.Empty(t, splitChunks(nil, 4))
	assert.Empty(t, splitChunks(nil, 0))
}

func TestChunkKeysSortInOrder(t *testing.T) {
	assert.Negative(t, bytes.Compare(snapshotChunkKey(1), snapshotChunkKey(2)))
	assert.Negative(t, bytes.Compare(snapshotChunkKey(255), snapshotChunkKey(256)))
	assert.True(t, bytes.HasPrefix(snapshotChunkKey(7), snapshotChunkKeyP))
}

func TestChunkCount(t *testing.T) {
	n, err := decodeChunkCount(encodeChunkCount(42))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), n)

	_, err = decodeChunkCount([]byte("bad"))
	assert.ErrorIs(t, err, errBadChunkCount)
}
