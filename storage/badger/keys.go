package badger

import (
	"encoding/binary"
	"errors"
)

// The snapshot lives under a timestamp key and a data key written in one
// transaction. A snapshot missing either key is treated as absent.
//
// The encoded snapshot is split into chunks no larger than the backend's
// chunk size; the data key holds the chunk count.
var (
	snapshotDataKey   = []byte("snap:data")
	snapshotTimeKey   = []byte("snap:ts")
	snapshotChunkKeyP = []byte("snap:chunk:")
)

var errBadChunkCount = errors.New("malformed snapshot chunk count")

func snapshotChunkKey(i uint32) []byte {
	key := make([]byte, len(snapshotChunkKeyP)+4)
	copy(key, snapshotChunkKeyP)
	binary.BigEndian.PutUint32(key[len(snapshotChunkKeyP):], i)
	return key
}

func encodeChunkCount(n uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, n)
}

func decodeChunkCount(val []byte) (uint32, error) {
	if len(val) != 4 {
		return 0, errBadChunkCount
	}
	return binary.BigEndian.Uint32(val), nil
}

// splitChunks splits data into pieces of at most size bytes, or keeps it
// whole when size is not positive. Empty data yields no chunks.
func splitChunks(data []byte, size int) [][]byte {
	if size <= 0 {
		size = len(data)
	}
	if size == 0 {
		return nil
	}
	chunks := make([][]byte, 0, len(data)/size+1)
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		chunks = append(chunks, data)
	}
	return chunks
}
