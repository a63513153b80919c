package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadChunks(t *testing.T, s *Store, hash string, chunkCount int, indices ...int) {
	t.Helper()
	for _, i := range indices {
		if _, err := s.UploadChunk(ChunkInfo{FileHash: hash, Filename: "notes.pdf", Index: i, ChunkCount: chunkCount, Data: []byte{byte('a' + i)}}); err != nil {
			t.Fatalf("UploadChunk(%d) failed, %v", i, err)
		}
	}
}

func TestStore_CheckStatus_unknown(t *testing.T) {
	s := NewStore("/api/files")
	res := s.CheckStatus("nope")
	assert.False(t, res.Uploaded)
	assert.NotNil(t, res.UploadedChunks)
	assert.Empty(t, res.UploadedChunks)
}

func TestStore_UploadChunk(t *testing.T) {
	s := NewStore("/api/files")

	res, err := s.UploadChunk(ChunkInfo{FileHash: "h", Index: 2, ChunkCount: 3, Data: []byte("c")})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Uploaded)

	sess, ok := s.Session("h")
	require.True(t, ok)
	assert.Equal(t, StatusUploading, sess.Status)
	assert.Equal(t, []int{2}, s.CheckStatus("h").UploadedChunks)

	uploadChunks(t, s, "h", 3, 0)
	res, err = s.UploadChunk(ChunkInfo{FileHash: "h", Index: 1, ChunkCount: 3, Data: []byte("b")})
	require.NoError(t, err)
	assert.True(t, res.Uploaded)
	assert.Equal(t, []int{0, 1, 2}, s.CheckStatus("h").UploadedChunks)
}

func TestStore_UploadChunk_invalid(t *testing.T) {
	s := NewStore("")
	tests := []struct {
		name string
		info ChunkInfo
	}{
		{name: "no hash", info: ChunkInfo{Index: 0, ChunkCount: 1}},
		{name: "no chunks", info: ChunkInfo{FileHash: "h", Index: 0}},
		{name: "negative index", info: ChunkInfo{FileHash: "h", Index: -1, ChunkCount: 2}},
		{name: "index out of range", info: ChunkInfo{FileHash: "h", Index: 2, ChunkCount: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UploadChunk(tt.info)
			assert.ErrorIs(t, err, ErrInvalidChunk)
		})
	}
}

func TestStore_Merge_invalid(t *testing.T) {
	s := NewStore("/api/files")

	_, err := s.Merge("", "notes.pdf", 0, 2)
	assert.ErrorIs(t, err, ErrInvalidChunk)

	_, err = s.Merge("h", "notes.pdf", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidChunk)
}

func TestStore_Merge(t *testing.T) {
	s := NewStore("/api/files")
	uploadChunks(t, s, "abc", 5, 0, 1, 2, 3, 4)

	res, err := s.Merge("abc", "notes.pdf", 0, 5)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "/api/files/abc.pdf", res.FileURL)
	assert.Equal(t, int64(5), res.File.Size)

	_, ok := s.Session("abc")
	assert.False(t, ok, "session discarded after merge")
	assert.True(t, s.CheckStatus("abc").Uploaded)

	info, data, ok := s.File("abc")
	require.True(t, ok)
	assert.Equal(t, "notes.pdf", info.Name)
	assert.Equal(t, "abcde", string(data))

	again, err := s.Merge("abc", "notes.pdf", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, res.FileURL, again.FileURL)
}

// merge fails iff at least one of the chunkCount indices is missing
func TestStore_Merge_missing(t *testing.T) {
	tests := []struct {
		name        string
		uploaded    []int
		chunkCount  int
		wantMissing []int
	}{
		{name: "nothing uploaded", chunkCount: 3, wantMissing: []int{0, 1, 2}},
		{name: "gap", uploaded: []int{0, 2}, chunkCount: 3, wantMissing: []int{1}},
		{name: "last missing", uploaded: []int{0, 1}, chunkCount: 3, wantMissing: []int{2}},
		{name: "complete", uploaded: []int{1, 0, 2}, chunkCount: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore("/api/files")
			uploadChunks(t, s, "h", tt.chunkCount, tt.uploaded...)

			_, err := s.Merge("h", "f.bin", 0, tt.chunkCount)
			if tt.wantMissing == nil {
				assert.NoError(t, err)
				return
			}
			require.True(t, IsMergeError(err), "Merge() error = %v", err)
			mErr := err.(*MergeError)
			assert.Equal(t, tt.wantMissing, mErr.Missing)
			assert.Contains(t, err.Error(), "missing chunks")
		})
	}
}

func TestChunkCount(t *testing.T) {
	assert.Equal(t, 1, ChunkCount(0, 10))
	assert.Equal(t, 1, ChunkCount(10, 10))
	assert.Equal(t, 2, ChunkCount(11, 10))
	assert.Equal(t, 5, ChunkCount(50, 10))
}
