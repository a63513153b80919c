package transfer

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
)

// Status of an upload session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
)

var ErrInvalidChunk = errors.New("invalid chunk")

type (
	Chunk struct {
		Index    int  `json:"index"`
		Uploaded bool `json:"uploaded"`
		data     []byte
	}

	// Session is the upload state of one file, identified by its content hash.
	Session struct {
		FileHash   string  `json:"fileHash"`
		Filename   string  `json:"filename"`
		Size       int64   `json:"size"`
		ChunkCount int     `json:"chunkCount"`
		Chunks     []Chunk `json:"chunks"`
		Status     Status  `json:"status"`
	}

	// ChunkInfo describes one uploaded chunk (the multipart fields of the chunk endpoint).
	ChunkInfo struct {
		FileHash   string
		Filename   string
		Index      int
		ChunkSize  int64
		ChunkCount int
		FileSize   int64
		Data       []byte
	}

	CheckResult struct {
		Uploaded       bool  `json:"uploaded"`
		UploadedChunks []int `json:"uploadedChunks"`
	}

	ChunkResult struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Uploaded bool   `json:"uploaded"`
	}

	FileInfo struct {
		Hash       string    `json:"hash"`
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		URL        string    `json:"url"`
		UploadedAt time.Time `json:"uploadedAt"`
	}

	MergeResult struct {
		Success bool     `json:"success"`
		Message string   `json:"message"`
		FileURL string   `json:"fileUrl"`
		File    FileInfo `json:"file"`
	}

	// MergeError is returned when a merge is requested while chunks are missing.
	MergeError struct {
		FileHash string
		Missing  []int
	}
)

func (e *MergeError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, idx := range e.Missing {
		missing[i] = strconv.Itoa(idx)
	}
	return fmt.Sprintf("cannot merge %s: missing chunks [%s]", e.FileHash, strings.Join(missing, ","))
}

func IsMergeError(err error) bool {
	var mErr *MergeError
	return errors.As(err, &mErr)
}

type completedFile struct {
	info FileInfo
	data []byte
}

// Store keeps upload sessions in memory. Sessions are created by their first chunk
// and discarded once merged; merged files are remembered so that a later check reports them as uploaded.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	completed map[string]completedFile
	urlPrefix string
	now       func() time.Time
}

// NewStore returns an empty store. Merged files are served under urlPrefix, eg. "/api/files".
func NewStore(urlPrefix string) *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		completed: make(map[string]completedFile),
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		now:       time.Now,
	}
}

// CheckStatus returns the indices already recorded for fileHash.
func (s *Store) CheckStatus(fileHash string) CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := CheckResult{UploadedChunks: []int{}}
	if _, ok := s.completed[fileHash]; ok {
		res.Uploaded = true
		return res
	}
	if sess, ok := s.sessions[fileHash]; ok {
		res.UploadedChunks = sess.uploadedIndices()
	}
	return res
}

// UploadChunk records a chunk. The result reports whether every chunk of the file is now present.
func (s *Store) UploadChunk(info ChunkInfo) (ChunkResult, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(info.FileHash, "fileHash"),
		vala.GreaterThan(info.ChunkCount, 0, "chunkCount"),
		vala.GreaterThan(info.Index, -1, "chunkIndex"),
		vala.GreaterThan(info.ChunkCount, info.Index, "chunkCount"),
	).Check()
	if err != nil {
		return ChunkResult{}, errors.Wrapf(ErrInvalidChunk, "chunk %d of %d for %q: %v", info.Index, info.ChunkCount, info.FileHash, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.completed[info.FileHash]; ok {
		return ChunkResult{Success: true, Message: "file already uploaded", Uploaded: true}, nil
	}

	sess, ok := s.sessions[info.FileHash]
	if !ok || sess.ChunkCount != info.ChunkCount {
		sess = &Session{
			FileHash:   info.FileHash,
			ChunkCount: info.ChunkCount,
			Chunks:     make([]Chunk, info.ChunkCount),
			Status:     StatusPending,
		}
		for i := range sess.Chunks {
			sess.Chunks[i].Index = i
		}
		s.sessions[info.FileHash] = sess
	}
	if info.Filename != "" {
		sess.Filename = info.Filename
	}
	if info.FileSize > 0 {
		sess.Size = info.FileSize
	}
	sess.Chunks[info.Index].Uploaded = true
	sess.Chunks[info.Index].data = append([]byte(nil), info.Data...)
	sess.Status = StatusUploading

	complete := len(sess.missing()) == 0
	return ChunkResult{
		Success:  true,
		Message:  fmt.Sprintf("chunk %d uploaded", info.Index),
		Uploaded: complete,
	}, nil
}

// Merge assembles the chunks of fileHash. It fails with a *MergeError if any of the chunkCount indices is missing.
func (s *Store) Merge(fileHash, filename string, size int64, chunkCount int) (MergeResult, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(fileHash, "fileHash"),
		vala.GreaterThan(chunkCount, 0, "chunkCount"),
	).Check()
	if err != nil {
		return MergeResult{}, errors.Wrapf(ErrInvalidChunk, "merging %d chunks for %q: %v", chunkCount, fileHash, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if done, ok := s.completed[fileHash]; ok {
		return mergeResult(done.info, "file already merged"), nil
	}

	sess, ok := s.sessions[fileHash]
	if !ok {
		sess = &Session{FileHash: fileHash}
	}
	var missing []int
	for i := 0; i < chunkCount; i++ {
		if i >= len(sess.Chunks) || !sess.Chunks[i].Uploaded {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return MergeResult{}, &MergeError{FileHash: fileHash, Missing: missing}
	}

	var data []byte
	for _, c := range sess.Chunks[:chunkCount] {
		data = append(data, c.data...)
	}
	if filename == "" {
		filename = sess.Filename
	}
	if size <= 0 {
		size = int64(len(data))
	}
	sess.Status = StatusCompleted

	info := FileInfo{
		Hash:       fileHash,
		Name:       filename,
		Size:       size,
		URL:        s.fileURL(fileHash, filename),
		UploadedAt: s.now(),
	}
	s.completed[fileHash] = completedFile{info: info, data: data}
	delete(s.sessions, fileHash)
	return mergeResult(info, "file merged"), nil
}

// Session returns a copy of the in-progress session of fileHash.
func (s *Store) Session(fileHash string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[fileHash]
	if !ok {
		return Session{}, false
	}
	cp := *sess
	cp.Chunks = append([]Chunk(nil), sess.Chunks...)
	return cp, true
}

// File returns a merged file and its content.
func (s *Store) File(fileHash string) (FileInfo, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	done, ok := s.completed[fileHash]
	return done.info, done.data, ok
}

func (s *Store) fileURL(fileHash, filename string) string {
	u := s.urlPrefix + "/" + fileHash
	if ext := path.Ext(filename); ext != "" {
		u += ext
	}
	return u
}

func (sess *Session) uploadedIndices() []int {
	indices := []int{}
	for _, c := range sess.Chunks {
		if c.Uploaded {
			indices = append(indices, c.Index)
		}
	}
	sort.Ints(indices)
	return indices
}

func (sess *Session) missing() []int {
	var missing []int
	for _, c := range sess.Chunks {
		if !c.Uploaded {
			missing = append(missing, c.Index)
		}
	}
	return missing
}

func mergeResult(info FileInfo, msg string) MergeResult {
	return MergeResult{Success: true, Message: msg, FileURL: info.URL, File: info}
}
