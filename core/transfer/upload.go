package transfer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-admin/core/apiclient"
)

// UploadPath is the base path of the chunked upload protocol.
const UploadPath = "/api/upload"

const (
	defaultChunkSize   = 2 << 20
	defaultConcurrency = 3
	simulatedStep      = 10
)

type (
	// Progress receives completion percentages, in increasing order, up to 100.
	Progress func(percent int)

	// Uploader sends a whole file and returns the merge outcome.
	Uploader interface {
		Upload(ctx context.Context, filename string, data []byte, progress Progress) (*MergeResult, error)
	}

	chunkedUploader struct {
		client      *apiclient.Client
		chunkSize   int64
		concurrency int
		// degraded takes over when the upload routes only get the dispatcher's safe answers
		degraded Uploader
	}

	simulatedUploader struct {
		interval time.Duration
	}

	// mergeRequest is the body of the merge endpoint.
	mergeRequest struct {
		FileHash   string `json:"fileHash"`
		Filename   string `json:"filename"`
		Size       int64  `json:"size"`
		ChunkCount int    `json:"chunkCount"`
	}
)

var (
	_ Uploader = (*chunkedUploader)(nil)
	_ Uploader = (*simulatedUploader)(nil)
)

// Hash returns the content hash identifying a file in the upload protocol.
func Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ChunkCount returns the number of chunks data splits into. Empty files still take one chunk.
func ChunkCount(size, chunkSize int64) int {
	if size <= 0 {
		return 1
	}
	return int((size + chunkSize - 1) / chunkSize)
}

func newChunkedUploader(client *apiclient.Client, chunkSize int64, concurrency int, degraded Uploader) *chunkedUploader {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &chunkedUploader{client: client, chunkSize: chunkSize, concurrency: concurrency, degraded: degraded}
}

// Upload checks which chunks the server already has, sends the others in parallel and asks for the merge.
func (u *chunkedUploader) Upload(ctx context.Context, filename string, data []byte, progress Progress) (*MergeResult, error) {
	if progress == nil {
		progress = func(int) {}
	}
	fileHash := Hash(data)
	size := int64(len(data))
	chunkCount := ChunkCount(size, u.chunkSize)

	resp, err := u.client.Do(ctx, &apiclient.Request{
		Method: http.MethodGet,
		Path:   UploadPath + "/check",
		Query:  url.Values{"fileHash": {fileHash}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "checking upload status")
	}
	if resp.Source == apiclient.SourceFallback && u.degraded != nil {
		return u.degraded.Upload(ctx, filename, data, progress)
	}
	var status CheckResult
	if err := resp.Decode(&status); err != nil {
		return nil, errors.Wrap(err, "checking upload status")
	}

	done := make(map[int]bool, len(status.UploadedChunks))
	for _, idx := range status.UploadedChunks {
		if idx >= 0 && idx < chunkCount {
			done[idx] = true
		}
	}
	if status.Uploaded {
		for i := 0; i < chunkCount; i++ {
			done[i] = true
		}
	}

	var (
		mu       sync.Mutex
		uploaded = len(done)
		reported = -1
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		percent := uploaded * 100 / chunkCount
		if percent > reported {
			reported = percent
			progress(percent)
		}
	}
	if uploaded > 0 {
		report()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i := 0; i < chunkCount; i++ {
		if done[i] {
			continue
		}
		index := i
		g.Go(func() error {
			if err := u.uploadChunk(gctx, fileHash, filename, data, index, chunkCount); err != nil {
				return err
			}
			mu.Lock()
			uploaded++
			mu.Unlock()
			report()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var res MergeResult
	body := mergeRequest{FileHash: fileHash, Filename: filename, Size: size, ChunkCount: chunkCount}
	if err := u.client.Post(ctx, UploadPath+"/merge", body, &res); err != nil {
		return nil, errors.Wrap(err, "merging chunks")
	}
	if reported < 100 {
		progress(100)
	}
	return &res, nil
}

func (u *chunkedUploader) uploadChunk(ctx context.Context, fileHash, filename string, data []byte, index, chunkCount int) error {
	start := int64(index) * u.chunkSize
	end := start + u.chunkSize
	if end > int64(len(data)) {
		end = int64(len(data))
	}

	req := &apiclient.Request{
		Method: http.MethodPost,
		Path:   UploadPath + "/chunk",
		Form: &apiclient.Form{
			Fields: url.Values{
				"fileHash":   {fileHash},
				"filename":   {filename},
				"chunkIndex": {strconv.Itoa(index)},
				"chunkSize":  {strconv.FormatInt(u.chunkSize, 10)},
				"chunkCount": {strconv.Itoa(chunkCount)},
				"fileSize":   {strconv.Itoa(len(data))},
			},
			FileField: "file",
			FileName:  filename,
			File:      data[start:end],
		},
	}
	resp, err := u.client.Do(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "uploading chunk %d", index)
	}
	var res ChunkResult
	if err := resp.Decode(&res); err != nil {
		return errors.Wrapf(err, "uploading chunk %d", index)
	}
	if !res.Success {
		return errors.Errorf("uploading chunk %d: %s", index, res.Message)
	}
	return nil
}

func newSimulatedUploader(interval time.Duration) *simulatedUploader {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &simulatedUploader{interval: interval}
}

// Upload emits progress on a fixed interval until 100 and answers a synthetic merge result.
func (u *simulatedUploader) Upload(ctx context.Context, filename string, data []byte, progress Progress) (*MergeResult, error) {
	if progress == nil {
		progress = func(int) {}
	}
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for percent := 0; percent < 100; {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "simulated upload")
		case <-ticker.C:
			percent += simulatedStep
			if percent > 100 {
				percent = 100
			}
			progress(percent)
		}
	}

	fileHash := Hash(data)
	info := FileInfo{
		Hash:       fileHash,
		Name:       filename,
		Size:       int64(len(data)),
		URL:        "/mock/files/" + fileHash + "/" + url.PathEscape(filename),
		UploadedAt: time.Now(),
	}
	res := mergeResult(info, "file uploaded (simulated)")
	return &res, nil
}
