package transfer

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/apiclient"
)

type (
	Options struct {
		ChunkSize   int64
		Concurrency int
		// Simulate replaces network transfers with timed progress, for use without a backend.
		Simulate         bool
		SimulateInterval time.Duration
		DownloadDelay    time.Duration
		Logger           core.Logger
	}

	// DownloadResult tells where a downloaded file was saved.
	DownloadResult struct {
		Path      string
		Size      int64
		Simulated bool
	}

	// Manager runs uploads and downloads over the API client.
	Manager struct {
		client        *apiclient.Client
		uploader      Uploader
		simulate      bool
		downloadDelay time.Duration
		logger        core.Logger
	}
)

// OptionsFromConfig maps the upload configuration onto Options.
func OptionsFromConfig(conf core.UploadConfig, logger core.Logger) Options {
	return Options{
		ChunkSize:        conf.ChunkSize,
		Concurrency:      conf.Concurrency,
		Simulate:         conf.Simulate,
		SimulateInterval: conf.SimulateInterval,
		DownloadDelay:    conf.DownloadDelay,
		Logger:           logger,
	}
}

func NewManager(client *apiclient.Client, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	m := &Manager{
		client:        client,
		simulate:      opts.Simulate,
		downloadDelay: opts.DownloadDelay,
		logger:        opts.Logger,
	}
	if opts.Simulate {
		m.uploader = newSimulatedUploader(opts.SimulateInterval)
	} else {
		m.uploader = newChunkedUploader(client, opts.ChunkSize, opts.Concurrency, newSimulatedUploader(opts.SimulateInterval))
	}
	return m
}

func (m *Manager) Upload(ctx context.Context, filename string, data []byte, progress Progress) (*MergeResult, error) {
	res, err := m.uploader.Upload(ctx, filename, data, progress)
	if err != nil {
		m.logger.Error("upload failed", err, map[string]interface{}{"filename": filename, "size": len(data)})
		return nil, err
	}
	m.logger.Info("file uploaded", map[string]interface{}{"filename": filename, "url": res.FileURL})
	return res, nil
}

// Download fetches urlPath as a binary and saves it into dir. When filename is empty, the name comes from
// the Content-Disposition header, else from the path and the content type.
// Without a backend (simulated mode or fallback answer) it only reports success after a fixed delay.
func (m *Manager) Download(ctx context.Context, urlPath, filename, dir string) (*DownloadResult, error) {
	if m.simulate {
		return m.simulatedDownload(ctx, urlPath, filename, dir)
	}

	resp, err := m.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: urlPath, Raw: true})
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", urlPath)
	}
	if resp.Source == apiclient.SourceFallback {
		m.logger.Warn("backend unavailable, download simulated", map[string]interface{}{"path": urlPath})
		return m.simulatedDownload(ctx, urlPath, filename, dir)
	}

	if filename == "" {
		filename = downloadName(urlPath, resp.Header)
	}
	dest := filepath.Join(dir, filepath.Base(filename))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", dir)
	}
	if err := core.WriteFileAtomic(dest, resp.Data, 0o644); err != nil {
		return nil, errors.Wrapf(err, "saving %s", dest)
	}
	return &DownloadResult{Path: dest, Size: int64(len(resp.Data))}, nil
}

func (m *Manager) simulatedDownload(ctx context.Context, urlPath, filename, dir string) (*DownloadResult, error) {
	if filename == "" {
		filename = downloadName(urlPath, nil)
	}
	timer := time.NewTimer(m.downloadDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "simulated download")
	case <-timer.C:
	}
	return &DownloadResult{Path: filepath.Join(dir, filepath.Base(filename)), Simulated: true}, nil
}

func downloadName(urlPath string, header http.Header) string {
	if header != nil {
		if cd := header.Get("Content-Disposition"); cd != "" {
			if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
				return params["filename"]
			}
		}
	}

	name := path.Base(strings.SplitN(urlPath, "?", 2)[0])
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	if path.Ext(name) != "" || header == nil {
		return name
	}
	mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		return name
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return name + exts[0]
	}
	return name
}
