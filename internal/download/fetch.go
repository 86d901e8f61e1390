package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const chunkSize = 64 * 1024

// ErrDownloadFailed wraps every failure returned by Fetch.
var ErrDownloadFailed = errors.New("download failed")

// Progress is one sample taken after a chunk is written.
type Progress struct {
	Downloaded  uint64
	Total       uint64
	Percentage  float64
	SpeedBPS    float64
	ElapsedSecs float64
}

// ProgressFunc receives samples in order. Returning an error aborts the
// transfer.
type ProgressFunc func(Progress) error

// Fetcher streams HTTP resources to disk.
type Fetcher struct {
	Client    *http.Client
	UserAgent string

	now func() time.Time
}

// NewClient returns a client suited to large archive downloads: a generous TLS
// handshake timeout and no overall deadline.
func NewClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSHandshakeTimeout = 30 * time.Second
	transport.ResponseHeaderTimeout = 60 * time.Second
	return &http.Client{Transport: transport}
}

// Fetch downloads url into dest. The body is written to a temp file in the
// same directory and renamed into place once complete, so dest never holds a
// partial transfer.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string, onProgress ProgressFunc) error {
	if err := f.fetch(ctx, url, dest, onProgress); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, url, err)
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, url, dest string, onProgress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare download destination: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var total uint64
	if resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := f.copy(tmpFile, resp.Body, total, onProgress); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

func (f *Fetcher) copy(w io.Writer, r io.Reader, total uint64, onProgress ProgressFunc) error {
	now := f.now
	if now == nil {
		now = time.Now
	}
	start := now()
	buf := make([]byte, chunkSize)
	var downloaded uint64

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
			downloaded += uint64(n)
			if onProgress != nil {
				if err := onProgress(sample(downloaded, total, now().Sub(start))); err != nil {
					return fmt.Errorf("progress callback: %w", err)
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read body: %w", readErr)
		}
	}
}

func sample(downloaded, total uint64, elapsed time.Duration) Progress {
	p := Progress{
		Downloaded:  downloaded,
		Total:       total,
		ElapsedSecs: elapsed.Seconds(),
	}
	if total > 0 {
		p.Percentage = float64(downloaded) / float64(total) * 100
		if p.Percentage > 100 {
			p.Percentage = 100
		}
	}
	if p.ElapsedSecs > 0 {
		p.SpeedBPS = float64(downloaded) / p.ElapsedSecs
	}
	return p
}
