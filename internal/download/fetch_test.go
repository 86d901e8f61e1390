package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestFetchReportsMonotonicProgress(t *testing.T) {
	body := bytes.Repeat([]byte("x"), chunkSize*3+100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "hostboot-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "artifact.tar.gz")
	f := &Fetcher{Client: srv.Client(), UserAgent: "hostboot-test"}

	var samples []Progress
	err := f.Fetch(context.Background(), srv.URL+"/a", dest, func(p Progress) error {
		samples = append(samples, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, body) {
		t.Fatalf("downloaded %d bytes, want %d", len(data), len(body))
	}
	if len(samples) == 0 {
		t.Fatal("no progress samples")
	}
	var prev uint64
	for i, s := range samples {
		if s.Downloaded < prev {
			t.Fatalf("sample %d went backwards: %d < %d", i, s.Downloaded, prev)
		}
		prev = s.Downloaded
		if s.Total != uint64(len(body)) {
			t.Fatalf("sample %d total = %d", i, s.Total)
		}
		if s.Percentage < 0 || s.Percentage > 100 {
			t.Fatalf("sample %d percentage out of range: %f", i, s.Percentage)
		}
	}
	last := samples[len(samples)-1]
	if last.Downloaded != uint64(len(body)) || last.Percentage != 100 {
		t.Fatalf("final sample = %+v", last)
	}
}

func TestFetchUnknownLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("chunked body"))
	}))
	defer srv.Close()

	var last Progress
	dest := filepath.Join(t.TempDir(), "out")
	err := (&Fetcher{Client: srv.Client()}).Fetch(context.Background(), srv.URL, dest, func(p Progress) error {
		last = p
		return nil
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if last.Total != 0 || last.Percentage != 0 {
		t.Fatalf("expected unknown total, got %+v", last)
	}
	if last.Downloaded != uint64(len("chunked body")) {
		t.Fatalf("downloaded = %d", last.Downloaded)
	}
}

func TestFetchHTTPErrorLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out")
	err := (&Fetcher{Client: srv.Client()}).Fetch(context.Background(), srv.URL, dest, nil)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestFetchCallbackAbort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("y"), chunkSize*2))
	}))
	defer srv.Close()

	stop := errors.New("stop")
	dest := filepath.Join(t.TempDir(), "out")
	err := (&Fetcher{Client: srv.Client()}).Fetch(context.Background(), srv.URL, dest, func(Progress) error {
		return stop
	})
	if !errors.Is(err, ErrDownloadFailed) || !errors.Is(err, stop) {
		t.Fatalf("expected wrapped callback error, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("destination should not exist after abort")
	}
}

func TestFetchOverwritesStaleFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(dest, []byte("stale and longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := (&Fetcher{Client: srv.Client()}).Fetch(context.Background(), srv.URL, dest, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "fresh" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := (&Fetcher{}).Fetch(context.Background(), url, filepath.Join(t.TempDir(), "out"), nil)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestSample(t *testing.T) {
	p := sample(50, 200, 0)
	if p.Percentage != 25 || p.SpeedBPS != 0 {
		t.Fatalf("unexpected sample %+v", p)
	}
}
