package domain

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fabfetch/internal/netx"
)

func testDownloader() *Downloader {
	d := NewDownloader(netx.NewClient(2*time.Second, netx.RetryPolicy{Attempts: 1}))
	d.retry.BaseDelay = time.Millisecond
	d.retry.MaxDelay = 2 * time.Millisecond
	return d
}

func TestDownloadWritesFile(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("JPEGDATA"))
	}))
	defer s.Close()

	folder := filepath.Join(t.TempDir(), "JinSoul", "231001")
	fullPath := filepath.Join(folder, "a.jpg")
	result, err := testDownloader().Download(context.Background(), MediaReference{URL: s.URL + "/a.jpg"}, folder, fullPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != DownloadSuccess {
		t.Fatalf("want SUCCESS, got %s", result)
	}
	b, err := os.ReadFile(fullPath)
	if err != nil || string(b) != "JPEGDATA" {
		t.Fatalf("file mismatch: %q %v", b, err)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		t.Fatalf("read folder: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %v", entries)
	}
}

func TestDownloadAbsentOn403(t *testing.T) {
	var calls int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer s.Close()

	folder := t.TempDir()
	result, err := testDownloader().Download(context.Background(), MediaReference{URL: s.URL + "/x.jpg"}, folder, filepath.Join(folder, "x.jpg"))
	if err != nil {
		t.Fatalf("absence is an outcome, not an error: %v", err)
	}
	if result != DownloadAbsent {
		t.Fatalf("want NOT_FOUND, got %s", result)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("403 must not be retried, got %d calls", got)
	}
}

func TestDownloadRetriesThenFails(t *testing.T) {
	var calls int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()

	folder := t.TempDir()
	result, err := testDownloader().Download(context.Background(), MediaReference{URL: s.URL + "/x.jpg"}, folder, filepath.Join(folder, "x.jpg"))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if result != DownloadTransientError {
		t.Fatalf("want CONNECTION_ERROR, got %s", result)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("want 3 attempts, got %d", got)
	}
}

func TestDownloadRecoversWithinBudget(t *testing.T) {
	var calls int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("JPEGDATA"))
	}))
	defer s.Close()

	folder := t.TempDir()
	result, err := testDownloader().Download(context.Background(), MediaReference{URL: s.URL + "/x.jpg"}, folder, filepath.Join(folder, "x.jpg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != DownloadSuccess {
		t.Fatalf("want SUCCESS, got %s", result)
	}
}

func TestDownloadStreamRefNeverRefetched(t *testing.T) {
	var calls int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer s.Close()

	folder := t.TempDir()
	fullPath := filepath.Join(folder, "s.jpg")
	ref := MediaReference{URL: s.URL + "/s.jpg", Body: io.NopCloser(strings.NewReader("CAPTURED"))}
	result, err := testDownloader().Download(context.Background(), ref, folder, fullPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != DownloadSuccess {
		t.Fatalf("want SUCCESS, got %s", result)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("stream-carrying ref must not hit the network, got %d calls", got)
	}
	b, err := os.ReadFile(fullPath)
	if err != nil || string(b) != "CAPTURED" {
		t.Fatalf("file mismatch: %q %v", b, err)
	}
}

func TestDownloadCreatesFolder(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer s.Close()

	folder := filepath.Join(t.TempDir(), "new", "deep")
	_, err := testDownloader().Download(context.Background(), MediaReference{URL: s.URL + "/x.jpg"}, folder, filepath.Join(folder, "x.jpg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(folder); err != nil {
		t.Fatalf("folder not created: %v", err)
	}
}
