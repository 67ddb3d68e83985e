package domain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fabfetch/internal/netx"
)

// cdnFixture serves a fixed set of asset paths; everything else is 403 like
// the real CDN.
func cdnFixture(t *testing.T, paths ...string) (*httptest.Server, *int32) {
	t.Helper()
	existing := make(map[string]bool, len(paths))
	for _, p := range paths {
		existing[p] = true
	}
	var probes int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&probes, 1)
		if !existing[r.URL.Path] {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("JPEGDATA"))
	}))
	t.Cleanup(s.Close)
	return s, &probes
}

func testDiscoverer(s *httptest.Server) *Discoverer {
	return NewDiscoverer(netx.NewClient(2*time.Second, netx.RetryPolicy{Attempts: 1}))
}

func mustParseSeed(t *testing.T, rawURL string) SplitURL {
	t.Helper()
	seed, err := ParseURL(rawURL, URLVersionUnknown)
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	return seed
}

func drainRefs(t *testing.T, refs []MediaReference) []string {
	t.Helper()
	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		urls = append(urls, ref.URL)
		if ref.Body == nil {
			t.Fatalf("probe hit should carry its body: %s", ref.URL)
		}
		b, err := io.ReadAll(ref.Body)
		if err != nil || string(b) != "JPEGDATA" {
			t.Fatalf("body mismatch for %s: %q %v", ref.URL, b, err)
		}
		_ = ref.Body.Close()
	}
	return urls
}

func TestDiscoverLetterSequenceFromThumbnail(t *testing.T) {
	s, _ := cdnFixture(t,
		"/letter/9/1696129200_20231001120000_1_f.jpg",
		"/letter/9/1696129200_20231001120000_2_f.jpg",
		"/letter/9/1696129200_20231001120000_3_f.jpg",
	)
	seed := mustParseSeed(t, s.URL+"/letter/9/1696129200_20231001120000_t.jpg")

	refs, err := testDiscoverer(s).DiscoverMedia(context.Background(), seed, false, PostcardKindNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls := drainRefs(t, refs)
	if len(urls) != 3 {
		t.Fatalf("want 3 assets, got %d: %v", len(urls), urls)
	}
	for i, u := range urls {
		want := fmt.Sprintf("%s/letter/9/1696129200_20231001120000_%d_f.jpg", s.URL, i+1)
		if u != want {
			t.Fatalf("asset %d:\nwant %s\ngot  %s", i+1, want, u)
		}
	}
}

func TestDiscoverThumbnailSeedWalksTimestampBack(t *testing.T) {
	s, _ := cdnFixture(t,
		"/letter/9/1696129198_20231001120000_1_f.jpg",
	)
	seed := mustParseSeed(t, s.URL+"/letter/9/1696129200_20231001120000_t.jpg")

	refs, err := testDiscoverer(s).DiscoverMedia(context.Background(), seed, false, PostcardKindNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls := drainRefs(t, refs)
	if len(urls) != 1 || urls[0] != s.URL+"/letter/9/1696129198_20231001120000_1_f.jpg" {
		t.Fatalf("want the ts-2 asset, got %v", urls)
	}
}

func TestDiscoverDerivedSeedWalksDateBack(t *testing.T) {
	// A derived guess carries the message time, which runs a couple of
	// seconds after the real upload instant embedded in the packed date.
	s, _ := cdnFixture(t,
		"/letter/9/1696129200_202310011159581f.jpg",
	)
	seed := mustParseSeed(t, s.URL+"/letter/9/1696129200_20231001120000_1f.jpg")

	refs, err := testDiscoverer(s).DiscoverMedia(context.Background(), seed, false, PostcardKindNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls := drainRefs(t, refs)
	if len(urls) != 1 || urls[0] != s.URL+"/letter/9/1696129200_202310011159581f.jpg" {
		t.Fatalf("want the stepped-back asset, got %v", urls)
	}
}

func TestDiscoverPostcardStopsAfterSingleAsset(t *testing.T) {
	s, probes := cdnFixture(t,
		"/postcard/55/1696129199_20231001120000f.mp4",
	)
	seed := mustParseSeed(t, s.URL+"/postcard/55/1696129200_20231001120000t.jpg")

	refs, err := testDiscoverer(s).DiscoverMedia(context.Background(), seed, true, PostcardKindVideo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls := drainRefs(t, refs)
	if len(urls) != 1 || urls[0] != s.URL+"/postcard/55/1696129199_20231001120000f.mp4" {
		t.Fatalf("want the single video, got %v", urls)
	}
	// One miss at the seed timestamp, one hit a second earlier, then stop.
	if got := atomic.LoadInt32(probes); got != 2 {
		t.Fatalf("want 2 probes, got %d", got)
	}
}

func TestDiscoverGivesUpSearching(t *testing.T) {
	s, probes := cdnFixture(t)
	seed := mustParseSeed(t, s.URL+"/letter/9/1696129200_20231001120000_t.jpg")

	refs, err := testDiscoverer(s).DiscoverMedia(context.Background(), seed, false, PostcardKindNone)
	if err != nil {
		t.Fatalf("an exhausted search is not an error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("want no assets, got %d", len(refs))
	}
	if got := atomic.LoadInt32(probes); got != 5 {
		t.Fatalf("want 5 probes before giving up, got %d", got)
	}
}

func TestDiscoverGivesUpFastOnceFound(t *testing.T) {
	s, probes := cdnFixture(t,
		"/letter/9/1696129200_20231001120000_1_f.jpg",
	)
	seed := mustParseSeed(t, s.URL+"/letter/9/1696129200_20231001120000_t.jpg")

	refs, err := testDiscoverer(s).DiscoverMedia(context.Background(), seed, false, PostcardKindNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("want 1 asset, got %d", len(refs))
	}
	closeAll(refs)
	// One hit, then two misses on image 2.
	if got := atomic.LoadInt32(probes); got != 3 {
		t.Fatalf("want 3 probes, got %d", got)
	}
}

func TestDiscoverProbeCapBoundsRunawaySearch(t *testing.T) {
	var probes int32
	// A CDN that answers 200 with a body to every guess would never trip
	// the failure thresholds.
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&probes, 1)
		_, _ = w.Write([]byte("JPEGDATA"))
	}))
	t.Cleanup(s.Close)

	d := &Discoverer{net: netx.NewClient(2*time.Second, netx.RetryPolicy{Attempts: 1}), maxProbes: 7}
	seed := mustParseSeed(t, s.URL+"/letter/9/1696129200_20231001120000_t.jpg")

	refs, err := d.DiscoverMedia(context.Background(), seed, false, PostcardKindNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	closeAll(refs)
	if len(refs) != 7 {
		t.Fatalf("want 7 capped hits, got %d", len(refs))
	}
	if got := atomic.LoadInt32(&probes); got != 7 {
		t.Fatalf("want 7 probes, got %d", got)
	}
}

func TestDiscoverFromDerivedSeedSingleImage(t *testing.T) {
	// A letter with no images and no thumbnail: the seed comes from the
	// deriver and only image 1 exists on the CDN.
	s, _ := cdnFixture(t,
		"/letter/3565/1696129200_202310011200001f.jpg",
	)
	url, version := DeriveSeedURL(1696129200000, 3565)
	seed, err := ParseURL(url, version)
	if err != nil {
		t.Fatalf("parse derived seed: %v", err)
	}
	seed.Base = s.URL + "/letter/3565/"

	refs, err := testDiscoverer(s).DiscoverMedia(context.Background(), seed, false, PostcardKindNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls := drainRefs(t, refs)
	if len(urls) != 1 || urls[0] != s.URL+"/letter/3565/1696129200_202310011200001f.jpg" {
		t.Fatalf("want exactly the first image, got %v", urls)
	}
}

func TestDiscoverCancelledContext(t *testing.T) {
	s, _ := cdnFixture(t)
	seed := mustParseSeed(t, s.URL+"/letter/9/1696129200_20231001120000_t.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testDiscoverer(s).DiscoverMedia(ctx, seed, false, PostcardKindNone)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestDiscoverEmptyBodyCountsAsMiss(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(s.Close)
	seed := mustParseSeed(t, s.URL+"/letter/9/1696129200_20231001120000_t.jpg")

	refs, err := testDiscoverer(s).DiscoverMedia(context.Background(), seed, false, PostcardKindNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("an empty 200 is a soft 404, got %d assets", len(refs))
	}
}
