package domain

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"fabfetch/internal/netx"
	"fabfetch/internal/util"
)

// thumbnailExtension marks a low-resolution preview; the full asset swaps it
// for fullImageExtension under the same name.
const (
	thumbnailExtension = "t.jpg"
	fullImageExtension = "f.jpg"
	fullVideoExtension = "f.mp4"
)

// maxFailuresSearching tolerates misses across the date and timestamp axes
// before any asset has been found; maxFailuresFound gives up fast once a
// sequence has started, where a miss almost always means its end.
const (
	maxFailuresSearching = 5
	maxFailuresFound     = 2
	postcardStopFailures = 10
)

// defaultMaxProbes caps the total probes per message. The thresholds already
// bound well-behaved searches; the cap defends against a CDN that answers 200
// to every guess.
const defaultMaxProbes = 64

// BruteForceState is the mutable cursor of one message's discovery search.
// It is created from a seed SplitURL, mutated only by the search loop, and
// discarded when the search terminates.
type BruteForceState struct {
	Version             URLVersion
	Base                string
	Timestamp           int64
	Date                int64
	ImageNumber         int
	Extension           string
	UsingThumbnailBase  bool
	ConsecutiveFailures int
	Found               []MediaReference
}

func (s *BruteForceState) split() SplitURL {
	return SplitURL{
		Version:     s.Version,
		Base:        s.Base,
		Timestamp:   s.Timestamp,
		Date:        s.Date,
		ImageNumber: s.ImageNumber,
		Extension:   s.Extension,
	}
}

// Discoverer enumerates the real asset URLs of one message by probing
// candidate CDN names.
type Discoverer struct {
	net       *netx.Client
	maxProbes int
}

// NewDiscoverer builds a Discoverer over the given HTTP client. Probes are
// single-shot by design; the search loop interprets every failure itself.
func NewDiscoverer(net *netx.Client) *Discoverer {
	return &Discoverer{net: net, maxProbes: defaultMaxProbes}
}

// DiscoverMedia runs the sequential brute-force search from a seed SplitURL.
//
// Candidates are probed one at a time because each outcome decides the next
// guess: a hit advances the image number, a miss perturbs the date (one
// second down, only before the first hit on a non-thumbnail, non-postcard
// search) or the timestamp (±1). Results are returned in ascending image
// number order. An exhausted search returns an empty slice, which is a
// legitimate no-media outcome, not an error.
func (d *Discoverer) DiscoverMedia(ctx context.Context, seed SplitURL, isPostcard bool, kind PostcardKind) ([]MediaReference, error) {
	st := &BruteForceState{
		Version:            seed.Version,
		Base:               seed.Base,
		Timestamp:          seed.Timestamp,
		Date:               seed.Date,
		ImageNumber:        seed.ImageNumber,
		Extension:          seed.Extension,
		UsingThumbnailBase: seed.Extension == thumbnailExtension,
	}
	if st.UsingThumbnailBase {
		st.Extension = fullImageExtension
	}
	if isPostcard {
		st.Extension = fullImageExtension
		if kind == PostcardKindVideo {
			st.Extension = fullVideoExtension
		}
	}

	for probes := 0; probes < d.maxProbes; probes++ {
		if err := ctx.Err(); err != nil {
			closeAll(st.Found)
			return nil, err
		}

		candidate := BuildURL(st.split(), isPostcard)
		if body, ok := d.probe(ctx, candidate); ok {
			st.Found = append(st.Found, MediaReference{URL: candidate, Body: body})
			st.ImageNumber++
			if isPostcard {
				// A postcard has exactly one asset; jump past the threshold.
				st.ConsecutiveFailures = postcardStopFailures
			} else {
				st.ConsecutiveFailures = 0
			}
		} else {
			if len(st.Found) == 0 && !st.UsingThumbnailBase && !isPostcard {
				// Derived guesses run a second or two ahead of the true
				// upload instant; walk the packed date back first.
				if stepped, err := util.StepPackedDate(st.Date, -1); err == nil {
					st.Date = stepped
				}
			} else if isPostcard || (st.UsingThumbnailBase && len(st.Found) == 0) {
				st.Timestamp--
			} else {
				st.Timestamp++
			}
			st.ConsecutiveFailures++
		}

		maxFailures := maxFailuresFound
		if len(st.Found) == 0 {
			maxFailures = maxFailuresSearching
		}
		if st.ConsecutiveFailures >= maxFailures {
			break
		}
	}
	return st.Found, nil
}

// probe checks whether an asset exists at url. Existence means HTTP 200 with
// a non-empty body; everything else, 403 and transport errors included,
// counts as absent for search purposes. On success the response body is
// handed back so the asset is never fetched twice.
func (d *Discoverer) probe(ctx context.Context, url string) (io.ReadCloser, bool) {
	resp, err := d.net.GetStream(ctx, url, nil)
	if err != nil {
		return nil, false
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, false
	}
	first := make([]byte, 1)
	n, err := resp.Body.Read(first)
	if n == 0 && err != nil {
		_ = resp.Body.Close()
		return nil, false
	}
	return &rejoinedBody{
		Reader: io.MultiReader(bytes.NewReader(first[:n]), resp.Body),
		closer: resp.Body,
	}, true
}

type rejoinedBody struct {
	io.Reader
	closer io.Closer
}

func (b *rejoinedBody) Close() error { return b.closer.Close() }

func closeAll(refs []MediaReference) {
	for _, ref := range refs {
		if ref.Body != nil {
			_ = ref.Body.Close()
		}
	}
}
