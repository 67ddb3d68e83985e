package domain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fabfetch/internal/util"
)

// ProcessResult classifies how a whole message was handled.
type ProcessResult string

const (
	ProcessSuccess         ProcessResult = "SUCCESS"
	ProcessNoMedia         ProcessResult = "NOT_FOUND"
	ProcessConnectionError ProcessResult = "CONNECTION_ERROR"
	ProcessDecryptionError ProcessResult = "DECRYPTION_ERROR"
)

// ProcessOutcome reports what one message yielded: the overall result plus
// every asset that made it to disk.
type ProcessOutcome struct {
	Result ProcessResult
	Media  []SavedMedia
}

type messageFetcher interface {
	FetchMessage(ctx context.Context, messageID int64) (Message, error)
	UserID() int64
}

type mediaDiscoverer interface {
	DiscoverMedia(ctx context.Context, seed SplitURL, isPostcard bool, kind PostcardKind) ([]MediaReference, error)
}

type mediaDownloader interface {
	Download(ctx context.Context, ref MediaReference, folder, fullPath string) (DownloadResult, error)
}

type artistNamer interface {
	Name(id int64, fallback string) string
}

// ProcessorOptions are the explicit toggles that decide paying versus
// brute-forcing. They come from configuration, never from ambient process
// state, so the decision logic stays testable in isolation.
type ProcessorOptions struct {
	DownloadRoot   string
	MonthlyFolders bool
	PayForUserIDs  []int64
	DecryptAll     bool
	PayOnFallback  bool
}

// ProgressFunc observes download progress for one message: saved is how many
// assets have landed on disk so far, total how many were resolved.
type ProgressFunc func(saved, total int)

// Processor turns one message into downloaded media files.
type Processor struct {
	client   messageFetcher
	discover mediaDiscoverer
	download mediaDownloader
	names    artistNamer
	opts     ProcessorOptions
}

// NewProcessor wires the per-message workflow from its collaborators.
func NewProcessor(client messageFetcher, discover mediaDiscoverer, download mediaDownloader, names artistNamer, opts ProcessorOptions) *Processor {
	return &Processor{client: client, discover: discover, download: download, names: names, opts: opts}
}

// HandleMessage resolves and downloads all media for one message.
//
// Messages from pay-listed artists, messages whose thumbnail carries the
// Android "_IMAGE_" marker, and everything under the decrypt-all toggle are
// paid for and decrypted; the rest are brute-forced from the thumbnail (or a
// derived seed when the letter has no media at all). Failures here are scoped
// to this message: a returned error means "skip it", never "stop the run".
//
// progress, when non-nil, is invoked as each resolved asset finishes
// downloading.
func (p *Processor) HandleMessage(ctx context.Context, m Message, progress ProgressFunc) (ProcessOutcome, error) {
	if m.Letter == nil && m.Postcard == nil {
		return ProcessOutcome{Result: ProcessNoMedia}, fmt.Errorf("message #%d has neither letter nor postcard", m.ID)
	}
	starter := m.StarterMedia()
	pay := p.opts.DecryptAll || p.payListed(m.UserID) || hasAndroidMarker(starter)

	var media []MediaReference
	var err error
	if pay {
		media, err = p.payForMessage(ctx, m)
	} else {
		media, err = p.bruteForce(ctx, m, starter)
	}
	if err == nil && len(media) == 0 && p.opts.PayOnFallback && !pay {
		media, err = p.payForMessage(ctx, m)
	}
	if err != nil {
		var decErr *DecryptionError
		if errors.As(err, &decErr) {
			return ProcessOutcome{Result: ProcessDecryptionError}, err
		}
		return ProcessOutcome{Result: ProcessConnectionError}, err
	}
	if len(media) == 0 {
		return ProcessOutcome{Result: ProcessNoMedia}, nil
	}

	return p.downloadAll(ctx, m, media, progress)
}

// MediaFolder returns the on-disk folder for a message's assets:
// <root>/<artist>/<date>.
func (p *Processor) MediaFolder(m Message) string {
	name := p.names.Name(m.UserID, m.User.EnName)
	return filepath.Join(
		p.opts.DownloadRoot,
		util.SanitizeFileNamePart(name),
		util.MediaFolderDate(m.CreatedAt, p.opts.MonthlyFolders),
	)
}

// bruteForce seeds and runs the discovery search for an unpaid message.
func (p *Processor) bruteForce(ctx context.Context, m Message, starter []MediaReference) ([]MediaReference, error) {
	var seed SplitURL
	var err error
	if len(starter) == 0 {
		if m.Letter == nil {
			return nil, fmt.Errorf("postcard message #%d has no thumbnail to search from", m.ID)
		}
		seedURL, version := DeriveSeedURL(m.CreatedAt.UnixMilli(), m.Letter.ID)
		seed, err = ParseURL(seedURL, version)
	} else {
		seed, err = ParseURL(starter[0].URL, URLVersionUnknown)
	}
	if err != nil {
		return nil, fmt.Errorf("message #%d: %w", m.ID, err)
	}
	return p.discover.DiscoverMedia(ctx, seed, m.IsPostcard(), m.Kind())
}

// payForMessage fetches the authoritative message payload (spending points)
// and decrypts its media URLs with the content's updatedAt timestamp.
func (p *Processor) payForMessage(ctx context.Context, m Message) ([]MediaReference, error) {
	full, err := p.client.FetchMessage(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	var stamp time.Time
	var urls []string
	switch {
	case full.Postcard != nil:
		stamp = full.Postcard.UpdatedAt
		if full.Postcard.Type == PostcardKindVideo {
			urls = []string{full.Postcard.Video}
		} else {
			urls = []string{full.Postcard.Image}
		}
	case full.Letter != nil:
		stamp = full.Letter.UpdatedAt
		for _, img := range full.Letter.Images {
			urls = append(urls, img.URL)
		}
	}

	media := make([]MediaReference, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		plain, err := DecryptMediaURL(stamp.UnixMilli(), p.client.UserID(), u)
		if err != nil {
			return nil, fmt.Errorf("message #%d: %w", m.ID, err)
		}
		media = append(media, MediaReference{URL: plain})
	}
	return media, nil
}

// downloadAll writes every resolved asset. Downloads run concurrently: once
// discovery has finished, the files are independent.
func (p *Processor) downloadAll(ctx context.Context, m Message, media []MediaReference, progress ProgressFunc) (ProcessOutcome, error) {
	folder := p.MediaFolder(m)
	if progress != nil {
		progress(0, len(media))
	}

	type item struct {
		saved  *SavedMedia
		result DownloadResult
		err    error
	}
	items := make([]item, len(media))
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		savedSoFar int
	)
	for i, ref := range media {
		wg.Add(1)
		go func(i int, ref MediaReference) {
			defer wg.Done()
			path := filepath.Join(folder, util.FileNameFromURL(ref.URL))
			result, err := p.download.Download(ctx, ref, folder, path)
			mu.Lock()
			items[i] = item{result: result, err: err}
			if result == DownloadSuccess {
				items[i].saved = &SavedMedia{URL: ref.URL, Path: path}
				savedSoFar++
			}
			if progress != nil {
				progress(savedSoFar, len(media))
			}
			mu.Unlock()
		}(i, ref)
	}
	wg.Wait()

	out := ProcessOutcome{Result: ProcessSuccess}
	var firstErr error
	for _, it := range items {
		switch {
		case it.saved != nil:
			out.Media = append(out.Media, *it.saved)
		case it.result == DownloadTransientError:
			out.Result = ProcessConnectionError
			if firstErr == nil {
				firstErr = it.err
			}
		}
	}
	if len(out.Media) == 0 && out.Result == ProcessSuccess {
		out.Result = ProcessNoMedia
	}
	return out, firstErr
}

func (p *Processor) payListed(userID int64) bool {
	for _, id := range p.opts.PayForUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// hasAndroidMarker reports whether a starter URL was uploaded from the
// Android app, whose asset names cannot be brute-forced.
func hasAndroidMarker(starter []MediaReference) bool {
	for _, ref := range starter {
		if strings.Contains(ref.URL, "_IMAGE_") {
			return true
		}
	}
	return false
}
