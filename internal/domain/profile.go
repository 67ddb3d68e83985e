package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"fabfetch/internal/util"
)

// ProfileMediaKind names which of an artist's two profile assets a saved
// file is.
type ProfileMediaKind string

const (
	ProfilePicture ProfileMediaKind = "picture"
	ProfileBanner  ProfileMediaKind = "banner"
)

type profileLedger interface {
	HasProfileMedia(url string) (bool, error)
	SaveProfileMedia(artistID int64, kind ProfileMediaKind, url, path string) error
}

// ProfileArchiverOptions locate the profile folders on disk.
type ProfileArchiverOptions struct {
	DownloadRoot   string
	MonthlyFolders bool
}

// ProfileArchiver downloads artist profile pictures and banners the first
// time a new URL shows up on a message. URLs already in the ledger are
// skipped, so unchanged profiles cost nothing per poll.
type ProfileArchiver struct {
	download mediaDownloader
	ledger   profileLedger
	names    artistNamer
	opts     ProfileArchiverOptions
	now      func() time.Time
}

// NewProfileArchiver wires the profile sweep from its collaborators.
func NewProfileArchiver(download mediaDownloader, ledger profileLedger, names artistNamer, opts ProfileArchiverOptions) *ProfileArchiver {
	return &ProfileArchiver{download: download, ledger: ledger, names: names, opts: opts, now: time.Now}
}

// ArchiveProfiles checks every given artist identity for profile assets not
// yet archived and downloads the new ones. Per-asset failures do not stop the
// sweep; the first error is returned alongside whatever was saved.
func (a *ProfileArchiver) ArchiveProfiles(ctx context.Context, users []FabUser) ([]SavedMedia, error) {
	var saved []SavedMedia
	var firstErr error
	seen := make(map[int64]bool, len(users))
	for _, u := range users {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		for _, asset := range []struct {
			kind ProfileMediaKind
			url  string
		}{
			{ProfilePicture, u.ProfileImage},
			{ProfileBanner, u.BannerImage},
		} {
			if asset.url == "" {
				continue
			}
			media, err := a.archiveOne(ctx, u, asset.kind, asset.url)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if media != nil {
				saved = append(saved, *media)
			}
		}
	}
	return saved, firstErr
}

// archiveOne downloads a single profile asset unless its URL is already in
// the ledger. The ledger row is written only after the file landed, so a
// failed download is retried on the next poll.
func (a *ProfileArchiver) archiveOne(ctx context.Context, u FabUser, kind ProfileMediaKind, url string) (*SavedMedia, error) {
	known, err := a.ledger.HasProfileMedia(url)
	if err != nil {
		return nil, fmt.Errorf("profile ledger lookup: %w", err)
	}
	if known {
		return nil, nil
	}

	folder := a.folder(u, kind)
	path := filepath.Join(folder, util.FileNameFromURL(url))
	result, err := a.download.Download(ctx, MediaReference{URL: url}, folder, path)
	if err != nil {
		return nil, fmt.Errorf("profile %s for %s: %w", kind, u.EnName, err)
	}
	if result != DownloadSuccess {
		return nil, nil
	}
	if err := a.ledger.SaveProfileMedia(u.ID, kind, url, path); err != nil {
		return nil, fmt.Errorf("profile ledger save: %w", err)
	}
	return &SavedMedia{URL: url, Path: path}, nil
}

// folder is <root>/<artist>/profile-pictures or profile-banners, with a
// yyyy-MM subfolder in monthly mode.
func (a *ProfileArchiver) folder(u FabUser, kind ProfileMediaKind) string {
	sub := "profile-pictures"
	if kind == ProfileBanner {
		sub = "profile-banners"
	}
	folder := filepath.Join(
		a.opts.DownloadRoot,
		util.SanitizeFileNamePart(a.names.Name(u.ID, u.EnName)),
		sub,
	)
	if a.opts.MonthlyFolders {
		folder = filepath.Join(folder, a.now().Format("2006-01"))
	}
	return folder
}
