package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// URLVersion names the CDN's historical asset naming schemes.
type URLVersion string

const (
	// URLVersionUnknown means the version must be detected from the URL.
	URLVersionUnknown URLVersion = ""
	// URLVersionV1 underscore-separates every field, including the extension.
	URLVersionV1 URLVersion = "v1"
	// URLVersionV2 fuses date, image number, and extension into one segment.
	URLVersionV2 URLVersion = "v2"
)

// ErrUnrecognizedURLFormat reports a media URL that matches neither naming
// scheme. Callers skip the affected message; the error is never fatal to the
// process.
var ErrUnrecognizedURLFormat = errors.New("unrecognized media url format")

// SplitURL is the structured decomposition of a CDN media URL.
//
// The invariant is that BuildURL reassembles the original URL for every shape
// the parser accepts (modulo the thumbnail markers, which rebuild as
// full-asset names once discovery rewrites the extension).
type SplitURL struct {
	Version     URLVersion
	Base        string
	Timestamp   int64
	Date        int64
	ImageNumber int
	Extension   string
}

// Platform-supplied seed URLs are always thumbnails; full-asset patterns are
// accepted for parsing URLs the engine itself produced.
var (
	v1ThumbPattern = regexp.MustCompile(`\d{10,}_\d{14,}_[tb]\.jpg`)
	v2ThumbPattern = regexp.MustCompile(`\d{10,}_\d{14,}[tb]\.jpg`)
	v1FullPattern  = regexp.MustCompile(`\d{10,}_\d{14}_\d+_[a-z]\.(jpg|mp4)$`)
	v2FullPattern  = regexp.MustCompile(`\d{10,}_\d{14}_?\d*[a-z]\.(jpg|mp4)$`)
)

// DetectURLVersion classifies a CDN URL by naming scheme.
//
// V1 patterns are checked first: the underscored forms are strictly more
// separated, so nothing matched by them can be a fused V2 name.
func DetectURLVersion(rawURL string) (URLVersion, error) {
	switch {
	case v1ThumbPattern.MatchString(rawURL), v1FullPattern.MatchString(rawURL):
		return URLVersionV1, nil
	case v2ThumbPattern.MatchString(rawURL), v2FullPattern.MatchString(rawURL):
		return URLVersionV2, nil
	}
	return URLVersionUnknown, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
}

// ParseURL splits a CDN media URL into its components.
//
// Pass URLVersionUnknown to detect the version first; derived seed URLs carry
// a pre-known version and skip detection.
func ParseURL(rawURL string, version URLVersion) (SplitURL, error) {
	if version == URLVersionUnknown {
		detected, err := DetectURLVersion(rawURL)
		if err != nil {
			return SplitURL{}, err
		}
		version = detected
	}
	switch version {
	case URLVersionV1:
		return parseV1URL(rawURL)
	case URLVersionV2:
		return parseV2URL(rawURL)
	}
	return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
}

// parseV1URL handles "<base><ts>_<date>_<imageNumber>_<ext>" and the thumbnail
// form "<base><ts>_<date>_t.jpg" (which has no image number of its own).
func parseV1URL(rawURL string) (SplitURL, error) {
	base, timestamp, parts, err := splitSegments(rawURL)
	if err != nil {
		return SplitURL{}, err
	}
	if len(parts) < 2 {
		return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
	}
	date, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
	}

	out := SplitURL{Version: URLVersionV1, Base: base, Timestamp: timestamp, Date: date}
	if parts[1] == "t.jpg" {
		out.ImageNumber = 1
		out.Extension = parts[1]
		return out, nil
	}
	if len(parts) < 3 {
		return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
	}
	imageNumber, err := strconv.Atoi(parts[1])
	if err != nil {
		return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
	}
	out.ImageNumber = imageNumber
	out.Extension = parts[2]
	return out, nil
}

var packedDateRun = regexp.MustCompile(`\d{14,}`)

// parseV2URL handles the fused form "<base><ts>_<date><imageNumber><ext>".
//
// Derived seeds keep one underscore before the image number
// ("..._20231001120000_1f.jpg"); the segments are fused before parsing so
// both spellings land on the same SplitURL.
func parseV2URL(rawURL string) (SplitURL, error) {
	base, timestamp, parts, err := splitSegments(rawURL)
	if err != nil {
		return SplitURL{}, err
	}
	fused := strings.Join(parts, "")

	extension := stripDigits(fused)
	out := SplitURL{Version: URLVersionV2, Base: base, Timestamp: timestamp, Extension: extension}

	if extension == "b.jpg" || extension == "t.jpg" {
		run := packedDateRun.FindString(fused)
		if run == "" {
			return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
		}
		date, err := strconv.ParseInt(run[:14], 10, 64)
		if err != nil {
			return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
		}
		out.Date = date
		out.ImageNumber = 1
		return out, nil
	}

	digits := fused[:len(fused)-len(extension)]
	if len(digits) < 14 || !isDigits(digits) {
		return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
	}
	date, err := strconv.ParseInt(digits[:14], 10, 64)
	if err != nil {
		return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
	}
	out.Date = date
	out.ImageNumber = 1
	if rest := digits[14:]; rest != "" {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return SplitURL{}, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
		}
		out.ImageNumber = n
	}
	return out, nil
}

// BuildURL reassembles a CDN URL from its parts.
//
// Postcards carry exactly one asset and never encode an image number. V1
// underscore-joins every field; V2 fuses everything after the date's leading
// underscore.
func BuildURL(s SplitURL, isPostcard bool) string {
	sep := ""
	if s.Version == URLVersionV1 {
		sep = "_"
	}
	if isPostcard {
		return fmt.Sprintf("%s%d_%d%s%s", s.Base, s.Timestamp, s.Date, sep, s.Extension)
	}
	if s.Version == URLVersionV1 {
		return fmt.Sprintf("%s%d_%d_%d_%s", s.Base, s.Timestamp, s.Date, s.ImageNumber, s.Extension)
	}
	return fmt.Sprintf("%s%d_%d%d%s", s.Base, s.Timestamp, s.Date, s.ImageNumber, s.Extension)
}

// splitSegments separates the base path, the embedded timestamp, and the
// remaining underscore-delimited segments of a CDN URL.
func splitSegments(rawURL string) (base string, timestamp int64, parts []string, err error) {
	segs := strings.Split(rawURL, "_")
	slash := strings.LastIndex(segs[0], "/")
	if slash < 0 || len(segs) < 2 {
		return "", 0, nil, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
	}
	base = segs[0][:slash+1]
	timestamp, err = strconv.ParseInt(segs[0][slash+1:], 10, 64)
	if err != nil {
		return "", 0, nil, fmt.Errorf("%w: %s", ErrUnrecognizedURLFormat, rawURL)
	}
	return base, timestamp, segs[1:], nil
}

func stripDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < '0' || r > '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
