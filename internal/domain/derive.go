package domain

import (
	"fmt"

	"fabfetch/internal/util"
)

const cdnLetterBase = "https://dnkvjm1f8biz3.cloudfront.net/images/letter"

// v2CutoverLetterID is the first letter id published under the fused V2
// naming scheme. The CDN migrated once and never again; the cutoff is a fixed
// historical fact, not a tunable.
const v2CutoverLetterID = 2994

// DeriveSeedURL synthesizes a first-guess media URL for a letter that came
// with no media URLs at all, from the message creation time and the letter id.
//
// The guess always points at image 1 of a full-resolution letter asset; the
// discovery engine corrects the timestamp jitter from there.
func DeriveSeedURL(timestampMillis, letterID int64) (string, URLVersion) {
	t := util.FromMillis(timestampMillis)
	suffix, version := "_1_f.jpg", URLVersionV1
	if letterID >= v2CutoverLetterID {
		suffix, version = "_1f.jpg", URLVersionV2
	}
	url := fmt.Sprintf("%s/%d/%d_%d%s", cdnLetterBase, letterID, t.Unix(), util.FormatPackedDate(t), suffix)
	return url, version
}
