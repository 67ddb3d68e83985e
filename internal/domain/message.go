package domain

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"fabfetch/internal/util"
)

// MessageType distinguishes the platform's two message shapes, with postcards
// split by their media kind.
type MessageType string

const (
	MessageLetter        MessageType = "LETTER"
	MessagePostcardImage MessageType = "POSTCARD_IMAGE"
	MessagePostcardVideo MessageType = "POSTCARD_VIDEO"
)

// PostcardKind is the declared media kind of a postcard message.
type PostcardKind int

const (
	PostcardKindNone  PostcardKind = -1
	PostcardKindImage PostcardKind = 0
	PostcardKindVideo PostcardKind = 1
)

// MediaReference is a discovered or derived asset.
//
// Body, when non-nil, is the response stream captured by a successful
// discovery probe. It is owned exclusively by the reference and must be
// consumed (or closed) exactly once, normally by the download engine.
type MediaReference struct {
	URL  string
	Body io.ReadCloser
}

// SavedMedia records where a downloaded asset landed on disk.
type SavedMedia struct {
	URL  string
	Path string
}

// FabUser is the flattened artist identity attached to a message, already
// resolved across the solo/group split.
type FabUser struct {
	ID            int64
	NickName      string
	Name          string
	EnName        string
	ProfileImage  string
	BannerImage   string
	StatusMessage string
}

// LetterImage is one authoritative image entry of a paid-for letter.
type LetterImage struct {
	ID       int64
	LetterID int64
	URL      string
}

// Letter is a multi-image message body.
type Letter struct {
	ID        int64
	MessageID int64
	UserID    int64
	Thumbnail string
	Images    []LetterImage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Postcard is a single-asset (image or video) message body.
type Postcard struct {
	ID        int64
	MessageID int64
	UserID    int64
	Image     string
	Video     string
	Thumbnail string
	Type      PostcardKind
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a parsed platform message. Exactly one of Letter or Postcard is
// set for well-formed payloads.
type Message struct {
	ID            int64
	UserID        int64
	GroupID       int64
	IsGroup       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	User          FabUser
	Text          string
	Letter        *Letter
	Postcard      *Postcard
	Type          MessageType
	HasNewComment bool
}

// IsPostcard reports whether the message carries a postcard body.
func (m *Message) IsPostcard() bool { return m.Postcard != nil }

// Kind returns the postcard media kind, or PostcardKindNone for letters.
func (m *Message) Kind() PostcardKind {
	if m.Postcard == nil {
		return PostcardKindNone
	}
	return m.Postcard.Type
}

// StarterMedia returns the thumbnail URL the message listing exposes, which
// seeds the discovery search. Older letters have no thumbnail at all and
// return an empty slice; the caller derives a seed instead.
func (m *Message) StarterMedia() []MediaReference {
	switch {
	case m.Postcard != nil && m.Postcard.Thumbnail != "":
		return []MediaReference{{URL: m.Postcard.Thumbnail}}
	case m.Letter != nil && m.Letter.Thumbnail != "":
		return []MediaReference{{URL: m.Letter.Thumbnail}}
	}
	return nil
}

// Wire types. The platform encodes booleans as "Y"/"N" strings and timestamps
// as epoch milliseconds.
type rawArtist struct {
	Name          string `json:"name"`
	EnName        string `json:"enName"`
	BannerImage   string `json:"bannerImage"`
	StatusMessage string `json:"statusMessage"`
}

type rawArtistUser struct {
	ID           int64     `json:"id"`
	NickName     string    `json:"nickName"`
	ProfileImage string    `json:"profileImage"`
	Artist       rawArtist `json:"artist"`
}

type rawGroup struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	EnName        string `json:"enName"`
	ProfileImage  string `json:"profileImage"`
	BannerImage   string `json:"bannerImage"`
	StatusMessage string `json:"statusMessage"`
}

type rawLetterImage struct {
	ID       int64  `json:"id"`
	LetterID int64  `json:"letterId"`
	Image    string `json:"image"`
}

type rawLetter struct {
	ID        int64            `json:"id"`
	MessageID int64            `json:"messageId"`
	UserID    int64            `json:"userId"`
	Text      string           `json:"text"`
	Thumbnail string           `json:"thumbnail"`
	Images    []rawLetterImage `json:"images"`
	CreatedAt int64            `json:"createdAt"`
	UpdatedAt int64            `json:"updatedAt"`
}

type rawPostcard struct {
	ID            int64  `json:"id"`
	MessageID     int64  `json:"messageId"`
	UserID        int64  `json:"userId"`
	PostcardImage string `json:"postcardImage"`
	PostcardVideo string `json:"postcardVideo"`
	Thumbnail     string `json:"thumbnail"`
	Type          int    `json:"type"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
}

type rawMessage struct {
	ID                     int64         `json:"id"`
	UserID                 int64         `json:"userId"`
	GroupID                int64         `json:"groupId"`
	IsGroup                string        `json:"isGroup"`
	CreatedAt              int64         `json:"createdAt"`
	UpdatedAt              int64         `json:"updatedAt"`
	User                   rawArtistUser `json:"user"`
	Letter                 *rawLetter    `json:"letter"`
	Postcard               *rawPostcard  `json:"postcard"`
	Group                  *rawGroup     `json:"group"`
	IsNewArtistUserComment string        `json:"isNewArtistUserComment"`
}

func yes(s string) bool { return s == "Y" }

// parseMessage converts a wire message into the domain model.
func parseMessage(raw rawMessage) Message {
	m := Message{
		ID:            raw.ID,
		UserID:        raw.UserID,
		GroupID:       raw.GroupID,
		IsGroup:       yes(raw.IsGroup),
		CreatedAt:     util.FromMillis(raw.CreatedAt),
		UpdatedAt:     util.FromMillis(raw.UpdatedAt),
		User:          parseUser(raw),
		Type:          MessageLetter,
		HasNewComment: yes(raw.IsNewArtistUserComment),
	}
	if raw.Letter != nil {
		m.Letter = &Letter{
			ID:        raw.Letter.ID,
			MessageID: raw.Letter.MessageID,
			UserID:    raw.Letter.UserID,
			Thumbnail: raw.Letter.Thumbnail,
			CreatedAt: util.FromMillis(raw.Letter.CreatedAt),
			UpdatedAt: util.FromMillis(raw.Letter.UpdatedAt),
		}
		for _, img := range raw.Letter.Images {
			m.Letter.Images = append(m.Letter.Images, LetterImage{ID: img.ID, LetterID: img.LetterID, URL: img.Image})
		}
		m.Text = extractLetterText(raw.Letter.Text)
	}
	if raw.Postcard != nil {
		m.Postcard = &Postcard{
			ID:        raw.Postcard.ID,
			MessageID: raw.Postcard.MessageID,
			UserID:    raw.Postcard.UserID,
			Image:     raw.Postcard.PostcardImage,
			Video:     raw.Postcard.PostcardVideo,
			Thumbnail: raw.Postcard.Thumbnail,
			Type:      PostcardKindImage,
			CreatedAt: util.FromMillis(raw.Postcard.CreatedAt),
			UpdatedAt: util.FromMillis(raw.Postcard.UpdatedAt),
		}
		m.Type = MessagePostcardImage
		if raw.Postcard.Type == 1 {
			m.Postcard.Type = PostcardKindVideo
			m.Type = MessagePostcardVideo
		}
	}
	return m
}

// parseUser flattens the user/group split: group messages publish under the
// group identity, solo messages under the artist's.
func parseUser(raw rawMessage) FabUser {
	if yes(raw.IsGroup) && raw.Group != nil {
		return FabUser{
			ID:            raw.UserID,
			NickName:      raw.Group.EnName,
			Name:          raw.Group.Name,
			EnName:        raw.Group.EnName,
			ProfileImage:  raw.Group.ProfileImage,
			BannerImage:   raw.Group.BannerImage,
			StatusMessage: raw.Group.StatusMessage,
		}
	}
	return FabUser{
		ID:            raw.UserID,
		NickName:      raw.User.NickName,
		Name:          raw.User.Artist.Name,
		EnName:        raw.User.Artist.EnName,
		ProfileImage:  raw.User.ProfileImage,
		BannerImage:   raw.User.Artist.BannerImage,
		StatusMessage: raw.User.Artist.StatusMessage,
	}
}

// extractLetterText pulls the plain-text lines out of a letter's structured
// rich-text body. Malformed bodies yield an empty string rather than an
// error; text is incidental to media archiving.
func extractLetterText(body string) string {
	if body == "" {
		return ""
	}
	var parsed struct {
		Contents []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"contents"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return ""
	}
	lines := make([]string, 0, len(parsed.Contents))
	for _, c := range parsed.Contents {
		if c.Type == "text" {
			lines = append(lines, c.Text)
		}
	}
	return strings.Join(lines, "\n")
}
