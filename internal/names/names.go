// Package names maps artist user ids to display names and emoji. The built-in
// book covers the platform's known roster; a YAML file can extend or override
// it without rebuilding.
package names

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one artist's display name and emoji.
type Entry struct {
	Name  string `yaml:"name"`
	Emoji string `yaml:"emoji"`
}

// Book resolves artist ids to entries.
type Book struct {
	entries map[int64]Entry
}

// Solo artists appear twice: once under their legacy id and once under the
// account id the platform migrated them to.
var builtin = map[int64]Entry{
	1:  {Name: "LOONA", Emoji: "🌙"},
	2:  {Name: "HeeJin", Emoji: "🐰"},
	3:  {Name: "HyunJin", Emoji: "🐱"},
	4:  {Name: "HaSeul", Emoji: "🕊"},
	5:  {Name: "YeoJin", Emoji: "🐻"},
	6:  {Name: "ViVi", Emoji: "🦌"},
	7:  {Name: "Kim Lip", Emoji: "🦉"},
	8:  {Name: "JinSoul", Emoji: "🐟"},
	9:  {Name: "Choerry", Emoji: "🦇"},
	10: {Name: "Yves", Emoji: "🦢"},
	11: {Name: "Chuu", Emoji: "🐧"},
	12: {Name: "Go Won", Emoji: "🦋"},
	13: {Name: "Olivia Hye", Emoji: "🐺"},

	85354: {Name: "Kim Lip", Emoji: "🦉"},
	85355: {Name: "JinSoul", Emoji: "🐟"},
	85356: {Name: "HeeJin", Emoji: "🐰"},
	85357: {Name: "Choerry", Emoji: "🦇"},
	91292: {Name: "HyunJin", Emoji: "🐱"},
}

// Default returns the built-in book.
func Default() *Book {
	entries := make(map[int64]Entry, len(builtin))
	for id, e := range builtin {
		entries[id] = e
	}
	return &Book{entries: entries}
}

// Load returns the built-in book merged with overrides from a YAML file
// mapping ids to entries. An empty path returns the built-in book unchanged.
func Load(path string) (*Book, error) {
	book := Default()
	if path == "" {
		return book, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overrides map[int64]Entry
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse names file %s: %w", path, err)
	}
	for id, e := range overrides {
		book.entries[id] = e
	}
	return book, nil
}

// Name resolves an artist id to a display name, preferring the book over the
// fallback the platform supplied.
func (b *Book) Name(id int64, fallback string) string {
	if e, ok := b.entries[id]; ok && e.Name != "" {
		return e.Name
	}
	return fallback
}

// Emoji returns the artist's emoji, or empty when unknown.
func (b *Book) Emoji(id int64) string {
	return b.entries[id].Emoji
}
