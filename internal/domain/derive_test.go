package domain

import (
	"strings"
	"testing"
)

func TestDeriveSeedURLBeforeCutover(t *testing.T) {
	// 2023-10-01 12:00:00 in Seoul.
	url, version := DeriveSeedURL(1696129200000, 2993)
	if version != URLVersionV1 {
		t.Fatalf("want v1, got %s", version)
	}
	want := "https://dnkvjm1f8biz3.cloudfront.net/images/letter/2993/1696129200_20231001120000_1_f.jpg"
	if url != want {
		t.Fatalf("want %s, got %s", want, url)
	}
}

func TestDeriveSeedURLAtCutover(t *testing.T) {
	url, version := DeriveSeedURL(1696129200000, 2994)
	if version != URLVersionV2 {
		t.Fatalf("want v2, got %s", version)
	}
	want := "https://dnkvjm1f8biz3.cloudfront.net/images/letter/2994/1696129200_20231001120000_1f.jpg"
	if url != want {
		t.Fatalf("want %s, got %s", want, url)
	}
}

func TestDeriveSeedURLParsesBack(t *testing.T) {
	url, version := DeriveSeedURL(1696129200000, 5000)
	split, err := ParseURL(url, version)
	if err != nil {
		t.Fatalf("derived seed must parse: %v", err)
	}
	if split.Timestamp != 1696129200 {
		t.Fatalf("want timestamp 1696129200, got %d", split.Timestamp)
	}
	if split.Date != 20231001120000 {
		t.Fatalf("want date 20231001120000, got %d", split.Date)
	}
	if split.ImageNumber != 1 || split.Extension != "f.jpg" {
		t.Fatalf("unexpected split: %+v", split)
	}
	if !strings.Contains(split.Base, "/letter/5000/") {
		t.Fatalf("base should carry the letter id: %s", split.Base)
	}
}
