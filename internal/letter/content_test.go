package letter

import (
	"errors"
	"testing"
)

func TestChecksum_KnownValue(t *testing.T) {
	t.Parallel()
	// echo -n "hello" | sha1sum
	got := Checksum("hello")
	want := "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"
	if got != want {
		t.Errorf("Checksum(\"hello\") = %q, want %q", got, want)
	}
}

func TestEmpty(t *testing.T) {
	t.Parallel()
	c := Empty()
	if !c.IsEmpty() {
		t.Error("Empty().IsEmpty() = false")
	}
	if c.Checksum() != "da39a3ee5e6b4b0d3255bfef95601890afd80709" {
		t.Errorf("Empty().Checksum() = %q", c.Checksum())
	}
}

func TestNew_LineEndingsAndWhitespaceDoNotChangeChecksum(t *testing.T) {
	t.Parallel()
	base := New("<a>\n  <b/>\n</a>")
	variants := []string{
		"<a>\r\n  <b/>\r\n</a>",
		"<a>\r  <b/>\r</a>",
		"<a>\n  <b/>\n</a>\n",
		"\n\n<a>\n  <b/>\n</a>   \n\t",
		"<a>\r\n  <b/>\n</a>\r\n\r\n",
	}
	for _, v := range variants {
		c := New(v)
		if c.Checksum() != base.Checksum() {
			t.Errorf("New(%q).Checksum() = %s, want %s", v, c.Short(), base.Short())
		}
		if !c.Equal(base) {
			t.Errorf("New(%q) not Equal to base", v)
		}
	}
}

func TestNew_DifferentTextDifferentChecksum(t *testing.T) {
	t.Parallel()
	if New("<a/>").Equal(New("<b/>")) {
		t.Error("different documents share a checksum")
	}
}

func TestShort(t *testing.T) {
	t.Parallel()
	c := New("hello")
	if c.Short() != "aaf4c61" {
		t.Errorf("Short() = %q", c.Short())
	}
	if ShortSum("abc") != "abc" {
		t.Errorf("ShortSum(abc) = %q", ShortSum("abc"))
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		text  string
		valid bool
	}{
		{"simple", "<a/>", true},
		{"declaration", `<?xml version="1.0" encoding="utf-8"?><xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform"><xsl:template match="/"/></xsl:stylesheet>`, true},
		{"comment after root", "<a/><!-- trailing -->", true},
		{"unclosed", "<a><b></a>", false},
		{"two roots", "<a/><b/>", false},
		{"text after root", "<a/>junk", false},
		{"empty", "", false},
		{"plain text", "hello", false},
	}
	for _, tc := range cases {
		err := New(tc.text).Validate()
		if tc.valid && err != nil {
			t.Errorf("%s: Validate() = %v, want nil", tc.name, err)
		}
		if !tc.valid {
			if err == nil {
				t.Errorf("%s: Validate() = nil, want error", tc.name)
			} else if !errors.Is(err, ErrInvalid) {
				t.Errorf("%s: error %v does not wrap ErrInvalid", tc.name, err)
			}
		}
	}
}

func TestNew_InvalidContentStillConstructed(t *testing.T) {
	t.Parallel()
	c := New("<a>")
	if c.Text() != "<a>" {
		t.Errorf("Text() = %q", c.Text())
	}
	if c.Checksum() == "" {
		t.Error("invalid content has no checksum")
	}
}
