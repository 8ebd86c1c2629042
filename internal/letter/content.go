// Package letter holds the normalized, fingerprinted text of a letter template.
package letter

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalid is returned by Validate when the text is not well-formed XML.
var ErrInvalid = errors.New("invalid XML")

// Content is an immutable letter text. The zero value is not useful;
// construct it with New.
type Content struct {
	text     string
	checksum string
	parseErr error
}

// New normalizes raw text (unix line endings, surrounding whitespace
// trimmed), fingerprints it and parses it as XML. A parse failure is kept
// for Validate and never prevents construction.
func New(raw string) Content {
	text := Normalize(raw)
	return Content{
		text:     text,
		checksum: Checksum(text),
		parseErr: checkXML(text),
	}
}

// Empty returns the content of a file that does not exist.
func Empty() Content {
	return New("")
}

// Text returns the normalized text.
func (c Content) Text() string { return c.text }

// Checksum returns the hex SHA-1 of the normalized text.
func (c Content) Checksum() string { return c.checksum }

// Short returns the first 7 characters of the checksum.
func (c Content) Short() string { return ShortSum(c.checksum) }

// IsEmpty reports whether the normalized text is empty.
func (c Content) IsEmpty() bool { return c.text == "" }

// Equal reports whether both contents have the same fingerprint.
func (c Content) Equal(other Content) bool { return c.checksum == other.checksum }

// Validate returns an error wrapping ErrInvalid if the text is not
// well-formed XML.
func (c Content) Validate() error {
	if c.parseErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, c.parseErr)
	}
	return nil
}

// Normalize converts line endings to \n and trims surrounding whitespace.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// Checksum returns the hex-encoded SHA-1 of s. The text must already be
// normalized for checksums to be comparable.
func Checksum(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// ShortSum abbreviates a checksum for display.
func ShortSum(sum string) string {
	if len(sum) > 7 {
		return sum[:7]
	}
	return sum
}

// checkXML requires exactly one root element and nothing but whitespace,
// comments and processing instructions outside it.
func checkXML(text string) error {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = true

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					line, _ := dec.InputPos()
					return fmt.Errorf("line %d: junk after document element <%s>", line, t.Name.Local)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				line, _ := dec.InputPos()
				return fmt.Errorf("line %d: text outside the document element", line)
			}
		}
	}
	if roots == 0 {
		return errors.New("no document element")
	}
	return nil
}
