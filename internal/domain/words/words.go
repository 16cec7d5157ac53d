// Package words provides the word sequence and document domain entities.
package words

import (
	"strings"
	"time"
)

// Sequence is an ordered list of words. It is not modified after creation.
type Sequence struct {
	words []string
}

// NewSequence creates a sequence from the given words.
// The slice is copied so later changes by the caller are not observed.
func NewSequence(ws []string) Sequence {
	if len(ws) == 0 {
		return Sequence{}
	}
	cp := make([]string, len(ws))
	copy(cp, ws)
	return Sequence{words: cp}
}

// Tokenize splits text on runs of whitespace.
func Tokenize(text string) Sequence {
	return Sequence{words: strings.Fields(text)}
}

// Len returns the number of words.
func (s Sequence) Len() int {
	return len(s.words)
}

// At returns the word at index i. It panics if i is out of range.
func (s Sequence) At(i int) string {
	return s.words[i]
}

// Document represents a loaded source document.
type Document struct {
	Name     string    // Original file name
	Size     int       // Size in bytes
	MIMEType string    // Detected MIME type
	Words    Sequence  // Tokenized content
	LoadedAt time.Time // Time when the document was loaded
}

// WordCount returns the number of words in the document.
func (d *Document) WordCount() int {
	return d.Words.Len()
}

// ReadingTime returns how long reading the whole document takes with the given delay per word.
func (d *Document) ReadingTime(delay time.Duration) time.Duration {
	return time.Duration(d.Words.Len()) * delay
}
