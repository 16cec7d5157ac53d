// Package document turns uploaded text into word sequences.
package document

import (
	"mime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"

	"github.com/osa030/flashread/internal/domain/words"
)

// ErrNoDocument is returned when a load is requested without content or name.
var ErrNoDocument = errors.New("no document selected")

// Load tokenizes data and records its metadata.
// The content type is detected from the bytes, never from the name.
func Load(name string, data []byte) (words.Document, error) {
	if name == "" && data == nil {
		return words.Document{}, ErrNoDocument
	}

	mimeType := "text/plain"
	if len(data) > 0 {
		mimeType = mimetype.Detect(data).String()
	}

	return words.Document{
		Name:     name,
		Size:     len(data),
		MIMEType: mimeType,
		Words:    words.Tokenize(string(data)),
		LoadedAt: time.Now(),
	}, nil
}

// IsText reports whether the MIME type is plain text or derived from it.
func IsText(mimeType string) bool {
	// Lookup does not understand parameters such as charset
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mediaType
	}
	for mt := mimetype.Lookup(mimeType); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}
