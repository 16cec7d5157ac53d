package filter

import (
	"context"

	"github.com/osa030/flashread/internal/app/document"
	"github.com/osa030/flashread/internal/domain/words"
)

// TextOnlyFilter rejects documents that are not plain text.
type TextOnlyFilter struct{}

func (f *TextOnlyFilter) Name() string {
	return "text_only_filter"
}

func (f *TextOnlyFilter) Description() string {
	return "Rejects documents whose content is not text"
}

func (f *TextOnlyFilter) ReturnCodes() []string {
	return []string{"unsupported_format"}
}

func (f *TextOnlyFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *TextOnlyFilter) Check(ctx context.Context, doc *words.Document) Result {
	if !document.IsText(doc.MIMEType) {
		return Reject("unsupported_format")
	}
	return Accept()
}

func init() {
	Register("text_only_filter", func() Filter {
		return &TextOnlyFilter{}
	})
}
