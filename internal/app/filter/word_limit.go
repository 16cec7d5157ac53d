package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flashread/internal/domain/words"
)

// WordLimitConfig represents the configuration for WordLimitFilter.
type WordLimitConfig struct {
	MaxWords int `yaml:"max_words" mapstructure:"max_words" default:"200000" validate:"gte=1"`
}

// WordLimitFilter rejects documents with more words than configured.
type WordLimitFilter struct {
	config *WordLimitConfig
}

// NewWordLimitFilter creates a new word limit filter.
func NewWordLimitFilter() *WordLimitFilter {
	return &WordLimitFilter{}
}

func (f *WordLimitFilter) Name() string {
	return "word_limit_filter"
}

func (f *WordLimitFilter) Description() string {
	return "Rejects documents with more than max_words words"
}

func (f *WordLimitFilter) ReturnCodes() []string {
	return []string{"too_many_words"}
}

func (f *WordLimitFilter) ValidateConfig(settings map[string]any) error {
	var config WordLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("word limit filter config: %+v", config)
	return nil
}

func (f *WordLimitFilter) Check(ctx context.Context, doc *words.Document) Result {
	if f.config == nil {
		return Accept()
	}

	if doc.WordCount() > f.config.MaxWords {
		return Reject("too_many_words")
	}
	return Accept()
}

func init() {
	Register("word_limit_filter", func() Filter {
		return &WordLimitFilter{}
	})
}
