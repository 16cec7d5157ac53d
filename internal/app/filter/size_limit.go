package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flashread/internal/domain/words"
)

// SizeLimitConfig represents the configuration for SizeLimitFilter.
type SizeLimitConfig struct {
	MaxBytes int `yaml:"max_bytes" mapstructure:"max_bytes" default:"10485760" validate:"gte=1"`
}

// SizeLimitFilter rejects documents larger than the configured size.
type SizeLimitFilter struct {
	config *SizeLimitConfig
}

// NewSizeLimitFilter creates a new size limit filter.
func NewSizeLimitFilter() *SizeLimitFilter {
	return &SizeLimitFilter{}
}

func (f *SizeLimitFilter) Name() string {
	return "size_limit_filter"
}

func (f *SizeLimitFilter) Description() string {
	return "Rejects documents larger than max_bytes"
}

func (f *SizeLimitFilter) ReturnCodes() []string {
	return []string{"document_too_large"}
}

func (f *SizeLimitFilter) ValidateConfig(settings map[string]any) error {
	var config SizeLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("size limit filter config: %+v", config)
	return nil
}

// MaxBytes returns the configured limit, or 0 when the filter is not configured.
func (f *SizeLimitFilter) MaxBytes() int {
	if f.config == nil {
		return 0
	}
	return f.config.MaxBytes
}

func (f *SizeLimitFilter) Check(ctx context.Context, doc *words.Document) Result {
	// If config is not set, accept all documents
	if f.config == nil {
		return Accept()
	}

	if doc.Size > f.config.MaxBytes {
		return Reject("document_too_large")
	}
	return Accept()
}

func init() {
	Register("size_limit_filter", func() Filter {
		return &SizeLimitFilter{}
	})
}
