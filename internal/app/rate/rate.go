// Package rate converts reading speeds in words per minute into inter-word delays.
package rate

import (
	"regexp"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// Accepted WPM range (inclusive).
const (
	MinWPM     = 1
	MaxWPM     = 1200
	DefaultWPM = 300
)

// Errors
var (
	ErrInvalidRateInput = errors.New("invalid rate input")
	ErrInvalidRateValue = errors.New("invalid rate value")
)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// ValidateWPM parses a user supplied WPM string.
// Only decimal digits are accepted and the value must lie in [MinWPM, MaxWPM].
func ValidateWPM(raw string) (int, error) {
	if !digitsOnly.MatchString(raw) {
		return 0, errors.Wrapf(ErrInvalidRateInput, "%q is not a whole number", raw)
	}

	wpm, err := strconv.Atoi(raw)
	if err != nil {
		// Only overflow can fail here
		return 0, errors.Wrapf(ErrInvalidRateInput, "%q is out of range %d-%d", raw, MinWPM, MaxWPM)
	}

	if wpm < MinWPM || wpm > MaxWPM {
		return 0, errors.Wrapf(ErrInvalidRateInput, "%d is out of range %d-%d", wpm, MinWPM, MaxWPM)
	}
	return wpm, nil
}

// DelayFromWPM returns the delay between two words (60000/wpm milliseconds).
func DelayFromWPM(wpm int) (time.Duration, error) {
	if wpm <= 0 {
		return 0, errors.Wrapf(ErrInvalidRateValue, "wpm must be positive, got %d", wpm)
	}
	return time.Minute / time.Duration(wpm), nil
}

// Rate is a validated reading speed.
type Rate struct {
	wpm   int
	delay time.Duration
}

// Parse validates raw and returns the corresponding rate.
func Parse(raw string) (Rate, error) {
	wpm, err := ValidateWPM(raw)
	if err != nil {
		return Rate{}, err
	}
	return FromWPM(wpm)
}

// FromWPM returns the rate for an already parsed WPM value.
func FromWPM(wpm int) (Rate, error) {
	if wpm > MaxWPM {
		return Rate{}, errors.Wrapf(ErrInvalidRateInput, "%d is out of range %d-%d", wpm, MinWPM, MaxWPM)
	}
	delay, err := DelayFromWPM(wpm)
	if err != nil {
		return Rate{}, err
	}
	return Rate{wpm: wpm, delay: delay}, nil
}

// Default returns the rate for DefaultWPM.
func Default() Rate {
	return Rate{wpm: DefaultWPM, delay: time.Minute / DefaultWPM}
}

// WPM returns the words per minute.
func (r Rate) WPM() int {
	return r.wpm
}

// Delay returns the delay between two words.
func (r Rate) Delay() time.Duration {
	return r.delay
}

func (r Rate) String() string {
	return strconv.Itoa(r.wpm) + " wpm"
}
