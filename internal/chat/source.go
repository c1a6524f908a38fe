package chat

import (
	"fmt"
	"strings"
	"time"
)

// InputSource says how an utterance entered the conversation.
type InputSource string

const (
	SourceTypedPrimary    InputSource = "typed-primary-language"
	SourceTypedSecondary  InputSource = "typed-secondary-language"
	SourceSuggestedButton InputSource = "suggested-button"
	SourceSeed            InputSource = "seed"
	SourceSystem          InputSource = "system"
)

var legacySources = map[string]InputSource{
	"typed-primary":   SourceTypedPrimary,
	"typed-secondary": SourceTypedSecondary,
	"manual-english":  SourceTypedPrimary,
	"manual-kannada":  SourceTypedSecondary,
	"button":          SourceSuggestedButton,
}

// ParseInputSource accepts the wire values an instructor turn may carry,
// including legacy aliases. Empty means typed-primary-language. Seed and
// system are reserved for the opener.
func ParseInputSource(s string) (InputSource, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return SourceTypedPrimary, nil
	}
	if alias, ok := legacySources[v]; ok {
		return alias, nil
	}
	switch src := InputSource(v); src {
	case SourceTypedPrimary, SourceTypedSecondary, SourceSuggestedButton:
		return src, nil
	}
	return "", fmt.Errorf("%w: input_source %q", ErrInvalidInput, s)
}

func isOpener(m Message) bool {
	return m.InputSource == string(SourceSeed) || m.InputSource == string(SourceSystem)
}

const stampLayout = "2006-01-02T15:04:05.000000Z"

// Stamp builds the message sort key. Lexical order matches time order.
func Stamp(t time.Time, role string) string {
	return t.UTC().Format(stampLayout) + "#" + role
}

// parseStamp reads the time part of a sort key.
func parseStamp(s string) (time.Time, bool) {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(stampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// nextTurnTimes returns the user and assistant times for a new turn: now,
// pushed past the last stored stamp when the clock has not moved on.
func nextTurnTimes(now time.Time, lastStamp string) (time.Time, time.Time) {
	base := now.UTC().Truncate(time.Microsecond)
	if last, ok := parseStamp(lastStamp); ok && !base.After(last) {
		base = last.Add(time.Microsecond)
	}
	return base, base.Add(time.Microsecond)
}
