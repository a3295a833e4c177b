package observability

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sync/atomic"
)

// PIILevel controls how much user content reaches spans.
type PIILevel string

const (
	// PIILevelNone redacts prompts and user ids entirely.
	PIILevelNone PIILevel = "none"
	// PIILevelHashed keeps prompts but replaces contact details and user ids with salted hashes.
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull records content as is.
	PIILevelFull PIILevel = "full"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// Sanitizer scrubs prompts and user ids before they are attached to spans.
type Sanitizer struct {
	level PIILevel
	salt  string
}

// NewSanitizer creates a sanitizer. Unknown levels behave like hashed.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	switch level {
	case PIILevelNone, PIILevelHashed, PIILevelFull:
	default:
		level = PIILevelHashed
	}
	return &Sanitizer{level: level, salt: salt}
}

// Prompt sanitizes a panel prompt.
func (s *Sanitizer) Prompt(prompt string) string {
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return prompt
	}
	out := emailPattern.ReplaceAllStringFunc(prompt, func(m string) string { return "[EMAIL:" + s.hash(m) + "]" })
	out = phonePattern.ReplaceAllStringFunc(out, func(m string) string { return "[PHONE:" + s.hash(m) + "]" })
	return ipv4Pattern.ReplaceAllStringFunc(out, func(m string) string { return "[IP:" + s.hash(m) + "]" })
}

// UserID sanitizes a participant id.
func (s *Sanitizer) UserID(userID string) string {
	if userID == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return userID
	default:
		return s.hash(userID)
	}
}

func (s *Sanitizer) hash(data string) string {
	sum := sha256.Sum256([]byte(data + s.salt))
	return hex.EncodeToString(sum[:])[:8]
}

var activeSanitizer atomic.Pointer[Sanitizer]

func init() {
	activeSanitizer.Store(NewSanitizer(PIILevelHashed, tracerName))
}

// SetSanitizer replaces the sanitizer used by the span helpers.
func SetSanitizer(s *Sanitizer) {
	if s != nil {
		activeSanitizer.Store(s)
	}
}

func sanitizer() *Sanitizer {
	return activeSanitizer.Load()
}
