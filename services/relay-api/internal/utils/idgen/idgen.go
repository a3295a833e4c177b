package idgen

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Resource prefixes.
const (
	PrefixSession = "relay"
	PrefixStep    = "step"
	PrefixDraft   = "draft"
	PrefixJob     = "job"
	PrefixMedia   = "media"
)

var (
	entropyMu   sync.Mutex
	entropyOnce sync.Once
	entropy     *ulid.MonotonicEntropy
)

func newEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		source := rand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(rand.New(source), 0)
	})
	return entropy
}

// New returns a "<prefix>_<ulid>" identifier.
func New(prefix string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), newEntropy())
	entropyMu.Unlock()
	return prefix + "_" + strings.ToLower(id.String())
}

// IsValid reports whether value is a ULID id carrying prefix.
func IsValid(prefix, value string) bool {
	if !strings.HasPrefix(value, prefix+"_") {
		return false
	}
	_, err := Parse(value)
	return err == nil
}

// Parse strips the prefix and returns the ULID.
func Parse(value string) (ulid.ULID, error) {
	value = strings.TrimSpace(value)
	if i := strings.LastIndexByte(value, '_'); i >= 0 {
		value = value[i+1:]
	}
	return ulid.Parse(strings.ToUpper(value))
}
