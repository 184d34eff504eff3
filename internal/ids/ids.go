// Package ids mints ULID strings for audit entries and request tracing.
package ids

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var source = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{
	entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
}

// New mints a ULID. The entropy source is monotonic, so ids minted within the
// same millisecond still sort in creation order.
func New() string {
	source.Lock()
	defer source.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), source.entropy).String()
}
