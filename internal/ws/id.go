package ws

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	connEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	connEntropyMu sync.Mutex
)

func newConnID() string {
	connEntropyMu.Lock()
	defer connEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), connEntropy).String()
}
