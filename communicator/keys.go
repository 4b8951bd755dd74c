package communicator

import (
	"crypto/rand"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// KeyGenerator issues row keys. Every call returns a string that was never
// returned before by the same generator.
type KeyGenerator interface {
	NextKey() string
}

// KeyGeneratorFunc adapts a function to KeyGenerator.
type KeyGeneratorFunc func() string

// NextKey implements KeyGenerator.
func (f KeyGeneratorFunc) NextKey() string { return f() }

// SequentialKeys returns a generator producing "1", "2", "3" and so on.
func SequentialKeys() KeyGenerator {
	var last uint64
	return KeyGeneratorFunc(func() string {
		last++
		return strconv.FormatUint(last, 10)
	})
}

// ULIDKeys returns a generator producing monotonic ULIDs. Keys sort in
// issue order and stay unique across communicators of the same process.
func ULIDKeys() KeyGenerator {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)
	return KeyGeneratorFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	})
}
