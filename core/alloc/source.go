package alloc

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// SourceProvider hands out the Source used for one (account, experiment, visitor)
// allocation. The gate draw and the pick draw come from the same Source.
type SourceProvider interface {
	For(accountID, experimentID int64, visitorID string) Source
}

// lockedSource makes a *rand.Rand safe for concurrent use.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// NewRandomSource returns a reproducible PRNG source. Tests use it to pin draws.
func NewRandomSource(seed uint64) Source {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewCryptoSeededSource returns a ChaCha8 source seeded from crypto/rand.
func NewCryptoSeededSource() Source {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand.Read does not fail on supported platforms
		panic(err)
	}
	return &lockedSource{rng: rand.New(rand.NewChaCha8(seed))}
}

// SharedProvider hands the same Source to every allocation.
type SharedProvider struct {
	Source Source
}

// For returns the shared source.
func (p SharedProvider) For(int64, int64, string) Source {
	return p.Source
}

// HashProvider buckets visitors deterministically with murmur3, so a visitor
// lands in the same bucket on every node even before the assignment is persisted.
type HashProvider struct {
	Salt string
}

// For returns a HashSource keyed on the salt, account, experiment and visitor.
func (p HashProvider) For(accountID, experimentID int64, visitorID string) Source {
	key := make([]byte, 0, len(p.Salt)+len(visitorID)+48)
	key = append(key, p.Salt...)
	key = append(key, ':')
	key = strconv.AppendInt(key, accountID, 10)
	key = append(key, ':')
	key = strconv.AppendInt(key, experimentID, 10)
	key = append(key, ':')
	key = append(key, visitorID...)
	return &HashSource{key: key}
}

// HashSource derives successive draws from murmur3 over key+stage. Each call
// advances the stage so the gate and pick draws are independent.
// A HashSource is used by a single allocation and is not safe for concurrent use.
type HashSource struct {
	key   []byte
	stage uint32
}

// Float64 returns the next deterministic draw.
func (s *HashSource) Float64() float64 {
	var stage [4]byte
	binary.BigEndian.PutUint32(stage[:], s.stage)
	s.stage++

	h := murmur3.New128()
	_, _ = h.Write(s.key)
	_, _ = h.Write(stage[:])
	hi, _ := h.Sum128()

	// top 53 bits give a uniform float in [0, 1)
	return float64(hi>>11) / (1 << 53)
}
