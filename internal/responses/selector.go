package responses

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/suPer8Hu/mood-chat/internal/mood"
)

// Source is the random source used for picking candidates.
// *math/rand/v2.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// Selector draws replies and follow-ups uniformly at random. Each call is an
// independent draw.
type Selector struct {
	catalog *Catalog

	mu  sync.Mutex
	src Source
}

func NewSelector(catalog *Catalog, src Source) *Selector {
	if catalog == nil {
		catalog = Default()
	}
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Selector{catalog: catalog, src: src}
}

func (s *Selector) Reply(l mood.Label) string {
	return s.pick(s.catalog.replies[l], DefaultReply)
}

func (s *Selector) FollowUp(l mood.Label) string {
	return s.pick(s.catalog.followUps[l], DefaultFollowUp)
}

func (s *Selector) pick(candidates []string, def string) string {
	if len(candidates) == 0 {
		return def
	}
	s.mu.Lock()
	i := s.src.IntN(len(candidates))
	s.mu.Unlock()
	if i < 0 || i >= len(candidates) {
		return def
	}
	return candidates[i]
}
