package order

import (
	"errors"
	"sync"

	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

const (
	// neighborhoodSatang is how far apart two base amounts can be and still
	// compete for the same suffix space.
	neighborhoodSatang int64 = 50

	maxSuffixSatang int64 = 99

	// maxRebaseAttempts bounds the whole-baht fallback when a neighborhood
	// has all 99 suffixes pending at once.
	maxRebaseAttempts = 10
)

// errSuffixSpaceFull signals one exhausted neighborhood; the caller rebases
// and retries before giving up.
var errSuffixSpaceFull = errors.New("all suffixes taken in neighborhood")

// blockedSuffixes maps each neighboring live amount onto the suffix it
// occupies relative to the requested base. Working on amounts rather than
// stored suffix columns keeps bases like 100.00 and 100.01 from colliding on
// the same final amount.
func blockedSuffixes(base money.Amount, neighbors []money.Amount) map[int64]bool {
	used := make(map[int64]bool, len(neighbors))
	for _, amount := range neighbors {
		offset := amount.Satang() - base.Satang()
		if offset >= 0 && offset <= maxSuffixSatang {
			used[offset] = true
		}
	}
	return used
}

// firstFreeSuffix picks the smallest suffix whose resulting amount is not
// held by a neighboring live order. An untouched base (suffix 0) is
// preferred so most orders keep their requested amount unchanged.
func firstFreeSuffix(used map[int64]bool) (int64, bool) {
	if !used[0] {
		return 0, true
	}
	for s := int64(1); s <= maxSuffixSatang; s++ {
		if !used[s] {
			return s, true
		}
	}
	return 0, false
}

// bucketLocks serializes allocation per whole-baht bucket. Two concurrent
// creations whose ±0.50 windows overlap always share at least one bucket, so
// taking every bucket the window touches (in ascending order, to stay
// deadlock-free) is enough to prevent double-picking a suffix.
type bucketLocks struct {
	mu      sync.Mutex
	buckets map[int64]*sync.Mutex
}

func newBucketLocks() *bucketLocks {
	return &bucketLocks{buckets: make(map[int64]*sync.Mutex)}
}

func bucketOf(satang int64) int64 {
	if satang < 0 {
		return (satang - (money.SatangPerBaht - 1)) / money.SatangPerBaht
	}
	return satang / money.SatangPerBaht
}

func (l *bucketLocks) get(bucket int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.buckets[bucket]
	if !ok {
		m = &sync.Mutex{}
		l.buckets[bucket] = m
	}
	return m
}

// lockWindow locks the buckets covering [base-radius, base+radius] and
// returns the matching unlock.
func (l *bucketLocks) lockWindow(base money.Amount, radius int64) func() {
	lo := bucketOf(base.Satang() - radius)
	hi := bucketOf(base.Satang() + radius)

	held := make([]*sync.Mutex, 0, hi-lo+1)
	for b := lo; b <= hi; b++ {
		m := l.get(b)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
