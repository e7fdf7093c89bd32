package netsim

import (
	"math/rand/v2"
	"sync"
	"time"
)

var DefaultRecovery = LatencyRange{Min: 2 * time.Second, Max: 5 * time.Second}

type Transmission struct {
	Delivered bool
	Delay     time.Duration
}

// Network decides the fate of simulated transmissions.
type Network interface {
	Transmit(p Profile) Transmission
	CheckDisconnection(p Profile) bool
	RecoveryDelay() time.Duration
}

type Link struct {
	mu       sync.Mutex
	rng      *rand.Rand
	recovery LatencyRange
}

// NewLink returns a link simulator drawing from src. A nil source seeds from
// the runtime's entropy.
func NewLink(src rand.Source) *Link {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	return &Link{
		rng:      rand.New(src),
		recovery: DefaultRecovery,
	}
}

// NewSeededLink is a reproducible link for tests and replayed simulations.
func NewSeededLink(seed uint64) *Link {
	return NewLink(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (l *Link) Transmit(p Profile) Transmission {
	l.mu.Lock()
	defer l.mu.Unlock()

	delay := l.uniform(p.Latency)
	lost := l.bernoulli(p.PacketLoss)

	return Transmission{
		Delivered: !lost,
		Delay:     delay,
	}
}

func (l *Link) CheckDisconnection(p Profile) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.bernoulli(p.DisconnectProb)
}

func (l *Link) RecoveryDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.uniform(l.recovery)
}

func (l *Link) uniform(r LatencyRange) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}

	return r.Min + time.Duration(l.rng.Int64N(int64(r.Max-r.Min)+1))
}

func (l *Link) bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}

	return l.rng.Float64() < p
}
