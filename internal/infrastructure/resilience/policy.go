package resilience

import (
	"math"
	"time"
)

// Policy bounds the retries and circuit breaking applied to one outbound
// dependency of the reconciler.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	Breaker Breaker
}

// Breaker trips once FailureRatio of at least MinRequests calls failed, stays
// open for OpenFor and then lets HalfOpenCalls trial calls through.
type Breaker struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenFor       time.Duration
	HalfOpenCalls uint32
}

// StorePolicy covers Postgres calls. Serialization failures, deadlocks and
// failovers usually clear within a second, so it retries longer than the
// broker policy and trips later.
func StorePolicy() Policy {
	return Policy{
		Attempts:       4,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.5,
		Breaker: Breaker{
			Enabled:       true,
			MinRequests:   20,
			FailureRatio:  0.5,
			OpenFor:       15 * time.Second,
			HalfOpenCalls: 3,
		},
	}
}

// BrokerPolicy covers job publishes; the API answers 503 once it is spent.
func BrokerPolicy() Policy {
	return Policy{
		Attempts:       3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
		Multiplier:     2,
		Breaker: Breaker{
			Enabled:       true,
			MinRequests:   10,
			FailureRatio:  0.5,
			OpenFor:       30 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

// Or fills every unset field of p from def. Breaker.Enabled is taken from p
// as is.
func (p Policy) Or(def Policy) Policy {
	out := p
	if out.Attempts <= 0 {
		out.Attempts = def.Attempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1 {
		out.Multiplier = def.Multiplier
	}
	if out.Breaker.MinRequests == 0 {
		out.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if out.Breaker.OpenFor <= 0 {
		out.Breaker.OpenFor = def.Breaker.OpenFor
	}
	if out.Breaker.HalfOpenCalls == 0 {
		out.Breaker.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}
	return out
}

// backoff is the wait after failed attempt n, counting from 1.
func (p Policy) backoff(n int) time.Duration {
	wait := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(n-1))
	if wait >= float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(wait)
}
