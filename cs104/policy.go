// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"net"
	"sync"
	"time"

	"github.com/riclolsen/go-iec104/asdu"
)

// FrameMeta describes a received frame for the rate check hook.
type FrameMeta struct {
	// RemoteAddr is the peer address, nil when the transport does not
	// expose one.
	RemoteAddr net.Addr
	// TypeID is the type identification of the carried ASDU.
	TypeID asdu.TypeID
	// APDULen is the on-wire length of the frame.
	APDULen int
}

// ConnectionPolicy decides whether a peer may open a session. It is
// invoked synchronously before the session enters the connecting state
// and must not block; consult asynchronous data ahead of time.
type ConnectionPolicy func(addr net.Addr) bool

// RateCheck decides whether a received frame may be dispatched to the
// application. Synchronous and non-blocking like ConnectionPolicy.
// A rejection terminates the session.
type RateCheck func(meta FrameMeta) bool

// AcceptAllPolicy admits every peer.
func AcceptAllPolicy() ConnectionPolicy {
	return func(net.Addr) bool { return true }
}

// IPAllowlist is a connection policy admitting listed hosts only.
type IPAllowlist struct {
	allowed map[string]struct{}
}

// NewIPAllowlist builds an allowlist from host addresses (no ports).
func NewIPAllowlist(hosts ...string) *IPAllowlist {
	m := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		m[h] = struct{}{}
	}
	return &IPAllowlist{allowed: m}
}

// Policy returns the ConnectionPolicy callback of the allowlist.
func (sf *IPAllowlist) Policy() ConnectionPolicy {
	return func(addr net.Addr) bool {
		if addr == nil {
			return false
		}
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			host = addr.String()
		}
		_, ok := sf.allowed[host]
		return ok
	}
}

// RateLimiter is a token bucket over dispatched frames, usable as a
// RateCheck. The bucket refills at rate tokens per second up to burst.
type RateLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

// NewRateLimiter returns a limiter admitting rate frames per second
// with the given burst capacity.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Check consumes one token, reporting whether the frame is admitted.
func (sf *RateLimiter) Check(FrameMeta) bool {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	now := time.Now()
	sf.tokens += now.Sub(sf.last).Seconds() * sf.rate
	if sf.tokens > sf.burst {
		sf.tokens = sf.burst
	}
	sf.last = now
	if sf.tokens < 1 {
		return false
	}
	sf.tokens--
	return true
}
