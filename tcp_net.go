// tcp_net.go - IP-layer send primitive and per-thread identifier

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import "sync/atomic"

// ipSender is the external "IP-layer send primitive" collaborator named
// named as an external collaborator. Production wiring wraps a real IP stack; loopbackSender (below)
// delivers directly between two in-process TcpStack values for tests and
// the bundled demo.
type ipSender interface {
	SendIPv4(dst Ipv4Addr, proto byte, payload []byte) error
}

// loopbackSender wires two stacks' inbound queues directly together,
// the same way a physical loopback interface guarantees delivery of
// every segment.
type loopbackSender struct {
	peer   *TcpStack
	local  Ipv4Addr
}

func newLoopbackSender(local Ipv4Addr) *loopbackSender {
	return &loopbackSender{local: local}
}

// attach wires this sender to deliver into peer. Both directions must be
// attached separately (A's sender -> B, B's sender -> A).
func (l *loopbackSender) attach(peer *TcpStack) {
	l.peer = peer
}

func (l *loopbackSender) SendIPv4(dst Ipv4Addr, proto byte, payload []byte) error {
	if l.peer == nil || proto != ipProtoTCP {
		return nil
	}
	seg, err := parseSegment(payload, l.local, dst)
	if err != nil {
		return nil // malformed segments are dropped silently, not surfaced
	}
	l.peer.DeliverSegment(seg)
	return nil
}

// ownerTokenCounter mints the opaque per-caller-goroutine identifiers
// this repository substitutes for an OS thread id (Go has none at the
// language level, and goroutines are not 1:1 with OS threads).
var ownerTokenCounter atomic.Uint64

// currentGoroutineToken mints a fresh token. Callers that need a stable
// identity across multiple calls (e.g. a connection-owning goroutine that
// will later call Cleanup on exit) should call this once and retain the
// value, rather than calling it per-operation.
func currentGoroutineToken() uint64 {
	return ownerTokenCounter.Add(1)
}
