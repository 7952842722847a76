// tcp_table.go - connection table and deferred-send plumbing

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"sync"
	"time"
)

// DeferredSend is a segment description captured while the connection
// table lock is held, emitted only after the lock is released. The
// critical section must never call send_segment directly.
type DeferredSend struct {
	LocalAddr  Ipv4Addr
	LocalPort  uint16
	RemoteAddr Ipv4Addr
	RemotePort uint16
	Seq        uint32
	Ack        uint32
	Flags      tcpFlag
	Payload    []byte
}

func (d DeferredSend) toSegment() *TcpSegment {
	return &TcpSegment{
		SrcPort: d.LocalPort,
		DstPort: d.RemotePort,
		Seq:     d.Seq,
		Ack:     d.Ack,
		Flags:   d.Flags,
		Window:  tcpWindow,
		Payload: d.Payload,
		SrcAddr: d.LocalAddr,
		DstAddr: d.RemoteAddr,
	}
}

// TcpStack owns the 64-slot connection table and everything needed to
// drive it: the ephemeral port counter, the ISN tick counter, and the
// IP-layer send primitive. Any goroutine may call any public method
// concurrently; each one serializes briefly on mu.
type TcpStack struct {
	mu    sync.Mutex
	slots [tcpMaxConnections]*TCB

	localAddr    Ipv4Addr
	nextEphPort  uint32
	tick         uint64
	sender       ipSender

	inbound chan *TcpSegment
	done    chan struct{}
}

// NewTcpStack constructs a stack bound to localAddr, sending outbound
// segments through sender.
func NewTcpStack(localAddr Ipv4Addr, sender ipSender) *TcpStack {
	return &TcpStack{
		localAddr:   localAddr,
		nextEphPort: ephemeralPortLow,
		sender:      sender,
		inbound:     make(chan *TcpSegment, 256),
		done:        make(chan struct{}),
	}
}

// allocEphemeralPort returns the next port in the rotating 49152-65535
// range. Must be called without the table lock held (it takes it itself).
func (s *TcpStack) allocEphemeralPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.nextEphPort
	s.nextEphPort++
	if s.nextEphPort > ephemeralPortHigh {
		s.nextEphPort = ephemeralPortLow
	}
	return uint16(p)
}

// nextISSLocked derives an initial sequence number the way the wire contract
// requires: a monotonic tick counter multiplied by the Knuth hash
// constant. Must be called with mu held.
func (s *TcpStack) nextISSLocked() uint32 {
	s.tick++
	return uint32(s.tick * isnMultiplier)
}

// findEmptySlotLocked returns the index of the first nil slot, or -1.
func (s *TcpStack) findEmptySlotLocked() int {
	for i, t := range s.slots {
		if t == nil {
			return i
		}
	}
	return -1
}

// findConnectionLocked matches an inbound segment against a non-Listen
// TCB by exact 4-tuple.
func (s *TcpStack) findConnectionLocked(seg *TcpSegment) int {
	for i, t := range s.slots {
		if t == nil || t.State == StateListen {
			continue
		}
		if t.LocalPort == seg.DstPort && t.RemoteAddr == seg.SrcAddr && t.RemotePort == seg.SrcPort {
			return i
		}
	}
	return -1
}

// findListenerLocked matches a new inbound SYN against a Listen slot by
// destination port.
func (s *TcpStack) findListenerLocked(port uint16) int {
	for i, t := range s.slots {
		if t != nil && t.State == StateListen && t.ListenPort == port {
			return i
		}
	}
	return -1
}

// countPendingChildrenLocked returns the number of embryonic/established
// connections spawned from listener idx that have not yet been accepted.
func (s *TcpStack) countPendingChildrenLocked(listenerIdx int) int {
	n := 0
	for _, t := range s.slots {
		if t != nil && t.ParentListener == listenerIdx && !t.Accepted {
			n++
		}
	}
	return n
}

// emit sends a single deferred segment outside the lock.
func (s *TcpStack) emit(d DeferredSend) {
	if s.sender == nil {
		return
	}
	_ = s.sender.SendIPv4(d.RemoteAddr, ipProtoTCP, encodeSegment(d.toSegment()))
}

// emitAll sends every deferred segment outside the lock.
func (s *TcpStack) emitAll(ds []DeferredSend) {
	for _, d := range ds {
		s.emit(d)
	}
}

// DeliverSegment is the IP layer's inbound packet callback: it queues the
// segment for processing on the next poll rather than handling it inline,
// so an interrupt-context-like caller never blocks on the table lock.
func (s *TcpStack) DeliverSegment(seg *TcpSegment) {
	select {
	case s.inbound <- seg:
	default:
		// Inbound queue overflow: drop, matching the "malformed segments
		// are dropped silently" posture for transient overload.
	}
}

// pollInbound drains and processes every currently-queued inbound
// segment, emitting any resulting deferred sends.
func (s *TcpStack) pollInbound() {
	for {
		select {
		case seg := <-s.inbound:
			if ds := s.processSegment(seg); ds != nil {
				s.emit(*ds)
			}
		default:
			return
		}
	}
}

// Run starts the stack's background ticker, which every
// retransmitPollInterval drains the inbound queue and runs
// RetransmitSweep. Between ticks, callers (Connect, Accept, Send, Recv,
// Close) service the network by calling pollInbound from their own poll
// loops.
func (s *TcpStack) Run() {
	go s.retransmitLoop()
}

func (s *TcpStack) Stop() {
	close(s.done)
}

func (s *TcpStack) sleepTick() {
	time.Sleep(time.Millisecond)
}
