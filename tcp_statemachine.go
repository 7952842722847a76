// tcp_statemachine.go - RFC 793 state transitions

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import "time"

// processSegment matches seg against the table and runs the state
// machine for the owning slot, computing at most one DeferredSend while
// holding the lock. The caller emits it after the lock is released.
func (s *TcpStack) processSegment(seg *TcpSegment) *DeferredSend {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findConnectionLocked(seg)
	if idx == -1 {
		return s.handleUnmatchedLocked(seg)
	}

	tcb := s.slots[idx]

	// A RST is handled uniformly regardless of state.
	if seg.Flags.has(flagRST) {
		tcb.ResetReceived = true
		tcb.State = StateClosed
		return nil
	}

	switch tcb.State {
	case StateSynSent:
		return s.handleSynSentLocked(tcb, seg)
	case StateSynReceived:
		return s.handleSynReceivedLocked(tcb, seg)
	case StateEstablished:
		return s.handleEstablishedLocked(tcb, seg)
	case StateFinWait1:
		return s.handleFinWait1Locked(tcb, seg)
	case StateFinWait2:
		return s.handleFinWaitFinLocked(tcb, seg)
	case StateCloseWait:
		return s.handleCloseWaitLocked(tcb, seg)
	case StateLastAck:
		return s.handleLastAckLocked(tcb, seg)
	case StateTimeWait:
		return s.handleTimeWaitLocked(tcb, seg)
	default:
		return nil
	}
}

// handleUnmatchedLocked deals with segments matching no existing
// connection: a new SYN against a Listen slot, or a reset reply for
// anything else (unless the unmatched segment is itself a RST).
func (s *TcpStack) handleUnmatchedLocked(seg *TcpSegment) *DeferredSend {
	if seg.Flags.has(flagSYN) && !seg.Flags.has(flagACK) {
		if listenerIdx := s.findListenerLocked(seg.DstPort); listenerIdx != -1 {
			return s.handleListenSynLocked(listenerIdx, seg)
		}
	}
	if seg.Flags.has(flagRST) {
		return nil
	}
	return resetFor(seg, s.localAddr)
}

func resetFor(seg *TcpSegment, local Ipv4Addr) *DeferredSend {
	d := DeferredSend{
		LocalAddr: local, LocalPort: seg.DstPort,
		RemoteAddr: seg.SrcAddr, RemotePort: seg.SrcPort,
	}
	if seg.Flags.has(flagACK) {
		d.Seq = seg.Ack
		d.Ack = 0
		d.Flags = flagRST
		return &d
	}
	ack := seg.Seq + uint32(len(seg.Payload))
	if seg.Flags.has(flagSYN) {
		ack++
	}
	if seg.Flags.has(flagFIN) {
		ack++
	}
	d.Seq = 0
	d.Ack = ack
	d.Flags = flagRST | flagACK
	return &d
}

func (s *TcpStack) handleListenSynLocked(listenerIdx int, seg *TcpSegment) *DeferredSend {
	listener := s.slots[listenerIdx]
	if s.countPendingChildrenLocked(listenerIdx) >= tcpBacklogCeiling {
		return nil // silently dropped, no RST
	}
	slot := s.findEmptySlotLocked()
	if slot == -1 {
		return nil // table full; drop rather than surface an error on an async path
	}

	iss := s.nextISSLocked()
	child := newEmbryonicTCB(s.localAddr, seg.DstPort, seg.SrcAddr, seg.SrcPort, iss, listener.OwnerThread)
	child.State = StateSynReceived
	child.IRS = seg.Seq
	child.RcvNxt = seg.Seq + 1
	child.SndNxt = iss + 1
	child.ParentListener = listenerIdx
	child.Retransmit = &retransmitRecord{Seq: iss, Flags: flagSYN | flagACK, SentAt: nowFunc()}
	s.slots[slot] = child

	return &DeferredSend{
		LocalAddr: s.localAddr, LocalPort: seg.DstPort,
		RemoteAddr: seg.SrcAddr, RemotePort: seg.SrcPort,
		Seq: iss, Ack: child.RcvNxt, Flags: flagSYN | flagACK,
	}
}

func (s *TcpStack) handleSynSentLocked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	if seg.Flags.has(flagSYN) && seg.Flags.has(flagACK) && seg.Ack == tcb.SndNxt {
		tcb.State = StateEstablished
		tcb.IRS = seg.Seq
		tcb.RcvNxt = seg.Seq + 1
		tcb.SndUna = seg.Ack
		tcb.Retransmit = nil
		return &DeferredSend{
			LocalAddr: tcb.LocalAddr, LocalPort: tcb.LocalPort,
			RemoteAddr: tcb.RemoteAddr, RemotePort: tcb.RemotePort,
			Seq: tcb.SndNxt, Ack: tcb.RcvNxt, Flags: flagACK,
		}
	}
	if seg.Flags.has(flagACK) && !seg.Flags.has(flagSYN) {
		return &DeferredSend{
			LocalAddr: tcb.LocalAddr, LocalPort: tcb.LocalPort,
			RemoteAddr: tcb.RemoteAddr, RemotePort: tcb.RemotePort,
			Seq: seg.Ack, Ack: 0, Flags: flagRST,
		}
	}
	return nil
}

func (s *TcpStack) handleSynReceivedLocked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	if seg.Flags.has(flagACK) && seg.Ack == tcb.SndNxt {
		tcb.State = StateEstablished
		tcb.SndUna = seg.Ack
		tcb.Retransmit = nil
		return nil
	}
	if seg.Flags.has(flagSYN) {
		// Duplicate SYN: resend SYN+ACK.
		return &DeferredSend{
			LocalAddr: tcb.LocalAddr, LocalPort: tcb.LocalPort,
			RemoteAddr: tcb.RemoteAddr, RemotePort: tcb.RemotePort,
			Seq: tcb.ISS, Ack: tcb.RcvNxt, Flags: flagSYN | flagACK,
		}
	}
	return nil
}

// advanceSndUnaLocked updates snd_una from an ACK field and clears any
// pending retransmit record once everything outstanding has been acked.
func advanceSndUnaLocked(tcb *TCB, seg *TcpSegment) {
	if !seg.Flags.has(flagACK) {
		return
	}
	if isSeqGreaterOrEqual(seg.Ack, tcb.SndUna) {
		tcb.SndUna = seg.Ack
		if tcb.SndUna == tcb.SndNxt {
			tcb.Retransmit = nil
		}
	}
}

func (s *TcpStack) handleEstablishedLocked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	advanceSndUnaLocked(tcb, seg)

	needAck := false
	if len(seg.Payload) > 0 {
		needAck = true
		acceptInboundLocked(tcb, seg)
	}
	if seg.Flags.has(flagFIN) {
		tcb.RcvNxt++
		tcb.FinReceived = true
		tcb.State = StateCloseWait
		needAck = true
	}
	if !needAck {
		return nil
	}
	return &DeferredSend{
		LocalAddr: tcb.LocalAddr, LocalPort: tcb.LocalPort,
		RemoteAddr: tcb.RemoteAddr, RemotePort: tcb.RemotePort,
		Seq: tcb.SndNxt, Ack: tcb.RcvNxt, Flags: flagACK,
	}
}

func (s *TcpStack) handleFinWait1Locked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	if seg.Flags.has(flagACK) && seg.Ack == tcb.SndNxt {
		tcb.SndUna = seg.Ack
		tcb.State = StateFinWait2
	}
	if seg.Flags.has(flagFIN) {
		return s.finToTimeWaitLocked(tcb, seg)
	}
	return nil
}

func (s *TcpStack) handleFinWaitFinLocked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	if seg.Flags.has(flagFIN) {
		return s.finToTimeWaitLocked(tcb, seg)
	}
	return nil
}

func (s *TcpStack) finToTimeWaitLocked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	tcb.RcvNxt = seg.Seq + 1
	tcb.FinReceived = true
	tcb.State = StateTimeWait
	tcb.TimeWaitStart = nowFunc()
	return &DeferredSend{
		LocalAddr: tcb.LocalAddr, LocalPort: tcb.LocalPort,
		RemoteAddr: tcb.RemoteAddr, RemotePort: tcb.RemotePort,
		Seq: tcb.SndNxt, Ack: tcb.RcvNxt, Flags: flagACK,
	}
}

func (s *TcpStack) handleCloseWaitLocked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	advanceSndUnaLocked(tcb, seg)
	return nil
}

func (s *TcpStack) handleLastAckLocked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	if seg.Flags.has(flagACK) && seg.Ack == tcb.SndNxt {
		tcb.State = StateClosed
	}
	return nil
}

func (s *TcpStack) handleTimeWaitLocked(tcb *TCB, seg *TcpSegment) *DeferredSend {
	if seg.Flags.has(flagFIN) {
		tcb.TimeWaitStart = nowFunc()
		return &DeferredSend{
			LocalAddr: tcb.LocalAddr, LocalPort: tcb.LocalPort,
			RemoteAddr: tcb.RemoteAddr, RemotePort: tcb.RemotePort,
			Seq: tcb.SndNxt, Ack: tcb.RcvNxt, Flags: flagACK,
		}
	}
	return nil
}

// acceptInboundLocked accepts only in-order data, no
// reassembly above rcv_nxt.
func acceptInboundLocked(tcb *TCB, seg *TcpSegment) {
	switch {
	case seg.Seq == tcb.RcvNxt:
		free := tcb.RecvBuf.freeSpace(tcpRecvBufSize)
		n := len(seg.Payload)
		if n > free {
			n = free
		}
		tcb.RecvBuf.push(seg.Payload[:n])
		tcb.RcvNxt += uint32(n)
	case isSeqGreater(tcb.RcvNxt, seg.Seq):
		// Duplicate: nothing to accept, caller still emits an ACK.
	default:
		// Out-of-order ahead of rcv_nxt: discarded, no reassembly queue.
	}
}

// nowFunc is the monotonic clock external collaborator; a package var so
// tests can stub it deterministically.
var nowFunc = time.Now
