// tcp_stack.go - public TCP operations

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"context"
	"time"
)

// Connect allocates an ephemeral port, registers an
// embryonic TCB, send SYN outside the lock, then poll until the
// connection reaches Established, fails, or the timeout elapses.
func (s *TcpStack) Connect(remoteAddr Ipv4Addr, remotePort uint16, timeout time.Duration, owner uint64) (int, error) {
	localPort := s.allocEphemeralPort()

	s.mu.Lock()
	slot := s.findEmptySlotLocked()
	if slot == -1 {
		s.mu.Unlock()
		return 0, ErrNoSlot
	}
	iss := s.nextISSLocked()
	tcb := newEmbryonicTCB(s.localAddr, localPort, remoteAddr, remotePort, iss, owner)
	tcb.State = StateSynSent
	tcb.SndNxt = iss + 1
	tcb.Retransmit = &retransmitRecord{Seq: iss, Flags: flagSYN, SentAt: nowFunc()}
	s.slots[slot] = tcb
	syn := DeferredSend{
		LocalAddr: s.localAddr, LocalPort: localPort,
		RemoteAddr: remoteAddr, RemotePort: remotePort,
		Seq: iss, Flags: flagSYN,
	}
	s.mu.Unlock()

	s.emit(syn)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		s.pollInbound()

		s.mu.Lock()
		state := s.slots[slot].State
		reset := s.slots[slot].ResetReceived
		s.mu.Unlock()

		if state == StateEstablished {
			return slot, nil
		}
		if state == StateClosed || reset {
			s.freeSlot(slot)
			return 0, ErrConnectionReset
		}
		select {
		case <-ctx.Done():
			s.freeSlot(slot)
			return 0, ErrTimeout
		default:
			s.sleepTick()
		}
	}
}

// Listen rejects a port collision, otherwise allocates a
// Listen slot owned by the calling goroutine.
func (s *TcpStack) Listen(port uint16, owner uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.slots {
		if t != nil && t.State == StateListen && t.ListenPort == port {
			return 0, ErrPortInUse
		}
	}
	slot := s.findEmptySlotLocked()
	if slot == -1 {
		return 0, ErrNoSlot
	}
	s.slots[slot] = &TCB{
		State:          StateListen,
		LocalAddr:      s.localAddr,
		ListenPort:     port,
		ParentListener: -1,
		OwnerThread:    owner,
	}
	return slot, nil
}

// Accept polls until a child of listenerSlot completes
// the handshake, or the timeout elapses.
func (s *TcpStack) Accept(listenerSlot int, timeout time.Duration, owner uint64) (slot int, remote Ipv4Addr, remotePort uint16, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		s.pollInbound()

		s.mu.Lock()
		for i, t := range s.slots {
			if t == nil || t.ParentListener != listenerSlot {
				continue
			}
			if t.State == StateEstablished && !t.Accepted {
				t.Accepted = true
				t.ParentListener = -1
				t.OwnerThread = owner
				local, port := t.RemoteAddr, t.RemotePort
				s.mu.Unlock()
				return i, local, port, nil
			}
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, Ipv4Addr{}, 0, ErrTimeout
		default:
			s.sleepTick()
		}
	}
}

// CloseListener removes the listener and all pending
// (unaccepted) children, sending RST for each child that had already
// completed the handshake.
func (s *TcpStack) CloseListener(listenerSlot int) {
	s.mu.Lock()
	var resets []DeferredSend
	for i, t := range s.slots {
		if t == nil || t.ParentListener != listenerSlot {
			continue
		}
		if t.State == StateEstablished {
			resets = append(resets, DeferredSend{
				LocalAddr: t.LocalAddr, LocalPort: t.LocalPort,
				RemoteAddr: t.RemoteAddr, RemotePort: t.RemotePort,
				Seq: t.SndNxt, Ack: 0, Flags: flagRST,
			})
		}
		s.slots[i] = nil
	}
	s.slots[listenerSlot] = nil
	s.mu.Unlock()

	s.emitAll(resets)
}

// Send transmits stop-and-wait, MSS-sized chunks.
func (s *TcpStack) Send(slot int, data []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sent := 0
	for sent < len(data) {
		end := sent + tcpMSS
		if end > len(data) {
			end = len(data)
		}
		chunk := data[sent:end]

		s.mu.Lock()
		tcb := s.slots[slot]
		if tcb == nil || tcb.State != StateEstablished {
			s.mu.Unlock()
			if sent > 0 {
				return sent, nil
			}
			return 0, ErrNotConnected
		}
		startSeq := tcb.SndNxt
		tcb.SndNxt += uint32(len(chunk))
		tcb.Retransmit = &retransmitRecord{Payload: chunk, Seq: startSeq, Flags: flagACK, SentAt: nowFunc()}
		d := DeferredSend{
			LocalAddr: tcb.LocalAddr, LocalPort: tcb.LocalPort,
			RemoteAddr: tcb.RemoteAddr, RemotePort: tcb.RemotePort,
			Seq: startSeq, Ack: tcb.RcvNxt, Flags: flagACK, Payload: chunk,
		}
		s.mu.Unlock()

		s.emit(d)

		target := startSeq + uint32(len(chunk))
		for {
			s.pollInbound()

			s.mu.Lock()
			tcb = s.slots[slot]
			if tcb == nil {
				s.mu.Unlock()
				return sent, ErrConnectionReset
			}
			acked := isSeqGreaterOrEqual(tcb.SndUna, target)
			reset := tcb.ResetReceived
			s.mu.Unlock()

			if reset {
				return sent, ErrConnectionReset
			}
			if acked {
				sent += len(chunk)
				break
			}
			select {
			case <-ctx.Done():
				return sent, ErrTimeout
			default:
				s.sleepTick()
			}
		}
	}
	return sent, nil
}

// Recv drains the FIFO if non-empty, else waits for data
// or EOF.
func (s *TcpStack) Recv(slot int, buffer []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		s.mu.Lock()
		tcb := s.slots[slot]
		if tcb == nil {
			s.mu.Unlock()
			return 0, ErrNotConnected
		}
		if tcb.RecvBuf.len() > 0 {
			out := tcb.RecvBuf.pop(len(buffer))
			s.mu.Unlock()
			return copy(buffer, out), nil
		}
		if tcb.FinReceived || tcb.State == StateCloseWait {
			s.mu.Unlock()
			return 0, nil
		}
		if tcb.ResetReceived {
			s.mu.Unlock()
			return 0, ErrConnectionReset
		}
		s.mu.Unlock()

		s.pollInbound()
		select {
		case <-ctx.Done():
			return 0, ErrTimeout
		default:
			s.sleepTick()
		}
	}
}

// Close runs the state-dependent FIN/LastAck transition, with a
// 5-second wall bound waiting for Closed/TimeWait before force-RST.
func (s *TcpStack) Close(slot int) error {
	s.mu.Lock()
	tcb := s.slots[slot]
	if tcb == nil {
		s.mu.Unlock()
		return nil
	}
	switch tcb.State {
	case StateListen:
		s.mu.Unlock()
		s.CloseListener(slot)
		return nil
	case StateEstablished:
		tcb.State = StateFinWait1
	case StateCloseWait:
		tcb.State = StateLastAck
	default:
		s.slots[slot] = nil
		s.mu.Unlock()
		return nil
	}
	seq := tcb.SndNxt
	tcb.SndNxt++
	local, localPort, remote, remotePort := tcb.LocalAddr, tcb.LocalPort, tcb.RemoteAddr, tcb.RemotePort
	ack := tcb.RcvNxt
	s.mu.Unlock()

	s.emit(DeferredSend{
		LocalAddr: local, LocalPort: localPort, RemoteAddr: remote, RemotePort: remotePort,
		Seq: seq, Ack: ack, Flags: flagFIN | flagACK,
	})

	deadline := nowFunc().Add(5 * time.Second)
	for nowFunc().Before(deadline) {
		s.pollInbound()
		s.mu.Lock()
		t := s.slots[slot]
		if t == nil {
			s.mu.Unlock()
			return nil
		}
		state := t.State
		s.mu.Unlock()
		if state == StateClosed {
			s.freeSlot(slot)
			return nil
		}
		if state == StateTimeWait {
			return nil
		}
		s.sleepTick()
	}

	// Expired: send RST and free the slot.
	s.mu.Lock()
	t := s.slots[slot]
	s.slots[slot] = nil
	s.mu.Unlock()
	if t != nil {
		s.emit(DeferredSend{
			LocalAddr: t.LocalAddr, LocalPort: t.LocalPort,
			RemoteAddr: t.RemoteAddr, RemotePort: t.RemotePort,
			Seq: t.SndNxt, Ack: 0, Flags: flagRST,
		})
	}
	return nil
}

// ShutdownWrite is a non-blocking Established -> FinWait1 transition.
func (s *TcpStack) ShutdownWrite(slot int) error {
	s.mu.Lock()
	tcb := s.slots[slot]
	if tcb == nil || tcb.State != StateEstablished {
		s.mu.Unlock()
		return ErrNotConnected
	}
	tcb.State = StateFinWait1
	seq := tcb.SndNxt
	tcb.SndNxt++
	local, localPort, remote, remotePort, ack := tcb.LocalAddr, tcb.LocalPort, tcb.RemoteAddr, tcb.RemotePort, tcb.RcvNxt
	s.mu.Unlock()

	s.emit(DeferredSend{
		LocalAddr: local, LocalPort: localPort, RemoteAddr: remote, RemotePort: remotePort,
		Seq: seq, Ack: ack, Flags: flagFIN | flagACK,
	})
	return nil
}

// RecvAvailable reports buffered bytes, EOF, or error without blocking.
func (s *TcpStack) RecvAvailable(slot int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	tcb := s.slots[slot]
	if tcb == nil {
		return recvAvailableError
	}
	if n := tcb.RecvBuf.len(); n > 0 {
		return uint32(n)
	}
	if tcb.FinReceived || tcb.State == StateCloseWait {
		return recvAvailableEOF
	}
	return 0
}

func (s *TcpStack) freeSlot(slot int) {
	s.mu.Lock()
	s.slots[slot] = nil
	s.mu.Unlock()
}

// ListConnections returns a snapshot of every occupied slot, for the
// debug console's netstat-style listing.
type ConnectionInfo struct {
	Slot       int
	LocalAddr  Ipv4Addr
	LocalPort  uint16
	RemoteAddr Ipv4Addr
	RemotePort uint16
	State      TcpState
}

func (s *TcpStack) ListConnections() []ConnectionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ConnectionInfo
	for i, t := range s.slots {
		if t == nil {
			continue
		}
		out = append(out, ConnectionInfo{
			Slot: i, LocalAddr: t.LocalAddr, LocalPort: t.LocalPort,
			RemoteAddr: t.RemoteAddr, RemotePort: t.RemotePort, State: t.State,
		})
	}
	return out
}
