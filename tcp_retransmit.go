// tcp_retransmit.go - periodic retransmission sweep

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import "time"

const retransmitPollInterval = 200 * time.Millisecond

// retransmitLoop drives RetransmitSweep on a ticker, the periodic sweep
// runs alongside every inbound-poll tick.
func (s *TcpStack) retransmitLoop() {
	ticker := time.NewTicker(retransmitPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.pollInbound()
			s.RetransmitSweep()
		}
	}
}

// RetransmitSweep scans the table for overdue sends. Because emitting a retransmission
// requires releasing the table lock, this processes at most one
// retransmission per call; the next call resumes the scan from slot 0.
// (A from-scratch scan each call is a fine simplification for a 64-slot
// table; no resume cursor is kept.)
func (s *TcpStack) RetransmitSweep() {
	s.mu.Lock()

	now := nowFunc()
	var toSend *DeferredSend

	for i, t := range s.slots {
		if t == nil {
			continue
		}
		switch {
		case t.State == StateClosed:
			s.slots[i] = nil
		case t.State == StateTimeWait && now.Sub(t.TimeWaitStart) >= tcpTimeWaitSeconds*time.Second:
			s.slots[i] = nil
		case t.State == StateSynReceived && t.Retransmit != nil && t.Retransmit.Retries >= tcpMaxRetries:
			s.slots[i] = nil
		case t.Retransmit != nil && now.Sub(t.Retransmit.SentAt) >= tcpRetransmitSeconds*time.Second &&
			t.Retransmit.Retries < tcpMaxRetries &&
			(t.State == StateEstablished || t.State == StateSynSent || t.State == StateSynReceived):
			t.Retransmit.Retries++
			t.Retransmit.SentAt = now
			toSend = &DeferredSend{
				LocalAddr: t.LocalAddr, LocalPort: t.LocalPort,
				RemoteAddr: t.RemoteAddr, RemotePort: t.RemotePort,
				Seq: t.Retransmit.Seq, Ack: t.RcvNxt,
				Flags: t.Retransmit.Flags, Payload: t.Retransmit.Payload,
			}
		}
		if toSend != nil {
			break
		}
	}

	s.mu.Unlock()

	if toSend != nil {
		s.emit(*toSend)
	}
}
