// tcp_cleanup.go - per-thread ownership cleanup

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

const cleanupRSTCeiling = 16

// needsRSTOnCleanup reports whether a slot in this state must emit a RST
// when its owning thread exits.
func needsRSTOnCleanup(state TcpState) bool {
	switch state {
	case StateEstablished, StateSynSent, StateSynReceived, StateFinWait1, StateFinWait2, StateCloseWait:
		return true
	default:
		return false
	}
}

// Cleanup is called when a thread exits. In a single
// locked pass it collects up to 16 RST tuples for every slot owned by
// owner (plus pending children of any listener owned by owner), frees
// every matching slot, then emits the collected RSTs after releasing the
// lock.
func (s *TcpStack) Cleanup(owner uint64) {
	s.mu.Lock()

	ownedListeners := make(map[int]bool)
	for i, t := range s.slots {
		if t != nil && t.State == StateListen && t.OwnerThread == owner {
			ownedListeners[i] = true
		}
	}

	var resets []DeferredSend
	for i, t := range s.slots {
		if t == nil {
			continue
		}
		owns := t.OwnerThread == owner || (t.ParentListener != -1 && ownedListeners[t.ParentListener])
		if !owns {
			continue
		}
		if needsRSTOnCleanup(t.State) && len(resets) < cleanupRSTCeiling {
			resets = append(resets, DeferredSend{
				LocalAddr: t.LocalAddr, LocalPort: t.LocalPort,
				RemoteAddr: t.RemoteAddr, RemotePort: t.RemotePort,
				Seq: t.SndNxt, Ack: t.RcvNxt, Flags: flagRST,
			})
		}
		s.slots[i] = nil
	}

	s.mu.Unlock()

	s.emitAll(resets)
}
