// tcp_tcb.go - transmission control block

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import "time"

// retransmitRecord captures the last unacknowledged segment sent on a
// connection, so the retransmission sweep can resend it without
// recomputing anything under the lock.
type retransmitRecord struct {
	Payload []byte
	Seq     uint32
	Flags   tcpFlag
	SentAt  time.Time
	Retries int
}

// recvFIFO is a bounded byte FIFO backing a TCB's receive buffer.
type recvFIFO struct {
	buf []byte
}

func newRecvFIFO(capacity int) *recvFIFO {
	return &recvFIFO{buf: make([]byte, 0, capacity)}
}

func (f *recvFIFO) freeSpace(capacity int) int {
	return capacity - len(f.buf)
}

func (f *recvFIFO) push(data []byte) int {
	n := len(data)
	f.buf = append(f.buf, data...)
	return n
}

func (f *recvFIFO) pop(max int) []byte {
	if max > len(f.buf) {
		max = len(f.buf)
	}
	out := append([]byte(nil), f.buf[:max]...)
	f.buf = f.buf[max:]
	return out
}

func (f *recvFIFO) len() int { return len(f.buf) }

// TCB is the per-connection control block. All fields are only ever
// touched while the owning TcpStack's table lock is held.
type TCB struct {
	LocalAddr  Ipv4Addr
	LocalPort  uint16
	RemoteAddr Ipv4Addr
	RemotePort uint16
	State      TcpState

	ISS    uint32
	SndUna uint32
	SndNxt uint32
	SndWnd uint32

	IRS    uint32
	RcvNxt uint32

	RecvBuf *recvFIFO

	Retransmit *retransmitRecord

	FinReceived   bool
	ResetReceived bool

	TimeWaitStart time.Time

	// ParentListener is the table index of the Listen slot this embryonic
	// or established connection was spawned from, or -1 for none.
	ParentListener int
	Accepted       bool
	OwnerThread    uint64

	// ListenPort is only meaningful in state Listen.
	ListenPort uint16
}

func newEmbryonicTCB(local Ipv4Addr, localPort uint16, remote Ipv4Addr, remotePort uint16, iss uint32, owner uint64) *TCB {
	return &TCB{
		LocalAddr:      local,
		LocalPort:      localPort,
		RemoteAddr:     remote,
		RemotePort:     remotePort,
		ISS:            iss,
		SndUna:         iss,
		SndNxt:         iss,
		SndWnd:         tcpWindow,
		RecvBuf:        newRecvFIFO(tcpRecvBufSize),
		ParentListener: -1,
		OwnerThread:    owner,
	}
}
