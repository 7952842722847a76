// tcp_types.go - TCP wire constants, states, and error kinds

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"errors"
	"fmt"
)

// Ipv4Addr is a raw dotted-quad address.
type Ipv4Addr [4]byte

func (a Ipv4Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// TCP wire-format constants, part of the external contract.
const (
	tcpMSS               = 1460
	tcpRecvBufSize       = 16384
	tcpWindow            = 8192
	tcpRetransmitSeconds = 3
	tcpMaxRetries        = 5
	tcpTimeWaitSeconds   = 2
	tcpBacklogCeiling    = 16
	tcpMaxConnections    = 64
	ephemeralPortLow     = 49152
	ephemeralPortHigh    = 65535

	tcpHeaderLen = 20
	ipProtoTCP   = 6

	isnMultiplier = 2654435761 // Knuth hash multiplier
)

type tcpFlag byte

const (
	flagFIN tcpFlag = 1 << 0
	flagSYN tcpFlag = 1 << 1
	flagRST tcpFlag = 1 << 2
	flagPSH tcpFlag = 1 << 3
	flagACK tcpFlag = 1 << 4
	flagURG tcpFlag = 1 << 5
)

func (f tcpFlag) has(bit tcpFlag) bool { return f&bit != 0 }

// TcpState enumerates the RFC 793 states this stack implements.
type TcpState int

const (
	StateClosed TcpState = iota
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateLastAck
	StateTimeWait
)

func (s TcpState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynReceived:
		return "SYN_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT_1"
	case StateFinWait2:
		return "FIN_WAIT_2"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	case StateTimeWait:
		return "TIME_WAIT"
	default:
		return "UNKNOWN"
	}
}

// Sentinel errors surfaced at the TCP public boundary.
var (
	ErrNoSlot           = errors.New("tcp: connection table full")
	ErrPortInUse        = errors.New("tcp: port already in listen state")
	ErrTimeout          = errors.New("tcp: operation timed out")
	ErrConnectionReset  = errors.New("tcp: connection reset")
	ErrNotConnected     = errors.New("tcp: not connected")
)

// recvAvailableEOF / recvAvailableError mirror the u32::MAX-1 / u32::MAX
// sentinels from the external recv_available contract.
const (
	recvAvailableEOF   = ^uint32(0) - 1
	recvAvailableError = ^uint32(0)
)

// isSeqGreater implements wrap-safe sequence comparison: gt(a,b) is true
// iff a is ahead of b modulo 2^32.
func isSeqGreater(a, b uint32) bool {
	return int32(a-b) > 0
}

func isSeqGreaterOrEqual(a, b uint32) bool {
	return a == b || isSeqGreater(a, b)
}
