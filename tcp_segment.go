// tcp_segment.go - TCP segment parsing, encoding and checksum

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"encoding/binary"
	"errors"
)

// ErrMalformed is never surfaced to a caller; malformed
// segments are dropped silently before reaching the state machine. It
// exists only so the parser has a typed reason to hand to diagnostics.
var ErrMalformed = errors.New("tcp: malformed segment")

// TcpSegment is a decoded inbound (or about-to-be-encoded outbound)
// segment.
type TcpSegment struct {
	SrcPort  uint16
	DstPort  uint16
	Seq      uint32
	Ack      uint32
	Flags    tcpFlag
	Window   uint16
	Payload  []byte
	SrcAddr  Ipv4Addr
	DstAddr  Ipv4Addr
}

// parseSegment decodes a raw TCP segment (20-byte fixed header, no
// options) received from srcAddr to dstAddr. Segments whose data offset
// is not exactly 5 (no options supported) are rejected. The inbound
// checksum itself is not verified; every sender on this stack's loopback
// transport is this stack's own encodeSegment, so a corrupt checksum
// would only ever come from a deliberately malicious DeliverSegment
// caller, not wire noise.
func parseSegment(raw []byte, srcAddr, dstAddr Ipv4Addr) (*TcpSegment, error) {
	if len(raw) < tcpHeaderLen {
		return nil, ErrMalformed
	}
	dataOffsetWords := raw[12] >> 4
	if dataOffsetWords != 5 {
		return nil, ErrMalformed
	}

	seg := &TcpSegment{
		SrcPort: binary.BigEndian.Uint16(raw[0:2]),
		DstPort: binary.BigEndian.Uint16(raw[2:4]),
		Seq:     binary.BigEndian.Uint32(raw[4:8]),
		Ack:     binary.BigEndian.Uint32(raw[8:12]),
		Flags:   tcpFlag(raw[13] & 0x3f),
		Window:  binary.BigEndian.Uint16(raw[14:16]),
		SrcAddr: srcAddr,
		DstAddr: dstAddr,
	}
	if len(raw) > tcpHeaderLen {
		seg.Payload = append([]byte(nil), raw[tcpHeaderLen:]...)
	}
	return seg, nil
}

// encodeSegment serializes seg into a 20-byte header plus payload, with a
// correct checksum computed over the IPv4 pseudo-header.
func encodeSegment(seg *TcpSegment) []byte {
	buf := make([]byte, tcpHeaderLen+len(seg.Payload))
	binary.BigEndian.PutUint16(buf[0:2], seg.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], seg.DstPort)
	binary.BigEndian.PutUint32(buf[4:8], seg.Seq)
	binary.BigEndian.PutUint32(buf[8:12], seg.Ack)
	buf[12] = 5 << 4 // data offset = 5 32-bit words, no options
	buf[13] = byte(seg.Flags) & 0x3f
	binary.BigEndian.PutUint16(buf[14:16], seg.Window)
	// buf[16:18] checksum, filled below
	// buf[18:20] urgent pointer, left zero
	copy(buf[tcpHeaderLen:], seg.Payload)

	sum := tcpChecksum(seg.SrcAddr, seg.DstAddr, buf)
	binary.BigEndian.PutUint16(buf[16:18], sum)
	return buf
}

// tcpChecksum computes the one's-complement checksum over the IPv4
// pseudo-header (src, dst, zero, protocol=6, tcp length) followed by the
// TCP header and payload.
func tcpChecksum(src, dst Ipv4Addr, segment []byte) uint16 {
	var sum uint32

	add16 := func(hi, lo byte) {
		sum += uint32(hi)<<8 | uint32(lo)
	}
	add16(src[0], src[1])
	add16(src[2], src[3])
	add16(dst[0], dst[1])
	add16(dst[2], dst[3])
	add16(0, ipProtoTCP)
	length := uint16(len(segment))
	add16(byte(length>>8), byte(length))

	// Checksum field itself must read as zero while summing.
	data := make([]byte, len(segment))
	copy(data, segment)
	if len(data) >= 18 {
		data[16], data[17] = 0, 0
	}
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}

	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
