package main

import (
	"fmt"
	"testing"
	"time"
)

func TestIsSeqGreaterWraparound(t *testing.T) {
	var a uint32 = ^uint32(0) - 1 // u32::MAX - 1
	if !isSeqGreater(a+1, a) {
		t.Fatalf("isSeqGreater(a+1, a) should hold across wraparound, a=%d", a)
	}
}

func newLoopbackPair(t *testing.T) (*TcpStack, *TcpStack) {
	t.Helper()
	addrA := Ipv4Addr{127, 0, 0, 1}
	addrB := Ipv4Addr{127, 0, 0, 2}

	senderA := newLoopbackSender(addrA)
	senderB := newLoopbackSender(addrB)

	a := NewTcpStack(addrA, senderA)
	b := NewTcpStack(addrB, senderB)

	senderA.attach(b)
	senderB.attach(a)
	return a, b
}

func TestConnectAcceptRoundTrip(t *testing.T) {
	server, client := newLoopbackPair(t)

	listenerSlot, err := server.Listen(8080, 1)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	type acceptResult struct {
		slot int
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		slot, _, _, err := server.Accept(listenerSlot, time.Second, 1)
		acceptCh <- acceptResult{slot, err}
	}()

	connSlot, err := client.Connect(Ipv4Addr{127, 0, 0, 1}, 8080, time.Second, 2)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	res := <-acceptCh
	if res.err != nil {
		t.Fatalf("Accept: %v", res.err)
	}

	if client.slots[connSlot].State != StateEstablished {
		t.Fatalf("client slot state = %v, want Established", client.slots[connSlot].State)
	}
	if server.slots[res.slot].State != StateEstablished {
		t.Fatalf("server slot state = %v, want Established", server.slots[res.slot].State)
	}
}

func TestSendRecv10000Bytes(t *testing.T) {
	server, client := newLoopbackPair(t)

	listenerSlot, _ := server.Listen(9090, 1)
	acceptCh := make(chan int, 1)
	go func() {
		slot, _, _, _ := server.Accept(listenerSlot, 2*time.Second, 1)
		acceptCh <- slot
	}()

	connSlot, err := client.Connect(Ipv4Addr{127, 0, 0, 1}, 9090, time.Second, 2)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	serverSlot := <-acceptCh

	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i)
	}

	sendErrCh := make(chan error, 1)
	go func() {
		n, err := client.Send(connSlot, payload, 5*time.Second)
		if n != len(payload) {
			sendErrCh <- fmt.Errorf("sent %d, want %d", n, len(payload))
			return
		}
		sendErrCh <- err
	}()

	received := make([]byte, 0, len(payload))
	buf := make([]byte, 4096)
	for len(received) < len(payload) {
		n, err := server.Recv(serverSlot, buf, 5*time.Second)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		received = append(received, buf[:n]...)
	}

	if err := <-sendErrCh; err != nil {
		t.Fatalf("Send: %v", err)
	}
	for i := range payload {
		if received[i] != payload[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, received[i], payload[i])
		}
	}
}

func TestRstOnUnknownConnection(t *testing.T) {
	addr := Ipv4Addr{127, 0, 0, 1}
	peer := Ipv4Addr{127, 0, 0, 2}
	var captured *TcpSegment
	capture := capturingSender{onSend: func(dst Ipv4Addr, payload []byte) {
		seg, err := parseSegment(payload, addr, dst)
		if err == nil {
			captured = seg
		}
	}}

	s := NewTcpStack(addr, &capture)
	seg := &TcpSegment{
		SrcPort: 4000, DstPort: 80, Seq: 111, Ack: 222, Flags: flagACK,
		SrcAddr: peer, DstAddr: addr,
	}
	s.DeliverSegment(seg)
	s.pollInbound()

	if captured == nil {
		t.Fatalf("expected a RST segment to be emitted")
	}
	if !captured.Flags.has(flagRST) {
		t.Fatalf("expected RST flag set, got flags %b", captured.Flags)
	}
	if captured.Seq != seg.Ack || captured.Ack != 0 {
		t.Fatalf("got seq=%d ack=%d, want seq=%d ack=0", captured.Seq, captured.Ack, seg.Ack)
	}
}

func TestBacklogBound(t *testing.T) {
	addr := Ipv4Addr{127, 0, 0, 1}
	s := NewTcpStack(addr, &capturingSender{})
	listenerSlot, _ := s.Listen(7070, 1)

	for i := 0; i < tcpBacklogCeiling; i++ {
		seg := &TcpSegment{
			SrcPort: uint16(40000 + i), DstPort: 7070, Seq: uint32(i * 1000), Flags: flagSYN,
			SrcAddr: Ipv4Addr{10, 0, 0, byte(i)}, DstAddr: addr,
		}
		s.DeliverSegment(seg)
		s.pollInbound()
	}
	if got := s.countPendingChildrenLocked(listenerSlot); got != tcpBacklogCeiling {
		t.Fatalf("pending children = %d, want %d", got, tcpBacklogCeiling)
	}

	var rstSeen bool
	overflowSender := &capturingSender{onSend: func(dst Ipv4Addr, payload []byte) { rstSeen = true }}
	s.sender = overflowSender
	overflowSeg := &TcpSegment{
		SrcPort: 50000, DstPort: 7070, Seq: 999999, Flags: flagSYN,
		SrcAddr: Ipv4Addr{10, 0, 0, 99}, DstAddr: addr,
	}
	s.DeliverSegment(overflowSeg)
	s.pollInbound()

	if got := s.countPendingChildrenLocked(listenerSlot); got != tcpBacklogCeiling {
		t.Fatalf("17th SYN created a new slot: pending children = %d, want %d", got, tcpBacklogCeiling)
	}
	if rstSeen {
		t.Fatalf("backlog overflow must be dropped silently, but a segment was emitted")
	}
}

func TestPerThreadCleanupEmitsOneRSTPerEstablished(t *testing.T) {
	server, client := newLoopbackPair(t)
	listenerSlot, _ := server.Listen(6060, 10)

	acceptCh := make(chan int, 1)
	go func() {
		slot, _, _, _ := server.Accept(listenerSlot, time.Second, 10)
		acceptCh <- slot
	}()
	_, err := client.Connect(Ipv4Addr{127, 0, 0, 1}, 6060, time.Second, 20)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	serverSlot := <-acceptCh
	_ = serverSlot

	var rstCount int
	client.sender = &capturingSender{onSend: func(dst Ipv4Addr, payload []byte) {
		seg, err := parseSegment(payload, client.localAddr, dst)
		if err == nil && seg.Flags.has(flagRST) {
			rstCount++
		}
	}}

	client.Cleanup(20)

	if rstCount != 1 {
		t.Fatalf("expected exactly one RST from cleanup, got %d", rstCount)
	}
	for _, t2 := range client.slots {
		if t2 != nil && t2.OwnerThread == 20 {
			t.Fatalf("slot still present after cleanup: %+v", t2)
		}
	}
}

// capturingSender is a test double implementing ipSender.
type capturingSender struct {
	onSend func(dst Ipv4Addr, payload []byte)
}

func (c *capturingSender) SendIPv4(dst Ipv4Addr, proto byte, payload []byte) error {
	if c.onSend != nil {
		c.onSend(dst, payload)
	}
	return nil
}
