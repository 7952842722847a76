// debug_console.go - netstat-style terminal console over the TCP stack

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// DebugConsole reads raw stdin for single-key commands and prints a
// connection table snapshot from a TcpStack when 'c' is pressed. Only instantiated
// in main.go for interactive use, never in tests.
type DebugConsole struct {
	stack        *TcpStack
	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	fd           int
	nonblockSet  bool
	oldTermState *term.State
}

func NewDebugConsole(stack *TcpStack) *DebugConsole {
	return &DebugConsole{
		stack:  stack,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start puts stdin in raw non-blocking mode and begins reading single-key
// commands: 'c' prints the connection table, 'q' requests shutdown via
// quitCh. Call Stop() to restore stdin.
func (d *DebugConsole) Start(quitCh chan<- struct{}) {
	d.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(d.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug_console: failed to set raw mode: %v\n", err)
		close(d.done)
		return
	}
	d.oldTermState = oldState

	if err := syscall.SetNonblock(d.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "debug_console: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(d.fd, d.oldTermState)
		d.oldTermState = nil
		close(d.done)
		return
	}
	d.nonblockSet = true

	go func() {
		defer close(d.done)
		buf := make([]byte, 1)

		for {
			select {
			case <-d.stopCh:
				return
			default:
			}

			n, err := syscall.Read(d.fd, buf)
			if n > 0 {
				switch buf[0] {
				case 'c', 'C':
					d.printConnections()
				case 'q', 'Q':
					select {
					case quitCh <- struct{}{}:
					default:
					}
				}
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()
}

func (d *DebugConsole) Stop() {
	d.stopped.Do(func() {
		close(d.stopCh)
	})
	<-d.done
	if d.nonblockSet {
		_ = syscall.SetNonblock(d.fd, false)
		d.nonblockSet = false
	}
	if d.oldTermState != nil {
		_ = term.Restore(d.fd, d.oldTermState)
		d.oldTermState = nil
	}
}

func (d *DebugConsole) printConnections() {
	conns := d.stack.ListConnections()
	fmt.Print("\r\n slot  local              remote             state\r\n")
	for _, c := range conns {
		fmt.Printf(" %-5d %s:%-5d      %s:%-5d      %s\r\n",
			c.Slot, c.LocalAddr, c.LocalPort, c.RemoteAddr, c.RemotePort, c.State)
	}
	if len(conns) == 0 {
		fmt.Print(" (no connections)\r\n")
	}
}
