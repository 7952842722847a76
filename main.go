// main.go - entry point wiring the compositor and TCP stack together

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147m ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████\033[0m")
	fmt.Println("\nA layer-based windowing compositor and user-space TCP/IP stack.")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/IntuitionEngine")
	fmt.Println("License: GPLv3 or later")
}

func main() {
	var (
		listenPort = flag.Int("port", 7070, "TCP listen port for the bundled loopback echo demo")
		scale      = flag.Int("scale", 1, "integer window scale")
		headless   = flag.Bool("headless", false, "run without a window, for servers and tests")
		gpuFlag    = flag.String("gpu", "software", "GPU command batch backend: software or vulkan")
		console    = flag.Bool("console", false, "enable the netstat-style debug console on stdin")
	)
	flag.Parse()

	boilerPlate()

	shm := NewSharedMemory(4096)
	fb := NewFramebufferView(defaultScreenWidth, defaultScreenHeight)

	gpu, err := selectGPUBackend(*gpuFlag, int(fb.Width), int(fb.Height))
	if err != nil {
		fmt.Printf("gpu backend init failed: %v\n", err)
		os.Exit(1)
	}
	defer gpu.Close()

	compositor := NewCompositor(fb, shm, gpu)
	bg := compositor.AddLayer(0, 0, uint32(fb.Width), uint32(fb.Height), true)
	compositor.FillLayerColor(bg, 0xFF1E2430)

	panel := compositor.AddLayer(40, 40, 320, 200, true)
	compositor.SetLayerFlags(panel, true, true, 6)
	compositor.SetFocus(panel)
	compositor.FillLayerColor(panel, 0xFFEAEAEA)

	compositor.Start()
	defer compositor.Stop()

	localAddr := Ipv4Addr{127, 0, 0, 1}
	sender := newLoopbackSender(localAddr)
	stack := NewTcpStack(localAddr, sender)
	sender.attach(stack)
	stack.Run()
	defer stack.Stop()

	owner := currentGoroutineToken()
	go runEchoServer(stack, uint16(*listenPort), owner)

	eventSink := func(ev ipcEvent) {
		switch ev.Kind {
		case "key":
			fmt.Printf("key: %q\n", ev.Key)
		case "paste":
			fmt.Printf("paste: %q\n", ev.Text)
		case "resize":
			compositor.Resize(int32(ev.Width), int32(ev.Height))
		}
	}

	eventServer, err := NewIPCEventServer(eventSink)
	if err != nil {
		fmt.Printf("ipc event server disabled: %v\n", err)
	} else {
		eventServer.Start()
		defer eventServer.Stop()
	}

	quitCh := make(chan struct{}, 1)

	var dbgConsole *DebugConsole
	if *console {
		dbgConsole = NewDebugConsole(stack)
		dbgConsole.Start(quitCh)
		defer dbgConsole.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if *headless {
		select {
		case <-sigCh:
		case <-quitCh:
		}
		stack.Cleanup(owner)
		return
	}

	display := NewEbitenDisplay(compositor, int(fb.Width), int(fb.Height), *scale, eventSink)
	go func() {
		select {
		case <-sigCh:
		case <-quitCh:
		}
		display.Stop()
	}()
	if err := display.Start(); err != nil {
		fmt.Printf("display init failed: %v\n", err)
		os.Exit(1)
	}
	display.Wait()
	stack.Cleanup(owner)
}

func selectGPUBackend(name string, width, height int) (gpuBackend, error) {
	switch name {
	case "vulkan":
		return newVulkanGPU(width, height)
	case "software", "":
		return newSoftwareGPU(), nil
	default:
		return nil, fmt.Errorf("unknown gpu backend %q", name)
	}
}

// runEchoServer listens on port and echoes every byte it receives back to
// the sender, serving each accepted connection on its own goroutine,
// demonstrating the full
// Listen/Accept/Recv/Send/Close lifecycle against a real TcpStack.
func runEchoServer(stack *TcpStack, port uint16, owner uint64) {
	listener, err := stack.Listen(port, owner)
	if err != nil {
		fmt.Printf("echo server: listen failed: %v\n", err)
		return
	}
	for {
		slot, remote, remotePort, err := stack.Accept(listener, time.Hour, owner)
		if err != nil {
			continue
		}
		go serveEchoConnection(stack, slot, remote, remotePort)
	}
}

func serveEchoConnection(stack *TcpStack, slot int, remote Ipv4Addr, remotePort uint16) {
	defer stack.Close(slot)
	buf := make([]byte, 4096)
	for {
		n, err := stack.Recv(slot, buf, 30*time.Second)
		if err != nil || n == 0 {
			return
		}
		if _, err := stack.Send(slot, buf[:n], 30*time.Second); err != nil {
			return
		}
	}
}
