//go:build !headless

// display_ebiten.go - Ebiten window backend for the compositor

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"
)

// EbitenDisplay drives an ebiten window from a Compositor's back buffer
// and turns window input into ipcEvent values delivered to eventSink.
type EbitenDisplay struct {
	compositor *Compositor
	eventSink  func(ipcEvent)

	running    bool
	window     *ebiten.Image
	width      int
	height     int
	scale      int
	fullscreen bool
	vsyncChan  chan struct{}
	finished   chan struct{}

	// lastWindowW/H is the window size (in points) this display last told
	// ebiten about or last saw the user resize to; Update compares against
	// it to detect a further user-driven resize.
	lastWindowW int
	lastWindowH int

	mu sync.RWMutex

	clipboardOnce sync.Once
	clipboardOK   bool
}

// NewEbitenDisplay constructs a window backend for c, sized w x h at the
// given integer scale. Input events are delivered to eventSink, matching
// a design that routes keyboard/paste/resize through the same event
// transport rather than an emulated keyboard buffer.
func NewEbitenDisplay(c *Compositor, w, h, scale int, eventSink func(ipcEvent)) *EbitenDisplay {
	return &EbitenDisplay{
		compositor:  c,
		eventSink:   eventSink,
		width:       w,
		height:      h,
		scale:       scale,
		vsyncChan:   make(chan struct{}, 1),
		finished:    make(chan struct{}),
		lastWindowW: w * scale,
		lastWindowH: h * scale,
	}
}

func (ed *EbitenDisplay) Start() error {
	if ed.running {
		return nil
	}
	ed.running = true
	ebiten.SetWindowSize(ed.width*ed.scale, ed.height*ed.scale)
	ebiten.SetWindowTitle("Intuition Engine (c) 2024 - 2026 Zayn Otley")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	go func() {
		defer close(ed.finished)
		if err := ebiten.RunGame(ed); err != nil {
			fmt.Printf("ebiten error: %v\n", err)
		}
	}()

	<-ed.vsyncChan
	return nil
}

// Wait blocks until the window has closed or Stop was called.
func (ed *EbitenDisplay) Wait() {
	<-ed.finished
}

func (ed *EbitenDisplay) Stop() {
	ed.running = false
}

func (ed *EbitenDisplay) Update() error {
	if ebiten.IsWindowBeingClosed() || !ed.running {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ed.mu.Lock()
		ed.fullscreen = !ed.fullscreen
		ebiten.SetFullscreen(ed.fullscreen)
		if !ed.fullscreen {
			ebiten.SetWindowSize(ed.width*ed.scale, ed.height*ed.scale)
			ed.lastWindowW, ed.lastWindowH = ed.width*ed.scale, ed.height*ed.scale
		}
		ed.mu.Unlock()
	}
	if w, h := ebiten.WindowSize(); w != ed.lastWindowW || h != ed.lastWindowH {
		ed.mu.Lock()
		ed.width, ed.height = w, h
		ed.lastWindowW, ed.lastWindowH = w, h
		ed.window = nil
		ed.mu.Unlock()
		ed.emit(ipcEvent{Kind: "resize", Width: w, Height: h})
	}
	cx, cy := ebiten.CursorPosition()
	ed.compositor.SetCursor(int32(cx), int32(cy), ebiten.IsFocused())

	ed.handleKeyboardInput()
	return nil
}

func (ed *EbitenDisplay) emit(ev ipcEvent) {
	if ed.eventSink != nil {
		ed.eventSink(ev)
	}
}

func (ed *EbitenDisplay) handleKeyboardInput() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		ed.handleClipboardPaste()
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		if b, ok := runeToInputByte(r); ok {
			ed.emit(ipcEvent{Kind: "key", Key: b})
		}
	}

	for _, key := range specialKeys {
		if inpututil.IsKeyJustPressed(key) {
			if seq, ok := translateSpecialKey(key); ok {
				for _, b := range seq {
					ed.emit(ipcEvent{Kind: "key", Key: b})
				}
			}
		}
	}
}

var specialKeys = []ebiten.Key{
	ebiten.KeyEnter,
	ebiten.KeyNumpadEnter,
	ebiten.KeyBackspace,
	ebiten.KeyTab,
	ebiten.KeyEscape,
	ebiten.KeyArrowUp,
	ebiten.KeyArrowDown,
	ebiten.KeyArrowRight,
	ebiten.KeyArrowLeft,
	ebiten.KeyHome,
	ebiten.KeyEnd,
	ebiten.KeyDelete,
}

func runeToInputByte(r rune) (byte, bool) {
	if r <= 0 || r > 0xFF {
		return 0, false
	}
	return byte(r), true
}

func translateSpecialKey(key ebiten.Key) ([]byte, bool) {
	switch key {
	case ebiten.KeyEnter, ebiten.KeyNumpadEnter:
		return []byte{'\n'}, true
	case ebiten.KeyBackspace:
		return []byte{'\b'}, true
	case ebiten.KeyTab:
		return []byte{'\t'}, true
	case ebiten.KeyEscape:
		return []byte{0x1B}, true
	case ebiten.KeyArrowUp:
		return []byte{0x1B, '[', 'A'}, true
	case ebiten.KeyArrowDown:
		return []byte{0x1B, '[', 'B'}, true
	case ebiten.KeyArrowRight:
		return []byte{0x1B, '[', 'C'}, true
	case ebiten.KeyArrowLeft:
		return []byte{0x1B, '[', 'D'}, true
	case ebiten.KeyHome:
		return []byte{0x1B, '[', 'H'}, true
	case ebiten.KeyEnd:
		return []byte{0x1B, '[', 'F'}, true
	case ebiten.KeyDelete:
		return []byte{0x1B, '[', '3', '~'}, true
	default:
		return nil, false
	}
}

func normalizePasteText(raw []byte) []byte {
	norm := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\r' {
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			norm = append(norm, '\n')
			continue
		}
		norm = append(norm, raw[i])
	}
	return norm
}

func capPasteText(raw []byte, max int) []byte {
	if len(raw) <= max {
		return raw
	}
	return raw[:max]
}

func (ed *EbitenDisplay) handleClipboardPaste() {
	ed.clipboardOnce.Do(func() {
		ed.clipboardOK = clipboard.Init() == nil
	})
	if !ed.clipboardOK {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	data = normalizePasteText(data)
	data = capPasteText(data, 4096)
	ed.emit(ipcEvent{Kind: "paste", Text: string(data)})
}

func (ed *EbitenDisplay) Draw(screen *ebiten.Image) {
	ed.mu.RLock()
	w, h := ed.width, ed.height
	ed.mu.RUnlock()

	if ed.window == nil || ed.window.Bounds().Dx() != w || ed.window.Bounds().Dy() != h {
		ed.window = ebiten.NewImage(w, h)
	}

	pixels, _ := ed.compositor.BackBufferSnapshot()
	ed.window.WritePixels(pixels)
	screen.DrawImage(ed.window, nil)

	select {
	case ed.vsyncChan <- struct{}{}:
	default:
	}
}

func (ed *EbitenDisplay) Layout(_, _ int) (int, int) {
	ed.mu.RLock()
	defer ed.mu.RUnlock()
	return ed.width, ed.height
}
