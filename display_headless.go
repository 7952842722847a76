//go:build headless

// display_headless.go - no-op window backend for headless builds

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

// EbitenDisplay is a stub on headless builds (no windowing toolkit
// available). Without the -headless flag main.go still starts and waits
// on it; Wait then returns once Stop is called.
type EbitenDisplay struct {
	finished chan struct{}
}

func NewEbitenDisplay(c *Compositor, w, h, scale int, eventSink func(ipcEvent)) *EbitenDisplay {
	return &EbitenDisplay{finished: make(chan struct{})}
}

func (ed *EbitenDisplay) Start() error {
	return nil
}

func (ed *EbitenDisplay) Wait() {
	<-ed.finished
}

func (ed *EbitenDisplay) Stop() {
	close(ed.finished)
}
