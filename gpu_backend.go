// gpu_backend.go - GPU command batch sink

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

// GPU command kinds, per the external command-batch contract.
const (
	gpuCmdUpdate       uint32 = 1
	gpuCmdRectFill     uint32 = 2
	gpuCmdRectCopy     uint32 = 3
	gpuCmdCursorMove   uint32 = 4
	gpuCmdCursorShow   uint32 = 5
	gpuCmdDefineCursor uint32 = 6
	gpuCmdFlip         uint32 = 7
)

// GPUCommand is one fixed-width nine-word command tuple.
type GPUCommand [9]uint32

func updateCmd(x, y int32, w, h uint32) GPUCommand {
	return GPUCommand{gpuCmdUpdate, uint32(x), uint32(y), w, h, 0, 0, 0, 0}
}

func rectCopyCmd(srcX, srcY, dstX, dstY int32, w, h uint32) GPUCommand {
	return GPUCommand{gpuCmdRectCopy, uint32(srcX), uint32(srcY), uint32(dstX), uint32(dstY), w, h, 0, 0}
}

func flipCmd() GPUCommand {
	return GPUCommand{gpuCmdFlip}
}

func cursorMoveCmd(x, y int32) GPUCommand {
	return GPUCommand{gpuCmdCursorMove, uint32(x), uint32(y)}
}

func cursorShowCmd(visible bool) GPUCommand {
	v := uint32(0)
	if visible {
		v = 1
	}
	return GPUCommand{gpuCmdCursorShow, v}
}

// gpuBackend is the sink the flush engine submits command batches to.
// softwareGPU (always available) just records the batch; vulkanGPU
// (build-tag gated, disabled by default) copies the pixels into a device
// staging buffer and issues no device commands. Both accept RECT_COPY,
// but FlushEngine never emits that opcode: see DESIGN.md's Open Question
// decision.
type gpuBackend interface {
	Submit(cmds []GPUCommand, backBuffer []byte) error
	Close() error
}

// softwareGPU is the default backend: it keeps the last submitted batch
// for inspection (tests, debug console) and performs no device I/O.
type softwareGPU struct {
	lastBatch []GPUCommand
}

func newSoftwareGPU() *softwareGPU { return &softwareGPU{} }

func (s *softwareGPU) Submit(cmds []GPUCommand, backBuffer []byte) error {
	s.lastBatch = append(s.lastBatch[:0], cmds...)
	return nil
}

func (s *softwareGPU) Close() error { return nil }
