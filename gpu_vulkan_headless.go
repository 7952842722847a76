// gpu_vulkan_headless.go - stub GPU backend for headless builds

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

//go:build headless

package main

import "fmt"

// vulkanGPU is a no-op stand-in used when built with -tags headless,
// where no Vulkan loader is expected to be present (CI, containers).
type vulkanGPU struct{}

func newVulkanGPU(width, height int) (*vulkanGPU, error) {
	return nil, fmt.Errorf("gpu_vulkan: built headless, vulkan backend unavailable")
}

func (g *vulkanGPU) Submit(cmds []GPUCommand, backBuffer []byte) error { return nil }
func (g *vulkanGPU) Close() error                                     { return nil }
