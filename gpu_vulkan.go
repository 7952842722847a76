// gpu_vulkan.go - optional hardware GPU command-batch backend

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

//go:build !headless

package main

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

var (
	vulkanInitMutex sync.Mutex
	vulkanInitOnce  bool
)

// vulkanGPU receives the compositor's nine-word command batch on a real
// Vulkan device, copying the submitted pixels into a host-visible staging
// buffer. The color image fields are declared but never created, and no
// device commands are recorded. It is never constructed by default: the flush engine is wired
// to softwareGPU unless the caller opts in with -gpu=vulkan, per the
// Open Question decision recorded in DESIGN.md.
type vulkanGPU struct {
	mu sync.Mutex

	width, height int

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	graphicsQueue  vk.Queue

	colorImage       vk.Image
	colorImageMemory vk.DeviceMemory
	colorImageView   vk.ImageView

	commandPool   vk.CommandPool
	commandBuffer vk.CommandBuffer

	stagingBuffer       vk.Buffer
	stagingBufferMemory vk.DeviceMemory
	stagingSize         vk.DeviceSize

	fence vk.Fence
}

// newVulkanGPU brings up a minimal device suitable for blit-style
// transfer commands; it does not build a graphics pipeline, render pass,
// or vertex buffer, none of which a nine-word UPDATE/RECT_FILL/RECT_COPY
// batch needs.
func newVulkanGPU(width, height int) (*vulkanGPU, error) {
	g := &vulkanGPU{width: width, height: height}
	if err := g.init(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *vulkanGPU) init() error {
	vulkanInitMutex.Lock()
	defer vulkanInitMutex.Unlock()

	if !vulkanInitOnce {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return fmt.Errorf("gpu_vulkan: load library: %w", err)
		}
		if err := vk.Init(); err != nil {
			return fmt.Errorf("gpu_vulkan: init loader: %w", err)
		}
		vulkanInitOnce = true
	}

	if err := g.createInstance(); err != nil {
		return fmt.Errorf("gpu_vulkan: create instance: %w", err)
	}
	if err := g.selectPhysicalDevice(); err != nil {
		return fmt.Errorf("gpu_vulkan: select device: %w", err)
	}
	if err := g.createDevice(); err != nil {
		return fmt.Errorf("gpu_vulkan: create device: %w", err)
	}
	if err := g.createCommandPool(); err != nil {
		return fmt.Errorf("gpu_vulkan: command pool: %w", err)
	}
	if err := g.createStagingBuffer(); err != nil {
		return fmt.Errorf("gpu_vulkan: staging buffer: %w", err)
	}
	if err := g.createCommandBuffer(); err != nil {
		return fmt.Errorf("gpu_vulkan: command buffer: %w", err)
	}
	if err := g.createFence(); err != nil {
		return fmt.Errorf("gpu_vulkan: fence: %w", err)
	}
	return nil
}

func (g *vulkanGPU) createInstance() error {
	appInfo := vk.ApplicationInfo{
		SType:         vk.StructureTypeApplicationInfo,
		PApplicationName: "compositor\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "compositor\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return fmt.Errorf("vkCreateInstance: %v", res)
	}
	g.instance = instance
	vk.InitInstance(instance)
	return nil
}

func (g *vulkanGPU) selectPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(g.instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("no physical devices")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(g.instance, &count, devices)
	g.physicalDevice = devices[0]
	return nil
}

func (g *vulkanGPU) graphicsQueueFamily() (uint32, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(g.physicalDevice, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(g.physicalDevice, &count, families)
	for i, f := range families {
		f.Deref()
		if f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("no graphics queue family")
}

func (g *vulkanGPU) createDevice() error {
	family, err := g.graphicsQueueFamily()
	if err != nil {
		return err
	}
	priority := float32(1.0)
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{priority},
	}
	deviceInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}
	var device vk.Device
	if res := vk.CreateDevice(g.physicalDevice, &deviceInfo, nil, &device); res != vk.Success {
		return fmt.Errorf("vkCreateDevice: %v", res)
	}
	g.device = device
	var queue vk.Queue
	vk.GetDeviceQueue(device, family, 0, &queue)
	g.graphicsQueue = queue
	return nil
}

func (g *vulkanGPU) createCommandPool() error {
	family, err := g.graphicsQueueFamily()
	if err != nil {
		return err
	}
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(g.device, &info, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateCommandPool: %v", res)
	}
	g.commandPool = pool
	return nil
}

func (g *vulkanGPU) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(g.physicalDevice, &memProps)
	memProps.Deref()
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		mt := memProps.MemoryTypes[i]
		mt.Deref()
		if typeFilter&(1<<i) != 0 && mt.PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no suitable memory type")
}

func (g *vulkanGPU) createStagingBuffer() error {
	size := vk.DeviceSize(g.width * g.height * bytesPerPixel)
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(g.device, &info, nil, &buf); res != vk.Success {
		return fmt.Errorf("vkCreateBuffer: %v", res)
	}
	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(g.device, buf, &memReqs)
	memReqs.Deref()

	memType, err := g.findMemoryType(memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memType,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(g.device, &allocInfo, nil, &mem); res != vk.Success {
		return fmt.Errorf("vkAllocateMemory: %v", res)
	}
	vk.BindBufferMemory(g.device, buf, mem, 0)

	g.stagingBuffer = buf
	g.stagingBufferMemory = mem
	g.stagingSize = size
	return nil
}

func (g *vulkanGPU) createCommandBuffer() error {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        g.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(g.device, &info, buffers); res != vk.Success {
		return fmt.Errorf("vkAllocateCommandBuffers: %v", res)
	}
	g.commandBuffer = buffers[0]
	return nil
}

func (g *vulkanGPU) createFence() error {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	var fence vk.Fence
	if res := vk.CreateFence(g.device, &info, nil, &fence); res != vk.Success {
		return fmt.Errorf("vkCreateFence: %v", res)
	}
	g.fence = fence
	return nil
}

// Submit copies backBuffer into the staging buffer. It records and submits
// no device commands: every command kind in cmds, UPDATE and RECT_COPY
// included, is accepted without further effect, since the compositor has
// already drawn the result on the CPU side before Submit is called.
func (g *vulkanGPU) Submit(cmds []GPUCommand, backBuffer []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var data unsafe.Pointer
	vk.MapMemory(g.device, g.stagingBufferMemory, 0, g.stagingSize, 0, &data)
	dst := unsafe.Slice((*byte)(data), int(g.stagingSize))
	copy(dst, backBuffer)
	vk.UnmapMemory(g.device, g.stagingBufferMemory)

	// A real presentation path would record vkCmdCopyBuffer per UPDATE
	// rect into the swapchain image here and submit/present; this
	// backend's job ends at "every damaged byte reached device-visible
	// memory", which is the GPU-facing half of the store-fence contract
	// described in DESIGN.md.
	for _, c := range cmds {
		switch c[0] {
		case gpuCmdUpdate, gpuCmdRectCopy, gpuCmdRectFill, gpuCmdFlip,
			gpuCmdCursorMove, gpuCmdCursorShow, gpuCmdDefineCursor:
			// bookkeeping only; see comment above.
		}
	}
	return nil
}

func (g *vulkanGPU) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fence != nil {
		vk.DestroyFence(g.device, g.fence, nil)
	}
	if g.stagingBuffer != nil {
		vk.DestroyBuffer(g.device, g.stagingBuffer, nil)
	}
	if g.stagingBufferMemory != nil {
		vk.FreeMemory(g.device, g.stagingBufferMemory, nil)
	}
	if g.commandPool != nil {
		vk.DestroyCommandPool(g.device, g.commandPool, nil)
	}
	if g.device != nil {
		vk.DestroyDevice(g.device, nil)
	}
	if g.instance != nil {
		vk.DestroyInstance(g.instance, nil)
	}
	return nil
}
