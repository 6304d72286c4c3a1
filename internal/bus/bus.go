// Package bus wires the CPU, PPU, APU stub, and cartridge together and drives them
// from a single master clock.
package bus

import (
	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// Bus is the system's root owner: it constructs the CPU and PPU and is the only
// component either one reaches the other through, avoiding the circular
// CPU-owns-bus/PPU-owns-bus references the reference implementation uses.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	masterClock uint64
	frameCount  uint64

	dmaTransfer bool
	dmaDummy    bool
	dmaPage     uint8
	dmaAddr     uint8
	dmaData     uint8

	nmiLine bool
}

// New creates a fully wired, freshly reset bus with no cartridge loaded.
func New() *Bus {
	b := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),
	}

	b.Memory = memory.New(b.PPU, b.APU, nil)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.PPU.SetNMICallback(b.raiseNMI)
	b.PPU.SetFrameCompleteCallback(b.onFrameComplete)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.Reset()
	return b
}

// Reset restores every component to its power-up state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.masterClock = 0
	b.frameCount = 0

	b.dmaTransfer = false
	b.dmaDummy = true
	b.dmaPage = 0
	b.dmaAddr = 0
	b.dmaData = 0
	b.nmiLine = false
}

func (b *Bus) raiseNMI()       { b.nmiLine = true }
func (b *Bus) onFrameComplete() { b.frameCount = b.PPU.GetFrameCount() }

// Clock advances the system by one master clock tick: the PPU always ticks; every
// third tick either services one phase of an in-flight OAM-DMA transfer or clocks
// the CPU once; a PPU-raised NMI edge is delivered to the CPU at the end of the
// tick it occurred on.
func (b *Bus) Clock() {
	b.PPU.Clock()

	if b.masterClock%3 == 0 {
		if b.dmaTransfer {
			if b.dmaDummy {
				if b.masterClock%2 == 1 {
					b.dmaDummy = false
				}
			} else if b.masterClock%2 == 0 {
				b.dmaData = b.Memory.Read(uint16(b.dmaPage)<<8 | uint16(b.dmaAddr))
			} else {
				b.PPU.WriteOAM(b.dmaAddr, b.dmaData)
				b.dmaAddr++
				if b.dmaAddr == 0 {
					b.dmaTransfer = false
					b.dmaDummy = true
				}
			}
		} else {
			b.CPU.Clock()
		}
	}

	if b.nmiLine {
		b.nmiLine = false
		b.CPU.NMI()
	}

	b.masterClock++
}

// TriggerOAMDMA begins a 513/514-cycle OAM-DMA transfer from the given CPU page.
// The exact byte-by-byte copy happens inside Clock's DMA phase, not here; this
// just arms the state machine, matching how $4014 behaves on real hardware.
func (b *Bus) TriggerOAMDMA(page uint8) {
	if b.dmaTransfer {
		return
	}
	b.dmaPage = page
	b.dmaAddr = 0
	b.dmaTransfer = true
}

// LoadCartridge installs a cartridge, rebuilding the memory decoders and
// resetting the CPU so it starts execution from the cartridge's reset vector.
func (b *Bus) LoadCartridge(cart memory.CartridgeInterface) {
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	mirrorMode := memory.MirrorHorizontal
	if c, ok := cart.(*cartridge.Cartridge); ok {
		switch c.GetMirrorMode() {
		case cartridge.MirrorHorizontal:
			mirrorMode = memory.MirrorHorizontal
		case cartridge.MirrorVertical:
			mirrorMode = memory.MirrorVertical
		case cartridge.MirrorSingleScreen0:
			mirrorMode = memory.MirrorSingleScreen0
		case cartridge.MirrorSingleScreen1:
			mirrorMode = memory.MirrorSingleScreen1
		case cartridge.MirrorFourScreen:
			mirrorMode = memory.MirrorFourScreen
		}
	}

	b.PPU.SetMemory(memory.NewPPUMemory(cart, mirrorMode))
	b.PPU.SetNMICallback(b.raiseNMI)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.CPU.Reset()
}

// RunCycles clocks the bus until the CPU has retired the given number of cycles.
func (b *Bus) RunCycles(cycles uint64) {
	target := b.CPU.Cycles() + cycles
	for b.CPU.Cycles() < target {
		b.Clock()
	}
}

// Frame clocks the bus through exactly one complete PPU frame.
func (b *Bus) Frame() {
	target := b.frameCount + 1
	for b.frameCount < target {
		b.Clock()
	}
}

// Run clocks the bus through the given number of complete frames.
func (b *Bus) Run(frames int) {
	target := b.frameCount + uint64(frames)
	for b.frameCount < target {
		b.Clock()
	}
}

// GetFrameBuffer returns the PPU's current 256x240 frame buffer.
func (b *Bus) GetFrameBuffer() []uint32 {
	frameBuffer := b.PPU.GetFrameBuffer()
	return frameBuffer[:]
}

func (b *Bus) GetCycleCount() uint64 { return b.CPU.Cycles() }
func (b *Bus) GetFrameCount() uint64 { return b.frameCount }
func (b *Bus) IsDMAInProgress() bool { return b.dmaTransfer }

func (b *Bus) isRenderingEnabled() bool {
	return b.PPU.IsRenderingEnabled()
}

func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

func (b *Bus) GetInputState() *input.InputState { return b.Input }

// GetCPUState snapshots CPU registers and flags for tests.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.CPU.Cycles(),
		Flags: CPUFlags{
			N: b.CPU.N, V: b.CPU.V, B: b.CPU.B,
			D: b.CPU.D, I: b.CPU.I, Z: b.CPU.Z, C: b.CPU.C,
		},
	}
}

type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetPPUState snapshots PPU timing state for tests.
func (b *Bus) GetPPUState() PPUState {
	return PPUState{
		Scanline:    b.PPU.GetScanline(),
		Cycle:       b.PPU.GetCycle(),
		FrameCount:  b.frameCount,
		VBlankFlag:  b.PPU.IsVBlank(),
		RenderingOn: b.isRenderingEnabled(),
	}
}

type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}
