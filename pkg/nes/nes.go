// Package nes wires the CPU, PPU, APU, input controller, and bus together
// into a single runnable console and drives them in lockstep each frame.
package nes

import (
	"github.com/yoshiomiyamae/gones/internal/bus"
	"github.com/yoshiomiyamae/gones/internal/config"
	"github.com/yoshiomiyamae/gones/internal/logger"
	"github.com/yoshiomiyamae/gones/pkg/apu"
	"github.com/yoshiomiyamae/gones/pkg/cartridge"
	"github.com/yoshiomiyamae/gones/pkg/cpu"
	"github.com/yoshiomiyamae/gones/pkg/input"
	"github.com/yoshiomiyamae/gones/pkg/ppu"
)

// NES represents a complete console: CPU, PPU, APU, controller, and the
// bus that routes memory accesses between them.
type NES struct {
	CPU       *cpu.CPU
	PPU       *ppu.PPU
	APU       *apu.APU
	Bus       *bus.Bus
	Cartridge *cartridge.Cartridge
	Input     *input.Controller

	Cycles uint64
	Frame  uint64

	log *logger.Logger
}

// New builds a console from cfg, creating the logger the config describes
// and wiring every component to the shared bus.
func New(cfg config.Config) (*NES, error) {
	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	log.EnableCPU(cfg.CPULog)
	log.EnablePPU(cfg.PPULog)
	log.EnableAPU(cfg.APULog)
	log.EnableMapper(cfg.MapperLog)

	return newWithLogger(log), nil
}

// newWithLogger builds a console around an already-constructed logger.
// Tests that don't care about config/log-file plumbing use this directly
// via NewForTest.
func newWithLogger(log *logger.Logger) *NES {
	n := &NES{log: log}

	n.Bus = bus.New(log)
	n.CPU = cpu.New(n.Bus, log)
	n.PPU = ppu.New(log)
	n.APU = apu.New(log)
	n.Input = input.New()

	n.Bus.SetPPU(n.PPU)
	n.Bus.SetAPU(n.APU)
	n.Bus.SetInput(n.Input)
	n.APU.SetMemory(n.Bus)

	return n
}

// NewForTest builds a console with a nil (discard) logger, for unit tests
// that don't want to touch the filesystem.
func NewForTest() *NES {
	return newWithLogger(nil)
}

// LoadCartridge attaches cart to the bus and PPU.
func (n *NES) LoadCartridge(cart *cartridge.Cartridge) {
	n.Cartridge = cart
	n.Bus.SetCartridge(cart)
	n.PPU.SetCartridge(cart)
}

// Reset resets every component to power-on state.
func (n *NES) Reset() {
	n.CPU.Reset()
	n.PPU.Reset()
	n.APU.Reset()
	n.Cycles = 0
	n.Frame = 0
}

// Step runs one CPU instruction and the corresponding PPU/APU/mapper
// cycles, servicing any interrupts the PPU, mapper, or APU raised along
// the way.
func (n *NES) Step() {
	cpuCycles := n.CPU.Step()

	for i := 0; i < cpuCycles*3; i++ {
		n.PPU.Step()

		if n.PPU.NMIRequested {
			n.CPU.TriggerNMI()
			n.PPU.NMIRequested = false
		}

		if n.PPU.IsMapperIRQPending() {
			n.CPU.TriggerIRQ()
			n.PPU.ClearMapperIRQ()
		}
	}

	for i := 0; i < cpuCycles; i++ {
		n.APU.Step()
	}

	// The APU's own IRQ sources (frame sequencer, DMC) are level-held
	// until cleared by a register access ($4015 read, $4010 write),
	// not by this poll, so the line is just mirrored onto the CPU here.
	if n.APU.IsIRQPending() {
		n.CPU.TriggerIRQ()
	} else {
		n.CPU.ClearIRQ()
	}

	n.Cycles += uint64(cpuCycles)
}

// StepFrame runs Step until the PPU completes a frame, with a generous
// safety cap so a hung game can't spin this forever.
func (n *NES) StepFrame() {
	const maxSteps = 50000

	for steps := 0; !n.PPU.FrameComplete; steps++ {
		n.Step()
		if steps > maxSteps {
			n.PPU.FrameComplete = true
			break
		}
	}

	n.PPU.FrameComplete = false
	n.Frame = n.PPU.Frame
}

// GetInput returns the input controller.
func (n *NES) GetInput() *input.Controller {
	return n.Input
}

// GetFramebuffer returns the current frame as packed RGBA bytes.
func (n *NES) GetFramebuffer() []uint8 {
	return n.PPU.GetFramebuffer()
}

// GetFrame returns the current frame number.
func (n *NES) GetFrame() uint64 {
	return n.Frame
}

// GetFramebufferRaw returns the current frame as 0xAARRGGBB pixels,
// without a copy to RGBA bytes.
func (n *NES) GetFramebufferRaw() []uint32 {
	return n.PPU.FrameBuffer[:]
}
