// Package cpu implements the NES's Ricoh 2A03 — a MOS 6502 core with the
// decimal mode disabled in hardware — including its documented instruction
// set and the unofficial opcodes real cartridges rely on.
package cpu

import (
	"github.com/yoshiomiyamae/gones/internal/bus"
	"github.com/yoshiomiyamae/gones/internal/logger"
)

// CPU represents the 6502 processor.
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16
	P  uint8

	Bus *bus.Bus
	log *logger.Logger

	// Cycles is the running total of CPU cycles since Reset, used for
	// OAM-DMA stall parity and APU/PPU synchronization.
	Cycles int

	NMI bool
	IRQ bool
}

// Status flag bits.
const (
	FlagCarry     = 1 << 0 // C
	FlagZero      = 1 << 1 // Z
	FlagInterrupt = 1 << 2 // I
	FlagDecimal   = 1 << 3 // D
	FlagBreak     = 1 << 4 // B
	FlagUnused    = 1 << 5 // -
	FlagOverflow  = 1 << 6 // V
	FlagNegative  = 1 << 7 // N
)

// New creates a CPU driven by the given bus. log may be nil.
func New(b *bus.Bus, log *logger.Logger) *CPU {
	return &CPU{
		Bus: b,
		log: log,
		SP:  0xFD,
		P:   FlagUnused | FlagInterrupt,
	}
}

// Reset resets the CPU to power-on state and loads PC from the reset
// vector.
func (c *CPU) Reset() {
	c.A = 0
	c.X = 0
	c.Y = 0
	c.SP = 0xFD
	c.P = FlagUnused | FlagInterrupt
	c.PC = c.read16(0xFFFC)
	c.Cycles = 0
}

// Step services pending interrupts, executes one instruction, and returns
// the number of cycles it took (including any OAM-DMA stall incurred along
// the way).
func (c *CPU) Step() int {
	if c.NMI {
		c.NMI = false
		c.log.CPU("NMI at PC=$%04X", c.PC)
		c.handleNMI()
		c.Cycles += 7
		return 7
	}

	if c.IRQ && !c.getFlag(FlagInterrupt) {
		c.log.CPU("IRQ at PC=$%04X", c.PC)
		c.handleIRQ()
		c.Cycles += 7
		return 7
	}

	opcode := c.read(c.PC)
	c.PC++

	cycles := c.executeInstruction(opcode)
	c.Cycles += cycles

	if stall := c.Bus.TakeStall(c.Cycles%2 == 1); stall > 0 {
		c.Cycles += stall
		cycles += stall
	}

	return cycles
}

// executeInstruction is implemented in instructions.go.

func (c *CPU) handleNMI() {
	c.push16(c.PC)
	c.push(c.P &^ FlagBreak | FlagUnused)
	c.setFlag(FlagInterrupt, true)
	c.PC = c.read16(0xFFFA)
}

func (c *CPU) handleIRQ() {
	c.push16(c.PC)
	c.push(c.P &^ FlagBreak | FlagUnused)
	c.setFlag(FlagInterrupt, true)
	c.PC = c.read16(0xFFFE)
}

func (c *CPU) getFlag(flag uint8) bool {
	return c.P&flag != 0
}

func (c *CPU) setFlag(flag uint8, value bool) {
	if value {
		c.P |= flag
	} else {
		c.P &^= flag
	}
}

func (c *CPU) read(addr uint16) uint8 {
	return c.Bus.Read(addr)
}

func (c *CPU) write(addr uint16, value uint8) {
	c.Bus.Write(addr, value)
}

func (c *CPU) read16(addr uint16) uint16 {
	return c.Bus.Read16(addr)
}

func (c *CPU) push(value uint8) {
	c.write(0x100|uint16(c.SP), value)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.read(0x100 | uint16(c.SP))
}

func (c *CPU) push16(value uint16) {
	c.push(uint8(value >> 8))
	c.push(uint8(value & 0xFF))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return hi<<8 | lo
}

// TriggerNMI raises the non-maskable interrupt line.
func (c *CPU) TriggerNMI() {
	c.NMI = true
}

// TriggerIRQ raises the maskable interrupt line. It stays asserted until
// the device that raised it clears it (mappers and the APU frame/DMC IRQ
// hold this line level, not edge-triggered).
func (c *CPU) TriggerIRQ() {
	c.IRQ = true
}

// ClearIRQ lowers the maskable interrupt line.
func (c *CPU) ClearIRQ() {
	c.IRQ = false
}

// GetFlag returns the state of a flag (exported for tests).
func (c *CPU) GetFlag(flag uint8) bool {
	return c.getFlag(flag)
}

// Snapshot is the serializable subset of CPU state a save-state captures.
type Snapshot struct {
	A, X, Y, SP, P uint8
	PC             uint16
	Cycles         int
	NMI, IRQ       bool
}

// Snapshot captures the CPU's current register and interrupt-line state.
func (c *CPU) Snapshot() Snapshot {
	return Snapshot{
		A: c.A, X: c.X, Y: c.Y, SP: c.SP, P: c.P, PC: c.PC,
		Cycles: c.Cycles, NMI: c.NMI, IRQ: c.IRQ,
	}
}

// Restore overwrites the CPU's state from a previously-captured Snapshot.
func (c *CPU) Restore(s Snapshot) {
	c.A, c.X, c.Y, c.SP, c.P, c.PC = s.A, s.X, s.Y, s.SP, s.P, s.PC
	c.Cycles, c.NMI, c.IRQ = s.Cycles, s.NMI, s.IRQ
}
