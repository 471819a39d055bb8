// Package bus implements the NES CPU memory map: 2KB of mirrored work RAM,
// PPU/APU register windows, the controller port, and the cartridge's PRG
// space, all behind a single Read/Write surface the CPU drives.
package bus

import (
	"github.com/yoshiomiyamae/gones/internal/logger"
)

// PPU is the subset of PPU behavior the bus needs to route $2000-$3FFF and
// OAM DMA through.
type PPU interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
}

// APU is the subset of APU behavior the bus routes $4000-$4017 through.
type APU interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
}

// Cartridge is the subset of cartridge behavior the bus routes
// $6000-$FFFF through.
type Cartridge interface {
	ReadPRG(addr uint16) uint8
	WritePRG(addr uint16, value uint8)
}

// Input is the subset of controller behavior the bus routes $4016 reads
// and writes through; $4017 reads and writes go to the APU.
type Input interface {
	Read() uint8
	Write(value uint8)
}

// Bus is the CPU's view of NES memory.
type Bus struct {
	RAM [2048]uint8

	// HighMem backs $6000-$FFFF when no cartridge is attached, so unit
	// tests can exercise the CPU without constructing a ROM.
	HighMem [0xA000]uint8

	PPU       PPU
	APU       APU
	Cartridge Cartridge
	Input     Input

	log *logger.Logger

	// openBus is the last value placed on the bus by a read or write.
	// Reads of unmapped addresses return it, matching how real NES
	// hardware floats rather than returning zero.
	openBus uint8

	// stallCycles accumulates CPU stall time requested by bus-side
	// effects (OAM DMA). The CPU drains it with TakeStall after every
	// instruction.
	stallCycles int
}

// New creates an empty Bus. Cartridge/PPU/APU/Input are wired in
// afterward via the Set* methods once every component exists.
func New(log *logger.Logger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) SetCartridge(cart Cartridge) { b.Cartridge = cart }
func (b *Bus) SetPPU(ppu PPU)              { b.PPU = ppu }
func (b *Bus) SetAPU(apu APU)              { b.APU = apu }
func (b *Bus) SetInput(input Input)        { b.Input = input }

// Read returns the byte at addr, applying the CPU memory map's mirroring
// and updating the open-bus latch.
func (b *Bus) Read(addr uint16) uint8 {
	var value uint8

	switch {
	case addr < 0x2000:
		value = b.RAM[addr&0x7FF]

	case addr < 0x4000:
		if b.PPU != nil {
			value = b.PPU.ReadRegister(0x2000 + (addr & 0x7))
		} else {
			value = b.openBus
		}

	case addr == 0x4016:
		if b.Input != nil {
			value = b.Input.Read()
		} else {
			value = b.openBus
		}

	case addr == 0x4017, addr < 0x4020:
		if b.APU != nil {
			value = b.APU.ReadRegister(addr)
		} else {
			value = b.openBus
		}

	case addr >= 0x6000:
		if b.Cartridge != nil {
			value = b.Cartridge.ReadPRG(addr)
		} else {
			value = b.HighMem[addr-0x6000]
		}

	default:
		value = b.openBus
	}

	b.openBus = value
	return value
}

// Write stores value at addr, applying the CPU memory map's mirroring.
func (b *Bus) Write(addr uint16, value uint8) {
	b.openBus = value

	switch {
	case addr < 0x2000:
		b.RAM[addr&0x7FF] = value

	case addr < 0x4000:
		if b.PPU != nil {
			b.PPU.WriteRegister(0x2000+(addr&0x7), value)
		}

	case addr == 0x4014:
		b.performOAMDMA(value)

	case addr == 0x4016:
		if b.Input != nil {
			b.Input.Write(value)
		}

	case addr < 0x4020:
		if b.APU != nil {
			b.APU.WriteRegister(addr, value)
		}

	case addr >= 0x6000:
		if b.Cartridge != nil {
			b.Cartridge.WritePRG(addr, value)
		} else {
			b.HighMem[addr-0x6000] = value
		}
	}
}

// Read16 reads a little-endian 16-bit value at addr.
func (b *Bus) Read16(addr uint16) uint16 {
	lo := uint16(b.Read(addr))
	hi := uint16(b.Read(addr + 1))
	return hi<<8 | lo
}

// performOAMDMA copies page*$100..page*$100+$FF into PPU OAM and schedules
// the 513/514-cycle CPU stall the real hardware incurs: 513 on an even CPU
// cycle, 514 on an odd one. The parity adjustment happens in TakeStall,
// where the CPU's own cycle count is available.
func (b *Bus) performOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		value := b.Read(base + uint16(i))
		if b.PPU != nil {
			b.PPU.WriteRegister(0x2004, value)
		}
	}
	b.log.Mapper("OAM DMA from page $%02X00", page)
	b.stallCycles += 513
}

// Snapshot is the serializable subset of bus state a save-state captures.
// PPU/APU/Input/Cartridge are snapshotted separately by their own owners;
// this covers only what the bus itself owns.
type Snapshot struct {
	RAM         [2048]uint8
	HighMem     [0xA000]uint8
	OpenBus     uint8
	StallCycles int
}

// Snapshot captures work RAM, the cartridge-less high-memory scratch area,
// and the open-bus latch.
func (b *Bus) Snapshot() Snapshot {
	return Snapshot{RAM: b.RAM, HighMem: b.HighMem, OpenBus: b.openBus, StallCycles: b.stallCycles}
}

// Restore overwrites the bus's own state from a previously-captured
// Snapshot. PPU/APU/Input/Cartridge wiring is untouched.
func (b *Bus) Restore(s Snapshot) {
	b.RAM = s.RAM
	b.HighMem = s.HighMem
	b.openBus = s.OpenBus
	b.stallCycles = s.StallCycles
}

// TakeStall returns and clears any CPU stall requested since the last
// call. cpuCycleOdd should reflect the parity of the CPU's total cycle
// count at the point the stall was incurred, to add the extra cycle real
// hardware spends on odd cycles.
func (b *Bus) TakeStall(cpuCycleOdd bool) int {
	stall := b.stallCycles
	b.stallCycles = 0
	if stall > 0 && cpuCycleOdd {
		stall++
	}
	return stall
}
