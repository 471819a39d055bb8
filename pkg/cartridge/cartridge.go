// Package cartridge parses iNES ROM images and dispatches PRG/CHR
// accesses to the cartridge's mapper.
package cartridge

import (
	"errors"
	"fmt"
	"io"

	"github.com/yoshiomiyamae/gones/pkg/cartridge/mapper"
)

// Cartridge represents a NES cartridge: its ROM/RAM contents, parsed
// header, and the mapper that governs how the CPU/PPU address them.
type Cartridge struct {
	PRGROM []uint8
	CHRROM []uint8

	PRGRAM []uint8
	CHRRAM []uint8

	Header iNESHeader

	Mapper mapper.Mapper

	Mirroring MirroringMode

	// Battery is true when the cartridge has battery-backed PRG RAM that
	// should be persisted to a .sav file between sessions.
	Battery bool
}

// iNESHeader represents the 16-byte iNES 1.0 file header.
type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8
	CHRROMSize uint8
	Flags6     uint8
	Flags7     uint8
	Flags8     uint8
	Flags9     uint8
	Flags10    uint8
	Padding    [5]uint8
}

// MirroringMode represents the nametable mirroring mode.
type MirroringMode int

const (
	MirroringHorizontal MirroringMode = iota
	MirroringVertical
	MirroringFourScreen
	MirroringSingleScreenA
	MirroringSingleScreenB
)

// Sentinel errors matching the emulator's error taxonomy: a malformed
// file, a mapper/feature this build doesn't implement, and (returned by
// the rom package) I/O failures reading the file itself.
var (
	ErrBadROM             = errors.New("cartridge: bad ROM image")
	ErrUnsupportedMapper  = errors.New("cartridge: unsupported mapper")
	ErrUnsupportedFeature = errors.New("cartridge: unsupported feature")
)

// LoadFromReader loads a cartridge from an iNES file.
func LoadFromReader(reader io.Reader) (*Cartridge, error) {
	cart := &Cartridge{}

	if err := cart.readHeader(reader); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrBadROM, err)
	}

	if string(cart.Header.Magic[:]) != "NES\x1A" {
		return nil, fmt.Errorf("%w: bad magic number", ErrBadROM)
	}

	if cart.Header.Flags6&0x04 != 0 {
		trainer := make([]uint8, 512)
		if _, err := io.ReadFull(reader, trainer); err != nil {
			return nil, fmt.Errorf("%w: reading trainer: %v", ErrBadROM, err)
		}
	}

	prgSize := int(cart.Header.PRGROMSize) * 16384
	if prgSize == 0 {
		return nil, fmt.Errorf("%w: zero-size PRG ROM", ErrBadROM)
	}
	cart.PRGROM = make([]uint8, prgSize)
	if _, err := io.ReadFull(reader, cart.PRGROM); err != nil {
		return nil, fmt.Errorf("%w: reading PRG ROM: %v", ErrBadROM, err)
	}

	chrSize := int(cart.Header.CHRROMSize) * 8192
	if chrSize > 0 {
		cart.CHRROM = make([]uint8, chrSize)
		if _, err := io.ReadFull(reader, cart.CHRROM); err != nil {
			return nil, fmt.Errorf("%w: reading CHR ROM: %v", ErrBadROM, err)
		}
	} else {
		cart.CHRRAM = make([]uint8, 8192)
	}

	cart.Battery = cart.Header.Flags6&0x02 != 0
	if cart.Battery {
		cart.PRGRAM = make([]uint8, 8192)
	}

	switch {
	case cart.Header.Flags6&0x08 != 0:
		cart.Mirroring = MirroringFourScreen
	case cart.Header.Flags6&0x01 != 0:
		cart.Mirroring = MirroringVertical
	default:
		cart.Mirroring = MirroringHorizontal
	}
	if cart.Mirroring == MirroringFourScreen {
		return nil, fmt.Errorf("%w: four-screen mirroring", ErrUnsupportedFeature)
	}

	mapperNumber := (cart.Header.Flags6 >> 4) | (cart.Header.Flags7 & 0xF0)

	mapperData := &mapper.CartridgeData{
		PRGROM: cart.PRGROM,
		CHRROM: cart.CHRROM,
		PRGRAM: cart.PRGRAM,
		CHRRAM: cart.CHRRAM,
	}

	m, err := mapper.NewMapper(mapperNumber, mapperData)
	if err != nil {
		return nil, fmt.Errorf("%w: mapper %d: %v", ErrUnsupportedMapper, mapperNumber, err)
	}
	cart.Mapper = m

	return cart, nil
}

func (c *Cartridge) readHeader(reader io.Reader) error {
	headerBytes := make([]uint8, 16)
	if _, err := io.ReadFull(reader, headerBytes); err != nil {
		return err
	}

	copy(c.Header.Magic[:], headerBytes[0:4])
	c.Header.PRGROMSize = headerBytes[4]
	c.Header.CHRROMSize = headerBytes[5]
	c.Header.Flags6 = headerBytes[6]
	c.Header.Flags7 = headerBytes[7]
	c.Header.Flags8 = headerBytes[8]
	c.Header.Flags9 = headerBytes[9]
	c.Header.Flags10 = headerBytes[10]
	copy(c.Header.Padding[:], headerBytes[11:16])

	return nil
}

// ReadPRG reads from CPU-visible PRG space ($6000-$FFFF).
func (c *Cartridge) ReadPRG(addr uint16) uint8 {
	if c.Mapper != nil {
		return c.Mapper.ReadPRG(addr)
	}
	return 0
}

// WritePRG writes to CPU-visible PRG space ($6000-$FFFF).
func (c *Cartridge) WritePRG(addr uint16, value uint8) {
	if c.Mapper != nil {
		c.Mapper.WritePRG(addr, value)
	}
}

// ReadCHR reads from PPU-visible pattern table space ($0000-$1FFF).
func (c *Cartridge) ReadCHR(addr uint16) uint8 {
	if c.Mapper != nil {
		return c.Mapper.ReadCHR(addr)
	}
	return 0
}

// WriteCHR writes to PPU-visible pattern table space ($0000-$1FFF).
func (c *Cartridge) WriteCHR(addr uint16, value uint8) {
	if c.Mapper != nil {
		c.Mapper.WriteCHR(addr, value)
	}
}

// Step advances any mapper-internal timing (none of the five supported
// mappers need this, but the interface is kept so a future mapper with a
// scanline counter can be added without touching call sites).
func (c *Cartridge) Step() {
	if c.Mapper != nil {
		c.Mapper.Step()
	}
}

// IsIRQPending reports whether the mapper has an IRQ pending.
func (c *Cartridge) IsIRQPending() bool {
	if c.Mapper != nil {
		return c.Mapper.IsIRQPending()
	}
	return false
}

// ClearIRQ clears any mapper-raised IRQ.
func (c *Cartridge) ClearIRQ() {
	if c.Mapper != nil {
		c.Mapper.ClearIRQ()
	}
}

// SnapshotMapperState returns the mapper's bank-select/shift-register
// state, or nil for mappers (NROM) with none.
func (c *Cartridge) SnapshotMapperState() interface{} {
	if s, ok := c.Mapper.(mapper.StateSnapshotter); ok {
		return s.SnapshotState()
	}
	return nil
}

// RestoreMapperState restores mapper state previously returned by
// SnapshotMapperState. A nil state, or a mapper with none to restore, is a
// no-op.
func (c *Cartridge) RestoreMapperState(state interface{}) {
	if state == nil {
		return
	}
	if s, ok := c.Mapper.(mapper.StateSnapshotter); ok {
		s.RestoreState(state)
	}
}

// GetMirroring returns the current nametable mirroring mode: 0=horizontal,
// 1=vertical, 2=single-screen A, 3=single-screen B. Mappers that can
// switch mirroring at runtime (MMC1) are consulted first; otherwise the
// header-derived mode is used.
func (c *Cartridge) GetMirroring() int {
	if m, ok := c.Mapper.(interface{ GetMirroringMode() uint8 }); ok {
		switch m.GetMirroringMode() {
		case 0:
			return 2 // one-screen, lower bank
		case 1:
			return 3 // one-screen, upper bank
		case 2:
			return 1 // vertical
		default:
			return 0 // horizontal
		}
	}

	switch c.Mirroring {
	case MirroringVertical:
		return 1
	case MirroringSingleScreenA:
		return 2
	case MirroringSingleScreenB:
		return 3
	default:
		return 0
	}
}
