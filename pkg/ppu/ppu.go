package ppu

import (
	"github.com/yoshiomiyamae/gones/internal/logger"
)

// PPU represents the Picture Processing Unit
type PPU struct {
	// Registers
	PPUCTRL   uint8 // $2000
	PPUMASK   uint8 // $2001
	PPUSTATUS uint8 // $2002
	OAMADDR   uint8 // $2003
	OAMDATA   uint8 // $2004
	PPUSCROLL uint8 // $2005
	PPUADDR   uint8 // $2006
	PPUDATA   uint8 // $2007

	// Internal "loopy" registers
	v     uint16 // current VRAM address
	t     uint16 // temporary VRAM address / top-left onscreen tile
	x     uint8  // fine X scroll
	xTemp uint8  // fine X scroll latched until the next t->v copy
	w     uint8  // write toggle

	ScrollY uint8

	VRAM [0x4000]uint8
	OAM  [256]uint8

	FrameBuffer [256 * 240]uint32

	Cycle         int
	Scanline      int
	Frame         uint64
	FrameComplete bool

	NMIRequested bool

	PaletteManager *PaletteManager
	currentSprites []SpriteInfo
	bgTileCache    tileCache

	// readBuffer holds the PPUDATA read-ahead buffer for non-palette reads.
	readBuffer uint8

	// busLatch models the PPU's internal data bus: it holds the value of
	// the last byte written or read through any $2000-$2007 register, and
	// is what a read of a write-only register (or the unimplemented low
	// bits of PPUSTATUS) returns.
	busLatch uint8

	log *logger.Logger

	// Cartridge is the subset of *cartridge.Cartridge the PPU needs: CHR
	// access, mapper-driven IRQ polling, and nametable mirroring mode.
	Cartridge interface {
		ReadCHR(addr uint16) uint8
		WriteCHR(addr uint16, value uint8)
		Step()
		IsIRQPending() bool
		ClearIRQ()
		GetMirroring() int
	}
}

// PPUCTRL flags
const (
	PPUCTRLNameTable   = 0x03 // Base nametable address
	PPUCTRLIncrement   = 0x04 // VRAM address increment
	PPUCTRLSpriteTable = 0x08 // Sprite pattern table address
	PPUCTRLBGTable     = 0x10 // Background pattern table address
	PPUCTRLSpriteSize  = 0x20 // Sprite size
	PPUCTRLMasterSlave = 0x40 // PPU master/slave select
	PPUCTRLNMIEnable   = 0x80 // Generate NMI at VBlank
)

// PPUMASK flags
const (
	PPUMASKGreyscale      = 0x01 // Greyscale
	PPUMASKBGLeft         = 0x02 // Show background in leftmost 8 pixels
	PPUMASKSpriteLeft     = 0x04 // Show sprites in leftmost 8 pixels
	PPUMASKBGShow         = 0x08 // Show background
	PPUMASKSpriteShow     = 0x10 // Show sprites
	PPUMASKRedEmphasize   = 0x20 // Emphasize red
	PPUMASKGreenEmphasize = 0x40 // Emphasize green
	PPUMASKBlueEmphasize  = 0x80 // Emphasize blue
)

// PPUSTATUS flags
const (
	PPUSTATUSSpriteOverflow = 0x20 // More than 8 sprites on a scanline
	PPUSTATUSSprite0Hit     = 0x40 // Sprite 0 hit
	PPUSTATUSVBlank         = 0x80 // VBlank flag
)

// New creates a new PPU instance.
func New(log *logger.Logger) *PPU {
	return &PPU{
		Cycle:          0,
		Scanline:       0,
		PaletteManager: NewPaletteManager(),
		log:            log,
	}
}

// Reset resets the PPU to its power-up state.
func (p *PPU) Reset() {
	p.PPUCTRL = 0
	p.PPUMASK = 0
	p.PPUSTATUS = 0
	p.OAMADDR = 0
	p.v = 0
	p.t = 0
	p.x = 0
	p.w = 0
	p.Cycle = 0
	p.Scanline = 0
	p.FrameComplete = false
}

// SetCartridge sets the cartridge reference.
func (p *PPU) SetCartridge(cart interface {
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, value uint8)
	Step()
	IsIRQPending() bool
	ClearIRQ()
	GetMirroring() int
}) {
	p.Cartridge = cart
}

// Step advances the PPU by one dot.
func (p *PPU) Step() {
	p.PaletteManager.SetEmphasis(p.PPUMASK & 0xE0)

	if p.Scanline >= 0 && p.Scanline < 240 {
		p.renderPixel()
	}

	renderingEnabled := (p.PPUMASK & (PPUMASKBGShow | PPUMASKSpriteShow)) != 0

	// Horizontal scroll components (v's coarse X and nametable-X bit) are
	// copied from t at the start of every rendering scanline's tile
	// fetch, which starts at dot 257 of the PRECEDING scanline (including
	// the pre-render line).
	if renderingEnabled && p.Cycle == 257 && (p.Scanline >= -1 && p.Scanline < 240) {
		p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
		p.x = p.xTemp
	}

	// Vertical scroll components are copied from t throughout dots
	// 280-304 of the pre-render line.
	if renderingEnabled && p.Scanline == -1 && p.Cycle >= 280 && p.Cycle <= 304 {
		p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
	}

	p.Cycle++
	if p.Cycle >= 341 {
		p.Cycle = 0
		p.Scanline++

		if p.Cartridge != nil && p.Scanline >= 0 && p.Scanline < 240 {
			p.Cartridge.Step()
		}

		if p.Scanline == 241 {
			p.PPUSTATUS |= PPUSTATUSVBlank
			if p.PPUCTRL&PPUCTRLNMIEnable != 0 {
				p.NMIRequested = true
			}
		}

		if p.Scanline >= 261 {
			p.Scanline = -1
			p.FrameComplete = true
			p.Frame++

			p.PPUSTATUS &^= PPUSTATUSVBlank
			p.PPUSTATUS &^= PPUSTATUSSprite0Hit
			p.PPUSTATUS &^= PPUSTATUSSpriteOverflow
		}
	}
}

// ReadRegister reads from a CPU-visible PPU register ($2000-$2007).
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr {
	case 0x2002: // PPUSTATUS: bits 5-7 are live, bits 0-4 echo the bus latch
		value := (p.PPUSTATUS & 0xE0) | (p.busLatch & 0x1F)
		p.log.PPU("Read PPUSTATUS: $%02X", value)
		p.PPUSTATUS &^= PPUSTATUSVBlank
		p.w = 0
		p.busLatch = value
		return value
	case 0x2004: // OAMDATA
		value := p.OAM[p.OAMADDR]
		p.busLatch = value
		return value
	case 0x2007: // PPUDATA
		var value uint8

		if p.v >= 0x3F00 {
			value = p.readVRAM(p.v)
			p.readBuffer = p.readVRAM(p.v - 0x1000)
		} else {
			value = p.readBuffer
			p.readBuffer = p.readVRAM(p.v)
		}

		p.log.PPU("$2007 Read: vramAddr=$%04X, value=$%02X, buffer=$%02X", p.v, value, p.readBuffer)

		if p.PPUCTRL&PPUCTRLIncrement != 0 {
			p.v += 32
		} else {
			p.v += 1
		}
		p.busLatch = value
		return value
	}
	return p.busLatch
}

// WriteRegister writes to a CPU-visible PPU register ($2000-$2007).
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	p.busLatch = value

	switch addr {
	case 0x2000: // PPUCTRL
		oldValue := p.PPUCTRL
		p.PPUCTRL = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.log.PPU("Write PPUCTRL: $%02X -> $%02X (NMI=%v, BG_table=$%04X, Sprite_table=$%04X)",
			oldValue, value, (value&PPUCTRLNMIEnable) != 0,
			uint16(0x1000)*uint16((value&PPUCTRLBGTable)>>4),
			uint16(0x1000)*uint16((value&PPUCTRLSpriteTable)>>3))
	case 0x2001: // PPUMASK
		oldValue := p.PPUMASK
		p.PPUMASK = value
		p.log.PPU("Write PPUMASK: $%02X -> $%02X (BGShow=%v, SpriteShow=%v, Greyscale=%v)",
			oldValue, value, (value&PPUMASKBGShow) != 0, (value&PPUMASKSpriteShow) != 0, (value&PPUMASKGreyscale) != 0)
	case 0x2003: // OAMADDR
		p.OAMADDR = value
	case 0x2004: // OAMDATA
		p.OAM[p.OAMADDR] = value
		p.OAMADDR++
	case 0x2005: // PPUSCROLL
		p.log.PPU("Write PPUSCROLL: value=$%02X, w=%d, scanline=%d", value, p.w, p.Scanline)
		if p.w == 0 {
			p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
			p.xTemp = value & 0x07
			p.w = 1
		} else {
			p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
			p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
			p.w = 0
		}
	case 0x2006: // PPUADDR
		p.log.PPU("Write PPUADDR: value=$%02X, w=%d", value, p.w)
		if p.w == 0 {
			p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
			p.w = 1
		} else {
			p.t = (p.t & 0xFF00) | uint16(value)
			p.v = p.t
			p.w = 0
		}
	case 0x2007: // PPUDATA
		p.log.PPU("Write $2007: vramAddr=$%04X, value=$%02X", p.v, value)
		p.writeVRAM(p.v, value)
		if p.PPUCTRL&PPUCTRLIncrement != 0 {
			p.v += 32
		} else {
			p.v += 1
		}
	}
}

// readVRAM reads from the PPU's 14-bit address space.
func (p *PPU) readVRAM(addr uint16) uint8 {
	addr = addr % 0x4000

	switch {
	case addr < 0x2000:
		if p.Cartridge != nil {
			return p.Cartridge.ReadCHR(addr)
		}
		return 0
	case addr < 0x3F00:
		return p.readNameTable(addr)
	default:
		return p.PaletteManager.ReadPalette(uint8(addr & 0x1F))
	}
}

// writeVRAM writes to the PPU's 14-bit address space.
func (p *PPU) writeVRAM(addr uint16, value uint8) {
	addr = addr % 0x4000

	switch {
	case addr < 0x2000:
		if p.Cartridge != nil {
			p.Cartridge.WriteCHR(addr, value)
		}
	case addr < 0x3F00:
		p.writeNameTable(addr, value)
	default:
		p.PaletteManager.WritePalette(uint8(addr&0x1F), value)
	}
}

// GetFramebuffer returns the current frame buffer as packed RGBA bytes.
func (p *PPU) GetFramebuffer() []uint8 {
	rgba := make([]uint8, 256*240*4)

	for i, pixel := range p.FrameBuffer {
		r := uint8((pixel >> 16) & 0xFF)
		g := uint8((pixel >> 8) & 0xFF)
		b := uint8(pixel & 0xFF)
		a := uint8((pixel >> 24) & 0xFF)

		rgba[i*4+0] = r
		rgba[i*4+1] = g
		rgba[i*4+2] = b
		rgba[i*4+3] = a
	}

	return rgba
}

func (p *PPU) readNameTable(addr uint16) uint8 {
	return p.VRAM[p.mirrorNameTableAddress(addr)]
}

func (p *PPU) writeNameTable(addr uint16, value uint8) {
	p.VRAM[p.mirrorNameTableAddress(addr)] = value
}

// mirrorNameTableAddress maps a $2000-$2FFF nametable address down to its
// backing 2KB of VRAM, according to the cartridge's mirroring mode.
func (p *PPU) mirrorNameTableAddress(addr uint16) uint16 {
	offset := addr - 0x2000

	if p.Cartridge == nil {
		return p.applyHorizontalMirroring(offset) + 0x2000
	}

	switch p.Cartridge.GetMirroring() {
	case 0: // Horizontal
		return p.applyHorizontalMirroring(offset) + 0x2000
	case 1: // Vertical
		return p.applyVerticalMirroring(offset) + 0x2000
	case 2: // Single-screen, lower bank ($2000-$23FF repeated)
		return (offset & 0x3FF) + 0x2000
	case 3: // Single-screen, upper bank ($2400-$27FF repeated)
		return (offset & 0x3FF) + 0x2400
	default:
		return addr
	}
}

func (p *PPU) applyHorizontalMirroring(offset uint16) uint16 {
	return (offset & 0x3FF) | ((offset & 0x800) >> 1)
}

func (p *PPU) applyVerticalMirroring(offset uint16) uint16 {
	return offset & 0x7FF
}

// IsMapperIRQPending reports whether the cartridge's mapper has an IRQ
// pending (used by mappers with scanline counters; none of this build's
// mappers raise one, so this is always false, but nes.go polls it every
// PPU step so a future mapper can be added without touching that loop).
func (p *PPU) IsMapperIRQPending() bool {
	if p.Cartridge != nil {
		return p.Cartridge.IsIRQPending()
	}
	return false
}

// ClearMapperIRQ clears any mapper-raised IRQ.
func (p *PPU) ClearMapperIRQ() {
	if p.Cartridge != nil {
		p.Cartridge.ClearIRQ()
	}
}

// Snapshot is the serializable subset of PPU state a save-state captures.
// The per-tile background cache and secondary-OAM sprite list are not
// included: both are pure caches rebuilt from VRAM/OAM as soon as the next
// pixel renders, so restoring them isn't necessary for resumed execution
// to match.
type Snapshot struct {
	PPUCTRL, PPUMASK, PPUSTATUS, OAMADDR uint8
	V, T                                 uint16
	X, XTemp, W                          uint8
	ScrollY                              uint8
	VRAM                                 [0x4000]uint8
	OAM                                  [256]uint8
	FrameBuffer                          [256 * 240]uint32
	Cycle, Scanline                      int
	Frame                                uint64
	FrameComplete, NMIRequested          bool
	ReadBuffer, BusLatch                 uint8
}

// Snapshot captures the PPU's registers, internal scroll latches, VRAM,
// OAM, and timing position.
func (p *PPU) Snapshot() Snapshot {
	return Snapshot{
		PPUCTRL: p.PPUCTRL, PPUMASK: p.PPUMASK, PPUSTATUS: p.PPUSTATUS, OAMADDR: p.OAMADDR,
		V: p.v, T: p.t, X: p.x, XTemp: p.xTemp, W: p.w,
		ScrollY:       p.ScrollY,
		VRAM:          p.VRAM,
		OAM:           p.OAM,
		FrameBuffer:   p.FrameBuffer,
		Cycle:         p.Cycle,
		Scanline:      p.Scanline,
		Frame:         p.Frame,
		FrameComplete: p.FrameComplete,
		NMIRequested:  p.NMIRequested,
		ReadBuffer:    p.readBuffer,
		BusLatch:      p.busLatch,
	}
}

// Restore overwrites the PPU's state from a previously-captured Snapshot.
func (p *PPU) Restore(s Snapshot) {
	p.PPUCTRL, p.PPUMASK, p.PPUSTATUS, p.OAMADDR = s.PPUCTRL, s.PPUMASK, s.PPUSTATUS, s.OAMADDR
	p.v, p.t, p.x, p.xTemp, p.w = s.V, s.T, s.X, s.XTemp, s.W
	p.ScrollY = s.ScrollY
	p.VRAM = s.VRAM
	p.OAM = s.OAM
	p.FrameBuffer = s.FrameBuffer
	p.Cycle, p.Scanline, p.Frame = s.Cycle, s.Scanline, s.Frame
	p.FrameComplete, p.NMIRequested = s.FrameComplete, s.NMIRequested
	p.readBuffer, p.busLatch = s.ReadBuffer, s.BusLatch
	p.bgTileCache = tileCache{}
	p.currentSprites = nil
}
