package ppu

// TileData represents an 8x8 pixel tile
type TileData struct {
	LowByte  uint8 // Low bit plane
	HighByte uint8 // High bit plane
}

// SpriteData represents sprite attribute data
type SpriteData struct {
	Y          uint8 // Y position - 1
	TileIndex  uint8 // Tile index
	Attributes uint8 // Attributes (palette, priority, flip)
	X          uint8 // X position
}

// BackgroundTile represents a background tile with attributes
type BackgroundTile struct {
	TileIndex  uint8 // Tile index from nametable
	Attributes uint8 // Attribute data (palette selection)
	PatternLo  uint8 // Low bit plane
	PatternHi  uint8 // High bit plane
}

// SpriteInfo represents a sprite with its OAM index
type SpriteInfo struct {
	SpriteData
	OAMIndex int // Original index in OAM (for sprite 0 detection)
}

// Sprite attribute flags
const (
	SpriteFlipHorizontal = 0x40
	SpriteFlipVertical   = 0x80
	SpritePriority       = 0x20 // 0=front of background, 1=behind background
	SpritePaletteMask    = 0x03 // Palette selection (bits 0-1)
)

// fetchBackgroundTileWithScroll fetches tile data for background rendering,
// taking the scroll position entirely from the v register.
func (p *PPU) fetchBackgroundTileWithScroll(tileX, tileY, pixelY int) BackgroundTile {
	coarseX := int(p.v & 0x1F)
	coarseY := int((p.v >> 5) & 0x1F)

	scrolledTileX := coarseX + tileX

	fineY := int((p.v >> 12) & 0x07)
	effectiveTileY := tileY
	if (pixelY + fineY) >= 8 {
		effectiveTileY++
	}
	scrolledTileY := coarseY + effectiveTileY

	nameTableX := 0
	nameTableY := 0
	if scrolledTileX >= 32 {
		nameTableX = 1
		scrolledTileX -= 32
	}
	if scrolledTileY >= 30 {
		nameTableY = 1
		scrolledTileY -= 30
	}

	baseNTX := int(p.v>>10) & 1
	baseNTY := int(p.v>>11) & 1

	finalNTX := (baseNTX + nameTableX) % 2
	finalNTY := (baseNTY + nameTableY) % 2

	nameTableIndex := finalNTY*2 + finalNTX
	nameTableBase := uint16(0x2000) + uint16(nameTableIndex)*0x400
	nameTableAddr := nameTableBase + uint16(scrolledTileY*32+scrolledTileX)

	tileIndex := p.readVRAM(nameTableAddr)

	attrAddr := nameTableBase + 0x3C0 + uint16((scrolledTileY/4)*8+(scrolledTileX/4))
	attrByte := p.readVRAM(attrAddr)

	attrShift := ((scrolledTileY & 2) * 2) + ((scrolledTileX&2)/2)*2
	attributes := (attrByte >> attrShift) & 0x03

	patternTableBase := uint16(0x0000)
	if p.PPUCTRL&PPUCTRLBGTable != 0 {
		patternTableBase = 0x1000
	}

	tileAddr := patternTableBase + uint16(tileIndex)*16

	fineY = int((p.v >> 12) & 0x07)
	adjustedPixelY := (pixelY + fineY) % 8

	tileRow := uint16(adjustedPixelY)
	patternLoAddr := tileAddr + tileRow
	patternHiAddr := tileAddr + tileRow + 8

	patternLo := p.readVRAM(patternLoAddr)
	patternHi := p.readVRAM(patternHiAddr)

	return BackgroundTile{
		TileIndex:  tileIndex,
		Attributes: attributes,
		PatternLo:  patternLo,
		PatternHi:  patternHi,
	}
}

// getPixelColor extracts the 2-bit color index for a pixel within a tile
// (bit 7 of the pattern bytes is the leftmost pixel).
func getPixelColor(patternLo, patternHi uint8, pixelX int) uint8 {
	bitPos := 7 - pixelX
	lowBit := (patternLo >> bitPos) & 1
	highBit := (patternHi >> bitPos) & 1
	return (highBit << 1) | lowBit
}

// renderBackgroundPixel computes the color and 2-bit color index of a
// single background pixel, caching the current tile fetch across the 8
// pixels it covers.
func (p *PPU) renderBackgroundPixel(x, y int) (uint32, uint8) {
	if p.PPUMASK&PPUMASKBGShow == 0 {
		return p.PaletteManager.GetBackgroundColor(0, 0), 0
	}
	if x < 8 && p.PPUMASK&PPUMASKBGLeft == 0 {
		return p.PaletteManager.GetBackgroundColor(0, 0), 0
	}

	fineX := int(p.x)
	adjustedX := x + fineX

	tileX := adjustedX / 8
	pixelX := adjustedX % 8
	tileY := y / 8
	pixelY := y % 8

	if !p.bgTileCache.valid || p.bgTileCache.tileX != tileX || p.bgTileCache.tileY != tileY {
		tile := p.fetchBackgroundTileWithScroll(tileX, tileY, pixelY)
		p.bgTileCache = tileCache{
			valid:      true,
			attributes: tile.Attributes,
			patternLo:  tile.PatternLo,
			patternHi:  tile.PatternHi,
			tileX:      tileX,
			tileY:      tileY,
		}
	}

	colorIndex := getPixelColor(p.bgTileCache.patternLo, p.bgTileCache.patternHi, pixelX)
	return p.PaletteManager.GetBackgroundColor(p.bgTileCache.attributes, colorIndex), colorIndex
}

// evaluateSprites scans OAM for sprites visible on the given scanline,
// taking at most 8 and flagging overflow exactly like hardware (the ninth
// sprite found sets PPUSTATUSSpriteOverflow and rendering stops there).
func (p *PPU) evaluateSprites(scanline int) []SpriteInfo {
	var sprites []SpriteInfo
	spriteHeight := 8
	if p.PPUCTRL&PPUCTRLSpriteSize != 0 {
		spriteHeight = 16
	}

	for i := 0; i < 64; i++ {
		spriteY := int(p.OAM[i*4])

		if scanline >= spriteY && scanline < spriteY+spriteHeight {
			if len(sprites) >= 8 {
				p.PPUSTATUS |= PPUSTATUSSpriteOverflow
				break
			}
			sprites = append(sprites, SpriteInfo{
				SpriteData: SpriteData{
					Y:          p.OAM[i*4],
					TileIndex:  p.OAM[i*4+1],
					Attributes: p.OAM[i*4+2],
					X:          p.OAM[i*4+3],
				},
				OAMIndex: i,
			})
		}
	}

	return sprites
}

// renderSpritePixel returns the sprite color at (x, y), its priority (true
// means in front of the background), whether it came from sprite 0, and
// whether a sprite pixel was actually found there.
func (p *PPU) renderSpritePixel(x, y int, sprites []SpriteInfo) (color uint32, inFront bool, isSprite0 bool, hit bool) {
	if p.PPUMASK&PPUMASKSpriteShow == 0 {
		return 0, false, false, false
	}
	if x < 8 && p.PPUMASK&PPUMASKSpriteLeft == 0 {
		return 0, false, false, false
	}

	spriteHeight := 8
	if p.PPUCTRL&PPUCTRLSpriteSize != 0 {
		spriteHeight = 16
	}

	for _, sprite := range sprites {
		spriteX := int(sprite.X)
		spriteY := int(sprite.Y)

		if x < spriteX || x >= spriteX+8 || y < spriteY || y >= spriteY+spriteHeight {
			continue
		}

		pixelX := x - spriteX
		pixelY := y - spriteY

		if sprite.Attributes&SpriteFlipHorizontal != 0 {
			pixelX = 7 - pixelX
		}
		if sprite.Attributes&SpriteFlipVertical != 0 {
			pixelY = (spriteHeight - 1) - pixelY
		}

		patternTableBase := uint16(0x0000)
		if p.PPUCTRL&PPUCTRLSpriteTable != 0 {
			patternTableBase = 0x1000
		}

		var tileAddr uint16
		if spriteHeight == 16 {
			tileIndex := sprite.TileIndex & 0xFE
			if pixelY >= 8 {
				tileIndex++
				pixelY -= 8
			}
			if sprite.TileIndex&1 != 0 {
				patternTableBase = 0x1000
			} else {
				patternTableBase = 0x0000
			}
			tileAddr = patternTableBase + uint16(tileIndex)*16 + uint16(pixelY)
		} else {
			tileAddr = patternTableBase + uint16(sprite.TileIndex)*16 + uint16(pixelY)
		}

		patternLo := p.readVRAM(tileAddr)
		patternHi := p.readVRAM(tileAddr + 8)
		colorIndex := getPixelColor(patternLo, patternHi, pixelX)

		if colorIndex == 0 {
			continue // transparent, fall through to the next (lower priority) sprite
		}

		palette := sprite.Attributes & SpritePaletteMask
		color := p.PaletteManager.GetSpriteColor(palette, colorIndex)
		inFront := sprite.Attributes&SpritePriority == 0
		return color, inFront, sprite.OAMIndex == 0, true
	}

	return 0, false, false, false
}

// tileCache remembers the last background tile fetched so the 8 pixels it
// covers don't re-walk the nametable/attribute/pattern-table chain.
type tileCache struct {
	valid      bool
	attributes uint8
	patternLo  uint8
	patternHi  uint8
	tileX      int
	tileY      int
}

// renderPixel composites the background and sprite layers for the current
// (Cycle, Scanline) dot into FrameBuffer.
func (p *PPU) renderPixel() {
	if p.Scanline < 0 || p.Scanline >= 240 || p.Cycle < 0 || p.Cycle >= 256 {
		return
	}

	x := p.Cycle
	y := p.Scanline
	index := y*256 + x

	renderingEnabled := (p.PPUMASK & (PPUMASKBGShow | PPUMASKSpriteShow)) != 0
	if !renderingEnabled {
		p.FrameBuffer[index] = p.PaletteManager.GetBackgroundColor(0, 0)
		return
	}

	if p.Cycle == 0 {
		p.currentSprites = p.evaluateSprites(p.Scanline)
	}

	bgColor, bgColorIndex := p.renderBackgroundPixel(x, y)

	if len(p.currentSprites) == 0 {
		p.FrameBuffer[index] = bgColor
		return
	}

	spriteColor, inFront, isSprite0, hit := p.renderSpritePixel(x, y, p.currentSprites)

	finalColor := bgColor
	if hit {
		if inFront || bgColorIndex == 0 {
			finalColor = spriteColor
		}

		if isSprite0 && p.PPUSTATUS&PPUSTATUSSprite0Hit == 0 {
			spriteEnabled := p.PPUMASK&PPUMASKSpriteShow != 0
			bgEnabled := p.PPUMASK&PPUMASKBGShow != 0
			leftClipped := x < 8 && (p.PPUMASK&(PPUMASKSpriteLeft|PPUMASKBGLeft)) != (PPUMASKSpriteLeft|PPUMASKBGLeft)

			if bgColorIndex != 0 && spriteEnabled && bgEnabled && !leftClipped && x != 255 {
				p.PPUSTATUS |= PPUSTATUSSprite0Hit
			}
		}
	}

	p.FrameBuffer[index] = finalColor
}
