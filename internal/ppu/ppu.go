// Package ppu implements the 2C02 Picture Processing Unit for the NES.
package ppu

import "gones/internal/memory"

// spriteEntry is one of the (up to) eight sprites selected for the current
// scanline, copied out of OAM during evaluation at dot 257.
type spriteEntry struct {
	y         uint8
	id        uint8
	attribute uint8
	x         uint8
}

// PPU is a cycle-accurate 2C02: a scanline/dot state machine driving an 8-cycle
// background fetch cadence into a shift-register pipeline, plus a per-scanline
// sprite evaluation and shifter pipeline for the foreground layer.
type PPU struct {
	ppuCtrl   uint8
	ppuMask   uint8
	ppuStatus uint8
	oamAddr   uint8

	v uint16 // current VRAM address (loopy v)
	t uint16 // temporary VRAM address (loopy t)
	x uint8  // fine X scroll
	w bool   // write toggle latch

	memory *memory.PPUMemory

	scanline int
	cycle    int

	frameCount uint64
	oddFrame   bool
	readBuffer uint8

	oam [256]uint8

	bgNextTileID     uint8
	bgNextTileAttrib uint8
	bgNextTileLSB    uint8
	bgNextTileMSB    uint8

	bgShifterPatternLo uint16
	bgShifterPatternHi uint16
	bgShifterAttribLo  uint16
	bgShifterAttribHi  uint16

	spriteScanline          [8]spriteEntry
	spriteCount             uint8
	spriteShifterPatternLo  [8]uint8
	spriteShifterPatternHi  [8]uint8
	spriteZeroHitPossible   bool
	spriteZeroBeingRendered bool

	frameBuffer [256 * 240]uint32

	nmiCallback           func()
	frameCompleteCallback func()

	backgroundEnabled  bool
	spritesEnabled     bool
	renderBGLeft       bool
	renderSpritesLeft  bool
	spriteSize16       bool

	cycleCount uint64
}

// New creates a PPU positioned at the pre-render scanline.
func New() *PPU {
	return &PPU{scanline: -1}
}

// Reset restores power-up register state. Per spec the VBL flag begins set.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0xA0
	p.oamAddr = 0

	p.v, p.t = 0, 0
	p.x = 0
	p.w = false

	p.scanline = -1
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.readBuffer = 0

	p.bgNextTileID, p.bgNextTileAttrib, p.bgNextTileLSB, p.bgNextTileMSB = 0, 0, 0, 0
	p.bgShifterPatternLo, p.bgShifterPatternHi = 0, 0
	p.bgShifterAttribLo, p.bgShifterAttribHi = 0, 0

	p.spriteCount = 0
	p.spriteZeroHitPossible = false
	p.spriteZeroBeingRendered = false

	p.backgroundEnabled = false
	p.spritesEnabled = false
	p.renderBGLeft = false
	p.renderSpritesLeft = false
	p.spriteSize16 = false

	p.cycleCount = 0

	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0
	}
}

func (p *PPU) SetMemory(mem *memory.PPUMemory)           { p.memory = mem }
func (p *PPU) SetNMICallback(callback func())            { p.nmiCallback = callback }
func (p *PPU) SetFrameCompleteCallback(callback func()) { p.frameCompleteCallback = callback }

// ReadRegister serves a CPU read of $2000-$2007.
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		status := p.ppuStatus
		p.ppuStatus &= 0x7F // clear VBL
		p.w = false
		return status
	case 0x2004:
		return p.oam[p.oamAddr]
	case 0x2007:
		return p.readPPUData()
	default:
		return p.ppuStatus & 0x1F
	}
}

// WriteRegister serves a CPU write of $2000-$2007.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000:
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.updateRenderingFlags()
		p.checkNMI()
	case 0x2001:
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writePPUScroll(value)
	case 0x2006:
		p.writePPUAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// WriteOAM writes one byte of OAM directly, used by the bus's OAM-DMA engine.
func (p *PPU) WriteOAM(address uint8, value uint8) { p.oam[address] = value }

func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = (p.ppuMask & 0x08) != 0
	p.spritesEnabled = (p.ppuMask & 0x10) != 0
	p.renderBGLeft = (p.ppuMask & 0x02) != 0
	p.renderSpritesLeft = (p.ppuMask & 0x04) != 0
	p.spriteSize16 = (p.ppuCtrl & 0x20) != 0
}

func (p *PPU) checkNMI() {
	if (p.ppuCtrl&0x80 != 0) && (p.ppuStatus&0x80 != 0) && p.nmiCallback != nil {
		p.nmiCallback()
	}
}

func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

func (p *PPU) readPPUData() uint8 {
	var data uint8
	if p.memory == nil {
		data = 0
	} else if p.v >= 0x3F00 {
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}
	p.advanceVRAMAddress()
	return data
}

func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.advanceVRAMAddress()
}

func (p *PPU) advanceVRAMAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// --- loopy v/t helpers ---

func (p *PPU) coarseX() uint16  { return p.v & 0x001F }
func (p *PPU) coarseY() uint16  { return (p.v >> 5) & 0x001F }
func (p *PPU) fineY() uint16    { return (p.v >> 12) & 0x0007 }
func (p *PPU) nametable() uint16 { return (p.v >> 10) & 0x0003 }

func (p *PPU) incrementScrollX() {
	if !p.renderingEnabled() {
		return
	}
	if (p.v & 0x001F) == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementScrollY() {
	if !p.renderingEnabled() {
		return
	}
	if (p.v & 0x7000) != 0x7000 {
		p.v += 0x1000
	} else {
		p.v &^= 0x7000
		y := (p.v & 0x03E0) >> 5
		switch y {
		case 29:
			y = 0
			p.v ^= 0x0800
		case 31:
			y = 0
		default:
			y++
		}
		p.v = (p.v &^ 0x03E0) | (y << 5)
	}
}

func (p *PPU) transferAddressX() {
	if !p.renderingEnabled() {
		return
	}
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

func (p *PPU) transferAddressY() {
	if !p.renderingEnabled() {
		return
	}
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}

func (p *PPU) renderingEnabled() bool {
	return p.backgroundEnabled || p.spritesEnabled
}

func (p *PPU) loadBackgroundShifters() {
	p.bgShifterPatternLo = (p.bgShifterPatternLo & 0xFF00) | uint16(p.bgNextTileLSB)
	p.bgShifterPatternHi = (p.bgShifterPatternHi & 0xFF00) | uint16(p.bgNextTileMSB)

	var lo, hi uint16
	if p.bgNextTileAttrib&0x01 != 0 {
		lo = 0xFF
	}
	if p.bgNextTileAttrib&0x02 != 0 {
		hi = 0xFF
	}
	p.bgShifterAttribLo = (p.bgShifterAttribLo & 0xFF00) | lo
	p.bgShifterAttribHi = (p.bgShifterAttribHi & 0xFF00) | hi
}

func (p *PPU) updateShifters() {
	if p.backgroundEnabled {
		p.bgShifterPatternLo <<= 1
		p.bgShifterPatternHi <<= 1
		p.bgShifterAttribLo <<= 1
		p.bgShifterAttribHi <<= 1
	}

	if p.spritesEnabled && p.cycle >= 1 && p.cycle < 258 {
		for i := uint8(0); i < p.spriteCount; i++ {
			if p.spriteScanline[i].x > 0 {
				p.spriteScanline[i].x--
			} else {
				p.spriteShifterPatternLo[i] <<= 1
				p.spriteShifterPatternHi[i] <<= 1
			}
		}
	}
}

// Clock advances the PPU by one dot. The bus calls this once per master clock
// tick; CPU clocking is a separate, slower cadence driven by the bus.
func (p *PPU) Clock() {
	p.cycleCount++

	if p.scanline >= -1 && p.scanline < 240 {
		if p.scanline == -1 && p.cycle == 1 {
			p.ppuStatus &= 0x1F // clear VBL, sprite 0 hit, sprite overflow
		}

		// Without memory attached only timing and status flags advance: no fetches, no pixels.
		if p.memory != nil && ((p.cycle >= 2 && p.cycle < 258) || (p.cycle >= 321 && p.cycle < 338)) {
			p.updateShifters()

			switch (p.cycle - 1) % 8 {
			case 0:
				p.loadBackgroundShifters()
				p.bgNextTileID = p.memory.Read(0x2000 | (p.v & 0x0FFF))
			case 2:
				addr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
				attrib := p.memory.Read(addr)
				if p.coarseY()&0x02 != 0 {
					attrib >>= 4
				}
				if p.coarseX()&0x02 != 0 {
					attrib >>= 2
				}
				p.bgNextTileAttrib = attrib & 0x03
			case 4:
				base := uint16(0)
				if p.ppuCtrl&0x10 != 0 {
					base = 0x1000
				}
				p.bgNextTileLSB = p.memory.Read(base + uint16(p.bgNextTileID)*16 + p.fineY())
			case 6:
				base := uint16(0)
				if p.ppuCtrl&0x10 != 0 {
					base = 0x1000
				}
				p.bgNextTileMSB = p.memory.Read(base + uint16(p.bgNextTileID)*16 + p.fineY() + 8)
			case 7:
				p.incrementScrollX()
			}
		}

		if p.cycle == 256 {
			p.incrementScrollY()
		}
		if p.cycle == 257 {
			p.loadBackgroundShifters()
			p.transferAddressX()
		}
		if p.memory != nil && (p.cycle == 338 || p.cycle == 340) {
			p.bgNextTileID = p.memory.Read(0x2000 | (p.v & 0x0FFF))
		}
		if p.scanline == -1 && p.cycle >= 280 && p.cycle < 305 {
			p.transferAddressY()
		}

		if p.cycle == 257 && p.scanline >= 0 {
			p.evaluateSprites()
		}
		if p.cycle == 340 && p.memory != nil {
			p.loadSpriteShifters()
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80
		if p.ppuCtrl&0x80 != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	}

	if p.memory != nil && p.scanline >= 0 && p.scanline < 240 && p.cycle >= 1 && p.cycle <= 256 {
		p.renderPixel(p.cycle-1, p.scanline)
	}

	leavingPreRender := p.scanline == -1

	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.frameCount++
			p.oddFrame = !p.oddFrame
			if p.frameCompleteCallback != nil {
				p.frameCompleteCallback()
			}
		} else if leavingPreRender && p.oddFrame && p.renderingEnabled() {
			// Odd-frame skip: dot (0, 0) of scanline 0 is never visited.
			p.cycle = 1
		}
	}
}

// evaluateSprites scans all 64 OAM entries for ones visible on the next scanline,
// copying up to eight into spriteScanline and flagging overflow beyond that.
func (p *PPU) evaluateSprites() {
	for i := range p.spriteScanline {
		p.spriteScanline[i] = spriteEntry{0xFF, 0xFF, 0xFF, 0xFF}
	}
	p.spriteCount = 0
	p.spriteZeroHitPossible = false

	height := 8
	if p.spriteSize16 {
		height = 16
	}

	for oamIndex := 0; oamIndex < 64 && p.spriteCount < 9; oamIndex++ {
		base := oamIndex * 4
		diff := p.scanline - int(p.oam[base])
		if diff >= 0 && diff < height {
			if p.spriteCount < 8 {
				if oamIndex == 0 {
					p.spriteZeroHitPossible = true
				}
				p.spriteScanline[p.spriteCount] = spriteEntry{
					y:         p.oam[base],
					id:        p.oam[base+1],
					attribute: p.oam[base+2],
					x:         p.oam[base+3],
				}
			}
			p.spriteCount++
		}
	}

	if p.spriteCount > 8 {
		p.ppuStatus |= 0x20
		p.spriteCount = 8
	}
}

// loadSpriteShifters fetches the two pattern bytes for each evaluated sprite,
// applying flips, and seeds the per-sprite shift registers.
func (p *PPU) loadSpriteShifters() {
	for i := uint8(0); i < p.spriteCount; i++ {
		sprite := p.spriteScanline[i]

		height := uint16(8)
		if p.spriteSize16 {
			height = 16
		}

		row := uint16(p.scanline) - uint16(sprite.y)
		flipV := sprite.attribute&0x80 != 0
		flipH := sprite.attribute&0x40 != 0
		if flipV {
			row = height - 1 - row
		}

		var base uint16
		var tile uint16
		if p.spriteSize16 {
			if row < 8 {
				tile = uint16(sprite.id &^ 1)
			} else {
				tile = uint16(sprite.id&^1) + 1
				row &= 7
			}
			if sprite.id&1 != 0 {
				base = 0x1000
			}
		} else {
			tile = uint16(sprite.id)
			if p.ppuCtrl&0x08 != 0 {
				base = 0x1000
			}
		}

		addr := base + tile*16 + row
		lo := p.memory.Read(addr)
		hi := p.memory.Read(addr + 8)

		if flipH {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}

		p.spriteShifterPatternLo[i] = lo
		p.spriteShifterPatternHi[i] = hi
	}
}

func reverseBits(b uint8) uint8 {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// renderPixel composites the background and foreground layers for one screen
// coordinate and writes the resulting color into the frame buffer.
func (p *PPU) renderPixel(x, y int) {
	bgPixel, bgPalette := p.backgroundPixel()
	fgPixel, fgPalette, fgPriority := p.foregroundPixel()

	var pixel, palette uint8
	switch {
	case bgPixel == 0 && fgPixel == 0:
		pixel, palette = 0, 0
	case bgPixel == 0 && fgPixel > 0:
		pixel, palette = fgPixel, fgPalette
	case bgPixel > 0 && fgPixel == 0:
		pixel, palette = bgPixel, bgPalette
	default:
		if p.spriteZeroHitPossible && p.spriteZeroBeingRendered &&
			p.backgroundEnabled && p.spritesEnabled {
			left := 9
			if p.renderBGLeft && p.renderSpritesLeft {
				left = 1
			}
			if p.cycle >= left && p.cycle < 258 {
				p.ppuStatus |= 0x40
			}
		}
		if fgPriority {
			pixel, palette = fgPixel, fgPalette
		} else {
			pixel, palette = bgPixel, bgPalette
		}
	}

	colorAddr := uint16(0x3F00)
	if pixel != 0 {
		colorAddr = 0x3F00 + uint16(palette)*4 + uint16(pixel)
	}
	nesColor := p.memory.Read(colorAddr)
	p.frameBuffer[y*256+x] = NESColorToRGB(nesColor)
}

func (p *PPU) backgroundPixel() (pixel, palette uint8) {
	if !p.backgroundEnabled {
		return 0, 0
	}
	if !p.renderBGLeft && p.cycle < 9 {
		return 0, 0
	}
	bitMux := uint16(0x8000) >> p.x
	var p0, p1 uint8
	if p.bgShifterPatternLo&bitMux != 0 {
		p0 = 1
	}
	if p.bgShifterPatternHi&bitMux != 0 {
		p1 = 1
	}
	pixel = (p1 << 1) | p0

	var pal0, pal1 uint8
	if p.bgShifterAttribLo&bitMux != 0 {
		pal0 = 1
	}
	if p.bgShifterAttribHi&bitMux != 0 {
		pal1 = 1
	}
	palette = (pal1 << 1) | pal0
	return
}

func (p *PPU) foregroundPixel() (pixel, palette uint8, priority bool) {
	p.spriteZeroBeingRendered = false
	if !p.spritesEnabled {
		return 0, 0, false
	}
	if !p.renderSpritesLeft && p.cycle < 9 {
		return 0, 0, false
	}

	for i := uint8(0); i < p.spriteCount; i++ {
		if p.spriteScanline[i].x != 0 {
			continue
		}
		var lo, hi uint8
		if p.spriteShifterPatternLo[i]&0x80 != 0 {
			lo = 1
		}
		if p.spriteShifterPatternHi[i]&0x80 != 0 {
			hi = 1
		}
		candidate := (hi << 1) | lo
		if candidate != 0 {
			if i == 0 {
				p.spriteZeroBeingRendered = true
			}
			return candidate, (p.spriteScanline[i].attribute & 0x03) + 4, p.spriteScanline[i].attribute&0x20 == 0
		}
	}
	return 0, 0, false
}

func (p *PPU) GetFrameBuffer() [256 * 240]uint32 { return p.frameBuffer }
func (p *PPU) GetFrameCount() uint64             { return p.frameCount }
func (p *PPU) GetScanline() int                  { return p.scanline }
func (p *PPU) GetCycle() int                     { return p.cycle }
func (p *PPU) IsRenderingEnabled() bool           { return p.renderingEnabled() }
func (p *PPU) IsVBlank() bool                    { return p.ppuStatus&0x80 != 0 }
func (p *PPU) GetCycleCount() uint64             { return p.cycleCount }

// nesColorPalette is the standard NTSC 2C02 64-entry color table.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a 6-bit NES color index into 0x00RRGGBB.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}
