// Package rom loads iNES ROM images into a cartridge and persists the
// battery-backed PRG-RAM sidecar (.sav) file alongside it.
package rom

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/yoshiomiyamae/gones/pkg/cartridge"
)

// Sentinel errors for the I/O half of the taxonomy; cartridge.LoadFromReader
// already returns ErrBadROM/ErrUnsupportedMapper/ErrUnsupportedFeature for
// the parse half. Re-exported here so callers only need to import rom.
var (
	ErrBadROM             = cartridge.ErrBadROM
	ErrUnsupportedMapper  = cartridge.ErrUnsupportedMapper
	ErrUnsupportedFeature = cartridge.ErrUnsupportedFeature
	ErrIO                 = errors.New("rom: i/o error")
)

// Load opens path and parses it as an iNES image.
func Load(path string) (*cartridge.Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	cart, err := cartridge.LoadFromReader(f)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// SRAMPath returns the conventional .sav sidecar path for a ROM path.
func SRAMPath(romPath string) string {
	return romPath + ".sav"
}

// WriteSRAM writes cart's battery-backed PRG-RAM to path. The cartridge
// keeps no dirty flag, so the file is written whenever the cartridge is
// battery-backed, whether or not PRG-RAM changed.
func WriteSRAM(cart *cartridge.Cartridge, path string) error {
	if !cart.Battery || len(cart.PRGRAM) == 0 {
		return nil
	}
	if err := os.WriteFile(path, cart.PRGRAM, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}
	return nil
}

// ReadSRAM loads a previously-written .sav file into cart's PRG-RAM. A
// missing file is not an error: a fresh battery-backed cartridge simply
// starts with zeroed PRG-RAM.
func ReadSRAM(cart *cartridge.Cartridge, path string) error {
	if !cart.Battery {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
	}
	n := copy(cart.PRGRAM, data)
	_ = n
	return nil
}

// Hash returns a stable identifier for cart's ROM contents, used by
// save-states to refuse loading a snapshot taken against a different ROM.
func Hash(cart *cartridge.Cartridge) string {
	h := sha256.New()
	h.Write(cart.PRGROM)
	h.Write(cart.CHRROM)
	return hex.EncodeToString(h.Sum(nil))
}
