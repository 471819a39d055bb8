// Package savestate serializes and restores a running console's complete
// state — CPU, PPU, APU, bus RAM, and mapper bank-select registers — as a
// versioned, ROM-bound binary snapshot.
package savestate

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/yoshiomiyamae/gones/internal/bus"
	"github.com/yoshiomiyamae/gones/pkg/apu"
	"github.com/yoshiomiyamae/gones/pkg/cartridge/mapper"
	"github.com/yoshiomiyamae/gones/pkg/cpu"
	"github.com/yoshiomiyamae/gones/pkg/nes"
	"github.com/yoshiomiyamae/gones/pkg/ppu"
)

// Format is the current envelope version. Bumped whenever a field is
// added to or removed from Snapshot in a way that breaks gob compatibility
// with prior saves.
const Format = 1

var (
	// ErrCorruptSaveState is returned by Load when the envelope's magic,
	// version, or ROM hash doesn't match what the caller expects.
	ErrCorruptSaveState = errors.New("savestate: corrupt or incompatible save state")
	// ErrIO is returned when the underlying reader/writer fails.
	ErrIO = errors.New("savestate: i/o error")
)

func init() {
	gob.Register(mapper.Mapper1State{})
	gob.Register(mapper.Mapper2State{})
	gob.Register(mapper.Mapper3State{})
	gob.Register(mapper.Mapper87State{})
}

// Snapshot is the full serializable state of one console, bound to the ROM
// it was captured from by hash.
type Snapshot struct {
	Version uint32
	ROMHash string

	CPU         cpu.Snapshot
	PPU         ppu.Snapshot
	APU         apu.Snapshot
	Bus         bus.Snapshot
	MapperState interface{}
	PRGRAM      []uint8
}

// Capture builds a Snapshot of n's current state, bound to romHash.
func Capture(n *nes.NES, romHash string) Snapshot {
	prgRAM := make([]uint8, len(n.Cartridge.PRGRAM))
	copy(prgRAM, n.Cartridge.PRGRAM)

	return Snapshot{
		Version:     Format,
		ROMHash:     romHash,
		CPU:         n.CPU.Snapshot(),
		PPU:         n.PPU.Snapshot(),
		APU:         n.APU.Snapshot(),
		Bus:         n.Bus.Snapshot(),
		MapperState: n.Cartridge.SnapshotMapperState(),
		PRGRAM:      prgRAM,
	}
}

// Apply restores n's state from the snapshot. The caller must have already
// loaded the same ROM the snapshot was captured from; Apply does not itself
// validate ROMHash (Load does, at read time).
func (s Snapshot) Apply(n *nes.NES) {
	n.CPU.Restore(s.CPU)
	n.PPU.Restore(s.PPU)
	n.APU.Restore(s.APU)
	n.Bus.Restore(s.Bus)
	n.Cartridge.RestoreMapperState(s.MapperState)
	copy(n.Cartridge.PRGRAM, s.PRGRAM)
	n.Frame = n.PPU.Frame
	n.Cycles = uint64(s.CPU.Cycles)
}

// Save gob-encodes snap to w.
func Save(w io.Writer, snap Snapshot) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("%w: encoding snapshot: %v", ErrIO, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: writing snapshot: %v", ErrIO, err)
	}
	return nil
}

// Load decodes a Snapshot previously written by Save. A malformed or
// truncated stream returns ErrCorruptSaveState; the caller is responsible
// for comparing the returned Snapshot's ROMHash against the ROM it has
// loaded and treating a mismatch as ErrCorruptSaveState too, since Load
// itself doesn't know which ROM is current.
func Load(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSaveState, err)
	}
	if snap.Version != Format {
		return Snapshot{}, fmt.Errorf("%w: version %d, want %d", ErrCorruptSaveState, snap.Version, Format)
	}
	return snap, nil
}

// LoadForROM decodes a Snapshot and verifies it was captured from the ROM
// identified by wantHash, returning ErrCorruptSaveState on any mismatch
// without mutating any live state.
func LoadForROM(r io.Reader, wantHash string) (Snapshot, error) {
	snap, err := Load(r)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.ROMHash != wantHash {
		return Snapshot{}, fmt.Errorf("%w: saved for a different ROM", ErrCorruptSaveState)
	}
	return snap, nil
}

// SlotPath returns the conventional path for save-state slot (0-3) next to
// the ROM at romPath.
func SlotPath(romPath string, slot int) string {
	return fmt.Sprintf("%s.state%d", romPath, slot)
}
