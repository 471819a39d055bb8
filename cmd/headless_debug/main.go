// Command headless_debug runs a ROM for a fixed number of frames without a
// window, printing PPU/APU state after each frame and writing a save state
// of the final frame for offline inspection.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/yoshiomiyamae/gones/internal/rom"
	"github.com/yoshiomiyamae/gones/internal/savestate"
	"github.com/yoshiomiyamae/gones/pkg/nes"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: headless_debug <rom_file> [frames]")
		os.Exit(1)
	}

	romFile := os.Args[1]
	maxFrames := 10
	if len(os.Args) >= 3 {
		fmt.Sscanf(os.Args[2], "%d", &maxFrames)
	}

	cart, err := rom.Load(romFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load ROM: %v\n", err)
		os.Exit(1)
	}
	romHash := rom.Hash(cart)

	fmt.Println("=== Headless Debug Mode ===")
	fmt.Printf("ROM: %s\n", romFile)
	fmt.Printf("Mapper: %T\n", cart.Mapper)
	fmt.Printf("Max frames to run: %d\n\n", maxFrames)

	nesSystem := nes.NewForTest()
	nesSystem.LoadCartridge(cart)
	nesSystem.Reset()

	fmt.Println("=== Initial State ===")
	fmt.Printf("Frame: %d\n", nesSystem.GetFrame())
	fmt.Printf("Cycles: %d\n\n", nesSystem.Cycles)

	fmt.Println("=== Starting Emulation ===")
	startTime := time.Now()

	for i := 0; i < maxFrames; i++ {
		frameStart := time.Now()
		nesSystem.StepFrame()
		frameTime := time.Since(frameStart)

		fmt.Printf("Frame %d completed in %v (cycles=%d)\n", nesSystem.GetFrame(), frameTime, nesSystem.Cycles)

		if i == 0 {
			printPPUState(nesSystem)
		}

		framebuffer := nesSystem.GetFramebuffer()
		nonZeroPixels := 0
		for _, b := range framebuffer {
			if b != 0 {
				nonZeroPixels++
			}
		}
		fmt.Printf("  Non-zero framebuffer bytes: %d\n", nonZeroPixels)
	}

	totalTime := time.Since(startTime)
	fmt.Println("\n=== Final Results ===")
	fmt.Printf("Completed %d frames in %v\n", nesSystem.GetFrame(), totalTime)
	fmt.Printf("Average frame time: %v\n", totalTime/time.Duration(maxFrames))
	fmt.Printf("Final cycle count: %d\n", nesSystem.Cycles)

	fmt.Println("\n=== Final Mapper State ===")
	spew.Dump(cart.SnapshotMapperState())

	debugStatePath := romFile + ".debug.state"
	f, err := os.Create(debugStatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create debug save state: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	snap := savestate.Capture(nesSystem, romHash)
	if err := savestate.Save(f, snap); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write debug save state: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nWrote final-frame save state to %s\n", debugStatePath)
}

func printPPUState(nesSystem *nes.NES) {
	fmt.Println("  PPU State:")
	fmt.Printf("    Frame: %d, Scanline: %d, Cycle: %d\n",
		nesSystem.PPU.Frame, nesSystem.PPU.Scanline, nesSystem.PPU.Cycle)
	fmt.Printf("    PPUCTRL: 0x%02X, PPUMASK: 0x%02X, PPUSTATUS: 0x%02X\n",
		nesSystem.PPU.PPUCTRL, nesSystem.PPU.PPUMASK, nesSystem.PPU.PPUSTATUS)

	bgEnabled := nesSystem.PPU.PPUMASK&0x08 != 0
	spriteEnabled := nesSystem.PPU.PPUMASK&0x10 != 0
	fmt.Printf("    Rendering: BG=%v, Sprites=%v\n", bgEnabled, spriteEnabled)

	nmiEnabled := nesSystem.PPU.PPUCTRL&0x80 != 0
	fmt.Printf("    NMI Enabled: %v, NMI Requested: %v\n", nmiEnabled, nesSystem.PPU.NMIRequested)
}
