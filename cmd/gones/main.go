// Command gones runs the GoNES emulator against an iNES ROM file, either
// in an SDL2 window or headless for a fixed number of frames.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yoshiomiyamae/gones/internal/config"
	"github.com/yoshiomiyamae/gones/internal/logger"
	"github.com/yoshiomiyamae/gones/internal/rom"
	"github.com/yoshiomiyamae/gones/pkg/gui"
	"github.com/yoshiomiyamae/gones/pkg/nes"
)

// Exit codes, per the CLI contract: 0 clean shutdown, 1 bad/unsupported
// ROM, 2 I/O failure opening the ROM or an SRAM sidecar file.
const (
	exitOK        = 0
	exitBadROM    = 1
	exitIOFailure = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, romPath, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadROM
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		return exitIOFailure
	}
	defer log.Close()
	log.EnableCPU(cfg.CPULog)
	log.EnablePPU(cfg.PPULog)
	log.EnableAPU(cfg.APULog)
	log.EnableMapper(cfg.MapperLog)

	log.Info("GoNES starting: rom=%s headless=%v save-slot=%d", romPath, cfg.Headless, cfg.SaveSlot)

	cart, err := rom.Load(romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading ROM: %v\n", err)
		switch {
		case errors.Is(err, rom.ErrIO):
			return exitIOFailure
		default:
			return exitBadROM
		}
	}

	sramPath := cfg.SRAMPath
	if sramPath == "" {
		sramPath = rom.SRAMPath(romPath)
	}
	if err := rom.ReadSRAM(cart, sramPath); err != nil {
		fmt.Fprintf(os.Stderr, "loading SRAM: %v\n", err)
		return exitIOFailure
	}

	console, err := nes.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting emulator: %v\n", err)
		return exitIOFailure
	}
	console.LoadCartridge(cart)
	console.Reset()

	if cfg.Headless {
		runHeadless(console, cfg.TestFrames, log)
	} else if err := runWindowed(console, romPath, log); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitIOFailure
	}

	if err := rom.WriteSRAM(cart, sramPath); err != nil {
		fmt.Fprintf(os.Stderr, "saving SRAM: %v\n", err)
		return exitIOFailure
	}

	log.Info("GoNES exiting cleanly")
	return exitOK
}

func parseFlags() (config.Config, string, error) {
	cfg := config.Default()

	var logLevel string
	flags := flag.NewFlagSet("gones", flag.ContinueOnError)
	flags.StringVar(&logLevel, "log-level", "info", "Log level (off, error, warn, info, debug, trace)")
	flags.StringVar(&cfg.LogFile, "log-file", "", "Log file path (empty for stdout)")
	flags.BoolVar(&cfg.CPULog, "cpu-log", false, "Enable CPU instruction logging")
	flags.BoolVar(&cfg.PPULog, "ppu-log", false, "Enable PPU logging")
	flags.BoolVar(&cfg.APULog, "apu-log", false, "Enable APU logging")
	flags.BoolVar(&cfg.MapperLog, "mapper-log", false, "Enable mapper logging")
	flags.BoolVar(&cfg.Headless, "headless", false, "Run without a window for a fixed number of frames")
	flags.IntVar(&cfg.TestFrames, "test-frames", 600, "Frames to run in headless mode")
	flags.IntVar(&cfg.SaveSlot, "save-slot", 0, "Save-state slot to report in logs (0-3)")
	flags.StringVar(&cfg.SRAMPath, "sram-path", "", "Override the .sav sidecar path (default: <rom>.sav)")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <rom_file>\n\nOptions:\n", os.Args[0])
		flags.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nControls:")
		fmt.Fprintln(os.Stderr, "  Z/X - A/B, A/S - Select/Start, arrows - D-pad, ESC - quit")
		fmt.Fprintln(os.Stderr, "  F5+[1-4] - save state, F7+[1-4] - load state, F12 - screenshot, F3 - toggle FPS")
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		return config.Config{}, "", err
	}
	if flags.NArg() < 1 {
		flags.Usage()
		return config.Config{}, "", fmt.Errorf("missing ROM file argument")
	}

	cfg.LogLevel = logger.LevelFromString(logLevel)
	cfg.ROMPath = flags.Arg(0)
	return cfg, cfg.ROMPath, nil
}

func runWindowed(console *nes.NES, romPath string, log *logger.Logger) error {
	log.Info("Creating GUI...")
	nesGUI, err := gui.New(console, log, romPath)
	if err != nil {
		return fmt.Errorf("creating GUI: %w", err)
	}
	defer nesGUI.Destroy()

	log.Info("Starting emulator...")
	nesGUI.Run()
	log.Info("Emulator stopped")
	return nil
}

func runHeadless(console *nes.NES, maxFrames int, log *logger.Logger) {
	log.Info("Running headless for %d frames", maxFrames)
	start := time.Now()

	for frame := 0; frame < maxFrames; frame++ {
		console.StepFrame()
	}

	log.Info("Headless run completed in %v (%d frames)", time.Since(start), maxFrames)
}
