// Package config collects the tunables every constructor in this module
// accepts explicitly, instead of reading environment variables or package
// globals.
package config

import "github.com/yoshiomiyamae/gones/internal/logger"

// Config is built once by a CLI front end and threaded through every
// constructor that needs it.
type Config struct {
	ROMPath string

	LogLevel logger.LogLevel
	LogFile  string
	CPULog   bool
	PPULog   bool
	APULog   bool
	MapperLog bool

	Headless   bool
	TestFrames int

	SaveSlot int
	SRAMPath string
}

// Default returns a Config suitable for a quick headless run, mirroring the
// flag defaults cmd/gones exposes.
func Default() Config {
	return Config{
		LogLevel:   logger.LevelInfo,
		TestFrames: 600,
		SaveSlot:   0,
	}
}
