package nes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yoshiomiyamae/gones/internal/rom"
)

func minimalROM() []byte {
	data := make([]byte, 0, 16+16384+8192)
	data = append(data, 0x4E, 0x45, 0x53, 0x1A,
		0x01, 0x01, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	)
	prg := make([]byte, 16384)
	prg[0x3FFC] = 0x00
	prg[0x3FFD] = 0x80
	data = append(data, prg...)
	data = append(data, make([]byte, 8192)...)
	return data
}

func loadTestCartridge(t *testing.T) *NES {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.nes")
	require.NoError(t, os.WriteFile(path, minimalROM(), 0644))

	cart, err := rom.Load(path)
	require.NoError(t, err)

	n := NewForTest()
	n.LoadCartridge(cart)
	n.Reset()
	return n
}

func TestNewForTestWiresComponents(t *testing.T) {
	n := NewForTest()
	require.NotNil(t, n.CPU)
	require.NotNil(t, n.PPU)
	require.NotNil(t, n.APU)
	require.NotNil(t, n.Bus)
	require.NotNil(t, n.Input)
}

func TestStepAdvancesCycles(t *testing.T) {
	n := loadTestCartridge(t)
	require.Zero(t, n.Cycles)

	n.Step()
	require.NotZero(t, n.Cycles)
}

func TestStepFrameCompletesAndResetsFlag(t *testing.T) {
	n := loadTestCartridge(t)

	n.StepFrame()

	require.False(t, n.PPU.FrameComplete)
	require.Equal(t, n.PPU.Frame, n.Frame)
}

func TestResetZeroesCyclesAndFrame(t *testing.T) {
	n := loadTestCartridge(t)
	n.StepFrame()
	require.NotZero(t, n.Cycles)

	n.Reset()
	require.Zero(t, n.Cycles)
	require.Zero(t, n.Frame)
}

func TestGetFramebufferMatchesPPUSize(t *testing.T) {
	n := loadTestCartridge(t)
	n.StepFrame()

	fb := n.GetFramebuffer()
	require.Len(t, fb, 256*240*4)

	raw := n.GetFramebufferRaw()
	require.Len(t, raw, 256*240)
}

func TestAPUIRQMirroredOntoCPULine(t *testing.T) {
	n := loadTestCartridge(t)

	n.APU.FrameIRQ = true
	n.Step()
	require.True(t, n.CPU.IRQ)

	n.APU.FrameIRQ = false
	n.Step()
	require.False(t, n.CPU.IRQ)
}
