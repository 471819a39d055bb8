package gui

import (
	"fmt"
	"os"
	"runtime"
	"time"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	"github.com/yoshiomiyamae/gones/internal/logger"
	"github.com/yoshiomiyamae/gones/internal/rom"
	"github.com/yoshiomiyamae/gones/internal/savestate"
	"github.com/yoshiomiyamae/gones/pkg/nes"
)

const (
	WindowWidth  = 256 * 3 // NES resolution 256x240 scaled 3x
	WindowHeight = 240 * 3
	WindowTitle  = "GoNES - Nintendo Entertainment System Emulator"

	AudioSampleRate = 44100
	AudioBufferSize = 1024
	AudioChannels   = 1
	AudioFormat     = sdl.AUDIO_F32LSB

	TargetFPS = 60.0988 // NES actual framerate
)

// FrameTime is one NTSC NES frame at 1789773/29780.5 Hz.
var FrameTime = time.Duration(16639267) * time.Nanosecond

// NESGUI drives the SDL2 window, renderer, audio device, and keyboard
// input for one running console.
type NESGUI struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	nes      *nes.NES
	log      *logger.Logger
	running  bool

	romPath string
	romHash string

	screenshotNum int

	audioDevice sdl.AudioDeviceID
	audioSpec   *sdl.AudioSpec

	// saveModifier/loadModifier track whether F5/F7 is currently held, so
	// a following digit key performs the save/load chord rather than
	// acting as an ordinary key.
	saveModifier bool
	loadModifier bool

	fpsCounter int
	fpsTimer   time.Time
	currentFPS float64
	showFPS    bool
}

// New creates a GUI for nesSystem, whose ROM was loaded from romPath (used
// to name save-state slots next to the ROM file).
func New(nesSystem *nes.NES, log *logger.Logger, romPath string) (*NESGUI, error) {
	runtime.LockOSThread()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO); err != nil {
		return nil, err
	}

	window, err := sdl.CreateWindow(
		WindowTitle,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		WindowWidth,
		WindowHeight,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return nil, err
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, err
	}
	renderer.SetDrawBlendMode(sdl.BLENDMODE_NONE)

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		256,
		240,
	)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, err
	}
	texture.SetBlendMode(sdl.BLENDMODE_NONE)

	g := &NESGUI{
		window:   window,
		renderer: renderer,
		texture:  texture,
		nes:      nesSystem,
		log:      log,
		running:  true,
		romPath:  romPath,
		romHash:  rom.Hash(nesSystem.Cartridge),
		fpsTimer: time.Now(),
		showFPS:  true,
	}

	if err := g.initAudio(); err != nil {
		log.Error("Failed to initialize audio: %v (continuing without audio)", err)
	} else {
		log.Info("Audio initialization successful")
	}

	return g, nil
}

// Destroy tears down SDL resources.
func (g *NESGUI) Destroy() {
	if g.audioDevice != 0 {
		sdl.CloseAudioDevice(g.audioDevice)
	}
	if g.texture != nil {
		g.texture.Destroy()
	}
	if g.renderer != nil {
		g.renderer.Destroy()
	}
	if g.window != nil {
		g.window.Destroy()
	}
	sdl.Quit()
}

// Run drives the main loop until the window is closed or Escape is pressed.
func (g *NESGUI) Run() {
	frameCount := 0
	startTime := time.Now()

	for g.running {
		g.handleEvents()
		g.update()
		g.render()

		// Pace against total elapsed time rather than per-frame Sleep, so
		// Sleep()'s own inaccuracy doesn't accumulate drift.
		frameCount++
		targetEnd := startTime.Add(time.Duration(frameCount) * FrameTime)
		if now := time.Now(); now.Before(targetEnd) {
			time.Sleep(targetEnd.Sub(now))
		}
	}
}

func (g *NESGUI) handleEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			g.running = false
		case *sdl.KeyboardEvent:
			g.handleKeyboard(e)
		}
	}
}

// handleKeyboard maps keyboard input to the NES controller and the
// F5+[1-4]/F7+[1-4] save/load-state chords.
func (g *NESGUI) handleKeyboard(event *sdl.KeyboardEvent) {
	pressed := event.State == sdl.PRESSED
	input := g.nes.GetInput()

	switch event.Keysym.Sym {
	case sdl.K_z:
		input.SetButton(0, 0, pressed) // A
	case sdl.K_x:
		input.SetButton(0, 1, pressed) // B
	case sdl.K_a:
		input.SetButton(0, 2, pressed) // Select
	case sdl.K_s:
		input.SetButton(0, 3, pressed) // Start
	case sdl.K_UP:
		input.SetButton(0, 4, pressed)
	case sdl.K_DOWN:
		input.SetButton(0, 5, pressed)
	case sdl.K_LEFT:
		input.SetButton(0, 6, pressed)
	case sdl.K_RIGHT:
		input.SetButton(0, 7, pressed)
	case sdl.K_ESCAPE:
		g.running = false
	case sdl.K_F12:
		if pressed {
			g.saveScreenshot()
		}
	case sdl.K_F3:
		if pressed {
			g.showFPS = !g.showFPS
		}
	case sdl.K_F5:
		g.saveModifier = pressed
	case sdl.K_F7:
		g.loadModifier = pressed
	case sdl.K_1, sdl.K_2, sdl.K_3, sdl.K_4:
		if !pressed {
			return
		}
		slot := int(event.Keysym.Sym - sdl.K_1)
		switch {
		case g.saveModifier:
			g.saveState(slot)
		case g.loadModifier:
			g.loadState(slot)
		}
	}
}

// saveState writes the console's current state to slot.
func (g *NESGUI) saveState(slot int) {
	path := savestate.SlotPath(g.romPath, slot)
	f, err := os.Create(path)
	if err != nil {
		g.log.Error("save-state %d: %v", slot, err)
		return
	}
	defer f.Close()

	snap := savestate.Capture(g.nes, g.romHash)
	if err := savestate.Save(f, snap); err != nil {
		g.log.Error("save-state %d: %v", slot, err)
		return
	}
	g.log.Info("Saved state to slot %d", slot)
}

// loadState restores the console's state from slot, leaving the running
// state untouched if the file is missing or doesn't match the loaded ROM.
func (g *NESGUI) loadState(slot int) {
	path := savestate.SlotPath(g.romPath, slot)
	f, err := os.Open(path)
	if err != nil {
		g.log.Error("load-state %d: %v", slot, err)
		return
	}
	defer f.Close()

	snap, err := savestate.LoadForROM(f, g.romHash)
	if err != nil {
		g.log.Error("load-state %d: %v", slot, err)
		return
	}
	snap.Apply(g.nes)
	g.log.Info("Loaded state from slot %d", slot)
}

func (g *NESGUI) update() {
	g.nes.StepFrame()
	g.queueAudio()
	g.updateFPS()
}

func (g *NESGUI) render() {
	framebuffer := g.nes.GetFramebuffer()

	g.texture.Update(nil, unsafe.Pointer(&framebuffer[0]), 256*4)

	g.renderer.SetDrawColor(0, 0, 0, 255)
	g.renderer.Clear()
	g.renderer.Copy(g.texture, nil, nil)

	if g.showFPS {
		g.updateWindowTitle()
	}

	g.renderer.Present()
}

// saveScreenshot writes the rendered frame to a sequential PNG-named raw
// RGBA file (raw bytes, not actually PNG-encoded — matches the teacher's
// original screenshot format).
func (g *NESGUI) saveScreenshot() {
	filename := fmt.Sprintf("screenshot_%03d.png", g.screenshotNum)
	g.screenshotNum++

	w, h, _ := g.renderer.GetOutputSize()
	pixels := make([]byte, w*h*4)
	if err := g.renderer.ReadPixels(nil, sdl.PIXELFORMAT_RGBA8888, unsafe.Pointer(&pixels[0]), int(w*4)); err != nil {
		g.log.Error("Failed to read pixels: %v", err)
		return
	}

	file, err := os.Create(filename)
	if err != nil {
		g.log.Error("Failed to create file %s: %v", filename, err)
		return
	}
	defer file.Close()

	if _, err := file.Write(pixels); err != nil {
		g.log.Error("Failed to write file %s: %v", filename, err)
		return
	}
	g.log.Info("Screenshot saved: %s (%d bytes)", filename, len(pixels))
}

func (g *NESGUI) initAudio() error {
	want := &sdl.AudioSpec{
		Freq:     AudioSampleRate,
		Format:   AudioFormat,
		Channels: AudioChannels,
		Samples:  AudioBufferSize,
	}

	var have sdl.AudioSpec
	device, err := sdl.OpenAudioDevice("", false, want, &have, sdl.AUDIO_ALLOW_ANY_CHANGE)
	if err != nil {
		// Retry with 16-bit integer PCM for hosts whose audio driver
		// doesn't support float samples.
		want.Format = sdl.AUDIO_S16LSB
		device, err = sdl.OpenAudioDevice("", false, want, &have, sdl.AUDIO_ALLOW_ANY_CHANGE)
		if err != nil {
			return fmt.Errorf("failed to open audio device: %w", err)
		}
	}

	g.audioDevice = device
	g.audioSpec = &have
	g.log.Info("Audio initialized: %dHz, %d channels, format 0x%x, buffer %d",
		have.Freq, have.Channels, have.Format, have.Samples)

	sdl.PauseAudioDevice(device, false)
	return nil
}

// queueAudio converts the APU's pending float32 samples to the host's
// negotiated format and queues them, dropping samples rather than
// blocking if the device's queue is already well-fed.
func (g *NESGUI) queueAudio() {
	if g.audioDevice == 0 {
		return
	}

	apuOutput := g.nes.APU.Output
	if len(apuOutput) == 0 {
		return
	}

	queuedBytes := sdl.GetQueuedAudioSize(g.audioDevice)
	maxBytes := uint32(AudioBufferSize * 4 * 2)

	if queuedBytes < maxBytes {
		var audioData []byte

		switch g.audioSpec.Format {
		case sdl.AUDIO_F32LSB:
			audioData = make([]byte, len(apuOutput)*4)
			for i, sample := range apuOutput {
				bits := *(*uint32)(unsafe.Pointer(&sample))
				audioData[i*4+0] = byte(bits)
				audioData[i*4+1] = byte(bits >> 8)
				audioData[i*4+2] = byte(bits >> 16)
				audioData[i*4+3] = byte(bits >> 24)
			}
		case sdl.AUDIO_S16LSB:
			audioData = make([]byte, len(apuOutput)*2)
			for i, sample := range apuOutput {
				if sample > 1.0 {
					sample = 1.0
				} else if sample < -1.0 {
					sample = -1.0
				}
				intSample := int16(sample * 32767)
				audioData[i*2+0] = byte(intSample)
				audioData[i*2+1] = byte(intSample >> 8)
			}
		}

		if len(audioData) > 0 {
			sdl.QueueAudio(g.audioDevice, audioData)
		}
	}

	g.nes.APU.Output = g.nes.APU.Output[:0]
}

func (g *NESGUI) updateFPS() {
	g.fpsCounter++

	elapsed := time.Since(g.fpsTimer)
	if elapsed >= 500*time.Millisecond {
		g.currentFPS = float64(g.fpsCounter) / elapsed.Seconds()
		g.fpsCounter = 0
		g.fpsTimer = time.Now()
	}
}

func (g *NESGUI) updateWindowTitle() {
	g.window.SetTitle(fmt.Sprintf("%s - FPS: %.1f", WindowTitle, g.currentFPS))
}
