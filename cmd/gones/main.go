// Package main implements the gones NES emulator executable.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"gones/internal/bus"
	"gones/internal/cartridge"
	"gones/internal/config"
	"gones/internal/display"
	"gones/internal/input"
	"gones/internal/logging"
	"gones/internal/version"
)

func main() {
	cfg, exit, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if exit {
		if cfg.ShowVersion {
			version.PrintBuildInfo()
		}
		return
	}

	logger := logging.New()

	if cfg.ROMPath == "" {
		fmt.Println("gones - Go NES Emulator")
		fmt.Println("a ROM file is required: gones -rom <file.nes>")
		os.Exit(1)
	}

	machine := bus.New()

	cart, err := cartridge.LoadFromFile(cfg.ROMPath)
	if err != nil {
		logger.Error("failed to load ROM", "rom", cfg.ROMPath, "error", err)
		os.Exit(1)
	}
	machine.LoadCartridge(cart)
	logger.Info("ROM loaded", "rom", cfg.ROMPath, "mirroring", cart.GetMirrorMode())

	if cfg.NoGUI {
		runHeadless(machine, cfg.Frames)
		return
	}

	if err := runGUI(machine, cfg, logger); err != nil {
		logger.Error("GUI mode failed", "error", err)
		os.Exit(1)
	}
}

// runHeadless clocks the machine through a fixed number of frames with no window,
// for scripted or automated runs.
func runHeadless(machine *bus.Bus, frames int) {
	for i := 0; i < frames; i++ {
		machine.Frame()
	}
	fmt.Printf("ran %d frames, %d CPU cycles\n", frames, machine.GetCycleCount())
}

// runGUI drives the emulator from Ebitengine's game loop: each Ebitengine Update
// clocks one NES frame, renders the resulting framebuffer, and applies queued input.
func runGUI(machine *bus.Bus, cfg *config.Config, logger *slog.Logger) error {
	width, height := cfg.GetWindowResolution()

	backend, err := display.CreateBackend(display.BackendEbitengine)
	if err != nil {
		return err
	}
	if err := backend.Initialize(display.Config{
		WindowTitle:  "gones",
		WindowWidth:  width,
		WindowHeight: height,
		VSync:        true,
		Filter:       "nearest",
	}); err != nil {
		return err
	}

	window, err := backend.CreateWindow("gones", width, height)
	if err != nil {
		return err
	}
	ebWindow, ok := display.AsEbitengineWindow(window)
	if !ok {
		return fmt.Errorf("display backend did not return an Ebitengine window")
	}

	ebWindow.SetEmulatorUpdateFunc(func() error {
		machine.Frame()
		if err := window.RenderFrame(machine.PPU.GetFrameBuffer()); err != nil {
			return err
		}
		for _, event := range window.PollEvents() {
			switch event.Type {
			case display.InputEventTypeQuit:
				os.Exit(0)
			case display.InputEventTypeButton:
				applyButtonEvent(machine, event)
			}
		}
		return nil
	})

	logger.Info("starting GUI loop", "width", width, "height", height)
	return ebWindow.Run()
}

// buttonMap translates the display package's button identifiers (which carry a
// separate set for a second controller) to the bitflags input.Controller expects.
var buttonMap = map[display.Button]struct {
	controller int
	button     input.Button
}{
	display.ButtonA:      {0, input.ButtonA},
	display.ButtonB:      {0, input.ButtonB},
	display.ButtonSelect: {0, input.ButtonSelect},
	display.ButtonStart:  {0, input.ButtonStart},
	display.ButtonUp:     {0, input.ButtonUp},
	display.ButtonDown:   {0, input.ButtonDown},
	display.ButtonLeft:   {0, input.ButtonLeft},
	display.ButtonRight:  {0, input.ButtonRight},

	display.Button2A:      {2, input.ButtonA},
	display.Button2B:      {2, input.ButtonB},
	display.Button2Select: {2, input.ButtonSelect},
	display.Button2Start:  {2, input.ButtonStart},
	display.Button2Up:     {2, input.ButtonUp},
	display.Button2Down:   {2, input.ButtonDown},
	display.Button2Left:   {2, input.ButtonLeft},
	display.Button2Right:  {2, input.ButtonRight},
}

func applyButtonEvent(machine *bus.Bus, event display.InputEvent) {
	mapping, ok := buttonMap[event.Button]
	if !ok {
		return
	}
	machine.SetControllerButton(mapping.controller, mapping.button, event.Pressed)
}
