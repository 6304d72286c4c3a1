// Package config holds the emulator's run configuration as a single struct
// populated from command-line flags before any subsystem is constructed.
package config

import (
	"flag"
	"fmt"
)

// KeyMapping maps NES controller buttons to keyboard key names.
type KeyMapping struct {
	Up     string
	Down   string
	Left   string
	Right  string
	A      string
	B      string
	Start  string
	Select string
}

// Config holds everything main needs before it builds the bus and display.
type Config struct {
	ROMPath string
	Scale   int
	Keys    KeyMapping

	NoGUI  bool
	Frames int

	ShowVersion bool
}

// NewConfig returns a Config populated with the emulator's defaults.
func NewConfig() *Config {
	return &Config{
		Scale: 2,
		Keys: KeyMapping{
			Up:     "W",
			Down:   "S",
			Left:   "A",
			Right:  "D",
			A:      "J",
			B:      "K",
			Start:  "Return",
			Select: "Space",
		},
		Frames: 120,
	}
}

// ParseFlags builds a Config from the given command-line arguments, starting
// from NewConfig's defaults. It does not touch flag.CommandLine, so it can be
// called from tests without colliding with package-level flag state.
func ParseFlags(args []string) (*Config, bool, error) {
	cfg := NewConfig()

	fs := flag.NewFlagSet("gones", flag.ContinueOnError)
	fs.StringVar(&cfg.ROMPath, "rom", cfg.ROMPath, "Path to NES ROM file")
	fs.BoolVar(&cfg.NoGUI, "nogui", false, "Run without a window, for a fixed number of frames")
	fs.IntVar(&cfg.Frames, "frames", cfg.Frames, "Frames to run in -nogui mode")
	fs.IntVar(&cfg.Scale, "scale", cfg.Scale, "Window scale factor")

	fs.StringVar(&cfg.Keys.Up, "key-up", cfg.Keys.Up, "Key bound to D-Pad Up")
	fs.StringVar(&cfg.Keys.Down, "key-down", cfg.Keys.Down, "Key bound to D-Pad Down")
	fs.StringVar(&cfg.Keys.Left, "key-left", cfg.Keys.Left, "Key bound to D-Pad Left")
	fs.StringVar(&cfg.Keys.Right, "key-right", cfg.Keys.Right, "Key bound to D-Pad Right")
	fs.StringVar(&cfg.Keys.A, "key-a", cfg.Keys.A, "Key bound to the A button")
	fs.StringVar(&cfg.Keys.B, "key-b", cfg.Keys.B, "Key bound to the B button")
	fs.StringVar(&cfg.Keys.Start, "key-start", cfg.Keys.Start, "Key bound to Start")
	fs.StringVar(&cfg.Keys.Select, "key-select", cfg.Keys.Select, "Key bound to Select")

	help := fs.Bool("help", false, "Show help message")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	if *help {
		printUsage(fs)
		return cfg, true, nil
	}
	if cfg.ShowVersion {
		return cfg, true, nil
	}

	if err := cfg.validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func (c *Config) validate() error {
	if c.Scale <= 0 {
		return fmt.Errorf("invalid scale %d: must be positive", c.Scale)
	}
	if c.Frames <= 0 {
		return fmt.Errorf("invalid frame count %d: must be positive", c.Frames)
	}
	return nil
}

// GetWindowResolution returns the window dimensions for the NES's native
// 256x240 frame buffer at the configured scale.
func (c *Config) GetWindowResolution() (int, int) {
	return 256 * c.Scale, 240 * c.Scale
}

func printUsage(fs *flag.FlagSet) {
	fmt.Println("gones - Go NES Emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  gones -rom <file.nes> [options]")
	fmt.Println("  gones -rom <file.nes> -nogui -frames 120")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fs.PrintDefaults()
}
