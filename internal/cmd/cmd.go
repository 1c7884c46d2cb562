package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/philipparndt/smithforge/internal/config"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/ui"
	"github.com/philipparndt/smithforge/version"
)

// Globals are the flags shared by all commands
type Globals struct {
	Config   string `help:"Configuration file (default: smithforge.yaml when present)" type:"path" short:"c"`
	Verbose  bool   `help:"Debug logging" short:"v"`
	Progress string `help:"Progress output: auto draws a bar, plain prints every step" enum:"auto,plain" default:"auto"`
}

type CLI struct {
	Globals

	Forge      *ForgeCmd      `cmd:"" help:"Combine a HueForge model with a base model into one 3MF"`
	Serve      *ServeCmd      `cmd:"" help:"Run the web interface"`
	Inspect    *InspectCmd    `cmd:"" help:"Inspect a 3MF or STL file and show its contents"`
	Layers     *LayersCmd     `cmd:"" help:"Show the colour layers of a 3MF file"`
	Swaps      *SwapsCmd      `cmd:"" help:"Parse HueForge swap instructions into height ranges"`
	Repair     *RepairCmd     `cmd:"" help:"Validate and repair a mesh"`
	Extract    *ExtractCmd    `cmd:"" help:"Extract the meshes of a 3MF file as STL"`
	Fix        *FixCmd        `cmd:"" help:"Fix namespaces and build plate transform of a slicer exported 3MF"`
	Completion *CompletionCmd `cmd:"" help:"Generate shell completion script"`
	Version    *VersionCmd    `cmd:"" help:"Show version information"`
}

// loadConfig reads --config, or smithforge.yaml when it exists
func (g *Globals) loadConfig() (*models.Config, error) {
	loader := config.NewLoader()
	path, optional := g.Config, false
	if path == "" {
		path, optional = config.DefaultFile, true
	}
	cfg, err := loader.LoadOptional(path, optional)
	if err != nil {
		return nil, err
	}
	if err := loader.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (g *Globals) logger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if g.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// openFile opens a file in the default application for the current platform
func openFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := version.Get()
	fmt.Println(info.String())
	return nil
}

// Parse parses command line arguments and executes the appropriate command
func Parse() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("smithforge"),
		kong.Description("Combine HueForge models with base models into printable 3MF files"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// defaultRepairedName is <name>_repaired.stl next to the input
func defaultRepairedName(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + "_repaired.stl"
}
