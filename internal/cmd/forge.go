package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/philipparndt/smithforge/internal/catalog"
	"github.com/philipparndt/smithforge/internal/engine"
	"github.com/philipparndt/smithforge/internal/forge"
	"github.com/philipparndt/smithforge/internal/server"
	"github.com/philipparndt/smithforge/internal/store"
	"github.com/philipparndt/smithforge/internal/threemf"
	"github.com/philipparndt/smithforge/internal/ui"
)

type ForgeCmd struct {
	Hueforge string  `help:"HueForge model (3MF or STL)" short:"f" required:"" type:"path"`
	Base     string  `help:"Base model (3MF or STL)" short:"b" required:"" type:"path"`
	Output   string  `help:"Output 3MF file" short:"o" default:"combined.3mf" type:"path"`
	Rotate   float64 `help:"Rotate the base around Z, in degrees" name:"rotatebase" default:"0"`
	Scale    float64 `help:"Force the XY scale of the HueForge model" short:"s"`
	Down     bool    `help:"Allow scaling the HueForge model down" name:"scaledown"`
	XShift   float64 `help:"Move the HueForge model along X (mm)" name:"xshift"`
	YShift   float64 `help:"Move the HueForge model along Y (mm)" name:"yshift"`
	ZShift   float64 `help:"Move the HueForge model along Z (mm)" name:"zshift"`

	PreserveColors   bool   `help:"Carry the colour swaps of a HueForge 3MF into the output" name:"preserve-colors"`
	InjectColorsText string `help:"Text file with HueForge swap instructions" name:"inject-colors-text" type:"path"`
	AutoRepair       bool   `help:"Repair both meshes before combining" name:"auto-repair"`
	FillGaps         bool   `help:"Fill the gap between base top and HueForge bottom" name:"fill-gaps"`
	OutputFormat     string `help:"3MF flavour: standard or bambu" name:"output-format" enum:"standard,bambu" default:"standard"`

	Engine  string `help:"Boolean engine, overrides the configuration (python, assemble)"`
	Preview string `help:"Write a footprint preview PNG" type:"path"`
	Open    bool   `help:"Open the result file in the default application"`
}

// Help adds additional help text with examples
func (c *ForgeCmd) Help() string {
	return renderForgeHelp()
}

func (c *ForgeCmd) options() (forge.Options, error) {
	format, err := threemf.ParseFormat(c.OutputFormat)
	if err != nil {
		return forge.Options{}, err
	}
	return forge.Options{
		Hueforge:         c.Hueforge,
		Base:             c.Base,
		Output:           c.Output,
		RotateBase:       c.Rotate,
		Scale:            c.Scale,
		ScaleDown:        c.Down,
		XShift:           c.XShift,
		YShift:           c.YShift,
		ZShift:           c.ZShift,
		PreserveColors:   c.PreserveColors,
		InjectColorsText: c.InjectColorsText,
		AutoRepair:       c.AutoRepair,
		FillGaps:         c.FillGaps,
		Format:           format,
		Preview:          c.Preview,
	}, nil
}

func (c *ForgeCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Engine != "" {
		cfg.Engine.Kind = c.Engine
	}
	logger, err := g.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	eng, err := engine.New(cfg.Engine, logger)
	if err != nil {
		return err
	}
	opts, err := c.options()
	if err != nil {
		return err
	}

	ui.PrintTitle("SmithForge")
	reporter := ui.NewReporter()
	reporter.Verbose = reporter.Verbose || g.Progress == "plain"

	plan, err := forge.NewPlanner(eng, cfg.Forge, reporter).CreatePlan(opts)
	if err != nil {
		return fmt.Errorf("failed to create build plan: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := plan.Execute(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", engine.Message(err), err)
	}

	printSummary(summary)

	if c.Open {
		if err := openFile(summary.Output); err != nil {
			ui.PrintError("Failed to open file: " + err.Error())
		}
	}
	return nil
}

func printSummary(summary *forge.Summary) {
	ui.PrintSeparator()
	ui.PrintBox(fmt.Sprintf("Combined model written to %s", summary.Output))
	ui.PrintKeyValue("Scale", fmt.Sprintf("%.4f", summary.Scale))
	ui.PrintKeyValue("Z offset", fmt.Sprintf("%.3fmm", summary.ZOffset))
	ui.PrintKeyValue("Faces", fmt.Sprintf("%d", summary.Faces))
	ui.PrintKeyValue("Format", string(summary.Format))
	if len(summary.Ranges) > 0 {
		ui.PrintList("Colour ranges", rangeStrings(summary))
	}
	if len(summary.Warnings) > 0 {
		ui.PrintWarning(fmt.Sprintf("%d warning(s)", len(summary.Warnings)))
	}
}

func rangeStrings(summary *forge.Summary) []string {
	out := make([]string, len(summary.Ranges))
	for i, r := range summary.Ranges {
		out[i] = r.String()
	}
	return out
}

type ServeCmd struct {
	Addr   string `help:"Listen address, overrides the configuration"`
	Engine string `help:"Boolean engine, overrides the configuration (python, assemble)"`
	NoJobs bool   `help:"Do not record job history" name:"no-jobs"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.Engine != "" {
		cfg.Engine.Kind = c.Engine
	}

	logger, err := g.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	eng, err := engine.New(cfg.Engine, logger)
	if err != nil {
		return err
	}
	if err := eng.Check(ctx); err != nil {
		logger.Warn("engine check failed, runs will fail until it is fixed",
			zap.String("engine", eng.Name()), zap.Error(err))
	}

	bases, err := catalog.New(cfg.Server.BasesDir, logger)
	if err != nil {
		return err
	}
	defer bases.Close()
	if err := bases.Start(ctx); err != nil {
		return err
	}

	var jobs *store.Store
	if !c.NoJobs && cfg.Server.JobDB != "" {
		if jobs, err = openStore(cfg.Server.JobDB); err != nil {
			return err
		}
		defer jobs.Close()
	}

	srv, err := server.New(server.Options{
		Config:  cfg.Server,
		Forge:   cfg.Forge,
		Engine:  eng,
		Catalog: bases,
		Store:   jobs,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ui.PrintTitle("SmithForge")
	ui.PrintKeyValue("Listening", cfg.Server.Addr)
	ui.PrintKeyValue("Bases", cfg.Server.BasesDir)
	ui.PrintKeyValue("Outputs", cfg.Server.OutputsDir)
	ui.PrintKeyValue("Engine", eng.Name())

	return serve(ctx, srv)
}

func serve(ctx context.Context, srv *server.Server) error {
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job database directory: %w", err)
	}
	return store.Open(path)
}
