package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"Facestab/internal/calc/facestab"
	"Facestab/internal/calc/importer"
	"Facestab/internal/calc/report"
	"Facestab/internal/repo"
)

type runOptions struct {
	preset    string
	method    string
	archingK  float64
	height    float64
	depth     float64
	surcharge float64
	gamma     float64
	cohesion  float64
	phi       float64
	water     float64
	xmin      float64
	xmax      float64
	samples   int
	workers   int
	applied   float64
	title     string

	pdfPath  string
	xlsxPath string
	mdPath   string
	save     bool
	timeout  time.Duration
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [request.yaml]",
	Short: "Run one analysis and print the result as JSON",
	Long: `Reads an analysis request from a YAML file (optional) and applies any
parameter flags on top of it.

Example:
  facestab run --preset loose_sand --height 5 --depth 10 --pdf face.pdf`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalysis,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.preset, "preset", "", "Soil preset (see 'facestab presets')")
	f.StringVar(&runOpts.method, "method", "", "Overburden method: simple, terzaghi or terzaghi_rankine")
	f.Float64Var(&runOpts.archingK, "arching-k", 0, "Lateral pressure ratio for terzaghi")
	f.Float64Var(&runOpts.height, "height", 0, "Face height H [m]")
	f.Float64Var(&runOpts.depth, "depth", 0, "Cover depth D above the crown [m]")
	f.Float64Var(&runOpts.surcharge, "surcharge", 0, "Surface surcharge [kPa]")
	f.Float64Var(&runOpts.gamma, "gamma", 0, "Unit weight [kN/m³]")
	f.Float64Var(&runOpts.cohesion, "cohesion", 0, "Cohesion [kPa]")
	f.Float64Var(&runOpts.phi, "phi", 0, "Friction angle [°]")
	f.Float64Var(&runOpts.water, "water", 0, "Pore water pressure [kPa]")
	f.Float64Var(&runOpts.xmin, "xmin", 0, "Smallest wedge extent [m]")
	f.Float64Var(&runOpts.xmax, "xmax", 0, "Largest wedge extent [m]")
	f.IntVar(&runOpts.samples, "samples", 0, "Number of extents")
	f.IntVar(&runOpts.workers, "workers", 0, "Parallel sweep workers")
	f.Float64Var(&runOpts.applied, "applied", 0, "Applied face pressure for the safety factor [kPa]")
	f.StringVar(&runOpts.title, "title", "", "Report title")
	f.StringVar(&runOpts.pdfPath, "pdf", "", "Write a PDF report to this path")
	f.StringVar(&runOpts.xlsxPath, "xlsx", "", "Write the curve workbook to this path")
	f.StringVar(&runOpts.mdPath, "md", "", "Write a markdown report to this path")
	f.BoolVar(&runOpts.save, "save", false, "Store the analysis in the configured store")
	f.DurationVar(&runOpts.timeout, "timeout", 2*time.Minute, "Abort the sweep after this long")
}

func loadRequest(path string) (facestab.Request, error) {
	var req facestab.Request
	if path == "" {
		return req, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read request: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// applyFlags copies every flag the user set onto the request.
func applyFlags(cmd *cobra.Command, req *facestab.Request) {
	changed := cmd.Flags().Changed
	set := func(name string, dst *float64, v float64) {
		if changed(name) {
			*dst = v
		}
	}
	if changed("preset") {
		req.Preset = runOpts.preset
	}
	if changed("method") {
		req.Method = runOpts.method
	}
	if changed("title") {
		req.Title = runOpts.title
	}
	set("arching-k", &req.ArchingK, runOpts.archingK)
	set("height", &req.Tunnel.HeightM, runOpts.height)
	set("depth", &req.Tunnel.DepthM, runOpts.depth)
	set("surcharge", &req.Tunnel.SurchargeKPa, runOpts.surcharge)
	set("gamma", &req.Ground.GammaKNM3, runOpts.gamma)
	set("cohesion", &req.Ground.CohesionKPa, runOpts.cohesion)
	set("phi", &req.Ground.PhiDeg, runOpts.phi)
	set("water", &req.Ground.WaterKPa, runOpts.water)
	set("xmin", &req.Search.XMinM, runOpts.xmin)
	set("xmax", &req.Search.XMaxM, runOpts.xmax)
	set("applied", &req.AppliedPressureKPa, runOpts.applied)
	if changed("samples") {
		req.Search.Samples = runOpts.samples
		req.Search.StepM = 0
	}
	if changed("workers") {
		req.Search.Workers = runOpts.workers
	}
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	req, err := loadRequest(path)
	if err != nil {
		return err
	}
	applyFlags(cmd, &req)

	ctx, cancel := context.WithTimeout(cmd.Context(), runOpts.timeout)
	defer cancel()

	log := logger
	if log == nil {
		log = discardLogger()
	}
	rn := cfg.Runner(log)
	res, runErr := rn.Run(ctx, req)
	if runErr != nil && !errors.Is(runErr, facestab.ErrNonConvergent) && !errors.Is(runErr, facestab.ErrCancelled) {
		return runErr
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if err := writeOutputs(req, res); err != nil {
		return err
	}
	if runOpts.save {
		id, err := save(ctx, req, res)
		if err != nil {
			return err
		}
		log.Info("analysis stored", "id", id)
	}
	return runErr
}

func writeOutputs(req facestab.Request, res facestab.Result) error {
	rec := report.NewRecord(req.Title, res, time.Now())
	if runOpts.pdfPath != "" {
		if err := writeFile(runOpts.pdfPath, func(f *os.File) error { return report.WritePDF(f, rec) }); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	}
	if runOpts.mdPath != "" {
		if err := os.WriteFile(runOpts.mdPath, []byte(report.Markdown(rec)), 0644); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
	}
	if runOpts.xlsxPath != "" {
		if err := writeFile(runOpts.xlsxPath, func(f *os.File) error { return importer.WriteCurve(f, req.Title, res) }); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	}
	return nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func save(ctx context.Context, req facestab.Request, res facestab.Result) (string, error) {
	if cfg.Store.Driver == "" {
		return "", fmt.Errorf("--save needs a store (set store.driver or DATABASE_URL)")
	}
	r, err := repo.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return repo.Recorder{Repo: r}.Record(ctx, req, res)
}
