package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/meshkit/netbench/internal/config"
	"github.com/meshkit/netbench/internal/experiment"
	"github.com/meshkit/netbench/internal/observability"
	"github.com/meshkit/netbench/internal/results"
	"github.com/meshkit/netbench/internal/transport"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "scenario.toml", "scenario file")
		initKind     = flag.String("init", "", "write a scenario template: basic|sweep")
		compileDir   = flag.String("compile", "", "compile instruction streams into this directory")
		decodeDir    = flag.String("decode", "", "decode result buffers from this directory")
		dryRun       = flag.Bool("dry-run", false, "run the scenario against an in-memory transport")
		outDir       = flag.String("out", ".", "directory for result tables")
		na           = flag.String("na", results.DefaultNA, "placeholder for empty table cells")
		ignoreDL     = flag.Bool("ignore-deadlines", false, "tolerate deadline-only interpreter faults")
		force        = flag.Bool("force", false, "overwrite existing output files")
		metricsAddr  = flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger := observability.InitLogger("netbenchctl")
	if !*verbose {
		logger = logger.Level(zerolog.InfoLevel)
	}
	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	modes := 0
	if *initKind != "" {
		modes++
	}
	if *compileDir != "" {
		modes++
	}
	if *decodeDir != "" {
		modes++
	}
	if *dryRun {
		modes++
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "netbenchctl: pick exactly one of -init, -compile, -decode, -dry-run")
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch {
	case *initKind != "":
		err = doInit(logger, *scenarioPath, *initKind, *force)
	case *compileDir != "":
		err = doCompile(logger, *scenarioPath, *compileDir)
	case *decodeDir != "":
		err = doDecode(logger, *scenarioPath, *decodeDir, *outDir, *na, *ignoreDL)
	case *dryRun:
		err = doDryRun(logger, *scenarioPath, *outDir, *na, *ignoreDL)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "netbenchctl: %v\n", err)
		os.Exit(1)
	}
}

func serveMetrics(logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func doInit(logger zerolog.Logger, path, kind string, force bool) error {
	if err := config.WriteTemplate(path, kind, force); err != nil {
		return err
	}
	logger.Info().Str("path", path).Str("kind", kind).Msg("wrote scenario template")
	return nil
}

func load(logger zerolog.Logger, path string) (*experiment.Experiment, config.Scenario, error) {
	cfg, err := config.LoadScenario(path)
	if err != nil {
		return nil, config.Scenario{}, err
	}
	e, err := config.Build(cfg, transport.NewMem())
	if err != nil {
		return nil, config.Scenario{}, err
	}
	e.SetLogger(logger)
	return e, cfg, nil
}

// doCompile writes one instruction-stream image per core plus a manifest
// tying images, result files, and buffer sizes together for the decode
// side.
func doCompile(logger zerolog.Logger, scenarioPath, dir string) error {
	e, cfg, err := load(logger, scenarioPath)
	if err != nil {
		return err
	}
	p, err := e.Prepare()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	m := newManifest(cfg.Name, p)
	for i, c := range p.Cores() {
		if err := os.WriteFile(filepath.Join(dir, m.Cores[i].Image), p.Image(c), 0o644); err != nil {
			return err
		}
	}
	if err := m.write(filepath.Join(dir, manifestName)); err != nil {
		return err
	}
	logger.Info().
		Str("dir", dir).
		Int("cores", len(p.Cores())).
		Int("samples", p.TotalSamples()).
		Msg("compiled scenario")
	return nil
}

// doDecode rebuilds the scenario, checks it still matches the compile
// manifest, reads each core's raw result dump, and writes the tables.
func doDecode(logger zerolog.Logger, scenarioPath, dir, outDir, na string, ignoreDL bool) error {
	e, cfg, err := load(logger, scenarioPath)
	if err != nil {
		return err
	}
	p, err := e.Prepare()
	if err != nil {
		return err
	}
	m, err := readManifest(filepath.Join(dir, manifestName))
	if err != nil {
		return err
	}
	if err := m.check(cfg.Name, p); err != nil {
		return err
	}

	raw := make(map[*experiment.Core][]byte, len(p.Cores()))
	for i, c := range p.Cores() {
		data, err := os.ReadFile(filepath.Join(dir, m.Cores[i].Results))
		if err != nil {
			return fmt.Errorf("result dump for %s: %w", c, err)
		}
		raw[c] = data
	}
	res, err := p.Decode(raw)
	if err != nil {
		return err
	}
	if err := writeTables(logger, res, outDir, na); err != nil {
		return err
	}
	if fs := res.Faults(); !fs.Empty() && !(ignoreDL && fs.DeadlinesOnly()) {
		return fmt.Errorf("interpreter faults: %s", fs)
	}
	if !res.Complete() {
		logger.Warn().Msg("some result buffers were truncated; missing samples read as zero")
	}
	return nil
}

func doDryRun(logger zerolog.Logger, scenarioPath, outDir, na string, ignoreDL bool) error {
	e, _, err := load(logger, scenarioPath)
	if err != nil {
		return err
	}
	res, err := e.Run(context.Background(), experiment.RunConfig{
		IgnoreDeadlineFaults: ignoreDL,
	})
	var fe *experiment.FaultError
	if errors.As(err, &fe) {
		// tables still describe the faulted run; write them before
		// reporting the failure
		if werr := writeTables(logger, fe.Results, outDir, na); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		return err
	}
	return writeTables(logger, res, outDir, na)
}

func writeTables(logger zerolog.Logger, res *experiment.RunResults, dir, na string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tables := []struct {
		name  string
		table *results.Table
	}{
		{"totals.csv", res.Totals()},
		{"core_totals.csv", res.CoreTotals()},
		{"flow_totals.csv", res.FlowTotals()},
		{"flow_counters.csv", res.FlowCounters()},
		{"router_counters.csv", res.RouterCounters()},
	}
	for _, t := range tables {
		path := filepath.Join(dir, t.name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := results.WriteCSV(f, t.table, na); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info().Str("path", path).Int("rows", t.table.Len()).Msg("wrote table")
	}
	return nil
}
