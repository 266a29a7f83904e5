package cli

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dicom-deident/internal/anonymizer"
	"dicom-deident/internal/copier"
	dcm "dicom-deident/internal/dicom"
	"dicom-deident/internal/grouping"
	"dicom-deident/internal/identity"
	"dicom-deident/internal/report"
)

// Options holds the run configuration.
type Options struct {
	Source     string
	Dest       string
	ListOnly   bool
	Salt       string
	Workers    int
	ConfigFile string
	LogFile    string

	// Out receives all human-readable output; nil writes to stdout.
	Out func(string)

	// Filled from the config file.
	configWhitelist []string
	configRetain    []string
}

// Run executes one de-identification pass: scan, anonymize, plan, copy.
// A returned error means the run failed and the process should exit
// non-zero; per-file problems are reported in the summary instead.
func Run(opts Options) error {
	output := opts.Out
	if output == nil {
		output = func(s string) { fmt.Print(s) }
	}

	info, err := os.Stat(opts.Source)
	if err != nil {
		return fmt.Errorf("source directory does not exist: %s", opts.Source)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path is not a directory: %s", opts.Source)
	}

	if opts.ConfigFile != "" {
		cfg, err := LoadConfig(opts.ConfigFile)
		if err != nil {
			return err
		}
		if opts.Salt == "" {
			opts.Salt = cfg.Salt
		}
		if opts.Workers == 0 {
			opts.Workers = cfg.Workers
		}
		opts.configWhitelist = cfg.PrivateWhitelist
		opts.configRetain = cfg.RetainTags
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	// Profile problems are fatal before any file is touched: a partial
	// rule table must not anonymize anything.
	profile := anonymizer.DefaultProfile()
	for _, s := range opts.configWhitelist {
		t, err := parseTag(s)
		if err != nil {
			return err
		}
		profile.WhitelistPrivate(t)
	}
	for _, s := range opts.configRetain {
		t, err := parseTag(s)
		if err != nil {
			return err
		}
		profile.Retain(t)
	}
	engine, err := anonymizer.New(profile, identity.NewMap(opts.Salt))
	if err != nil {
		return err
	}

	output(fmt.Sprintf("Scanning %s\n", opts.Source))
	g, err := grouping.Scan(opts.Source)
	if err != nil {
		return err
	}
	if len(g.Series) == 0 {
		return fmt.Errorf("no DICOM datasets found in %s", opts.Source)
	}

	output(fmt.Sprintf("Found %d dataset(s) in %d series across %d study(ies)\n",
		g.FileCount(), len(g.Series), g.StudyCount()))

	plans := copier.Plan(g, opts.Dest)

	if opts.ListOnly {
		listPlan(plans, output)
		printScanNotes(g, output)
		return nil
	}

	rep, err := report.New(opts.LogFile)
	if err != nil {
		return err
	}
	defer rep.Close()

	failedSeries := executePlans(plans, engine, rep, opts.Workers, output)

	if err := writeManifest(opts.Dest, plans); err != nil {
		return fmt.Errorf("could not write mapping manifest: %w", err)
	}

	printSummary(g, rep, opts.Dest, output)
	printScanNotes(g, output)

	if failedSeries > 0 {
		return fmt.Errorf("%d series failed entirely", failedSeries)
	}
	return nil
}

// executePlans processes series, each as one independent work unit, with an
// optional worker pool. Returns the number of series with zero successful
// files.
func executePlans(plans []copier.SeriesPlan, engine *anonymizer.Engine, rep *report.Report, workers int, output func(string)) int {
	var mu sync.Mutex
	failedSeries := 0

	process := func(plan copier.SeriesPlan) {
		succeeded := 0
		for _, op := range plan.Ops {
			n, err := processFile(op, engine)
			if err != nil {
				rep.Failure(op.SourcePath, err)
				output(fmt.Sprintf("  Error: %s: %v\n", filepath.Base(op.SourcePath), err))
				continue
			}
			rep.Success(n)
			succeeded++
		}
		if succeeded == 0 && len(plan.Ops) > 0 {
			mu.Lock()
			failedSeries++
			mu.Unlock()
		}
	}

	if workers <= 1 {
		for _, plan := range plans {
			process(plan)
		}
		return failedSeries
	}

	jobs := make(chan copier.SeriesPlan)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for plan := range jobs {
				process(plan)
			}
		}()
	}
	for _, plan := range plans {
		jobs <- plan
	}
	close(jobs)
	wg.Wait()
	return failedSeries
}

// processFile decodes, anonymizes, and writes one file as an atomic unit.
// Returns the number of bytes written.
func processFile(op copier.CopyOp, engine *anonymizer.Engine) (int64, error) {
	data, err := os.ReadFile(op.SourcePath)
	if err != nil {
		return 0, fmt.Errorf("could not read file: %w", err)
	}
	f, err := dcm.DecodeBytes(data)
	if err != nil {
		return 0, err
	}
	anon, err := engine.Anonymize(f)
	if err != nil {
		return 0, err
	}
	payload, err := anon.EncodeBytes()
	if err != nil {
		return 0, err
	}
	if err := copier.Execute(op, payload); err != nil {
		return 0, err
	}
	return int64(len(payload)), nil
}

func listPlan(plans []copier.SeriesPlan, output func(string)) {
	output("\n[LIST ONLY] Planned copies:\n")
	files := 0
	for _, plan := range plans {
		output(fmt.Sprintf("\n%s (%d files)\n", plan.Dir, len(plan.Ops)))
		for _, op := range plan.Ops {
			output(fmt.Sprintf("  %s -> %s\n", op.SourcePath, op.DestPath))
			files++
		}
	}
	output(fmt.Sprintf("\n%d file(s) in %d series would be copied; nothing was written\n",
		files, len(plans)))
}

// writeManifest records original series keys against destination folders so
// the grouping stays auditable without re-identifying any patient.
func writeManifest(destRoot string, plans []copier.SeriesPlan) error {
	f, err := os.Create(filepath.Join(destRoot, "mapping.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"study_uid", "series_uid", "destination"}); err != nil {
		return err
	}
	for _, plan := range plans {
		if err := w.Write([]string{plan.Key.StudyUID, plan.Key.SeriesUID, plan.Dir}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func printSummary(g *grouping.Grouping, rep *report.Report, dest string, output func(string)) {
	output(fmt.Sprintf("\n%s\n", strings.Repeat("=", 50)))
	output(fmt.Sprintf("Complete! %d succeeded, %d failed\n",
		rep.Succeeded(), len(rep.Failures())))
	output(fmt.Sprintf("Studies:   %d\n", g.StudyCount()))
	output(fmt.Sprintf("Series:    %d\n", len(g.Series)))
	output(fmt.Sprintf("Written:   %s\n", report.HumanSize(rep.BytesWritten())))
	output(fmt.Sprintf("Output:    %s\n", dest))

	for _, f := range rep.Failures() {
		output(fmt.Sprintf("  failed: %s: %s\n", f.Path, f.Err))
	}
}

func printScanNotes(g *grouping.Grouping, output func(string)) {
	if len(g.Duplicates) > 0 {
		output(fmt.Sprintf("\n%d duplicate instance(s) skipped:\n", len(g.Duplicates)))
		for _, d := range g.Duplicates {
			output(fmt.Sprintf("  %s (same SOPInstanceUID as %s)\n", d.Path, d.FirstPath))
		}
	}
	if len(g.Rejected) > 0 {
		output(fmt.Sprintf("\n%d path(s) skipped as non-DICOM:\n", len(g.Rejected)))
		for _, r := range g.Rejected {
			output(fmt.Sprintf("  %s (%s)\n", r.Path, r.Reason))
		}
	}
}
