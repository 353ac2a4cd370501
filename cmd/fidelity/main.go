// Command fidelity is the command-line front end of the verification
// pipeline. `fidelity test` compares an original document against one or
// more converted artifacts and renders a verdict; `fidelity profiles`
// inspects and manages tolerance profiles.
//
// Exit codes: 0 the run completed (a FAIL verdict still exits 0 unless
// -exit-on-failure is set), 1 verification failed under -exit-on-failure,
// 2 usage or configuration error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/fidelity/compat"
	"github.com/hazyhaar/fidelity/report"
	"github.com/hazyhaar/fidelity/roundtrip"
	"github.com/hazyhaar/fidelity/tolerance"
)

const (
	exitPass  = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}
	switch args[0] {
	case "test":
		return runTest(args[1:])
	case "profiles":
		return runProfiles(args[1:])
	case "-h", "--help", "help":
		usage()
		return exitPass
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage:
  fidelity test -doc <original> [options] <converted>...
  fidelity profiles [-show <name>] [-save <name> -o <file>] [-load <file>]

Test options:
  -doc string              original document (required)
  -profile string          tolerance profile (default "normal")
  -fail-threshold float    minimum token survival percentage (default 70)
  -critical-threshold float  minimum critical-carrier survival percentage (default 100)
  -format string           report format: text, json, csv, html (default "text")
  -out string              write the report to a file instead of stdout
  -exit-on-failure         exit 1 when verification fails (default false)
  -v                       verbose logging
`)
}

func runTest(args []string) int {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		docPath           = fs.String("doc", "", "original document")
		profile           = fs.String("profile", tolerance.ProfileNormal, "tolerance profile")
		failThreshold     = fs.Float64("fail-threshold", 70, "minimum token survival percentage")
		criticalThreshold = fs.Float64("critical-threshold", 100, "minimum critical-carrier survival percentage")
		format            = fs.String("format", "text", "report format: text, json, csv, html")
		outPath           = fs.String("out", "", "report output file")
		exitOnFailure     = fs.Bool("exit-on-failure", false, "exit 1 when verification fails")
		verbose           = fs.Bool("v", false, "verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	setupLogging(*verbose)

	// Configuration is validated in full before any document is touched.
	if *docPath == "" {
		fmt.Fprintln(os.Stderr, "-doc is required")
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one converted document is required")
		return exitUsage
	}
	if *failThreshold < 0 || *failThreshold > 100 {
		fmt.Fprintf(os.Stderr, "-fail-threshold %v: %v\n", *failThreshold, tolerance.ErrInvalidThreshold)
		return exitUsage
	}
	if *criticalThreshold < 0 || *criticalThreshold > 100 {
		fmt.Fprintf(os.Stderr, "-critical-threshold %v: %v\n", *criticalThreshold, tolerance.ErrInvalidThreshold)
		return exitUsage
	}
	switch *format {
	case "text", "json", "csv", "html":
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		return exitUsage
	}

	cfg := roundtrip.DefaultConfig()
	cfg.Profile = *profile
	cfg.FailThreshold = *failThreshold
	cfg.CriticalThreshold = *criticalThreshold

	svc, err := roundtrip.New(cfg, slog.Default())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	if _, err := svc.Registry().Profile(*profile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	original, err := os.ReadFile(*docPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	converted := make(map[string][]byte, fs.NArg())
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
		converted[platformName(path)] = data
	}

	rep, err := svc.RunMatrix(context.Background(), original, converted, *profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	if err := render(rep, *format, *outPath, *criticalThreshold, *failThreshold); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	if failed(rep, *failThreshold, *criticalThreshold) && *exitOnFailure {
		return exitFail
	}
	return exitPass
}

// platformName derives the platform label from a converted file's name.
func platformName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// failed decides the verdict: any platform below the survival threshold,
// any critical carrier lost when the critical threshold demands them all,
// or any tolerance violation.
func failed(rep *compat.CompatibilityReport, failThreshold, criticalThreshold float64) bool {
	for _, p := range rep.Platforms {
		if p.SurvivalRate < failThreshold {
			return true
		}
		if !p.TolerancePassed {
			return true
		}
		if criticalThreshold >= 100 && len(p.CriticalFailures) > 0 {
			return true
		}
	}
	return rep.OverallMetrics.CriticalSuccessRate < criticalThreshold
}

func render(rep *compat.CompatibilityReport, format, outPath string, criticalThreshold, failThreshold float64) error {
	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "json":
		return report.RenderJSON(out, rep)
	case "csv":
		return report.RenderCSV(out, rep)
	case "html":
		return report.RenderHTML(out, rep)
	}

	// Text format: the PASS/FAIL banner plus per-platform lines.
	verdict := "PASS"
	if failed(rep, failThreshold, criticalThreshold) {
		verdict = "FAIL"
	}
	fmt.Fprintf(out, "%s  %s template, profile %q\n", verdict, rep.DocType, rep.Profile)
	fmt.Fprintf(out, "overall survival %.1f%%, critical success %.1f%%, reliability %.1f\n\n",
		rep.OverallMetrics.OverallSurvivalRate,
		rep.OverallMetrics.CriticalSuccessRate,
		rep.OverallMetrics.ReliabilityScore)

	for _, p := range rep.Platforms {
		status := "ok"
		switch {
		case p.Partial && p.TotalCarriers == 0:
			status = "no data"
		case p.SurvivalRate < failThreshold:
			status = fmt.Sprintf("below threshold (%.1f%% < %.0f%%)", p.SurvivalRate, failThreshold)
		case !p.TolerancePassed:
			status = "tolerance failed"
		case len(p.CriticalFailures) > 0:
			status = fmt.Sprintf("%d critical tokens lost", len(p.CriticalFailures))
		}
		fmt.Fprintf(out, "  %-20s survival %5.1f%%  %d/%d/%d preserved/modified/lost  %s\n",
			p.Platform, p.SurvivalRate, p.Preserved, p.Modified, p.Lost, status)
		for _, tok := range p.CriticalFailures {
			fmt.Fprintf(out, "      critical: %s\n", tok)
		}
	}

	if len(rep.Recommendations) > 0 {
		fmt.Fprintln(out)
		for _, r := range rep.Recommendations {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return nil
}

func runProfiles(args []string) int {
	fs := flag.NewFlagSet("profiles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		show    = fs.String("show", "", "print one profile's record")
		save    = fs.String("save", "", "write one profile's record to -o")
		outFile = fs.String("o", "", "output file for -save")
		load    = fs.String("load", "", "load a profile record and print it back")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	setupLogging(false)

	reg := tolerance.NewConfig()

	switch {
	case *show != "":
		p, err := reg.Profile(*show)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
		data, err := tolerance.MarshalProfile(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
		fmt.Println(string(data))

	case *save != "":
		if *outFile == "" {
			fmt.Fprintln(os.Stderr, "-save requires -o <file>")
			return exitUsage
		}
		if err := reg.SaveProfile(*save, *outFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
		fmt.Printf("profile %q written to %s\n", *save, *outFile)

	case *load != "":
		p, err := reg.LoadProfile(*load)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
		fmt.Printf("profile %q loaded: %d rules, %d critical paths, %d ignorable paths\n",
			p.Name, len(p.Rules), len(p.CriticalPaths), len(p.IgnorablePaths))

	default:
		for _, name := range reg.Names() {
			p, err := reg.Profile(name)
			if err != nil {
				continue
			}
			fmt.Printf("%-12s %-12s %d rules\n", name, p.Level, len(p.Rules))
		}
	}
	return exitPass
}

func setupLogging(verbose bool) {
	lvl := slog.LevelWarn
	if verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
