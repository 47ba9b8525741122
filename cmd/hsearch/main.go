// Command hsearch runs a study file and prints the ranked results.
//
//	hsearch -f study.yaml [-jobs N] [-iterations N] [-seed S] [-strategy NAME] [-best-effort]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/copyleftdev/hypersearch/internal/logging"
	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/parallel"
	"github.com/copyleftdev/hypersearch/internal/study"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "hsearch: %v\n", err)
		}
		os.Exit(1)
	}
}

// seedFlag records whether -seed was given.
type seedFlag struct{ v *int64 }

func (s *seedFlag) String() string {
	if s.v == nil {
		return ""
	}
	return strconv.FormatInt(*s.v, 10)
}

func (s *seedFlag) Set(raw string) error {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	s.v = &v
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hsearch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		file       = fs.String("f", "", "study file (YAML)")
		jobs       = fs.Int("jobs", 0, "number of parallel jobs (overrides the study)")
		iterations = fs.Int("iterations", 0, "total iteration budget (overrides the study)")
		strategy   = fs.String("strategy", "", "move strategy (overrides the study)")
		bestEffort = fs.Bool("best-effort", false, "reduce successful jobs when some fail")
		logLevel   = fs.String("log-level", "warn", "log level: debug|info|warn|error")
		top        = fs.Int("top", 0, "print only the best N results")
		seed       seedFlag
	)
	fs.Var(&seed, "seed", "base seed; job i uses seed+i")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return fmt.Errorf("-f is required")
	}

	def, err := study.Load(*file)
	if err != nil {
		return err
	}
	if *jobs > 0 {
		def.Jobs = *jobs
	}
	if *iterations > 0 {
		def.Iterations = *iterations
	}
	if *strategy != "" {
		def.Strategy = *strategy
	}
	if seed.v != nil {
		def.Seed = seed.v
	}
	if *bestEffort {
		def.BestEffort = bestEffort
	}

	logger, err := logging.NewLogger(&logging.Config{Level: *logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		return err
	}
	engineLogger := logging.NewZapLogger(logger)
	defer func() { _ = engineLogger.Sync() }()

	compiler := &study.Compiler{Logger: engineLogger}
	req, err := compiler.Compile(def)
	if err != nil {
		return err
	}

	out, err := parallel.New(engineLogger, nil).Run(ctx, *req)
	if err != nil {
		return err
	}
	return printOutcome(stdout, def, out, *top)
}

func printOutcome(w io.Writer, def *study.Definition, out *parallel.Outcome, top int) error {
	if def.Name != "" {
		fmt.Fprintf(w, "study: %s\n", def.Name)
	}
	fmt.Fprintf(w, "budgets: %v\n", out.Budgets)
	if len(out.Dropped) > 0 {
		fmt.Fprintf(w, "dropped models: %s\n", strings.Join(out.Dropped, ", "))
	}

	ranked := out.Ranked
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tJOB\tMODEL\tSCORE\tEVALS\tHITS\tCONFIGURATION")
	for i, r := range ranked {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.6g\t%d\t%d\t%s\n",
			i+1, r.JobID, r.Model, r.BestScore, r.Evaluations, r.CacheHits, formatConfig(r.BestConfiguration))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range out.Failures {
		fmt.Fprintf(w, "job %d excluded: %v\n", f.JobID, f.Cause)
	}
	return nil
}

// formatConfig renders a configuration as name=value pairs in name order.
func formatConfig(cfg optimization.Configuration) string {
	names := cfg.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%v", n, cfg[n])
	}
	return strings.Join(parts, " ")
}
