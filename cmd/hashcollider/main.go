package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lth/hashcollider/internal/config"
	"github.com/lth/hashcollider/internal/console"
	"github.com/lth/hashcollider/internal/cracker"
	"github.com/lth/hashcollider/internal/extract"
	"github.com/lth/hashcollider/internal/generator"
	"github.com/lth/hashcollider/internal/oracle"
	"github.com/lth/hashcollider/internal/parsers"
	"github.com/lth/hashcollider/internal/session"
	"github.com/lth/hashcollider/internal/store"
)

const (
	exitFatal     = 1
	exitNoInput   = 2
	exitCancelled = 130
)

var (
	version = "1.0.0"

	algorithm        string
	extended         bool
	separators       string
	workers          int
	batchSize        int
	workingFile      string
	compression      string
	proceedOnPartial bool
	strict           bool
	parserName       string
	configPath       string
	noProgress       bool
	verbose          bool
	inputs           []string
	inputFile        string
	benchCount       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hashcollider <digest>",
		Short: "Hash Collider - look for a digest preimage among permutations of input data",
		Long: `Hash Collider v` + version + `
Extracts elements from the input data (query strings, URLs, HTTP requests,
timestamps, JSON, plain words), joins every permutation of them with a set
of separators and hashes each candidate until one matches the digest.

The algorithm is identified from the digest length; use --algorithm when
the length is shared by several algorithms.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run:           runCollider,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&algorithm, "algorithm", "a", "", "Hash algorithm, instead of identifying it from the digest length")
	pf.BoolVarP(&extended, "extended", "x", false, "Identify against the extended algorithm catalog")
	pf.StringVar(&separators, "separators", ",+,|,.", "Comma-separated separators; an empty item is the empty separator")
	pf.StringArrayVarP(&inputs, "input", "i", nil, "Input data to extract elements from (repeatable)")
	pf.StringVar(&inputFile, "input-file", "", "File with one input per line ('-' for stdin)")
	pf.StringVarP(&parserName, "parser", "p", "", "Force this parser for every input")
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfig+")")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	pf.BoolVar(&strict, "strict", false, "Abort when an input cannot be parsed")

	rootCmd.Flags().IntVarP(&workers, "workers", "t", 0, "Number of verification workers (default 4x CPUs)")
	rootCmd.Flags().IntVarP(&batchSize, "batch", "b", 0, "Candidates per verification batch (default derived from the total)")
	rootCmd.Flags().StringVarP(&workingFile, "working-file", "o", "", "Keep the candidate stream at this path")
	rootCmd.Flags().StringVar(&compression, "compress", "none", "Candidate stream compression: none, zstd, lz4")
	rootCmd.Flags().BoolVar(&proceedOnPartial, "proceed-on-partial", false, "Verify the written part of the stream when generation fails on storage")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bars")

	identifyCmd := &cobra.Command{
		Use:   "identify <digest>",
		Short: "List the algorithms matching a digest length",
		Args:  cobra.ExactArgs(1),
		Run:   runIdentify,
	}

	algorithmsCmd := &cobra.Command{
		Use:   "algorithms",
		Short: "Print the supported algorithms with their digest lengths",
		Args:  cobra.NoArgs,
		Run:   runAlgorithms,
	}

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Print the vocabulary and candidate count for the given inputs",
		Args:  cobra.NoArgs,
		Run:   runCount,
	}

	benchCmd := &cobra.Command{
		Use:   "benchmark [digest]",
		Short: "Measure checks per second for an algorithm",
		Args:  cobra.MaximumNArgs(1),
		Run:   runBenchmark,
	}
	benchCmd.Flags().IntVarP(&workers, "workers", "t", 0, "Number of verification workers (default 4x CPUs)")
	benchCmd.Flags().IntVarP(&benchCount, "count", "n", 1_000_000, "Number of candidates to check")

	rootCmd.AddCommand(identifyCmd, algorithmsCmd, countCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFatal)
	}
}

func fatal(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(code)
}

// loadSettings reads the config file and lays explicitly set flags over it.
func loadSettings(cmd *cobra.Command) *config.Config {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fatal(exitFatal, "%v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("algorithm") {
		cfg.Algorithm = algorithm
	}
	if flags.Changed("extended") {
		cfg.Extended = extended
	}
	if flags.Changed("separators") || cfg.Separators == nil {
		cfg.Separators = config.ParseSeparators(separators)
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("batch") {
		cfg.BatchSize = batchSize
	}
	if flags.Changed("working-file") {
		cfg.WorkingFile = workingFile
	}
	if flags.Changed("compress") {
		cfg.Compression = compression
	}
	if flags.Changed("proceed-on-partial") {
		cfg.ProceedOnPartial = proceedOnPartial
	}
	if flags.Changed("strict") {
		cfg.Strict = strict
	}
	if flags.Changed("no-progress") {
		cfg.NoProgress = noProgress
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if err := cfg.Validate(); err != nil {
		fatal(exitFatal, "%v", err)
	}
	return cfg
}

// catalogFor picks the catalog a digest is resolved against. An explicit
// algorithm name may come from anywhere in the extended catalog.
func catalogFor(cfg *config.Config) oracle.Catalog {
	if cfg.Extended || cfg.Algorithm != "" {
		return oracle.Extended()
	}
	return oracle.Classic()
}

func reportAlgorithmError(rep *console.Reporter, err error) {
	var amb *oracle.AmbiguousAlgorithmError
	if errors.As(err, &amb) {
		rep.Error("A %d character digest may be any of: %s", amb.Length, strings.Join(amb.Candidates, ", "))
		rep.Info("Pick one with --algorithm.")
		os.Exit(exitFatal)
	}
	fatal(exitFatal, "%v", err)
}

// collectInputs gathers raw inputs from --input, --input-file, or stdin.
// On a terminal the user is prompted for a single line of data.
func collectInputs(ctx context.Context) []string {
	raw := append([]string(nil), inputs...)

	if inputFile != "" {
		r := os.Stdin
		if inputFile != "-" {
			f, err := os.Open(inputFile)
			if err != nil {
				fatal(exitFatal, "%v", err)
			}
			defer f.Close()
			r = f
		}
		lines, errc := lineSource(ctx, r)
		for line := range lines {
			raw = append(raw, line)
		}
		if err := <-errc; err != nil {
			fatal(exitFatal, "reading %s: %v", inputFile, err)
		}
	}

	if len(raw) > 0 {
		return raw
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Fprint(os.Stderr, "Data: ")
	}
	lines, errc := lineSource(ctx, os.Stdin)
	for line := range lines {
		raw = append(raw, line)
		if interactive {
			return raw
		}
	}
	if err := <-errc; err != nil {
		fatal(exitFatal, "reading stdin: %v", err)
	}
	return raw
}

type feeder interface {
	Feed(raw string) (int, error)
	FeedWith(parser, raw string) (int, error)
}

// feedAll hands every input to f. Inputs no parser accepts are skipped
// with a warning unless strict is set.
func feedAll(rep *console.Reporter, f feeder, raw []string, strict bool) {
	for _, in := range raw {
		var err error
		if parserName != "" {
			_, err = f.FeedWith(parserName, in)
		} else {
			_, err = f.Feed(in)
		}
		switch {
		case err == nil:
		case errors.Is(err, extract.ErrUnknownParser):
			fatal(exitFatal, "%v", err)
		case strict:
			rep.Error("Could not parse input data: %s", console.Truncate(in, 60))
			os.Exit(exitFatal)
		default:
			rep.Warning("Could not parse input data: %s (%v)", console.Truncate(in, 60), err)
		}
	}
}

func runCollider(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		return
	}

	cfg := loadSettings(cmd)
	logger := console.NewLogger(os.Stderr, cfg.Verbose)
	rep := console.NewReporter(os.Stderr, !cfg.NoProgress)

	codec, err := store.ParseCodec(cfg.Compression)
	if err != nil {
		fatal(exitFatal, "%v", err)
	}
	registry, err := parsers.ByName(cfg.Parsers)
	if err != nil {
		fatal(exitFatal, "%v", err)
	}

	var genBar, verifyBar *console.Bar
	opts := session.Options{
		Catalog:          catalogFor(cfg),
		Algorithm:        cfg.Algorithm,
		Registry:         registry,
		Separators:       cfg.Separators,
		Workers:          cfg.Workers,
		BatchSize:        cfg.BatchSize,
		WorkingFile:      cfg.WorkingFile,
		Codec:            codec,
		ProceedOnPartial: cfg.ProceedOnPartial,
		Logger:           logger,
		OnGenerate: func(p generator.Progress) {
			genBar.Set(p.Percent, "")
		},
		OnVerify: func(p cracker.Progress) {
			verifyBar.Set(p.Percent, fmt.Sprintf("[cyan]Verifying[reset] %s c/s ETA %s",
				humanize.SIWithDigits(p.Rate, 1, ""), console.Duration(p.ETA)))
		},
	}

	s, err := session.New(args[0], opts)
	if err != nil {
		reportAlgorithmError(rep, err)
	}
	alg := s.Oracle().Algorithm()

	rep.Info("Hash Collider v%s", version)
	rep.Info("================================")
	rep.Notice("Dealing with data hashed using %s", strings.ToUpper(alg.Name))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedAll(rep, s, collectInputs(ctx), cfg.Strict)
	logger.Debug("vocabulary", "elements", s.Vocabulary().Elements())

	if s.Vocabulary().Len() == 0 {
		rep.Error("No input to work on.")
		os.Exit(exitNoInput)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted - stopping...")
		cancel()
	}()

	rep.Notice("Generating about %s samples out of %d elements", console.Count(s.Total()), s.Vocabulary().Len())
	s.SetPhaseCallback(func(st session.State) {
		switch st {
		case session.Generating:
			genBar = rep.NewBar("Generating")
		case session.Verifying:
			genBar.Finish()
			rep.Notice("Engaging hashing loop over %s candidates with %d workers", console.Count(s.Total()), s.Workers())
			verifyBar = rep.NewBar("Verifying")
		case session.Found, session.Exhausted:
			verifyBar.Finish()
		default:
			if verifyBar != nil {
				verifyBar.Abandon()
			} else {
				genBar.Abandon()
			}
		}
	})

	out, err := s.Run(ctx)
	signal.Stop(sigChan)

	if out.StreamPath != "" {
		rep.Info("Candidate stream kept at %s", out.StreamPath)
	}

	switch out.State {
	case session.Found:
		report := fmt.Sprintf("%s(%q) == %q", alg.Name, out.Candidate, out.Digest)
		rep.Success("Got it: %s", report)
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Println(out.Candidate)
		}
		printStats(rep, out)
	case session.Exhausted:
		if err != nil {
			fatal(exitFatal, "%v", err)
		}
		rep.Warning("Could not find a collision from provided data.")
		printStats(rep, out)
	case session.Cancelled:
		rep.Error("User has interrupted collisions loop.")
		printStats(rep, out)
		os.Exit(exitCancelled)
	default:
		rep.Error("Candidate generation failed after %s candidates.", humanize.Comma(int64(out.Written)))
		fatal(exitFatal, "%v", err)
	}
}

func printStats(rep *console.Reporter, out session.Outcome) {
	rate := 0.0
	if out.Duration > 0 {
		rate = float64(out.Checks) / out.Duration.Seconds()
	}
	rep.Info("Time: %s | Checked: %s | Rate: %s c/s",
		console.Duration(out.Duration), humanize.Comma(int64(out.Checks)), humanize.SIWithDigits(rate, 1, ""))
}

func runIdentify(cmd *cobra.Command, args []string) {
	cfg := loadSettings(cmd)
	catalog := oracle.Classic()
	if cfg.Extended {
		catalog = oracle.Extended()
	}

	alg, err := catalog.Identify(args[0])
	var amb *oracle.AmbiguousAlgorithmError
	switch {
	case errors.As(err, &amb):
		for _, name := range amb.Candidates {
			fmt.Println(name)
		}
	case err != nil:
		fatal(exitFatal, "%v", err)
	default:
		fmt.Println(alg.Name)
	}
}

func runAlgorithms(cmd *cobra.Command, args []string) {
	classic := oracle.Classic()
	fmt.Printf("%-12s %6s %5s  %s\n", "ALGORITHM", "HEXLEN", "BITS", "CATALOG")
	for _, a := range oracle.Extended() {
		cat := "extended"
		if _, ok := classic.Lookup(a.Name); ok {
			cat = "classic"
		}
		fmt.Printf("%-12s %6d %5d  %s\n", a.Name, a.HexLen, a.HexLen*4, cat)
	}
}

func runCount(cmd *cobra.Command, args []string) {
	cfg := loadSettings(cmd)
	logger := console.NewLogger(os.Stderr, cfg.Verbose)
	rep := console.NewReporter(os.Stderr, false)

	registry, err := parsers.ByName(cfg.Parsers)
	if err != nil {
		fatal(exitFatal, "%v", err)
	}
	x := extract.New(registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feedAll(rep, x, collectInputs(ctx), cfg.Strict)

	elements := x.Vocabulary().Elements()
	total := generator.EstimateCandidates(generator.Config{Elements: elements, Separators: cfg.Separators})
	for _, e := range elements {
		fmt.Printf("%q\n", e)
	}
	fmt.Printf("Elements:   %d\n", len(elements))
	fmt.Printf("Separators: %d\n", len(cfg.Separators))
	fmt.Printf("Candidates: %s\n", console.Count(total))
	if len(elements) == 0 {
		os.Exit(exitNoInput)
	}
}

func runBenchmark(cmd *cobra.Command, args []string) {
	cfg := loadSettings(cmd)

	var (
		alg oracle.Algorithm
		err error
	)
	switch {
	case len(args) == 1:
		alg, err = catalogFor(cfg).Resolve(args[0], cfg.Algorithm)
	case cfg.Algorithm != "":
		var ok bool
		if alg, ok = oracle.Extended().Lookup(cfg.Algorithm); !ok {
			err = fmt.Errorf("%w: %q", oracle.ErrUnknownAlgorithm, cfg.Algorithm)
		}
	default:
		alg = oracle.MD5
	}
	if err != nil {
		reportAlgorithmError(console.NewReporter(os.Stderr, false), err)
	}

	// a digest no benchmark candidate can reach, so every one is checked
	o, err := oracle.New(fmt.Sprintf("%x", alg.Sum([]byte("\n"))), alg)
	if err != nil {
		fatal(exitFatal, "%v", err)
	}

	candidates := randomCandidates(benchCount, 4, 24, 1)
	c := cracker.New(o, cfg.Workers)
	fmt.Printf("Benchmarking %s with %d workers over %s candidates...\n",
		alg.Name, c.Workers(), humanize.Comma(int64(len(candidates))))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res := c.Run(ctx, &sliceSource{items: candidates}, nil)
	rate := float64(res.Attempts) / res.Duration.Seconds()
	fmt.Printf("%s: %s checks/second (%s in %s)\n", alg.Name,
		humanize.Comma(int64(rate)), humanize.Comma(int64(res.Attempts)), console.Duration(res.Duration))
}
