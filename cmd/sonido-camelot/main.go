package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/RyanBlaney/sonido-camelot/analysis"
	"github.com/RyanBlaney/sonido-camelot/analysis/config"
	"github.com/RyanBlaney/sonido-camelot/cache"
	"github.com/RyanBlaney/sonido-camelot/logging"
	"github.com/RyanBlaney/sonido-camelot/transcode"
)

type options struct {
	configPath string
	cacheMode  string
	cacheDB    string
	cacheSize  int
	jsonOutput bool
	logLevel   string
	logFormat  string
	sampleRate int
	workers    int
	timeout    time.Duration
}

// trackOutput is one line of the report
type trackOutput struct {
	File   string                   `json:"file"`
	Result *analysis.AnalysisResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func parseFlags() (*options, []string) {
	opts := &options{}
	flag.StringVar(&opts.configPath, "config", getEnvOrDefault("SONIDO_CONFIG", ""), "JSON analysis configuration file")
	flag.StringVar(&opts.cacheMode, "cache", getEnvOrDefault("SONIDO_CACHE", "none"), "result cache: none, memory or sqlite")
	flag.StringVar(&opts.cacheDB, "cache-db", getEnvOrDefault("SONIDO_CACHE_DB", cache.DefaultDBFile), "SQLite cache file")
	flag.IntVar(&opts.cacheSize, "cache-size", getEnvIntOrDefault("SONIDO_CACHE_SIZE", 0), "maximum cached results, 0 = store default")
	flag.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	flag.StringVar(&opts.logLevel, "log-level", getEnvOrDefault("SONIDO_LOG_LEVEL", "warn"), "debug, info, warn or error")
	flag.StringVar(&opts.logFormat, "log-format", getEnvOrDefault("SONIDO_LOG_FORMAT", "console"), "console or json")
	flag.IntVar(&opts.sampleRate, "rate", getEnvIntOrDefault("SONIDO_SAMPLE_RATE", 22050), "decode sample rate for non-WAV input")
	flag.IntVar(&opts.workers, "workers", getEnvIntOrDefault("SONIDO_WORKERS", 0), "tracks analysed in parallel, 0 = config value")
	flag.DurationVar(&opts.timeout, "timeout", 0, "overall deadline, 0 = none")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: sonido-camelot [flags] file...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opts, flag.Args()
}

func main() {
	opts, files := parseFlags()
	os.Exit(execute(opts, files, os.Stdout))
}

// execute runs the command and returns the process exit code: 0 on success,
// 1 when any track or the run itself failed, 2 on usage errors
func execute(opts *options, files []string, stdout io.Writer) int {
	if len(files) == 0 {
		flag.Usage()
		return 2
	}

	logger := logging.NewZapLogger(logging.ZapOptions{
		Level:    logging.ParseLevel(opts.logLevel),
		Encoding: opts.logFormat,
	})
	defer logger.Sync()
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	outputs, err := run(ctx, opts, files)
	if err != nil {
		logger.Error(err, "analysis aborted")
		return 1
	}

	if err := report(stdout, outputs, opts.jsonOutput); err != nil {
		logger.Error(err, "writing report failed")
		return 1
	}

	for _, out := range outputs {
		if out.Error != "" {
			return 1
		}
	}
	return 0
}

func run(ctx context.Context, opts *options, files []string) ([]trackOutput, error) {
	cfg := config.DefaultAnalysisConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadFile(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.workers > 0 {
		cfg.BatchWorkers = opts.workers
	}

	analyzer, err := analysis.NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(opts)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
	}

	decoderCfg := transcode.DefaultDecoderConfig()
	decoderCfg.TargetSampleRate = opts.sampleRate
	tracks, outputs := decodeAll(ctx, transcode.NewDecoder(decoderCfg), files, max(1, cfg.BatchWorkers))

	if store == nil {
		for _, res := range analyzer.AnalyzeBatch(ctx, tracks) {
			setResult(outputs, res.ID, res.Result, res.Err)
		}
		return outputs, ctx.Err()
	}

	cached := cache.NewCachedAnalyzer(analyzer, store)
	for _, track := range tracks {
		result, err := cached.Analyze(ctx, track.Buffer)
		setResult(outputs, track.ID, result, err)
	}
	stats := cached.Stats()
	logging.Info("cache usage", logging.Fields{
		"hits":   stats.Hits,
		"misses": stats.Misses,
		"errors": stats.Errors,
	})
	return outputs, ctx.Err()
}

func openStore(opts *options) (cache.Store, error) {
	switch opts.cacheMode {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryStore(opts.cacheSize), nil
	case "sqlite":
		return cache.NewSQLiteStore(opts.cacheDB, opts.cacheSize)
	default:
		return nil, fmt.Errorf("unknown cache mode %q", opts.cacheMode)
	}
}

// decodeAll decodes files on a bounded pool. Tracks use the file index as
// their ID; files that fail to decode get an error entry and no track.
func decodeAll(ctx context.Context, decoder *transcode.Decoder, files []string, workers int) ([]analysis.Track, []trackOutput) {
	outputs := make([]trackOutput, len(files))
	buffers := make([]*analysis.AudioBuffer, len(files))
	jobs := make(chan int, len(files))

	var wg sync.WaitGroup
	for range min(workers, len(files)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outputs[idx].File = files[idx]
				data, err := decoder.DecodeFile(ctx, files[idx])
				if err != nil {
					outputs[idx].Error = err.Error()
					continue
				}
				buffers[idx] = &analysis.AudioBuffer{Samples: data.PCM, SampleRate: data.SampleRate}
			}
		}()
	}
	for idx := range files {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	var tracks []analysis.Track
	for idx, buf := range buffers {
		if buf != nil {
			tracks = append(tracks, analysis.Track{ID: strconv.Itoa(idx), Buffer: *buf})
		}
	}
	return tracks, outputs
}

func setResult(outputs []trackOutput, id string, result *analysis.AnalysisResult, err error) {
	idx, convErr := strconv.Atoi(id)
	if convErr != nil || idx < 0 || idx >= len(outputs) {
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outputs[idx].Error = "canceled"
			return
		}
		outputs[idx].Error = err.Error()
		return
	}
	outputs[idx].Result = result
}

func report(out io.Writer, outputs []trackOutput, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(outputs)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tKEY\tCAMELOT\tBPM\tENERGY\tSTABILITY\tMODULATION")
	for _, track := range outputs {
		if track.Result == nil {
			fmt.Fprintf(w, "%s\terror: %s\t\t\t\t\t\n", track.File, track.Error)
			continue
		}
		r := track.Result
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%t\n",
			track.File, r.SynthesizedKey, r.CamelotCode, r.BPM, r.Energy, r.StabilityScore, r.ModulationDetected)
	}
	return w.Flush()
}
