package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prodspider/prodspider/internal/config"
	"github.com/prodspider/prodspider/internal/crawler"
	"github.com/prodspider/prodspider/internal/fetcher"
	"github.com/prodspider/prodspider/internal/output"
	"github.com/prodspider/prodspider/internal/parser"
	"github.com/prodspider/prodspider/internal/storage"
	"github.com/prodspider/prodspider/pkg/plugin"
)

var version = "1.0.0"

// flags holds all parsed CLI options.
type flags struct {
	// Target
	domains []string

	// Crawl
	depth   int
	delay   time.Duration
	workers int
	parsers string

	// Fetcher
	userAgent string
	timeout   int
	retry     int
	browser   bool

	// Output
	outputDir string
	saveJSON  bool
	saveCSV   bool
	silent    bool
	verbose   bool
	noColor   bool

	// Meta
	showHelp    bool
	showVersion bool
}

func main() {
	f := parseFlags()

	if f.showVersion {
		fmt.Printf("prodspider v%s\n", version)
		os.Exit(0)
	}
	if f.showHelp || len(f.domains) == 0 {
		printUsage()
		if len(f.domains) == 0 && !f.showHelp {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Ensure every seed has a scheme
	for i, d := range f.domains {
		if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
			f.domains[i] = "https://" + d
		}
	}

	cfg := buildConfig(f)

	level := zerolog.WarnLevel
	if f.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).
		With().Timestamp().Logger()

	parsers, err := parser.FromConfig(cfg, log)
	if err != nil {
		fatal("parser setup failed: %v", err)
	}

	httpFetch := fetcher.NewHTTPFetcher(fetcher.HTTPFetcherConfig{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		CrawlDelay: cfg.CrawlDelay,
		MaxRetries: cfg.MaxRetries,
	}, log)
	defer httpFetch.Close()

	var browFetch plugin.Fetcher
	if cfg.BrowserFallback {
		bf, err := fetcher.NewBrowserFetcher(fetcher.BrowserFetcherConfig{
			Timeout:    cfg.BrowserTimeout,
			MaxRetries: cfg.MaxRetries,
		}, log)
		if err != nil {
			fatal("browser launch failed: %v", err)
		}
		browFetch = bf
		defer bf.Close()
	}

	var writers []plugin.OutputWriter
	if cfg.SaveInJSON {
		w, err := output.NewJSONWriter(cfg.OutputDir)
		if err != nil {
			fatal("output setup failed: %v", err)
		}
		writers = append(writers, w)
	}
	if cfg.SaveInCSV {
		w, err := output.NewCSVWriter(cfg.OutputDir)
		if err != nil {
			fatal("output setup failed: %v", err)
		}
		writers = append(writers, w)
	}

	engine := crawler.New(cfg, crawler.Options{
		HTTPFetcher:    httpFetch,
		BrowserFetcher: browFetch,
		Parsers:        parsers,
		Storage:        storage.NewMemoryStorage(),
		Writers:        writers,
		Logger:         log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Fprintf(os.Stderr, "\n\n%s Interrupt received, stopping...\n", clr("yellow", "!"))
		cancel()
	}()

	run(ctx, engine, f)
}

func run(ctx context.Context, engine *crawler.Engine, f *flags) {
	if !f.silent {
		printBanner()
		fmt.Printf("\n  %s %s\n", clr("cyan", "Domains:"), strings.Join(f.domains, ", "))
		fmt.Printf("  %s %d  %s %s  %s %s\n\n",
			clr("dim", "Depth:"), f.depth,
			clr("dim", "Delay:"), f.delay,
			clr("dim", "Parsers:"), f.parsers,
		)
	}

	progress := func(ev plugin.ProgressEvent) {
		if f.silent {
			return
		}
		switch ev.Status {
		case crawler.StatusCrawling:
			fmt.Printf("  %s %s depth %s, %s URLs so far\n",
				clr("green", "●"), ev.Domain,
				clr("cyan", ev.DepthProgress),
				clr("yellow", fmt.Sprintf("%d", ev.URLsDiscovered)))
		case crawler.StatusError:
			fmt.Printf("  %s %s failed\n", clr("red", "✗"), ev.Domain)
		default:
			fmt.Printf("  %s %s %s, %s URLs\n",
				clr("green", "✓"), ev.Domain, ev.Status,
				clr("yellow", fmt.Sprintf("%d", ev.URLsDiscovered)))
		}
	}

	report, err := engine.Crawl(ctx, uuid.NewString(), f.domains, f.depth, progress)
	if err != nil && report == nil {
		fatal("crawl error: %v", err)
	}

	if f.silent {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return
	}
	printReport(report)
}

func printReport(r *plugin.TaskReport) {
	fmt.Println()
	fmt.Printf("  %s\n", strings.Repeat("─", 50))
	fmt.Printf("  %s Crawl complete in %s\n", clr("green", "✓"), r.Duration)
	fmt.Printf("    URLs:    %s total\n", clr("cyan", fmt.Sprintf("%d", r.TotalURLs)))
	for _, d := range r.Domains {
		fmt.Printf("    %s %s: %s\n",
			clr("dim", "├─"), d, clr("cyan", fmt.Sprintf("%d", r.URLsCount[d])))
	}

	if len(r.URLsByParser) > 0 {
		names := make([]string, 0, len(r.URLsByParser))
		for name := range r.URLsByParser {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("    Parsers: ")
		for i, name := range names {
			if i > 0 {
				fmt.Printf(", ")
			}
			fmt.Printf("%s:%s", clr("dim", name), clr("yellow", fmt.Sprintf("%d", r.URLsByParser[name])))
		}
		fmt.Println()
	}
	fmt.Println()
}

// ---------- Flag parsing ----------

func parseFlags() *flags {
	f := &flags{
		depth:   3,
		delay:   500 * time.Millisecond,
		workers: 3,
		parsers: "simple,config",
		timeout: 10,
		retry:   2,
	}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			fatal("flag %s requires an argument", arg)
			return ""
		}
		nextInt := func() int {
			v := next()
			var n int
			fmt.Sscanf(v, "%d", &n)
			return n
		}

		switch arg {
		// Target
		case "-u", "--domains":
			for _, d := range strings.Split(next(), ",") {
				if d = strings.TrimSpace(d); d != "" {
					f.domains = append(f.domains, d)
				}
			}

		// Crawl
		case "-d", "--depth":
			f.depth = nextInt()
		case "-cd", "--delay":
			v := next()
			d, err := time.ParseDuration(v)
			if err != nil {
				d = 500 * time.Millisecond
			}
			f.delay = d
		case "-w", "--workers":
			f.workers = nextInt()
		case "-p", "--parsers":
			f.parsers = next()

		// Fetcher
		case "-ua", "--user-agent":
			f.userAgent = next()
		case "-t", "--timeout":
			f.timeout = nextInt()
		case "-rt", "--retry":
			f.retry = nextInt()
		case "-b", "--browser":
			f.browser = true

		// Output
		case "-o", "--output":
			f.outputDir = next()
		case "-j", "--json":
			f.saveJSON = true
		case "-c", "--csv":
			f.saveCSV = true
		case "-si", "--silent":
			f.silent = true
		case "-v", "--verbose":
			f.verbose = true
		case "-nc", "--no-color":
			f.noColor = true

		// Meta
		case "-h", "--help":
			f.showHelp = true
		case "-V", "--version":
			f.showVersion = true

		default:
			// Treat bare args as domains
			if !strings.HasPrefix(arg, "-") {
				f.domains = append(f.domains, arg)
			} else {
				fmt.Fprintf(os.Stderr, "Unknown flag: %s (use --help for usage)\n", arg)
				os.Exit(1)
			}
		}
	}

	if f.noColor {
		colorEnabled = false
	}
	return f
}

func buildConfig(f *flags) *config.Config {
	cfg := config.FromEnv()
	cfg.MaxDepth = f.depth
	cfg.CrawlDelay = f.delay
	cfg.DomainWorkers = f.workers
	cfg.Timeout = time.Duration(f.timeout) * time.Second
	cfg.MaxRetries = f.retry
	cfg.BrowserFallback = f.browser || cfg.BrowserFallback
	cfg.SaveInJSON = f.saveJSON || cfg.SaveInJSON
	cfg.SaveInCSV = f.saveCSV || cfg.SaveInCSV

	if f.userAgent != "" {
		cfg.UserAgent = f.userAgent
	}
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}

	var parsers []string
	for _, p := range strings.Split(f.parsers, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			parsers = append(parsers, p)
		}
	}
	if len(parsers) > 0 {
		cfg.ParsersToUse = parsers
	}
	return cfg
}

// ---------- Help / banner ----------

func printUsage() {
	printBanner()
	fmt.Print(`
USAGE:
  prodspider [flags] <domain> [domain...]
  prodspider -u https://example.com
  prodspider -u example.com,shop.example.org -d 2 -j -o ./out

TARGET:
  -u,    --domains <list>            comma-separated seed domains to crawl

CRAWL:
  -d,    --depth <int>               maximum crawl depth (default 3)
  -cd,   --delay <duration>          pause between request batches (default 500ms)
  -w,    --workers <int>             concurrent domain pipelines (default 3)
  -p,    --parsers <list>            parser pipeline order (default "simple,config")

REQUEST:
  -ua,   --user-agent <string>       custom user-agent string
  -t,    --timeout <int>             request timeout in seconds (default 10)
  -rt,   --retry <int>               fetch retries per URL (default 2)
  -b,    --browser                   enable headless-browser fallback

OUTPUT:
  -o,    --output <dir>              output directory for dumps (default "output")
  -j,    --json                      save per-domain JSON dumps
  -c,    --csv                       save per-domain CSV dumps
  -si,   --silent                    print only the final JSON report
  -v,    --verbose                   verbose logging
  -nc,   --no-color                  disable colored output

META:
  -h,    --help                      show this help
  -V,    --version                   show version
`)
}

func printBanner() {
	spider := `
  ██████╗ ██████╗  ██████╗ ██████╗ ███████╗██████╗ ██╗██████╗ ███████╗██████╗
  ██╔══██╗██╔══██╗██╔═══██╗██╔══██╗██╔════╝██╔══██╗██║██╔══██╗██╔════╝██╔══██╗
  ██████╔╝██████╔╝██║   ██║██║  ██║███████╗██████╔╝██║██║  ██║█████╗  ██████╔╝
  ██╔═══╝ ██╔══██╗██║   ██║██║  ██║╚════██║██╔═══╝ ██║██║  ██║██╔══╝  ██╔══██╗
  ██║     ██║  ██║╚██████╔╝██████╔╝███████║██║     ██║██████╔╝███████╗██║  ██║
  ╚═╝     ╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚══════╝╚═╝     ╚═╝╚═════╝ ╚══════╝╚═╝  ╚═╝`
	fmt.Println(clr("cyan", spider))
	fmt.Printf("  %s  %s\n", clr("dim", "Product URL discovery crawler for e-commerce sites"), clr("dim", "v"+version))
	fmt.Printf("  %s\n", clr("dim", strings.Repeat("─", 58)))
}

// ---------- Utilities ----------

var colorEnabled = true

func clr(color, text string) string {
	if !colorEnabled {
		return text
	}
	codes := map[string]string{
		"red":    "\033[31m",
		"green":  "\033[32m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
		"dim":    "\033[2m",
		"bold":   "\033[1m",
		"reset":  "\033[0m",
	}
	c, ok := codes[color]
	if !ok {
		return text
	}
	return c + text + codes["reset"]
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\n  %s %s\n\n", clr("red", "ERROR:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}
