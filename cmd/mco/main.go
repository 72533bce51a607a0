package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/mco/internal/catalog"
	"github.com/banshee-data/mco/internal/config"
	"github.com/banshee-data/mco/internal/console"
	"github.com/banshee-data/mco/internal/device"
	"github.com/banshee-data/mco/internal/monitoring"
	"github.com/banshee-data/mco/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON console configuration")
	portFlag    = flag.String("port", "", "Serial port to use (ignored in dev mode, default "+config.DefaultPort+")")
	baudFlag    = flag.Int("baud", 0, "Baud rate (default 115200)")
	devMode     = flag.Bool("dev", false, "Talk to a built-in simulated MCO instead of a serial port")
	catalogFlag = flag.String("catalog", "", "SQLite catalog recording each collection")
	previewFlag = flag.String("preview", "", "Directory for plot previews (default the OS temp dir)")
	verbose     = flag.Bool("verbose", false, "Log debug detail")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [runs|fits]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("mco"))
		return
	}

	monitoring.SetLogger(log.Printf)
	monitoring.SetVerbose(*verbose)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch flag.Arg(0) {
	case "":
		err = runConsole(ctx, cfg, os.Stdin, os.Stdout)
	case "runs":
		err = listRuns(cfg.GetCatalogPath(), os.Stdout)
	case "fits":
		err = listFits(cfg.GetCatalogPath(), os.Stdout)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		stop()
		log.Fatal(err)
	}
}

// loadConfig reads -config if given and applies the command-line overrides.
func loadConfig() (*config.ConsoleConfig, error) {
	cfg := &config.ConsoleConfig{}
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadConsoleConfig(*configFile); err != nil {
			return nil, err
		}
	}
	if *portFlag != "" {
		cfg.Port = portFlag
	}
	if *baudFlag != 0 {
		cfg.BaudRate = baudFlag
	}
	if *catalogFlag != "" {
		cfg.CatalogPath = catalogFlag
	}
	if *previewFlag != "" {
		cfg.PreviewDir = previewFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openPort is swapped for the simulator in dev mode.
var openPort device.SerialPortOpener = device.OpenSerial

func simulatorOpener(_ string, opts device.PortOptions) (device.SerialPorter, error) {
	sim := device.NewSimulator()
	if _, err := device.SetReadTimeout(sim, opts.Timeout()); err != nil {
		return nil, err
	}
	return sim, nil
}

// runConsole holds the serial port and catalog for the life of the session
// and releases both on every return path.
func runConsole(ctx context.Context, cfg *config.ConsoleConfig, in io.Reader, out io.Writer) error {
	opener := openPort
	if *devMode {
		opener = simulatorOpener
		log.Printf("dev mode: using simulated MCO")
	}

	port, err := opener(cfg.GetPort(), cfg.GetPortOptions())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cfg.GetPort(), err)
	}
	client := device.NewClient(port)
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("failed to close serial port: %v", err)
		}
	}()

	opts := console.Options{
		Out:          out,
		SyncTimeout:  cfg.GetSyncTimeout(),
		SyncMaxLines: cfg.GetSyncMaxLines(),
		FlushBytes:   cfg.GetFlushBytes(),
		PreviewDir:   cfg.GetPreviewDir(),
	}
	if path := cfg.GetCatalogPath(); path != "" {
		cat, err := catalog.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer cat.Close()
		opts.Catalog = cat
	}

	session := console.NewSession(client, opts)
	log.Printf("session %s on %s", session.ID, cfg.GetPort())
	if err := session.Start(); err != nil {
		return fmt.Errorf("failed to identify device: %w", err)
	}
	return session.Run(ctx, in)
}

func listRuns(path string, out io.Writer) error {
	if path == "" {
		return fmt.Errorf("runs needs a catalog: pass -catalog or set catalog_path")
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer cat.Close()

	runs, err := cat.Runs(0)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	fmt.Fprintf(out, "%-20s  %-24s  %6s  %6s  %9s  %9s\n", "STARTED", "FILE", "CYCLES", "LINES", "FREQUENCY", "AMPLITUDE")
	for _, r := range runs {
		fmt.Fprintf(out, "%-20s  %-24s  %6d  %6d  %9.2f  %9d\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Path, r.Cycles, r.Lines, r.Frequency, r.Amplitude)
	}
	return nil
}

func listFits(path string, out io.Writer) error {
	if path == "" {
		return fmt.Errorf("fits needs a catalog: pass -catalog or set catalog_path")
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer cat.Close()

	fits, err := cat.Fits(0)
	if err != nil {
		return err
	}
	if len(fits) == 0 {
		fmt.Fprintln(out, "no fits recorded")
		return nil
	}
	fmt.Fprintf(out, "%-20s  %-24s  %6s  %8s  %8s  %8s  %8s  %10s\n", "CREATED", "DATA", "POINTS", "A", "PHI0", "BETA", "OMEGAD", "SSR")
	for _, f := range fits {
		fmt.Fprintf(out, "%-20s  %-24s  %6d  %8.3f  %8.3f  %8.3f  %8.3f  %10.4g\n",
			f.CreatedAt.Local().Format("2006-01-02 15:04:05"), f.DataPath, f.Points,
			f.Params[0], f.Params[1], f.Params[2], f.Params[3], f.SSR)
	}
	return nil
}
