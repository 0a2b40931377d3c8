package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot/vg"

	"kmviz/internal/config"
	"kmviz/internal/dataset"
	"kmviz/internal/driver"
	"kmviz/internal/kmeans"
	"kmviz/internal/render"
	"kmviz/internal/report"
	"kmviz/internal/store"
	"kmviz/internal/video"
)

func main() {
	// Define command line flags
	configPath := flag.String("config", "", "Path to a JSON config file")
	dataFile := flag.String("data", config.DefaultDataFile, "Input data file")
	speed := flag.Duration("speed", config.DefaultSpeed, "Delay between automatic steps")
	autoStart := flag.Bool("auto", false, "Start stepping automatically")
	maxIter := flag.Int("max-iter", config.DefaultMaxIterations, "Stop after this many steps without converging (0 = no cap)")
	dbPath := flag.String("db", "", "Record the session into this SQLite database")
	outputDir := flag.String("export", "", "Export images, HTML and JSON to this directory on exit (overrides output_dir)")
	videoPath := flag.String("video", "", "Also encode the exported frames into this video file (needs an export directory)")
	fit := flag.Bool("fit", false, "Fit plot axes to the data instead of the fixed grid")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Defaults()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}
	// Flags given explicitly win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.SetDataFile(*dataFile)
		case "speed":
			cfg.SetSpeed(*speed)
		case "auto":
			cfg.SetAutoStart(*autoStart)
		case "max-iter":
			cfg.SetMaxIterations(*maxIter)
		case "db":
			cfg.SetDBPath(*dbPath)
		case "export":
			cfg.SetOutputDir(*outputDir)
		case "fit":
			cfg.SetFitAxes(*fit)
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if *videoPath != "" && cfg.OutputDir == nil {
		fmt.Fprintf(os.Stderr, "Error: -video needs -export\n")
		flag.Usage()
		os.Exit(1)
	}

	ds, err := dataset.Open(cfg.GetDataFile())
	if err != nil {
		log.Fatalf("Error reading data: %v", err)
	}
	engine := kmeans.NewEngine()
	if err := engine.Load(ds.Points, ds.Centroids); err != nil {
		log.Fatalf("Error loading data from %s: %v", cfg.GetDataFile(), err)
	}
	log.Printf("Loaded %d points and %d centroids from %s", len(ds.Points), len(ds.Centroids), cfg.GetDataFile())

	// Create a context that can be canceled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle termination signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Println("Received termination signal, shutting down...")
		cancel()
	}()

	text := report.NewTextObserver(os.Stdout)
	observers := []driver.Observer{text}

	var rec *store.Recorder
	if path := cfg.GetDBPath(); path != "" {
		db, err := store.Open(path)
		if err != nil {
			log.Fatalf("Error opening database: %v", err)
		}
		defer db.Close()
		runID, err := db.CreateRun(ctx, cfg.GetDataFile())
		if err != nil {
			log.Fatalf("Error creating run: %v", err)
		}
		log.Printf("Recording run %s into %s", runID, path)
		// Frames published while shutting down are still saved
		rec = store.NewRecorder(context.WithoutCancel(ctx), db, runID, logger)
		observers = append(observers, rec)
	}

	d := driver.New(engine, driver.Config{
		Speed:         cfg.GetSpeed(),
		AutoStart:     cfg.GetAutoStart(),
		MaxIterations: cfg.GetMaxIterations(),
		Logger:        logger,
	}, observers...)

	fmt.Print(helpText)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := d.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return readCommands(gctx, d, cancel)
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, driver.ErrIterationCap) {
			log.Printf("Stopped: %v", err)
		} else {
			log.Fatalf("Error running clustering: %v", err)
		}
	}
	if err := text.Err(); err != nil {
		log.Printf("Warning: report output failed: %v", err)
	}
	if rec != nil && rec.Err() != nil {
		log.Printf("Warning: recording incomplete: %v", rec.Err())
	}

	log.Printf("Finished at iteration %d (converged=%t)", engine.Iteration(), engine.Converged())

	if cfg.OutputDir == nil {
		return
	}
	export(engine.Timeline(), cfg, *videoPath)
}

// readCommands feeds terminal lines to the driver until quit, EOF or the
// driver stops.
func readCommands(ctx context.Context, d *driver.Driver, quit context.CancelFunc) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				quit()
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			done, err := execute(ctx, d, cmd, os.Stdout)
			if errors.Is(err, driver.ErrStopped) || errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return err
			}
			if done {
				quit()
				return nil
			}
		}
	}
}

func export(snaps []kmeans.Snapshot, cfg *config.Config, videoPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, h := cfg.GetPlotSize()
	ex := video.NewExporter(cfg.GetOutputDir())
	ex.Workers = cfg.GetWorkers()
	ex.Render = render.DefaultOptions()
	ex.Render.Width = vg.Length(w) * vg.Inch
	ex.Render.Height = vg.Length(h) * vg.Inch
	ex.Render.Fit = cfg.GetFitAxes()
	ex.VideoPath = videoPath
	ex.FPS = cfg.GetVideoFPS()

	start := time.Now()
	sum, err := ex.Export(ctx, snaps)
	if err != nil {
		log.Fatalf("Error exporting: %v", err)
	}
	log.Printf("Exported %d iterations to %s in %s", sum.Frames, cfg.GetOutputDir(), time.Since(start).Round(time.Millisecond))
}
