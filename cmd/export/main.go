package main

import (
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

	"github.com/google/uuid"
	"gonum.org/v1/plot/vg"

	"kmviz/internal/config"
	"kmviz/internal/dataset"
	"kmviz/internal/driver"
	"kmviz/internal/ffmpeg"
	"kmviz/internal/kmeans"
	"kmviz/internal/store"
	"kmviz/internal/video"
)

func main() {
	// Define command line flags
	configPath := flag.String("config", "", "Path to a JSON config file")
	dataFile := flag.String("data", config.DefaultDataFile, "Input data file")
	outputDir := flag.String("output", config.DefaultOutputDir, "Directory to save images, HTML and JSON")
	dbPath := flag.String("db", "", "SQLite database for -run, -list and recording")
	runID := flag.String("run", "", "Replay a recorded run instead of clustering the data file")
	list := flag.Bool("list", false, "List recorded runs and exit")
	videoPath := flag.String("video", "", "Encode the frames into this video file")
	fps := flag.Int("fps", config.DefaultVideoFPS, "Video frames per second")
	format := flag.String("format", "png", "Image format: png, svg, pdf, jpg")
	workers := flag.Int("workers", 0, "Render workers (0 = one per CPU)")
	maxIter := flag.Int("max-iter", config.DefaultMaxIterations, "Give up after this many steps without converging")
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
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.SetDataFile(*dataFile)
		case "output":
			cfg.SetOutputDir(*outputDir)
		case "db":
			cfg.SetDBPath(*dbPath)
		case "fps":
			cfg.SetVideoFPS(*fps)
		case "workers":
			cfg.SetWorkers(*workers)
		case "max-iter":
			cfg.SetMaxIterations(*maxIter)
		case "fit":
			cfg.SetFitAxes(*fit)
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if (*runID != "" || *list) && cfg.GetDBPath() == "" {
		fmt.Fprintf(os.Stderr, "Error: -run and -list need -db\n")
		flag.Usage()
		os.Exit(1)
	}

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

	var db *store.Store
	if path := cfg.GetDBPath(); path != "" {
		var err error
		if db, err = store.Open(path); err != nil {
			log.Fatalf("Error opening database: %v", err)
		}
		defer db.Close()
	}

	if *list {
		if err := listRuns(ctx, db); err != nil {
			log.Fatalf("Error listing runs: %v", err)
		}
		return
	}

	var (
		snaps []kmeans.Snapshot
		err   error
	)
	if *runID != "" {
		snaps, err = replay(ctx, db, *runID)
	} else {
		snaps, err = cluster(ctx, cfg, db, logger)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	w, h := cfg.GetPlotSize()
	ex := video.NewExporter(cfg.GetOutputDir())
	ex.Workers = cfg.GetWorkers()
	ex.Render.Width = vg.Length(w) * vg.Inch
	ex.Render.Height = vg.Length(h) * vg.Inch
	ex.Render.Format = *format
	ex.Render.Fit = cfg.GetFitAxes()
	ex.VideoPath = *videoPath
	ex.FPS = cfg.GetVideoFPS()

	sum, err := ex.Export(ctx, snaps)
	if err != nil {
		log.Fatalf("Error exporting: %v", err)
	}
	log.Printf("Wrote %d images, %s and %s", len(sum.Images), sum.HTML, sum.Results)

	if sum.Video != "" {
		info, err := ffmpeg.Probe(ctx, sum.Video)
		if err != nil {
			log.Printf("Warning: could not probe %s: %v", sum.Video, err)
			return
		}
		log.Printf("Video %s: %dx%d, %.2ffps, %d frames", sum.Video, info.Width, info.Height, info.Framerate, info.Frames)
	}
}

// cluster runs the data file to convergence, recording into db when set.
func cluster(ctx context.Context, cfg *config.Config, db *store.Store, logger *slog.Logger) ([]kmeans.Snapshot, error) {
	ds, err := dataset.Open(cfg.GetDataFile())
	if err != nil {
		return nil, err
	}
	engine := kmeans.NewEngine()
	if err := engine.Load(ds.Points, ds.Centroids); err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.GetDataFile(), err)
	}

	var observers []driver.Observer
	var rec *store.Recorder
	if db != nil {
		id, err := db.CreateRun(ctx, cfg.GetDataFile())
		if err != nil {
			return nil, err
		}
		log.Printf("Recording run %s", id)
		rec = store.NewRecorder(ctx, db, id, logger)
		observers = append(observers, rec)
	}

	start := time.Now()
	d := driver.New(engine, driver.Config{
		AutoStart:      true,
		StopOnConverge: true,
		MaxIterations:  cfg.GetMaxIterations(),
		Logger:         logger,
	}, observers...)
	if err := d.Run(ctx); err != nil && !errors.Is(err, driver.ErrIterationCap) {
		return nil, err
	} else if err != nil {
		log.Printf("Warning: %v", err)
	}
	if rec != nil && rec.Err() != nil {
		return nil, fmt.Errorf("recording run: %w", rec.Err())
	}

	log.Printf("Clustered %d points into %d clusters in %d iterations (%s)",
		len(ds.Points), len(ds.Centroids), engine.Iteration(), time.Since(start).Round(time.Millisecond))
	return engine.Timeline(), nil
}

func replay(ctx context.Context, db *store.Store, rawID string) ([]kmeans.Snapshot, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", rawID, err)
	}
	snaps, err := db.LoadSnapshots(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d iterations of run %s", len(snaps), id)
	return snaps, nil
}

func listRuns(ctx context.Context, db *store.Store) error {
	runs, err := db.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %3d iterations  %s\n", r.ID, r.CreatedAt.Format(time.RFC3339), r.Iterations, r.Name)
	}
	return nil
}
