package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/config"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/database"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/edge"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/frame"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/packet"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/timing"
)

const VERSION = frame.Version

// setupLogging routes the standard logger through an optional rotating
// logfile while keeping stderr output.
func setupLogging(opts config.LogOptions) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if opts.File == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func run() error {
	var (
		configFile = flag.String("config", "", "Configuration file path (YAML)")
		capture    = flag.String("capture", "", "Raw logic capture file (one byte per sample)")
		samplerate = flag.Float64("samplerate", 0, "Capture sample rate in Hz")
		ndjson     = flag.String("ndjson", "", "Write annotations as NDJSON to this file (- for stdout)")
		dbPath     = flag.String("db", "", "Store annotations in this SQLite database")
		mode       = flag.String("mode", "", "Timing mode (overrides config)")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("dccdump v%s\n", VERSION)
		return nil
	}

	opts := config.Default()
	if *configFile != "" {
		var err error
		opts, err = config.Load(*configFile)
		if err != nil {
			return err
		}
	}
	if *capture != "" {
		opts.Capture = *capture
	}
	if *samplerate > 0 {
		opts.SampleRate = *samplerate
	}
	if *ndjson != "" {
		opts.NDJSON = *ndjson
	}
	if *dbPath != "" {
		opts.Database = *dbPath
	}
	if *mode != "" {
		opts.TimingMode = *mode
	}

	setupLogging(opts.Log)
	log.Printf("dccdump v%s starting", VERSION)

	if opts.Capture == "" {
		return fmt.Errorf("no capture file given (use -capture or the config file)")
	}

	src, err := edge.OpenCapture(opts.Capture, opts.SampleRate)
	if err != nil {
		return err
	}
	defer src.Close()

	settings := opts.Resolve(opts.SampleRate)
	log.Printf("Capture: %s, samplerate: %.0f Hz, timing mode: %s",
		opts.Capture, opts.SampleRate, settings.Mode)
	if settings.Diagnostic != "" {
		log.Printf("Configuration problem: %s", settings.Diagnostic)
	}

	var sinks []annotation.Sink

	if opts.NDJSON != "" {
		out := os.Stdout
		if opts.NDJSON != "-" {
			f, err := os.Create(opts.NDJSON)
			if err != nil {
				return fmt.Errorf("failed to create NDJSON output %s: %v", opts.NDJSON, err)
			}
			defer f.Close()
			out = f
		}
		sinks = append(sinks, annotation.NewNDJSONWriter(out))
	}

	var store *database.StoreSink
	if opts.Database != "" {
		db, err := database.NewDB(database.Config{Path: opts.Database},
			log.New(os.Stderr, "[DB] ", log.LstdFlags))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %v", err)
		}
		defer db.Close()
		store = database.NewStoreSink(database.NewRecordRepository(db.GetDB()), opts.Capture, 0)
		sinks = append(sinks, store)
	}

	if len(sinks) == 0 {
		sinks = append(sinks, annotation.NewNDJSONWriter(os.Stdout))
	}
	sink := annotation.MultiSink(sinks)

	cls := timing.NewClassifier(settings.Mode, settings.Experimental,
		settings.Compare, settings.AllowStretchedZero, sink)

	dec := packet.NewDecoder(sink)
	dec.Speed14 = settings.Speed14
	dec.ServiceMode = settings.ServiceMode
	dec.AddrOffset = settings.AddrOffset
	dec.Search = settings.Search

	sync := frame.NewSynchronizer(src, cls, dec, sink)
	sync.MinPreambleBits = settings.MinPreambleBits
	sync.IgnoreShortPulse = settings.IgnoreShortPulse
	sync.AccuracyOverride = settings.AccuracyOverride
	sync.ConfigDiag = settings.Diagnostic

	if err := sync.Run(); err != nil {
		return err
	}

	if store != nil {
		if err := store.Flush(); err != nil {
			return fmt.Errorf("failed to store annotations: %v", err)
		}
	}

	log.Printf("dccdump finished")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Fatalf("dccdump: %v", err)
	}
}
