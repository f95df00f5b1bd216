package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficwatch/internal/config"
	"trafficwatch/internal/database"
	"trafficwatch/internal/eventlog"
	"trafficwatch/internal/stream"
	"trafficwatch/internal/vision"
	"trafficwatch/internal/ws"
)

func main() {
	var (
		configF   = flag.String("config", "streams.yaml", "Path to the stream configuration file")
		addrF     = flag.String("addr", ":8080", "HTTP listen address")
		endpointF = flag.String("vision-endpoint", "https://api.together.xyz", "Vision inference API base URL")
		modelF    = flag.String("vision-model", "meta-llama/Llama-3.2-11B-Vision-Instruct-Turbo", "Vision model name")
		mockF     = flag.Bool("mock", false, "Use the mock classifier instead of the inference API")
		staggerF  = flag.Duration("stagger", 250*time.Millisecond, "Delay between stream starts")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[trafficwatch] ", log.Ltime)

	cfg, err := config.Load(*configF)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	store, err := database.Open(cfg.Database)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer store.Close()

	accidentLog, err := eventlog.Open(cfg.AccidentLog)
	if err != nil {
		logger.Fatalf("accident log: %v", err)
	}
	defer accidentLog.Close()

	var classifier vision.Classifier
	if *mockF {
		logger.Printf("using mock classifier")
		mock := vision.NewMockClassifier(time.Now().UnixNano())
		mock.Delay = 100 * time.Millisecond
		classifier = mock
	} else {
		classifier = vision.NewClient(*endpointF, *modelF, os.Getenv("VISION_API_KEY"))
	}

	registry := stream.NewRegistry()
	hub := ws.NewHub(ws.DefaultFrameInterval, ws.DefaultAlertInterval)
	for _, sc := range cfg.Streams {
		c := stream.NewController(sc, stream.Options{
			FramesDir:       cfg.FramesDir,
			Classifier:      classifier,
			Workers:         cfg.AnalysisWorkers,
			FallbackSources: cfg.FallbackSources,
			Recorders:       []stream.AccidentRecorder{accidentLog, store},
		})
		registry.Add(c)
		hub.AddStream(c)
	}

	// Channel used by both the signal handler and the server goroutine
	// to notify the main goroutine when to stop.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	registry.StartAll(*staggerF)
	hub.Start()

	srv := newHTTPServer(*addrF, logger, registry, hub, store)
	go func() {
		logger.Printf("HTTP server listening on %s", *addrF)
		errc <- srv.ListenAndServe()
	}()

	logger.Printf("exiting (%v)", <-errc)

	shutdownHTTPServer(srv, logger)
	hub.Stop()
	registry.StopAll(10 * time.Second)
	logger.Println("exited")
}
