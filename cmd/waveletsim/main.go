package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"waveletsim/internal/compute"
	"waveletsim/internal/config"
	"waveletsim/internal/sim"
	"waveletsim/internal/ws"
)

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg := config.Default()
	if c, err := config.Load(*configFlag); err != nil {
		log.Warn().Err(err).Str("path", *configFlag).Msg("config load failed; proceeding with defaults")
	} else {
		cfg = *c
	}
	if *backendFlag != "" {
		cfg.Backend = *backendFlag
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if *cpuProfileFlag != "" {
		stop, err := startCPUProfile(*cpuProfileFlag)
		if err != nil {
			log.Fatal().Err(err).Str("path", *cpuProfileFlag).Msg("starting CPU profile")
		}
		defer stop()
	}

	var device compute.Device
	switch cfg.Backend {
	case "opencl":
		dev, err := compute.NewOpenCLDevice()
		if err != nil {
			log.Fatal().Err(err).Msg("OpenCL initialization failed")
		}
		device = dev
	default:
		device = compute.NewCPUDevice()
	}
	defer device.Close()
	log.Info().Str("device", device.Name()).Msg("compute backend ready")

	simulator, err := sim.NewSimulator(device, cfg.SpectrumParams(), sim.Options{
		Width:        cfg.Grid.Width,
		Height:       cfg.Grid.Height,
		Directions:   cfg.Grid.Directions,
		ProfileSize:  cfg.ProfileSize,
		OutputWidth:  cfg.Output.Width,
		OutputHeight: cfg.Output.Height,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("simulator initialization failed")
	}
	consts := simulator.Constants()
	log.Info().
		Float64("group_speed", consts.GroupSpeed).
		Float64("period", consts.Period).
		Msg("spectral constants derived")

	state := ws.NewState()
	game := newGame(nil, state, cfg.Output.Width, cfg.Output.Height)
	sched := sim.NewScheduler(simulator, game)
	game.sched = sched

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/frames", state.HandleFramesWS)
	mux.HandleFunc("/healthz", state.HandleHealth)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("preview endpoints listening")
		if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
			log.Error().Err(err).Msg("preview server stopped")
		}
	}()

	scale := *windowScaleFlag
	if scale < 1 {
		scale = 1
	}
	ebiten.SetWindowSize(cfg.Output.Width*scale, cfg.Output.Height*scale)
	ebiten.SetWindowTitle("Wavelet Water")
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal().Err(err).Msg("viewer exited")
	}
}
