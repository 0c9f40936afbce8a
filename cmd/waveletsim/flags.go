package main

import "flag"

// Command-line flags controlling runtime behavior. The YAML config carries
// the simulation parameters; flags select the config file and override the
// host-facing options.
var (
	// configFlag selects the YAML configuration file.
	configFlag = flag.String("config", "config.yaml", "path to config.yaml")

	// backendFlag overrides the compute backend from the config.
	backendFlag = flag.String("backend", "", "compute backend: cpu | opencl")

	// addrFlag overrides the HTTP listen address for the preview endpoints.
	addrFlag = flag.String("addr", "", "HTTP listen address for the WebSocket preview")

	// debugFlag enables the FPS and simulation overlay.
	debugFlag = flag.Bool("debug", false, "show FPS and simulation overlay")

	// windowScaleFlag sets the window size as a multiple of the output
	// resolution.
	windowScaleFlag = flag.Int("window-scale", 3, "window size multiplier")

	// cpuProfileFlag writes a CPU profile for the whole run.
	cpuProfileFlag = flag.String("cpu-profile", "", "write a CPU profile to this path")
)
