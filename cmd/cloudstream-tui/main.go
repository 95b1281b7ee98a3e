package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jsildura/cloudstream-sub000/internal/config"
	"github.com/jsildura/cloudstream-sub000/internal/tui"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The alt screen owns the terminal, so logs only go to a file.
	if settings.LogOutput != "file" {
		settings.LogLevel = "error"
		settings.LogOutput = "file"
		settings.LogFile = os.DevNull
	}
	if err := logger.Init(settings.ToLoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := tui.Run(settings, logger.Get()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
