package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"chatsync/internal/app"
	"chatsync/pkg/config"
	"chatsync/pkg/logger"
	"chatsync/pkg/state"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	flags, err := config.ParseConfigFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		state.Abort("invalid flags", err)
	}

	// file, then environment, then flags
	eff, err := config.LoadFromEnvironment(flags)
	if err != nil {
		state.Abort("failed to build effective config", err)
	}
	if err := config.ValidateConfig(eff); err != nil {
		state.Abort("invalid configuration", err)
	}

	logger.Init(eff.Config.Logging.Level)
	defer logger.Sync()
	logger.Info("effective_config_loaded", "sources", eff.Sources, "db_path", eff.DBPath)
	logger.Info("system_logical_cores", "logical_cores", runtime.NumCPU())

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		state.Abort("failed to initialize app", err)
	}

	ctx, cancel := state.SetupSignalHandler(context.Background())
	defer cancel()

	runErr := a.Run(ctx)

	// bounded so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	_ = a.Shutdown(shutdownCtx)

	if runErr != nil {
		state.Abort("app run failed", runErr)
	}
}
