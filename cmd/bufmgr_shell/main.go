package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	buffermanager "github.com/sushant-115/bufmgr/core/storage_engine/buffer_manager"
	"github.com/sushant-115/bufmgr/config"
	internaltelemetry "github.com/sushant-115/bufmgr/internal/telemetry"
	"github.com/sushant-115/bufmgr/pkg/logger"
	"github.com/sushant-115/bufmgr/pkg/telemetry"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	dataDir    = flag.String("data_dir", "", "directory for database files (overrides the config)")
	numFrames  = flag.Int("frames", 0, "number of buffer frames (overrides the config)")
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("open"),
	readline.PcItem("mem"),
	readline.PcItem("alloc"),
	readline.PcItem("read"),
	readline.PcItem("write"),
	readline.PcItem("unpin"),
	readline.PcItem("flush"),
	readline.PcItem("flushall"),
	readline.PcItem("dispose"),
	readline.PcItem("backup"),
	readline.PcItem("stats"),
	readline.PcItem("print"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return config.Config{}, err
		}
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *numFrames > 0 {
		cfg.BufferPool.NumFrames = *numFrames
	}
	return cfg, cfg.Validate()
}

func main() {
	log.SetFlags(0)
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlogger.Sync()

	tel, shutdownTelemetry, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		zlogger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			zlogger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	metrics, err := internaltelemetry.NewBufferMetrics(tel.Meter)
	if err != nil {
		zlogger.Fatal("Failed to register buffer metrics", zap.Error(err))
	}

	bm, err := buffermanager.New(buffermanager.Config{
		NumFrames: cfg.BufferPool.NumFrames,
		PageSize:  cfg.PageSize,
	}, zlogger, metrics)
	if err != nil {
		zlogger.Fatal("Failed to create buffer manager", zap.Error(err))
	}

	sh := newShell(bm, cfg.DataDir, cfg.Disk, zlogger, tel.Tracer, os.Stdout)
	defer func() {
		if err := sh.close(); err != nil {
			zlogger.Error("Failed to close buffer manager cleanly", zap.Error(err))
		}
	}()

	ctx := context.Background()
	if args := flag.Args(); len(args) > 0 {
		if err := sh.processCommand(ctx, args); err != nil && !errors.Is(err, errExit) {
			fmt.Printf("Error: %v\n", err)
		}
		return
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bufmgr> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".bufmgr_shell_history"),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		zlogger.Fatal("Failed to start line editor", zap.Error(err))
	}
	defer rl.Close()

	fmt.Println("Buffer manager shell. Type 'help' for commands, 'exit' or 'quit' to leave.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		cmdArgs := strings.Fields(line)
		if len(cmdArgs) == 0 {
			continue
		}
		if err := sh.processCommand(ctx, cmdArgs); err != nil {
			if errors.Is(err, errExit) {
				break
			}
			fmt.Printf("Error: %v\n", err)
		}
	}
	fmt.Println("Exiting buffer manager shell.")
}
