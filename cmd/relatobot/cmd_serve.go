package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/relatobot/internal/adminapi"
	"github.com/user/relatobot/internal/archive"
	"github.com/user/relatobot/internal/catalog"
	"github.com/user/relatobot/internal/engine"
	"github.com/user/relatobot/internal/lifecycle"
	"github.com/user/relatobot/internal/orchestrator"
	"github.com/user/relatobot/internal/registry"
	"github.com/user/relatobot/internal/report"
	"github.com/user/relatobot/internal/sweeper"
	"github.com/user/relatobot/internal/telegram"
	"github.com/user/relatobot/internal/types"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relatobot daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "relatobot.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token not configured (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Catalog: a broken question file degrades to an empty catalog, it
	// never stops the daemon.
	cat := catalog.Load(cfg.CatalogPath)

	adapter, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.AdminIDs)
	if err != nil {
		return fmt.Errorf("create telegram adapter: %w", err)
	}

	errDest := types.ChannelID(cfg.Destinations.ErrorLog)

	reg := registry.New(adapter.ChannelExists)
	life := lifecycle.New(adapter, cfg.Destinations.Category,
		time.Duration(cfg.Timing.GraceSeconds)*time.Second, errDest)

	engCfg := engine.DefaultConfig()
	engCfg.ChoiceWait = time.Duration(cfg.Timing.ChoiceWaitSeconds) * time.Second
	engCfg.TextWait = time.Duration(cfg.Timing.TextWaitSeconds) * time.Second
	eng := engine.New(adapter, cat, engCfg)

	del := report.NewDeliverer(adapter, cfg.DataDir)
	arch := archive.NewStore(filepath.Join(cfg.DataDir, "reports.jsonl"))

	orch := orchestrator.New(adapter, reg, life, eng, del, cat, arch, orchestrator.Config{
		Primary:       types.ChannelID(cfg.Destinations.ReportLog),
		Fallback:      types.ChannelID(cfg.Destinations.ReportLog),
		ErrorDest:     errDest,
		MaxConcurrent: int64(cfg.MaxConcurrent),
	})
	adapter.SetService(orch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go adapter.Start(ctx)
	defer orch.Stop()

	swp := sweeper.New(reg, cfg.Timing.SweepSchedule)
	if err := swp.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer swp.Stop()

	if cfg.HTTP.Enabled {
		adminSrv := adminapi.NewServer(reg, func(initiator types.UserID) bool {
			return orch.ForceRelease(initiator, true)
		})
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: adminSrv,
		}
		go func() {
			slog.Info("admin api started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("admin api error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	slog.Info("relatobot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"catalog_questions", cat.Len(),
		"report_log", cfg.Destinations.ReportLog,
		"error_log", cfg.Destinations.ErrorLog,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
