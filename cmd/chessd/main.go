package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/udisondev/chessd/internal/config"
	"github.com/udisondev/chessd/internal/server"
)

const ConfigPath = "config/chessd.yaml"

const usage = "args: authentication, admin_authentication, port, ip"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, os.Args[1:]); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(args) < 2 {
		return fmt.Errorf("too few arguments\n%s", usage)
	}
	if len(args) > 4 {
		return fmt.Errorf("too many arguments\n%s", usage)
	}

	cfgPath := ConfigPath
	if p := os.Getenv("CHESSD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg.Authentication = args[0]
	cfg.AdminAuthentication = args[1]
	if len(args) > 2 {
		port, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[2], err)
		}
		cfg.Port = port
	}
	if len(args) > 3 {
		cfg.BindAddress = args[3]
	} else if cfg.BindAddress == "" {
		ip, err := config.LocalIP()
		if err != nil {
			return err
		}
		cfg.BindAddress = ip
	}

	slog.Info("chess server starting", "ip", cfg.BindAddress, "port", cfg.Port)
	fmt.Println("authentication:")
	fmt.Println(strings.Repeat("*", len(cfg.Authentication)))
	fmt.Println("admin authentication:")
	fmt.Println(strings.Repeat("*", len(cfg.AdminAuthentication)))

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
