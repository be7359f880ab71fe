package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/dbrain-dev/dbrain/internal/config"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage dbrain as a system service",
	}
	for _, action := range []string{"install", "uninstall", "start", "stop"} {
		cmd.AddCommand(serviceControlCmd(action))
	}
	cmd.AddCommand(serviceRunCmd())
	return cmd
}

func serviceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		if abs, err := filepath.Abs(cfgPath); err == nil {
			cfgPath = abs
		}
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        "dbrain",
		DisplayName: "dbrain",
		Description: "Personal vault automation bot",
		Arguments:   args,
	}
}

func serviceControlCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the system service", action),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			svc, err := service.New(&program{}, serviceConfig(cfgPath))
			if err != nil {
				return err
			}
			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Printf("Service %s: done\n", action)
			return nil
		},
	}
}

func serviceRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager (invoked by the service, not by hand)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			prg := &program{cfg: cfg, logCmd: cmd}
			svc, err := service.New(prg, serviceConfig(""))
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
}

// program adapts runStart to the service manager lifecycle.
type program struct {
	cfg    *config.Config
	logCmd *cobra.Command

	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(service.Service) error {
	if p.cfg == nil {
		return fmt.Errorf("service started without configuration")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	logger := newLogger(p.logCmd, p.cfg)
	go func() {
		defer close(p.done)
		if err := runStart(ctx, p.cfg, logger); err != nil {
			logger.Error("service run failed", "error", err)
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}
