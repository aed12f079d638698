package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/reservectl/reservectl/internal/config"
	"github.com/reservectl/reservectl/internal/engine"
	"github.com/reservectl/reservectl/internal/provider"
)

func main() {
	app := &cli.App{
		Name:  "reservectl",
		Usage: "reconcile compute capacity reservations for a fleet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Usage: "GCP project (overrides GCP_PROJECT)"},
			&cli.StringFlag{Name: "region", Usage: "region to reconcile (overrides GCP_REGION)"},
			&cli.StringSliceFlag{Name: "zone", Usage: "zone to inventory; repeatable (overrides GCP_ZONES)"},
			&cli.StringFlag{Name: "group", Usage: "reservation group name (default capres-<project>)"},
			&cli.DurationFlag{Name: "timeout", Usage: "overall run timeout", Value: 0},
			&cli.BoolFlag{Name: "json", Usage: "emit the plan or report as JSON"},
			&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:   "plan",
				Usage:  "compute and print the reconciliation plan without mutating anything",
				Action: runPlan,
			},
			{
				Name:   "apply",
				Usage:  "provision reservations and bind instances",
				Action: runApply,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "reservectl: %v\n", err)
		os.Exit(1)
	}
}

// runCtx holds everything a command needs for one run.
type runCtx struct {
	engine  *engine.Engine
	opts    engine.Options
	timeout time.Duration
	json    bool
}

func setup(c *cli.Context) (*runCtx, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// Flags override environment.
	if v := c.String("project"); v != "" {
		cfg.Project = v
		if c.String("group") == "" && os.Getenv("RESERVECTL_GROUP") == "" {
			cfg.GroupName = "capres-" + v
		}
	}
	if v := c.String("region"); v != "" {
		cfg.Region = v
	}
	if v := c.StringSlice("zone"); len(v) > 0 {
		cfg.Zones = v
	}
	if v := c.String("group"); v != "" {
		cfg.GroupName = v
	}
	if v := c.Duration("timeout"); v > 0 {
		cfg.RunTimeout = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)
	if c.Bool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}

	var p provider.Provider
	if cfg.UseMockProvider {
		log.Warn("using in-memory mock provider")
		p = provider.NewMockProvider()
	} else {
		p = provider.NewGCEProvider(provider.GCEConfig{
			Project: cfg.Project,
			Region:  cfg.Region,
		})
	}

	return &runCtx{
		engine: engine.New(p, log),
		opts: engine.Options{
			Scope: provider.Scope{
				Project: cfg.Project,
				Region:  cfg.Region,
				Zones:   cfg.Zones,
			},
			GroupName:    cfg.GroupName,
			BindInterval: cfg.BindInterval,
		},
		timeout: cfg.RunTimeout,
		json:    c.Bool("json"),
	}, nil
}

func runPlan(c *cli.Context) error {
	rc, err := setup(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, rc.timeout)
	defer cancel()

	p, err := rc.engine.Plan(ctx, rc.opts)
	if err != nil {
		return err
	}

	if rc.json {
		return json.NewEncoder(os.Stdout).Encode(p)
	}
	fmt.Print(p.Render())
	return nil
}

func runApply(c *cli.Context) error {
	rc, err := setup(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, rc.timeout)
	defer cancel()

	report, err := rc.engine.Apply(ctx, rc.opts)
	if err != nil {
		// Fatal precondition: render what we have, then fail the run.
		if report != nil && !rc.json {
			fmt.Print(report.Render())
		}
		return err
	}

	if rc.json {
		return json.NewEncoder(os.Stdout).Encode(report)
	}
	fmt.Print(report.Render())
	return nil
}
