package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/config"
	"github.com/Sruimeng/vestige/internal/errors"
	"github.com/Sruimeng/vestige/internal/filter"
	"github.com/Sruimeng/vestige/internal/mcp"
	"github.com/Sruimeng/vestige/internal/model"
	"github.com/Sruimeng/vestige/internal/ops"
	"github.com/Sruimeng/vestige/internal/render"
	"github.com/Sruimeng/vestige/internal/store"
	"github.com/Sruimeng/vestige/internal/timecapsule"
	"github.com/Sruimeng/vestige/internal/web"
)

// env carries what the commands need. Fields are nil for --help/--version.
type env struct {
	db      *sql.DB
	cfg     *config.Config
	baseDir string

	backend timecapsule.Backend
	fetcher model.Fetcher // optional; serve skips model resolution without it

	log *zap.Logger
}

func (e *env) config() *config.Config {
	if e.cfg == nil {
		return config.DefaultConfig()
	}
	return e.cfg
}

func (e *env) logger() *zap.Logger {
	if e.log == nil {
		return zap.NewNop()
	}
	return e.log
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "vestige",
		Usage:   "Time capsules from -500 to 2100",
		Version: Version,
		Commands: []*cli.Command{
			fetchCmd(e),
			filtersCmd(),
			planCmd(),
			archiveCmd(e),
			entryCmd(e),
			latestCmd(e),
			purgeCmd(e),
			exportCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// fetchCmd creates the fetch command.
func fetchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Open the time capsule for a year",
		ArgsUsage: "<year>",
		Description: "Runs one acquisition cycle and prints the committed capsule.\n" +
			"BCE years are negative; pass them as --year=-44 or after --.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "year", Aliases: []string{"y"}, Usage: "Year between -500 and 2100"},
			&cli.BoolFlag{Name: "no-record", Usage: "Do not archive the result"},
		},
		Action: func(c *cli.Context) error {
			raw := c.String("year")
			if raw == "" && c.NArg() > 0 {
				raw = c.Args().First()
			}
			if raw == "" {
				return outputError(errors.NewInvalidRequest("year is required"))
			}
			year, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("year must be an integer, got %q", raw)))
			}

			cfg := e.config()
			if e.backend == nil && !cfg.UseMock {
				return outputError(errors.NewInternal(stderrors.New("no backend configured")))
			}

			opts := timecapsule.OptionsFromConfig(cfg)
			opts.Logger = e.logger()
			if e.db != nil && !c.Bool("no-record") {
				opts.Recorder = ops.NewArchive(e.db)
			}

			snap, err := timecapsule.FetchOnce(c.Context, e.backend, opts, year)
			if err != nil {
				return outputError(err)
			}
			if snap.State == store.StateError {
				if err := capsule.ValidateYear(year); err != nil {
					return outputError(err)
				}
				return cli.Exit(fmt.Sprintf("[%s] %s", snap.State, snap.Error), 1)
			}

			result := mcp.FetchResult{
				Year:        snap.Year,
				YearDisplay: capsule.YearDisplay(snap.Year),
				State:       snap.State,
				Capsule:     snap.Capsule,
				RenderState: render.RenderStateFor(snap.State),
			}
			if snap.Capsule != nil {
				s := snap.Capsule.ToSummary()
				result.Summary = &s
			}
			return outputJSON(result)
		},
	}
}

// filtersCmd creates the filters command.
func filtersCmd() *cli.Command {
	return &cli.Command{
		Name:  "filters",
		Usage: "List style filters",
		Action: func(c *cli.Context) error {
			all := filter.All()
			items := make([]mcp.FilterListItem, len(all))
			for i, info := range all {
				items[i] = mcp.FilterListItem{Info: info, Mode: render.ModeFor(info.ID)}
			}
			return outputJSON(map[string]any{"filters": items, "default": filter.Default})
		},
	}
}

// planCmd creates the plan command.
func planCmd() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Show the post-processing effects for a filter, state and device",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Value: string(filter.Default), Usage: "Filter id"},
			&cli.StringFlag{Name: "state", Aliases: []string{"s"}, Value: string(store.StateIdle), Usage: "System state"},
			&cli.BoolFlag{Name: "mobile", Usage: "Plan for a mobile device"},
			&cli.IntFlag{Name: "gpu-tier", Value: filter.DefaultDevice.GPUTier, Usage: "GPU tier 1-3"},
		},
		Action: func(c *cli.Context) error {
			id, err := filter.Parse(c.String("filter"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			state := store.SystemState(strings.ToUpper(strings.TrimSpace(c.String("state"))))
			if !state.Valid() {
				return outputError(errors.NewInvalidRequest("unknown system state: " + c.String("state")))
			}
			tier := c.Int("gpu-tier")
			if tier < 1 || tier > 3 {
				return outputError(errors.NewInvalidRequest("gpu-tier must be 1, 2 or 3"))
			}

			dev := filter.Device{IsMobile: c.Bool("mobile"), GPUTier: tier}
			cfg := filter.Derive(render.RenderStateFor(state))
			return outputJSON(mcp.FilterPlanResult{
				Filter:  filter.Get(id),
				Mode:    render.ModeFor(id),
				Config:  cfg,
				Device:  dev,
				Effects: render.Composer(cfg, dev, id),
			})
		},
	}
}

// scopeFlags are shared by the archive commands.
func scopeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "year", Aliases: []string{"y"}, Usage: "Only capsules for this year"},
		&cli.StringFlag{Name: "source", Usage: "Only capsules from this source: history|daily|fossil"},
	}
}

// scopeFrom reads --year and --source.
func scopeFrom(c *cli.Context) (ops.Scope, error) {
	var scope ops.Scope
	if raw := c.String("year"); raw != "" {
		year, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return scope, errors.NewInvalidRequest(fmt.Sprintf("year must be an integer, got %q", raw))
		}
		scope.Year = &year
	}
	scope.Source = c.String("source")
	return scope, nil
}

// archiveCmd creates the archive command.
func archiveCmd(e *env) *cli.Command {
	flags := append(scopeFlags(),
		&cli.StringFlag{Name: "fallback", Usage: "Only mock (true) or only real (false) capsules"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
		&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
	)
	return &cli.Command{
		Name:  "archive",
		Usage: "List archived capsules, newest first",
		Flags: flags,
		Action: func(c *cli.Context) error {
			scope, err := scopeFrom(c)
			if err != nil {
				return outputError(err)
			}
			if raw := c.String("fallback"); raw != "" {
				b, err := strconv.ParseBool(raw)
				if err != nil {
					return outputError(errors.NewInvalidRequest("fallback must be true or false"))
				}
				scope.Fallback = &b
			}

			output, err := ops.List(c.Context, e.db, ops.ListInput{
				Scope:  scope,
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// entryCmd creates the entry command.
func entryCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "entry",
		Usage:     "Show one archived capsule",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("id is required"))
			}
			output, err := ops.Fetch(c.Context, e.db, ops.FetchInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recently archived capsule",
		Flags: append(scopeFlags(),
			&cli.BoolFlag{Name: "include-data", Usage: "Include the full capsule payload"},
		),
		Action: func(c *cli.Context) error {
			scope, err := scopeFrom(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Latest(c.Context, e.db, ops.LatestInput{
				Scope:       scope,
				IncludeData: c.Bool("include-data"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete archived capsules",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "year", Aliases: []string{"y"}, Usage: "Only capsules for this year"},
			&cli.StringFlag{Name: "older-than", Usage: "Only capsules older than duration (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			scope, err := scopeFrom(c)
			if err != nil {
				return outputError(err)
			}
			input := ops.PurgeInput{Scope: ops.Scope{Year: scope.Year}}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, e.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export archived capsules to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file path (default: ~/.vestige/exports/archive-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "year", Aliases: []string{"y"}, Usage: "Only capsules for this year"},
		},
		Action: func(c *cli.Context) error {
			scope, err := scopeFrom(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Export(c.Context, e.db, e.baseDir, ops.ExportInput{
				Scope: ops.Scope{Year: scope.Year},
				Path:  c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HUD web server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			cfg := e.config()
			log := e.logger()
			if e.backend == nil && !cfg.UseMock {
				return outputError(errors.NewInternal(stderrors.New("no backend configured")))
			}

			initial, err := filter.Parse(cfg.DefaultFilter)
			if err != nil {
				log.Warn("unknown default filter, using default", zap.String("filter", cfg.DefaultFilter))
				initial = filter.Default
			}

			opts := timecapsule.OptionsFromConfig(cfg)
			opts.Logger = log.Named("timecapsule")
			if e.db != nil {
				opts.Recorder = ops.NewArchive(e.db)
			}
			st := store.New()
			orch := timecapsule.New(st, e.backend, opts)
			defer orch.Close()

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			filters := filter.NewContext(initial, render.RenderStateFor(st.State()))
			go render.Follow(ctx, st, filters)

			deps := web.Deps{
				DB:           e.db,
				Orchestrator: orch,
				Filters:      filters,
				Logger:       log.Named("web"),
			}
			if e.fetcher != nil && e.backend != nil {
				registry := model.NewRegistry()
				resolver := model.NewResolver(e.fetcher, e.backend.ModelURLs(), registry, log.Named("model"))
				loader := model.NewLoader(st, resolver, orch, log.Named("model"))
				go loader.Run(ctx)
				deps.Loader = loader
				deps.Registry = registry
			}

			srv, err := web.NewServer(deps, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(ctx, srv, log)
		},
	}
}

// Output helpers

// outputJSON writes JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var vErr *errors.VestigeError
	if stderrors.As(err, &vErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", vErr.Code, vErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
