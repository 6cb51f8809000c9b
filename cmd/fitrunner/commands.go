package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/starford/fitrunner/internal"
	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/history"
	"github.com/starford/fitrunner/internal/mcpserver"
	"github.com/starford/fitrunner/internal/report"
	"github.com/starford/fitrunner/internal/results"
	"github.com/starford/fitrunner/internal/suiteservice"
)

// Process exit statuses of the run command.
const (
	maxFailureExit = 254
	runErrorExit   = 255
)

// processExitCode maps a run outcome to a process exit status: wrong +
// exceptions capped at 254, or 255 when the run itself failed.
func processExitCode(res *results.SuiteResult, err error) int {
	if (err != nil && !errors.Is(err, apperr.ErrStopped)) || res == nil {
		return runErrorExit
	}
	if code := res.ExitCode(); code < maxFailureExit {
		return code
	}
	return maxFailureExit
}

// stderrLogger keeps stdout free for reports and the MCP protocol.
func stderrLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
}

// buildStack assembles the suite service for one-shot commands.
func buildStack(cmd *cli.Command) (*internal.Stack, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := stderrLogger(cfg)
	slog.SetDefault(logger)
	ports, err := internal.NewPorts(cfg)
	if err != nil {
		return nil, fmt.Errorf("init ports: %w", err)
	}
	stack, err := internal.Build(cfg, ports, logger)
	if err != nil {
		return nil, err
	}
	if err := stack.SyncHistory(logger); err != nil {
		logger.Warn("history sync failed", slog.String("error", err.Error()))
	}
	return stack, nil
}

func runCommand(exitCode *int) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run the suite rooted at a page and print a report",
		ArgsUsage: "<page path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "text, xml, json or html"},
			&cli.StringFlag{Name: "suite-filter", Usage: "Comma separated include tags"},
			&cli.StringFlag{Name: "exclude-suite-filter", Usage: "Comma separated exclude tags"},
			&cli.StringFlag{Name: "first-test", Usage: "First document to run"},
			&cli.BoolFlag{Name: "no-history", Usage: "Do not write history records"},
			&cli.BoolFlag{Name: "include-content", Usage: "Embed annotated content in xml/json/html reports"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the report to a file instead of stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*exitCode = runErrorExit
			root := cmd.Args().First()

			format, err := report.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			stack, err := buildStack(cmd)
			if err != nil {
				return err
			}
			defer stack.Close()

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req := suiteservice.RunRequest{
				Root:               root,
				SuiteFilter:        cmd.String("suite-filter"),
				ExcludeSuiteFilter: cmd.String("exclude-suite-filter"),
				FirstTest:          cmd.String("first-test"),
				NoHistory:          cmd.Bool("no-history"),
				IncludeContent:     cmd.Bool("include-content"),
			}
			resp, runErr := stack.Service.Run(ctx, req)
			var res *results.SuiteResult
			if resp != nil {
				res = resp.Result
			}
			*exitCode = processExitCode(res, runErr)
			if res == nil {
				return runErr
			}

			var out io.Writer = os.Stdout
			if path := cmd.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					*exitCode = runErrorExit
					return err
				}
				defer f.Close()
				out = f
			}
			if err := report.Write(out, format, res, report.Options{IncludeContent: req.IncludeContent}); err != nil {
				*exitCode = runErrorExit
				return err
			}
			if runErr != nil {
				slog.Warn("run stopped before completion", slog.Int("executed", len(res.Documents)), slog.Int("planned", resp.Plan.Len()))
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List pages with history, the records of one page, or print one record",
		ArgsUsage: "[page path]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "result-date", Usage: "Print the XML of the record written at this yyyyMMddHHmmss (\"latest\" for the newest)"},
			&cli.IntFlag{Name: "limit", Usage: "Max records to list"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			stack, err := buildStack(cmd)
			if err != nil {
				return err
			}
			defer stack.Close()
			path := cmd.Args().First()

			if date := cmd.String("result-date"); date != "" {
				if date == "latest" {
					date = ""
				}
				_, data, err := stack.Service.ReadHistory(ctx, path, date)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}

			if path == "" {
				pages, err := stack.Service.HistoryPages(ctx)
				if err != nil {
					return err
				}
				writePages(os.Stdout, pages)
				return nil
			}
			recs, err := stack.Service.History(ctx, path, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			writeRecords(os.Stdout, path, recs)
			return nil
		},
	}
}

func writePages(w io.Writer, pages []history.PageSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("History")
	t.AppendHeader(table.Row{"Page", "Records", "Latest"})
	for _, p := range pages {
		name := p.Path.String()
		if name == "" {
			name = "root"
		}
		t.AppendRow(table.Row{name, p.Records, p.Latest})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func writeRecords(w io.Writer, path string, recs []history.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(path)
	t.AppendHeader(table.Row{"Result date", "Right", "Wrong", "Ignored", "Exceptions", "Pages", "File"})
	for _, r := range recs {
		t.AppendRow(table.Row{r.ResultDate(), r.Summary.Right, r.Summary.Wrong, r.Summary.Ignores, r.Summary.Exceptions, r.PageCount, r.File})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve fitrunner tools over MCP stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			stack, err := buildStack(cmd)
			if err != nil {
				return err
			}
			defer stack.Close()
			return mcpserver.New(stack.Service, version).ServeStdio()
		},
	}
}
