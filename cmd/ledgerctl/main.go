package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/app"
	"github.com/starland/ledger/internal/config"
	"github.com/starland/ledger/internal/service/reporting"
	"github.com/starland/ledger/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ledgerctl",
		Usage: "operate the Starland ledger from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "load environment variables from `FILE`"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "log level"},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "push pending local records to the remote store once",
				Action: withLedger(runSync),
			},
			{
				Name:   "pending",
				Usage:  "list records that are not yet synced",
				Action: withLedger(runPending),
			},
			{
				Name:      "requeue",
				Usage:     "return parked records to the sync queue",
				ArgsUsage: "ID...",
				Action:    withLedger(runRequeue),
			},
			{
				Name:  "export",
				Usage: "render a report to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "report", Aliases: []string{"r"}, Value: reporting.DefaultReport, Usage: "report id"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: string(reporting.FormatCSV), Usage: "csv, pdf or xlsx"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output `DIR`"},
				},
				Action: withLedger(runExport),
			},
			{
				Name:  "reports",
				Usage: "list report ids",
				Action: func(c *cli.Context) error {
					w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					for _, def := range reporting.Catalog() {
						fmt.Fprintf(w, "%s\t%s\n", def.ID, def.Title)
					}
					return w.Flush()
				},
			},
		},
	}
}

func withLedger(run func(*cli.Context, *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("env-file"))
		if err != nil {
			return err
		}
		log, err := logger.New(c.String("log-level"))
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ledger, err := app.Build(c.Context, *cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := ledger.Close(context.Background()); err != nil {
				log.Error("failed to close stores", zap.Error(err))
			}
		}()
		return run(c, ledger)
	}
}

func runSync(c *cli.Context, ledger *app.App) error {
	res, err := ledger.Outbox.Flush(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "attempted %d, synced %d, failed %d, parked %d\n", res.Attempted, res.Synced, res.Failed, res.Parked)
	return nil
}

func runPending(c *cli.Context, ledger *app.App) error {
	entries, err := ledger.Outbox.Backlog(c.Context)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "nothing pending")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOLLECTION\tSTATUS\tATTEMPTS\tCREATED\tLAST ERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, e.Collection, e.Status, e.Attempts, e.CreatedAt.Format("2006-01-02 15:04"), e.LastError)
	}
	return w.Flush()
}

func runRequeue(c *cli.Context, ledger *app.App) error {
	if c.NArg() == 0 {
		return cli.Exit("requeue needs at least one entry id", 2)
	}
	for _, id := range c.Args().Slice() {
		if err := ledger.Outbox.Requeue(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "requeued %s\n", id)
	}
	return nil
}

func runExport(c *cli.Context, ledger *app.App) error {
	format, err := reporting.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	doc, err := ledger.Reporting.Render(c.Context, c.String("report"), format)
	if err != nil {
		return err
	}

	dir := c.String("out")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, doc.Filename)
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%d rows)\n", path, len(doc.Table.Rows))
	return nil
}
