package main

import (
	"context"
	"net/http"
	"os"

	"github.com/fiffu/timetablewatch/app"
	"github.com/fiffu/timetablewatch/lib/scraper"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	root := &cobra.Command{
		Use:          "timetablewatch",
		Short:        "Watches the bus timetable page and notifies subscribers of changes",
		SilenceUsage: true,
	}
	root.AddCommand(serveCommand(), scrapeCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily scrape schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fx.New(
				app.Core,
				fx.Provide(app.NewScheduler),
				fx.Provide(app.NewAPI),
				fx.Invoke(func(*http.Server, *scraper.Scheduler) {}),
			)
			if err := a.Err(); err != nil {
				return err
			}
			a.Run()
			return nil
		},
	}
}

func scrapeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run a single scrape and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s *scraper.Scraper
			a := fx.New(app.Core, fx.Populate(&s))
			if err := a.Err(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.Start(ctx); err != nil {
				return err
			}
			defer a.Stop(context.WithoutCancel(ctx))

			_, err := s.Run(ctx)
			return err
		},
	}
}
