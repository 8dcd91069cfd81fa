package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"thsrbook/internal/logger"
	"thsrbook/internal/store"
	"thsrbook/internal/watch"
	"thsrbook/internal/wizard"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		search    searchFlags
		loop      loopFlags
		csvPath   string
		statePath string
		keyword   string
		scraper   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for trains carrying a discount and notify each new one once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(opts)
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			search.apply(fs, cfg)
			loop.apply(fs, cfg)
			setString(fs, "csv", csvPath, &cfg.Export.CSVPath)
			setString(fs, "state", statePath, &cfg.State.Path)
			setString(fs, "keyword", keyword, &cfg.Search.TargetDiscount)
			setString(fs, "scraper", scraper, &cfg.Watch.ScraperCommand)
			if err := cfg.ValidateWatch(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			a, err := start(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.guard(ctx)

			st, err := store.Open(ctx, cfg.State)
			if err != nil {
				return fmt.Errorf("open state: %w", err)
			}
			defer st.Close()

			var source watch.Source
			if cfg.Watch.ScraperCommand != "" {
				source = watch.Command{Line: cfg.Watch.ScraperCommand, CSVPath: cfg.Export.CSVPath}
			} else {
				launcher, engine, err := a.engines()
				if err != nil {
					return err
				}
				source = watch.InProcess{Searcher: wizard.NewSearcher(cfg, launcher, engine), CSVPath: cfg.Export.CSVPath}
			}

			s, err := a.schedule(ctx, watch.New(source, st, a.reporter, cfg.Search.TargetDiscount), false)
			if err != nil {
				return err
			}

			banner(cmd, "THSR Discount Watch")
			logger.Info("watching for %q, state in %s backend", cfg.Search.TargetDiscount, cfg.State.Backend)

			_, err = s.Run(ctx)
			return a.finish(ctx, err)
		},
	}
	search.register(cmd.Flags())
	loop.register(cmd.Flags())
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file the results are written to and read from")
	cmd.Flags().StringVar(&statePath, "state", "", "File recording which hits were already notified")
	cmd.Flags().StringVar(&keyword, "keyword", "", "Discount text to look for, e.g. 學生88折")
	cmd.Flags().StringVar(&scraper, "scraper", "", "External command that refreshes the CSV each round")
	return cmd
}
