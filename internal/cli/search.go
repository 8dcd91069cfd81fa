package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"thsrbook/internal/export"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
	"thsrbook/internal/wizard"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		search  searchFlags
		csvPath string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search once and append every train on the result list to a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(opts)
			if err != nil {
				return err
			}
			search.apply(cmd.Flags(), cfg)
			setString(cmd.Flags(), "csv", csvPath, &cfg.Export.CSVPath)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			a, err := start(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.guard(ctx)

			launcher, engine, err := a.engines()
			if err != nil {
				return err
			}
			proxy := ""
			if proxies, err := cfg.LoadProxies(); err != nil {
				return err
			} else if len(proxies) > 0 {
				proxy = proxies[0]
			}

			offers, err := wizard.NewSearcher(cfg, launcher, engine).Search(ctx, proxy)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return report(cmd, offers, cfg.Export.CSVPath)
		},
	}
	search.register(cmd.Flags())
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to append results to")
	return cmd
}

func report(cmd *cobra.Command, offers []models.TrainOffer, csvPath string) error {
	if len(offers) == 0 {
		logger.Warn("no trains on the result list")
		return nil
	}
	out := cmd.OutOrStdout()
	for _, o := range offers {
		mark := " "
		if o.IsTarget {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s\n", mark, o.Summary())
	}
	n, err := export.Append(csvPath, offers)
	if err != nil {
		return err
	}
	logger.Info("wrote %d rows to %s", n, csvPath)
	return nil
}
