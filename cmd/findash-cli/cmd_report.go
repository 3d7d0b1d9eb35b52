package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"findash/internal/cli"
	apphttp "findash/internal/http"
	"findash/internal/pipeline"
)

// selectionFlags are the filters shared by the report commands.
type selectionFlags struct {
	months          []string
	quarters        []string
	include         []string
	exclude         []string
	excludeKeywords []string
	includeIncome   bool
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringSliceVarP(&f.months, "months", "m", nil, "months to include, e.g. jan,Feb,March (default all)")
	fl.StringSliceVarP(&f.quarters, "quarters", "q", nil, "quarters to include, e.g. Q1,2")
	fl.StringSliceVar(&f.include, "include", nil, "category groups to include")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "category groups to exclude")
	fl.StringSliceVar(&f.excludeKeywords, "exclude-keywords", nil, "drop rows whose title or category contains any keyword")
	fl.BoolVar(&f.includeIncome, "include-income", false, "count income rows as spending")
}

// selection parses the flags with the same rules as the HTTP query string.
func (f *selectionFlags) selection() (pipeline.Selection, error) {
	q := url.Values{
		apphttp.ParamMonths:          f.months,
		apphttp.ParamQuarters:        f.quarters,
		apphttp.ParamInclude:         quoteItems(f.include),
		apphttp.ParamExclude:         quoteItems(f.exclude),
		apphttp.ParamExcludeKeywords: quoteItems(f.excludeKeywords),
	}
	q.Set(apphttp.ParamIncludeIncome, strconv.FormatBool(f.includeIncome))
	return apphttp.ParseSelection(q)
}

// quoteItems keeps labels that pflag already split out intact when the
// query rules split them again.
func quoteItems(items []string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = apphttp.QuoteListItem(it)
	}
	return out
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var sf selectionFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the dashboard for a selection",
		Long:  `Compute key metrics, budget variance, top spending and the monthly trend.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := sf.selection()
			if err != nil {
				return err
			}
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			d, err := app.Service.Dashboard(cmd.Context(), sel)
			if err != nil {
				return err
			}
			if opts.output == cli.OutputJSON {
				return cli.WriteJSON(cmd.OutOrStdout(), d)
			}
			cli.RenderDashboard(cmd.OutOrStdout(), d, app.Policy.Currency)
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func newTransactionsCmd(opts *rootOptions) *cobra.Command {
	var sf selectionFlags
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List the cleaned transactions of a selection",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := sf.selection()
			if err != nil {
				return err
			}
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			list, err := app.Service.Transactions(cmd.Context(), sel)
			if err != nil {
				return err
			}
			if opts.output == cli.OutputJSON {
				return cli.WriteJSON(cmd.OutOrStdout(), list)
			}
			cli.RenderTransactions(cmd.OutOrStdout(), list, app.Policy.Currency)
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func newQualityCmd(opts *rootOptions) *cobra.Command {
	var maxIssues int
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Show the data-quality report of the current snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			q, err := app.Service.Quality(cmd.Context())
			if err != nil {
				return err
			}
			if opts.output == cli.OutputJSON {
				return cli.WriteJSON(cmd.OutOrStdout(), q)
			}
			cli.RenderQuality(cmd.OutOrStdout(), q, maxIssues)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxIssues, "max-issues", 20, "maximum offending rows to print (0 for all)")
	return cmd
}

func newOptionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the months, quarters and categories present in the data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			o, err := app.Service.Options(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteJSON(cmd.OutOrStdout(), o)
		},
	}
}
