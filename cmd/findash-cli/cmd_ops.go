package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"findash/internal/cli"
	"findash/internal/config"
	"findash/internal/services"
)

// checkResult is the JSON form of the check command.
type checkResult struct {
	Snapshot services.SnapshotInfo   `json:"snapshot"`
	Quality  services.QualitySummary `json:"quality"`
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and load the sources once",
		Long: `Validate the configuration and policy, then fetch and clean the sources.
Exits non-zero when a source is unavailable or lacks required columns.`,
		Args: cobra.NoArgs,
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
				return cli.WriteJSON(cmd.OutOrStdout(), checkResult{Snapshot: q.Snapshot, Quality: q.Summary})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: %s, %d rows kept of %d, mapping %s\n",
				q.Snapshot.Source, q.Summary.Kept, q.Summary.SourceRows, mappingLabel(q.Snapshot))
			for _, w := range q.Snapshot.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
}

func mappingLabel(s services.SnapshotInfo) string {
	if !s.Mapping.Loaded {
		return "not loaded"
	}
	return string(s.Mapping.Mode)
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Ask running servers to reload their snapshot",
		Long:  `Publish a refresh request on the AMQP exchange. Requires AMQP_URL.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			req, err := app.Service.RequestRefresh(cmd.Context(), reason)
			if errors.Is(err, services.ErrBusNotConfigured) {
				return fmt.Errorf("%w: set AMQP_URL to a reachable broker", err)
			}
			if err != nil {
				return err
			}
			if opts.output == cli.OutputJSON {
				return cli.WriteJSON(cmd.OutOrStdout(), req)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refresh requested: %s\n", req.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cli", "reason recorded with the request")
	return cmd
}

func newNarrativeCmd(opts *rootOptions) *cobra.Command {
	var months []string
	cmd := &cobra.Command{
		Use:   "narrative",
		Short: "Generate a written summary of the selected months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sf := selectionFlags{months: months}
			sel, err := sf.selection()
			if err != nil {
				return err
			}
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Narrative(cmd.Context(), sel)
			if err != nil {
				return err
			}
			if opts.output == cli.OutputJSON {
				return cli.WriteJSON(cmd.OutOrStdout(), res)
			}
			period := "all months"
			if len(res.Period) > 0 {
				period = strings.Join(res.Period, ", ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n\n%s\n", period, res.Provider, res.Text)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&months, "months", "m", nil, "months to summarize (default all)")
	return cmd
}

func newPolicyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the effective pipeline policy as TOML",
		Long:  `Print the policy loaded from POLICY_FILE over the defaults. The output is a valid policy file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := config.LoadPolicy(config.Load().PolicyFile)
			if err != nil {
				return err
			}
			return config.WritePolicy(cmd.OutOrStdout(), p)
		},
	}
}
