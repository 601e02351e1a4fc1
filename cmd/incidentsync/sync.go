package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/akmatori/incidentsync/internal/api"
	"github.com/akmatori/incidentsync/internal/etl"
	"github.com/akmatori/incidentsync/internal/jobs"
)

// errSyncFailures makes the process exit non-zero when any unit failed
var errSyncFailures = errors.New("sync finished with failures")

func newSyncCmd(c *cli) *cobra.Command {
	var (
		orgIDs []string
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass for the given orgs (or every org with --all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(orgIDs) > 0) {
				return errors.New("pass either --org or --all")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var summaries []*etl.SyncSummary
			if all {
				summaries, err = jobs.NewSyncScheduler(a.directory, a.syncer, c.logger).RunOnce(ctx)
				if err != nil {
					return err
				}
			} else {
				for _, orgID := range orgIDs {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					summaries = append(summaries, a.syncer.SyncOrgIncidents(ctx, orgID))
				}
			}

			if err := printSummaries(cmd.OutOrStdout(), summaries, asJSON); err != nil {
				return err
			}
			for _, s := range summaries {
				if s.HasFailures() {
					return errSyncFailures
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&orgIDs, "org", nil, "org ID to sync (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "sync every org in the integration directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print summaries as JSON")
	return cmd
}

func printSummaries(w io.Writer, summaries []*etl.SyncSummary, asJSON bool) error {
	if asJSON {
		out := make([]api.SyncResponse, len(summaries))
		for i, s := range summaries {
			out[i] = api.SummaryToResponse(s)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORG\tPROVIDER\tSERVICE\tINCIDENTS\tBOOKMARK\tERROR")
	for _, s := range summaries {
		if s.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%v\n", s.OrgID, s.Err)
		}
		for _, p := range s.Providers {
			if p.Err != nil {
				fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t%v\n", s.OrgID, p.Provider, p.Err)
				continue
			}
			for _, svc := range p.Services {
				bookmark, errText := "-", ""
				if !svc.Bookmark.IsZero() {
					bookmark = svc.Bookmark.Format("2006-01-02T15:04:05Z07:00")
				}
				if svc.Err != nil {
					errText = svc.Err.Error()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", s.OrgID, p.Provider, svc.ServiceKey, svc.IncidentsSynced, bookmark, errText)
			}
		}
	}
	return tw.Flush()
}
