package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/darwin/pkg/audit"
	"mercator-hq/darwin/pkg/cli"
)

func newAuditCmd(a *app) *cobra.Command {
	var pks []string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check that every CURRENT pointer resolves to a servable version",
		Long: `Audit checks the CURRENT pointer and version DAG of the given lineages,
or of every lineage in the gene pool when --pk is not set. The command
exits non-zero when any lineage fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			var report *audit.Report
			if len(pks) > 0 {
				report, err = eng.Auditor.Check(cmd.Context(), pks...)
			} else {
				report, err = eng.Auditor.Run(cmd.Context())
			}
			if err != nil {
				return err
			}

			table := &cli.Table{Headers: []string{"PK", "VIOLATION"}, Records: report}
			for _, v := range report.Violations {
				table.Rows = append(table.Rows, []string{v.PK, v.Reason})
			}
			if err := a.print(cmd, table); err != nil {
				return err
			}
			if !report.OK() {
				return cli.NewCommandError("audit", fmt.Errorf("%d violations in %d lineages", len(report.Violations), report.Checked))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&pks, "pk", nil, "lineages to check (default: all)")
	return cmd
}
