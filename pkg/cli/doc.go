/*
Package cli provides helpers shared by the darwin command.

Output Formatting:

Commands render results as text, JSON, YAML or CSV. Tabular results use
Table so that every format can show them:

	t := &cli.Table{Headers: []string{"SK", "STATUS"}, Records: tickets}
	for _, tk := range tickets {
		t.Rows = append(t.Rows, []string{tk.SortKey, string(tk.Status)})
	}
	return cli.NewFormatter(cli.FormatYAML).FormatTo(os.Stdout, t)

Exit Codes:

ExitCode maps pipeline errors to distinct exit statuses, so scripts can
tell a missing lineage from a gateway outage.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
