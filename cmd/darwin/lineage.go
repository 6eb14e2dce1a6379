package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/darwin/pkg/cli"
)

// lineageNode is the structured output row of the lineage command.
type lineageNode struct {
	SortKey    string `json:"sk"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Hash       string `json:"version_hash"`
	ParentHash string `json:"parent_hash,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
	Active     bool   `json:"active"`
}

func newLineageCmd(a *app) *cobra.Command {
	var pk string
	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Show the version DAG of a lineage",
		Long: `Lineage lists every version and challenger of a lineage with its hash
links and marks the version CURRENT points at. The command fails when the
DAG has a dangling parent link.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			l, err := eng.Pool.Lineage(cmd.Context(), pk)
			if err != nil {
				return err
			}
			var current string
			if ptr, err := eng.Pool.GetPointer(cmd.Context(), pk); err == nil {
				current = ptr.ActiveVersionSK
			}

			table := &cli.Table{Headers: []string{"SK", "KIND", "NAME", "STATE", "HASH", "PARENT", "ACTIVE"}}
			records := make([]lineageNode, 0, l.Len())
			for _, n := range l.Nodes() {
				rec := lineageNode{
					SortKey:    n.SortKey,
					Kind:       n.Kind.String(),
					Name:       n.Name,
					State:      string(n.State),
					Hash:       n.Hash,
					ParentHash: n.ParentHash,
					Attempt:    n.Attempt,
					Active:     n.SortKey == current,
				}
				records = append(records, rec)
				table.Rows = append(table.Rows, []string{
					rec.SortKey, rec.Kind, rec.Name, rec.State, rec.Hash, rec.ParentHash, strconv.FormatBool(rec.Active),
				})
			}
			table.Records = records
			if err := a.print(cmd, table); err != nil {
				return err
			}
			return l.Verify()
		},
	}
	cmd.Flags().StringVar(&pk, "pk", "", "lineage partition key (required)")
	_ = cmd.MarkFlagRequired("pk")
	return cmd
}
