package main

import (
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/darwin/pkg/cli"
	"mercator-hq/darwin/pkg/genepool"
	"mercator-hq/darwin/pkg/genome"
)

func newTicketsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Inspect and close escalation tickets",
	}
	cmd.AddCommand(newTicketsListCmd(a), newTicketsCloseCmd(a))
	return cmd
}

func newTicketsListCmd(a *app) *cobra.Command {
	var pk, status, kind, chatSK string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tickets of a lineage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			tickets, err := eng.Pool.ListTickets(cmd.Context(), pk, genepool.TicketFilter{
				Status: genome.TicketStatus(strings.ToUpper(status)),
				Type:   genome.TicketType(strings.ToUpper(kind)),
				ChatSK: chatSK,
			})
			if err != nil {
				return err
			}
			return a.print(cmd, ticketTable(tickets))
		},
	}
	cmd.Flags().StringVar(&pk, "pk", "", "lineage partition key (required)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status: open or closed")
	cmd.Flags().StringVar(&kind, "type", "", "filter by type: system or user")
	cmd.Flags().StringVar(&chatSK, "chat-sk", "", "filter by conversation")
	_ = cmd.MarkFlagRequired("pk")
	return cmd
}

func newTicketsCloseCmd(a *app) *cobra.Command {
	var pk, closedBy string
	cmd := &cobra.Command{
		Use:   "close <ticket-sk>",
		Short: "Close a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			t, err := eng.Pool.CloseTicket(cmd.Context(), pk, args[0], closedBy)
			if err != nil {
				return err
			}
			return a.print(cmd, ticketTable([]*genome.Ticket{t}))
		},
	}
	cmd.Flags().StringVar(&pk, "pk", "", "lineage partition key (required)")
	cmd.Flags().StringVar(&closedBy, "by", "operator", "who closed the ticket")
	_ = cmd.MarkFlagRequired("pk")
	return cmd
}

func ticketTable(tickets []*genome.Ticket) *cli.Table {
	if tickets == nil {
		tickets = []*genome.Ticket{}
	}
	table := &cli.Table{
		Headers: []string{"SK", "STATUS", "TYPE", "CHAT", "CREATED", "FEEDBACK"},
		Records: tickets,
	}
	for _, t := range tickets {
		table.Rows = append(table.Rows, []string{
			t.SortKey, string(t.Status), string(t.Type), t.ChatSK, t.CreatedAt, t.Feedback,
		})
	}
	return table
}
