package main

import (
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/darwin/pkg/cli"
	"mercator-hq/darwin/pkg/genome"
	"mercator-hq/darwin/pkg/pipeline"
	"mercator-hq/darwin/pkg/pipeline/critic"
	"mercator-hq/darwin/pkg/pipeline/feedback"
	"mercator-hq/darwin/pkg/pipeline/serving"
)

func newChatCmd(a *app) *cobra.Command {
	var req serving.Request
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message to the active genome of a lineage",
		Long: `Chat resolves the CURRENT pointer of a lineage, answers the message
with the active genome and records the turn. With events.orchestrate set
the reply is reviewed and evolved before the command returns.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Message = strings.Join(args, " ")
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			resp, err := eng.Serving.Respond(cmd.Context(), req)
			if err != nil {
				return err
			}
			if a.output == string(cli.FormatText) {
				return a.print(cmd, resp.Reply)
			}
			return a.print(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&req.PK, "pk", "", "lineage partition key (required)")
	cmd.Flags().StringVar(&req.ConversationID, "chat-id", "", "conversation id (required)")
	_ = cmd.MarkFlagRequired("pk")
	_ = cmd.MarkFlagRequired("chat-id")
	return cmd
}

func newFeedbackCmd(a *app) *cobra.Command {
	var (
		req  feedback.Request
		kind string
	)
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Like or dislike a conversation",
		Long: `Feedback updates the like and dislike counters of the genome that served a
conversation. A dislike also opens a USER ticket with the model's analysis
of what went wrong.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Type = feedback.Kind(strings.ToLower(kind))
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			res, err := eng.Feedback.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(cmd, res)
		},
	}
	cmd.Flags().StringVar(&req.PK, "pk", "", "lineage partition key (required)")
	cmd.Flags().StringVar(&req.ConversationID, "chat-id", "", "conversation id (required)")
	cmd.Flags().StringVar(&kind, "type", string(feedback.Like), "like or dislike")
	cmd.Flags().StringVar(&req.Comment, "comment", "", "free-text comment")
	_ = cmd.MarkFlagRequired("pk")
	_ = cmd.MarkFlagRequired("chat-id")
	return cmd
}

func newCriticCmd(a *app) *cobra.Command {
	var req critic.Request
	cmd := &cobra.Command{
		Use:   "critic",
		Short: "Review a recorded conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			res, err := eng.Runner.Critic().Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(cmd, res)
		},
	}
	cmd.Flags().StringVar(&req.PK, "pk", "", "lineage partition key (required)")
	cmd.Flags().StringVar(&req.ChatSK, "chat-sk", "", "chat sort key (required)")
	_ = cmd.MarkFlagRequired("pk")
	_ = cmd.MarkFlagRequired("chat-sk")
	return cmd
}

func newEvolveCmd(a *app) *cobra.Command {
	var (
		pk, chatSK string
		issue      pipeline.Issue
	)
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Review a conversation and evolve its genome",
		Long: `Evolve runs the critic on a conversation and, if it failed, breeds
challengers until one is promoted or the failure is escalated to a ticket.

With --reason the critic is skipped and the given issue is evolved directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeAll, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			if issue.Reason == "" {
				out, err := eng.Runner.Run(cmd.Context(), pk, chatSK)
				if err != nil {
					return err
				}
				return a.print(cmd, out)
			}
			genomeSK, err := genome.VersionFromChat(chatSK)
			if err != nil {
				return err
			}
			out, err := eng.Runner.Evolve(cmd.Context(), pipeline.Payload{
				PK:       pk,
				ChatSK:   chatSK,
				GenomeSK: genomeSK,
				Issue:    issue.WithDefaults(),
			})
			if err != nil {
				return err
			}
			return a.print(cmd, out)
		},
	}
	cmd.Flags().StringVar(&pk, "pk", "", "lineage partition key (required)")
	cmd.Flags().StringVar(&chatSK, "chat-sk", "", "chat sort key (required)")
	cmd.Flags().StringVar(&issue.Reason, "reason", "", "skip the critic and evolve against this failure reason")
	cmd.Flags().StringVar(&issue.Rule, "rule", "", "violated rule, used with --reason")
	_ = cmd.MarkFlagRequired("pk")
	_ = cmd.MarkFlagRequired("chat-sk")
	return cmd
}
