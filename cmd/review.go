package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/complaintops/copilot/internal/models"
	"github.com/complaintops/copilot/internal/output"
	"github.com/complaintops/copilot/internal/review"
	"github.com/complaintops/copilot/internal/store"
)

var (
	reviewStatus string
	reviewNotes  string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage the human review queue",
	Long:  "List, inspect, and resolve review cases opened for low-confidence triage results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewListRun()
	},
}

var reviewListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List review cases",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewListRun()
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show a review case with its audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewShowRun(args[0])
	},
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <review-id>",
	Short: "Approve a pending review case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewResolveRun(args[0], models.ReviewStatusApproved)
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <review-id>",
	Short: "Reject a pending review case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewResolveRun(args[0], models.ReviewStatusRejected)
	},
}

func init() {
	reviewListCmd.Flags().StringVar(&reviewStatus, "status", "", "Filter by status: PENDING_REVIEW, APPROVED, REJECTED")
	reviewApproveCmd.Flags().StringVar(&reviewNotes, "notes", "", "Reviewer notes for the audit trail")
	reviewRejectCmd.Flags().StringVar(&reviewNotes, "notes", "", "Reviewer notes for the audit trail")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewShowCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
	rootCmd.AddCommand(reviewCmd)
}

func reviewListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status := models.ReviewStatus(strings.ToUpper(reviewStatus))
	if reviewStatus != "" && !status.Valid() {
		return fmt.Errorf("invalid status: %s", reviewStatus)
	}

	reviews, err := s.ListReviews(ctx, store.ReviewListFilter{Status: status})
	if err != nil {
		return err
	}

	if len(reviews) == 0 {
		ui.Info("No review cases found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Status", "Category", "Conf", "Urgency", "Conf", "Created"})
	for _, r := range reviews {
		_ = table.Append([]string{
			shortID(r.ID),
			output.StatusColor(r.Status),
			string(r.Category),
			fmt.Sprintf("%.2f", r.CategoryConfidence),
			output.UrgencyColor(models.Urgency(r.Urgency)),
			fmt.Sprintf("%.2f", r.UrgencyConfidence),
			r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	return nil
}

func reviewShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := s.GetReview(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(r.ID)), output.StatusColor(r.Status))
	fmt.Fprintf(ui.Out, "  Category:   %s (%.2f)\n", r.Category, r.CategoryConfidence)
	fmt.Fprintf(ui.Out, "  Urgency:    %s (%.2f)\n", r.Urgency, r.UrgencyConfidence)
	fmt.Fprintf(ui.Out, "  Masked:     %s\n", r.MaskedText)
	if r.Notes != "" {
		fmt.Fprintf(ui.Out, "  Notes:      %s\n", r.Notes)
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", r.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", r.ID)

	audit, err := s.ListAuditEntries(ctx, r.ID)
	if err != nil {
		return err
	}
	if len(audit) > 0 {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "  Audit trail:\n")
		for _, e := range audit {
			line := fmt.Sprintf("    %s  %s", e.CreatedAt.Format(time.RFC3339), output.StatusColor(e.Status))
			if e.Notes != "" {
				line += fmt.Sprintf("  %s", e.Notes)
			}
			fmt.Fprintln(ui.Out, line)
		}
	}
	return nil
}

func reviewResolveRun(id string, status models.ReviewStatus) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	gate := review.NewGate(s, viper.GetFloat64("review.threshold"))
	r, err := gate.Resolve(ctx, id, status, reviewNotes)
	if err != nil {
		return err
	}

	ui.Success("Review %s resolved: %s", shortID(r.ID), r.Status)
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
