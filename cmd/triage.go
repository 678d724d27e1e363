package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/complaintops/copilot/internal/models"
	"github.com/complaintops/copilot/internal/output"
)

var (
	triageFile  string
	triageDraft bool
)

var triageCmd = &cobra.Command{
	Use:   "triage [text...]",
	Short: "Triage a complaint from the command line",
	Long: `Run the triage pipeline on one complaint.

The text is masked, classified, and routed. Low-confidence results open
a review case. With --draft, relevant SOP passages are retrieved and a
reply draft is generated as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		if triageFile != "" {
			data, err := os.ReadFile(triageFile)
			if err != nil {
				return fmt.Errorf("read complaint file: %w", err)
			}
			text = strings.TrimSpace(string(data))
		}
		if text == "" {
			return fmt.Errorf("no complaint text: pass it as arguments or with --file")
		}
		return triageRun(cmd.Context(), text)
	},
}

func init() {
	triageCmd.Flags().StringVar(&triageFile, "file", "", "Read complaint text from a file")
	triageCmd.Flags().BoolVar(&triageDraft, "draft", false, "Also retrieve SOP snippets and generate a reply draft")
	rootCmd.AddCommand(triageCmd)
}

func triageRun(ctx context.Context, text string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}

	masked := p.masker.Mask(text)
	triaged := p.classifier.Classify(masked.MaskedText)

	fmt.Fprintf(ui.Out, "Masked:     %s\n", masked.MaskedText)
	if len(masked.MaskedEntities) > 0 {
		fmt.Fprintf(ui.Out, "Entities:   %s\n", strings.Join(masked.MaskedEntities, ", "))
	}
	fmt.Fprintf(ui.Out, "Category:   %s (%.2f)\n", output.Cyan(string(triaged.Category)), triaged.CategoryConfidence)
	fmt.Fprintf(ui.Out, "Urgency:    %s (%.2f)\n", output.UrgencyColor(triaged.Urgency), triaged.UrgencyConfidence)

	decision, err := p.gate.Route(ctx, masked.MaskedText, triaged)
	if err != nil {
		return fmt.Errorf("route complaint: %w", err)
	}

	if decision.NeedsHumanReview {
		ui.Warning("Low confidence - opened review case %s", decision.ReviewID)
	} else {
		ui.Success("Auto-approved (confidence above %.2f)", p.gate.Threshold())
	}

	if !triageDraft {
		return nil
	}
	return draftRun(ctx, p, masked.MaskedText, triaged)
}

func draftRun(ctx context.Context, p *pipeline, maskedText string, triaged models.TriageResult) error {
	snippets, err := p.retriever.Retrieve(ctx, maskedText, string(triaged.Category))
	if err != nil {
		return fmt.Errorf("retrieve snippets: %w", err)
	}
	ui.VerboseLog("retrieved %d snippets", len(snippets))

	d, err := p.drafter.Generate(ctx, maskedText, string(triaged.Category), string(triaged.Urgency), snippets)
	if err != nil {
		return fmt.Errorf("generate draft: %w", err)
	}

	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan("Action plan"))
	for i, step := range d.ActionPlan {
		fmt.Fprintf(ui.Out, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan("Reply draft"))
	fmt.Fprintf(ui.Out, "%s\n", d.CustomerReplyDraft)
	if len(d.RiskFlags) > 0 {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "Risk flags: %s\n", output.Yellow(strings.Join(d.RiskFlags, ", ")))
	}
	if len(d.Sources) > 0 {
		fmt.Fprintf(ui.Out, "Sources:    ")
		for i, src := range d.Sources {
			if i > 0 {
				fmt.Fprint(ui.Out, ", ")
			}
			fmt.Fprintf(ui.Out, "%s", src.ChunkID)
		}
		fmt.Fprintln(ui.Out)
	}
	return nil
}
