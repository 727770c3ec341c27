package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/dinecoach/internal/app"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/rank"
	"github.com/hyperifyio/dinecoach/internal/schemas"
)

// output flags shared by analyze and rank.
type outputFlags struct {
	out    string
	format string
	card   string
}

func (f *outputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().StringVar(&f.format, "format", "json", "Output format: json or text")
	cmd.Flags().StringVar(&f.card, "card", "", "Also write a printable PDF order card to this path")
}

func (f *outputFlags) emit(cmd *cobra.Command, an app.Analysis) error {
	if err := schemas.ValidateValue(an.Result); err != nil {
		log.Warn().Err(err).Msg("ranking result does not match schema")
	}
	if f.card != "" {
		var buf bytes.Buffer
		if err := app.WriteCard(&buf, an); err != nil {
			return fmt.Errorf("render card: %w", err)
		}
		if err := writeFile(f.card, buf.Bytes()); err != nil {
			return err
		}
	}
	switch strings.ToLower(f.format) {
	case "json":
		return writeJSON(cmd, f.out, an)
	case "text":
		text := renderText(an)
		if f.out == "" || f.out == "-" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		}
		return writeFile(f.out, []byte(text))
	}
	return fmt.Errorf("unknown format %q", f.format)
}

func newAnalyzeCmd(o *options) *cobra.Command {
	var of outputFlags
	cmd := &cobra.Command{
		Use:   "analyze <url|file>",
		Short: "Extract and rank a menu page, PDF or saved HTML file",
		Long: "Analyze fetches a menu URL (HTML or PDF) or reads a local .pdf/.html file, extracts the menu items " +
			"and ranks them. Use --ocr with --llm.model for scanned PDFs.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			target := strings.TrimSpace(args[0])
			p := a.Config().Preferences()
			var an app.Analysis
			if isURL(target) {
				an, err = a.AnalyzeURL(cmd.Context(), target, p)
			} else {
				an, err = analyzeFile(cmd, a, target)
			}
			if err != nil {
				return err
			}
			log.Info().Int("candidates", an.Candidates).Int("picks", len(an.Picks)).Str("source", an.Context.Source).Msg("analyzed menu")
			return of.emit(cmd, an)
		},
	}
	of.bind(cmd)
	return cmd
}

func analyzeFile(cmd *cobra.Command, a *app.App, path string) (app.Analysis, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return app.Analysis{}, err
	}
	p := a.Config().Preferences()
	if strings.EqualFold(filepath.Ext(path), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-")) {
		return a.AnalyzePDF(cmd.Context(), data, a.Config().OCR, p)
	}
	return a.AnalyzeMarkup(cmd.Context(), data, p)
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func newRankCmd(o *options) *cobra.Command {
	var of outputFlags
	cmd := &cobra.Command{
		Use:   "rank <items.json|->",
		Short: "Rank a JSON list of menu items",
		Long: "Rank reads either a JSON array of {section, item_name, description} objects or an object " +
			"with an \"items\" array, and ranks them without any network access.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			items, err := parseItems(data)
			if err != nil {
				return err
			}
			a, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			an, err := a.Rank(items, a.Config().Preferences())
			if err != nil {
				return err
			}
			return of.emit(cmd, an)
		},
	}
	of.bind(cmd)
	return cmd
}

// parseItems accepts a bare array or an {"items": [...]} wrapper.
func parseItems(data []byte) ([]menu.Candidate, error) {
	data = bytes.TrimSpace(data)
	var items []menu.Candidate
	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse items: %w", err)
		}
		return items, nil
	}
	var wrapped struct {
		Items []menu.Candidate `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	return wrapped.Items, nil
}

// renderText prints the picks the way they would be read at the table.
func renderText(an app.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", an.Describe())
	section := func(title string, picks []rank.ScoredPick) {
		if len(picks) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s\n", title)
		for i, p := range picks {
			fmt.Fprintf(&b, "%d. %s (~%d kcal, ~%d g protein, %s confidence)\n", i+1, p.Name, p.Kcal, p.ProteinG, p.Confidence)
			if len(p.Modifiers) > 0 {
				fmt.Fprintf(&b, "   modifiers: %s\n", strings.Join(p.Modifiers, "; "))
			}
			fmt.Fprintf(&b, "   say: %s\n", p.ServerScript)
		}
	}
	section("Picks", an.Picks)
	section("Alternates", an.Alternates)
	b.WriteString("\nIf nothing fits\n")
	for _, r := range an.FallbackRules {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}
