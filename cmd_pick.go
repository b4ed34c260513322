package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/l10nledger/ledger/pkg/models"
	"github.com/l10nledger/ledger/pkg/selection"
)

var (
	pickSourceLang     string
	pickTargetLang     string
	pickModelID        string
	pickMaxSuggestions int
	pickLimit          int
	pickFormat         string
	pickNoRefresh      bool
	pickWithContext    bool
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "List the string pairs that most need a suggestion from a model",
	Long: `Refreshes both latest indexes, then selects up to --limit (source, target)
pairs whose latest bodies differ and that have fewer than --max-suggestions
latest suggestions from --model. Least covered pairs come first, then the
ones whose target and source were edited longest ago.

Flags override the selection section of the config.

Examples:
  ledger pick --target fr --model gpt-4o-mini
  ledger pick --target de --model m1 --max-suggestions 2 --limit 50 --format yaml
  ledger pick --target ja --model m1 --no-refresh --context`,
	Args: cobra.NoArgs,
	RunE: runPickCommand,
}

func init() {
	f := pickCmd.Flags()
	f.StringVar(&pickSourceLang, "source", "", "Source language code (default: selection.source_lang)")
	f.StringVar(&pickTargetLang, "target", "", "Target language code (default: selection.target_lang)")
	f.StringVar(&pickModelID, "model", "", "Model id (default: selection.model_id)")
	f.IntVar(&pickMaxSuggestions, "max-suggestions", 0, "Skip pairs with at least this many suggestions (default: selection.max_suggestions)")
	f.IntVar(&pickLimit, "limit", 0, "Maximum number of pairs (default: selection.batch_size)")
	f.StringVar(&pickFormat, "format", "json", "Output format: json or yaml")
	f.BoolVar(&pickNoRefresh, "no-refresh", false, "Read the indexes as last refreshed")
	f.BoolVar(&pickWithContext, "context", false, "Include the string in other languages for each pair")
	rootCmd.AddCommand(pickCmd)
}

// pickedPair is one output entry.
type pickedPair struct {
	*models.PairCandidate `yaml:",inline"`
	Context               []*models.TranslationVersion `json:"context,omitempty" yaml:"context,omitempty"`
}

// pickOutput is the document printed by the pick command.
type pickOutput struct {
	Params selection.Params `json:"params" yaml:"params"`
	Pairs  []pickedPair     `json:"pairs" yaml:"pairs"`
}

func pickParams(cmd *cobra.Command) selection.Params {
	p := selection.Params{
		SourceLang:     cfg.Selection.SourceLang,
		TargetLang:     cfg.Selection.TargetLang,
		ModelID:        cfg.Selection.ModelID,
		MaxSuggestions: cfg.Selection.MaxSuggestions,
		Limit:          cfg.Selection.BatchSize,
	}

	f := cmd.Flags()
	if f.Changed("source") {
		p.SourceLang = pickSourceLang
	}
	if f.Changed("target") {
		p.TargetLang = pickTargetLang
	}
	if f.Changed("model") {
		p.ModelID = pickModelID
	}
	if f.Changed("max-suggestions") {
		p.MaxSuggestions = pickMaxSuggestions
	}
	if f.Changed("limit") {
		p.Limit = pickLimit
	}
	return p
}

func runPickCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	params := pickParams(cmd)
	if err := params.Validate(); err != nil {
		return err
	}
	if pickFormat != "json" && pickFormat != "yaml" {
		return fmt.Errorf("unknown format %q: want json or yaml", pickFormat)
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	if !pickNoRefresh {
		if err := l.refresh.RefreshAll(ctx); err != nil {
			return err
		}
	}

	pairs, err := l.selector.PickPairs(ctx, params)
	if err != nil {
		return err
	}

	out := pickOutput{Params: params, Pairs: make([]pickedPair, 0, len(pairs))}
	for _, pair := range pairs {
		entry := pickedPair{PairCandidate: pair}
		if pickWithContext {
			entry.Context, err = l.selector.PickContext(ctx, pair)
			if err != nil {
				return err
			}
		}
		out.Pairs = append(out.Pairs, entry)
	}

	return writePickOutput(cmd.OutOrStdout(), pickFormat, &out)
}

func writePickOutput(w io.Writer, format string, out *pickOutput) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}
