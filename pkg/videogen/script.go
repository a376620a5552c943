package videogen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"socialcast/entities"
	"socialcast/pkg/ai"
)

const (
	minScriptWords = 15
	maxScriptWords = 150
)

// placeholder junk some models leave in when they run out of article
var junkMarkers = []string{"[insert", "lorem ipsum", "{{", "TODO:"}

// ScriptWriter produces the spoken script a video job needs. AI-written when
// possible, validated, and replaced with a safe template when the model
// misbehaves.
type ScriptWriter struct {
	client ai.Client
	styles map[entities.Brand]string
	gate   ScriptGate
	log    *slog.Logger
}

// ScriptGate approves billable script calls and records their cost.
// *budget.Ledger satisfies it.
type ScriptGate interface {
	CanAfford(ctx context.Context, provider entities.Provider, brand entities.Brand, units int) error
	RecordSpend(ctx context.Context, provider entities.Provider, brand entities.Brand, operation string, units int, workflowID string) error
}

func NewScriptWriter(client ai.Client, styles map[entities.Brand]string, log *slog.Logger) *ScriptWriter {
	return &ScriptWriter{client: client, styles: styles, log: log.With("component", "script")}
}

// SetGate enables budget enforcement for script-writing calls.
func (w *ScriptWriter) SetGate(g ScriptGate) { w.gate = g }

// Write returns a valid script for the article. Model failures and invalid
// output both fall back to a deterministic template, so video generation
// never blocks on the writer. extraStyle carries experiment-variant prompt
// modifiers.
func (w *ScriptWriter) Write(ctx context.Context, brand entities.Brand, extraStyle, title, excerpt string) string {
	if w.gate != nil {
		if gerr := w.gate.CanAfford(ctx, entities.ProviderScorer, brand, 1); gerr != nil {
			w.log.Warn("script budget denied, using fallback", "brand", brand, "err", gerr)
			return FallbackScript(brand, title)
		}
	}

	style := strings.TrimSpace(w.styles[brand] + " " + extraStyle)
	script, err := w.client.WriteScript(ctx, brand, style, title, excerpt)
	if w.gate != nil {
		if gerr := w.gate.RecordSpend(ctx, entities.ProviderScorer, brand, "script.write", 1, ""); gerr != nil {
			w.log.Warn("script spend not recorded", "brand", brand, "err", gerr)
		}
	}
	if err != nil {
		w.log.Warn("script model failed, using fallback", "brand", brand, "err", err)
		return FallbackScript(brand, title)
	}
	if err := ValidateScript(script); err != nil {
		w.log.Warn("script rejected, using fallback", "brand", brand, "err", err)
		return FallbackScript(brand, title)
	}
	return script
}

// ValidateScript enforces the speakable range and rejects template leftovers.
func ValidateScript(s string) error {
	words := len(strings.Fields(s))
	if words < minScriptWords {
		return fmt.Errorf("script too short: %d words", words)
	}
	if words > maxScriptWords {
		return fmt.Errorf("script too long: %d words", words)
	}
	lower := strings.ToLower(s)
	for _, m := range junkMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return fmt.Errorf("script contains placeholder text %q", m)
		}
	}
	return nil
}

// FallbackScript is the no-AI script: bland but valid and on brand.
func FallbackScript(brand entities.Brand, title string) string {
	return fmt.Sprintf(
		"Big story today: %s. This is one of those updates worth a closer look if you follow the %s market. We broke down what it means and what to watch next. Check the link for the full story, and follow us so you never miss an update.",
		strings.TrimSpace(title), brand,
	)
}
