// Package langpack loads per-language coaching material: the LLM prompt
// template, reference interference notes, and the confusion-pair table that
// drives phoneme-level tips.
//
// Packs are immutable static configuration, loaded once at process start from
// a directory of YAML files. Absence of a pack for a language is not an
// error: callers fall back to a generic prompt and generic tips.
package langpack

import (
	"errors"
	"fmt"
	"strings"
)

// PhrasePlaceholder is the single substitution point in a prompt template.
// Substitution is a literal string replacement, nothing more.
const PhrasePlaceholder = "{{PHRASE}}"

// genericTemplate is used when no pack exists for the requested language.
const genericTemplate = `You are a pronunciation coach. A learner recorded themselves saying the phrase "` + PhrasePlaceholder + `". Listen to the recording and critique their pronunciation.

Respond with exactly one JSON object, no prose outside it, with these fields:
  "clarity": number from 0 to 100,
  "rhythm": one of "smooth", "natural", "choppy", "staccato", "hesitant",
  "sound_issues": array of {"target_sound", "produced_sound", "excerpt", "suggestion"},
  "stress_note": optional string about word stress,
  "drill": one short practice exercise,
  "encouragement": one encouraging sentence.`

// ConfusionPair names two phonemes commonly substituted for each other by
// learners from a given native-language background, with a didactic tip.
// The pair is unordered: (A,B) and (B,A) resolve to the same tip.
type ConfusionPair struct {
	// A and B are the two confusable IPA phonemes.
	A string `yaml:"a"`
	B string `yaml:"b"`

	// Tip explains how to produce the target sound correctly.
	Tip string `yaml:"tip"`
}

// Pack bundles everything language-specific the coaching pipeline needs.
// A Pack is read-only after loading.
type Pack struct {
	// Language is the code this pack applies to (e.g. "fr", "fr-FR").
	Language string `yaml:"language"`

	// Template is the coaching prompt with exactly one PhrasePlaceholder.
	Template string `yaml:"template"`

	// InterferenceNotes describe typical pronunciation interference for
	// learners of this language, passed to the coach as reference material.
	InterferenceNotes string `yaml:"interference_notes"`

	// ConfusionPairs is the tip table consulted during phoneme alignment.
	ConfusionPairs []ConfusionPair `yaml:"confusion_pairs"`

	pairIndex map[[2]string]string
}

// Validate checks the pack for structural problems. A joined error lists
// every problem found.
func (p *Pack) Validate() error {
	var errs []error
	if p.Language == "" {
		errs = append(errs, fmt.Errorf("language must not be empty"))
	}
	if p.Template != "" && !strings.Contains(p.Template, PhrasePlaceholder) {
		errs = append(errs, fmt.Errorf("template for %q does not contain %s", p.Language, PhrasePlaceholder))
	}
	for i, cp := range p.ConfusionPairs {
		if cp.A == "" || cp.B == "" {
			errs = append(errs, fmt.Errorf("confusion_pairs[%d]: both phonemes must be set", i))
		}
		if cp.Tip == "" {
			errs = append(errs, fmt.Errorf("confusion_pairs[%d]: tip must not be empty", i))
		}
	}
	return errors.Join(errs...)
}

// Prompt returns the pack's template with the placeholder replaced by phrase.
// Packs without a template fall back to the generic one.
func (p *Pack) Prompt(phrase string) string {
	tmpl := p.Template
	if tmpl == "" {
		tmpl = genericTemplate
	}
	prompt := strings.ReplaceAll(tmpl, PhrasePlaceholder, phrase)
	if p.InterferenceNotes != "" {
		prompt += "\n\nTypical interference for this language:\n" + p.InterferenceNotes
	}
	return prompt
}

// Tip looks up the confusion-pair table by unordered phoneme pair.
// It implements the aligner's tip-provider contract.
func (p *Pack) Tip(target, spoken string) (string, bool) {
	if p == nil {
		return "", false
	}
	tip, ok := p.pairIndex[pairKey(target, spoken)]
	return tip, ok
}

// buildIndex populates the unordered-pair lookup map. Called once at load
// time; packs are never mutated afterwards.
func (p *Pack) buildIndex() {
	p.pairIndex = make(map[[2]string]string, len(p.ConfusionPairs))
	for _, cp := range p.ConfusionPairs {
		p.pairIndex[pairKey(cp.A, cp.B)] = cp.Tip
	}
}

// pairKey canonicalizes an unordered phoneme pair to a map key.
func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

// GenericPrompt returns the fallback prompt for languages without a pack.
func GenericPrompt(phrase string) string {
	return strings.ReplaceAll(genericTemplate, PhrasePlaceholder, phrase)
}
