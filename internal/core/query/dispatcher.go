// Package query maps a free-text question to an entity kind and numeric
// filters using fixed French keyword tables, optionally helped by an LLM.
package query

import (
	"context"
	"strings"
	"unicode"

	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
)

// Classifier guesses the entity kind of a question the keyword tables could
// not place.
type Classifier interface {
	Classify(ctx context.Context, question string) (model.Interpretation, error)
}

type Dispatcher struct {
	classifier Classifier
	log        *logger.Logger
}

func NewDispatcher(classifier Classifier, log *logger.Logger) *Dispatcher {
	return &Dispatcher{classifier: classifier, log: logger.OrNop(log).With("component", "query")}
}

// Interpret never fails: a classifier error leaves the keyword answer in place.
func (d *Dispatcher) Interpret(ctx context.Context, text string) model.Interpretation {
	in, kindMatched := interpretKeywords(text)
	if kindMatched || d.classifier == nil || strings.TrimSpace(text) == "" {
		return in
	}

	guess, err := d.classifier.Classify(ctx, text)
	if err != nil {
		d.log.Warn("classifier failed, keeping keyword interpretation", "error", err)
		return in
	}
	if guess.Kind.Valid() {
		in.Kind = guess.Kind
		in.Source = guess.Source
	}
	if guess.Intent != "" {
		in.Intent = guess.Intent
	}
	if len(in.Filters) == 0 {
		in.Filters = guess.Filters
	}
	in.Entities = append(in.Entities, guess.Entities...)
	return in
}

// Keywords interprets text with the keyword tables alone.
func Keywords(text string) model.Interpretation {
	in, _ := interpretKeywords(text)
	return in
}

func interpretKeywords(text string) (model.Interpretation, bool) {
	toks := tokenize(text)
	in := model.Interpretation{Kind: defaultKind, Intent: "list", Source: "keywords"}

	kindMatched := false
	for _, fam := range entityKeywords {
		if w, ok := toks.findAny(fam.words); ok {
			in.Kind = fam.kind
			in.Matched = append(in.Matched, w)
			kindMatched = true
			break
		}
	}

	seen := map[string]bool{}
	for _, f := range detectProperties(toks, &in.Matched) {
		seen[f.Property] = true
		in.Filters = append(in.Filters, f)
	}

	for _, c := range conditionShortcuts {
		w, ok := toks.findAny(c.words)
		if !ok {
			continue
		}
		in.Matched = append(in.Matched, w)
		in.Entities = append(in.Entities, c.name)
		for _, f := range c.filters {
			if !seen[f.Property] {
				seen[f.Property] = true
				in.Filters = append(in.Filters, f)
			}
		}
	}

	switch {
	case len(in.Entities) > 0:
		in.Intent = "condition"
	case len(in.Filters) > 0:
		in.Intent = "filter"
	}
	return in, kindMatched
}

// detectProperties pairs each property with the nearest modifier, in either
// order. A property left without a modifier at the end is reported as "any".
func detectProperties(toks tokens, matched *[]string) []model.Filter {
	var (
		out     []model.Filter
		curProp string
		curMod  string
		done    = map[string]bool{}
	)
	for i := range toks.words {
		for _, p := range propertyKeywords {
			if w, ok := toks.matchAt(i, p.words, true); ok {
				curProp = p.name
				*matched = append(*matched, w)
			}
		}
		for _, m := range modifierKeywords {
			if w, ok := toks.matchAt(i, m.words, false); ok {
				curMod = m.name
				*matched = append(*matched, w)
			}
		}

		if curProp != "" && curMod != "" {
			if !done[curProp] {
				done[curProp] = true
				out = append(out, buildFilter(curProp, curMod))
			}
			curProp, curMod = "", ""
		} else if curProp != "" && i == len(toks.words)-1 && !done[curProp] {
			done[curProp] = true
			out = append(out, buildFilter(curProp, ModAny))
		}
	}
	return out
}

func buildFilter(prop, mod string) model.Filter {
	f := model.Filter{Property: prop, Modifier: mod}
	limits := thresholds[prop]
	switch {
	case mod == ModLow && hasKey(limits, ModLow):
		f.Op, f.Value, f.AllowMissing = model.OpLessEqual, limits[ModLow], true
	case mod == ModHigh && hasKey(limits, ModHigh):
		f.Op, f.Value, f.AllowMissing = model.OpGreaterEqual, limits[ModHigh], highKeepsMissing[prop]
	case mod == ModMedium && prop == PropGlycemic:
		f.Op, f.Value, f.Upper = model.OpBetween, limits[ModLow], limits[ModHigh]
	default:
		f.Modifier = ModAny
	}
	return f
}

func hasKey(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

type tokens struct {
	words []string
}

var accentFolder = strings.NewReplacer(
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"à", "a", "â", "a", "ä", "a",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"û", "u", "ù", "u", "ü", "u",
	"ç", "c", "œ", "oe",
)

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(s))
}

func tokenize(text string) tokens {
	words := strings.FieldsFunc(fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return tokens{words: words}
}

// matchAt reports whether a keyword, possibly several words long, ends at token i.
// With plurals set, tokens ending in s or x also match their singular keyword.
func (t tokens) matchAt(i int, keywords []string, plurals bool) (string, bool) {
	for _, kw := range keywords {
		parts := strings.Fields(fold(kw))
		n := len(parts)
		if n == 0 || i+1 < n {
			continue
		}
		ok := true
		for j := 0; j < n; j++ {
			if !sameWord(t.words[i-n+1+j], parts[j], plurals) {
				ok = false
				break
			}
		}
		if ok {
			return kw, true
		}
	}
	return "", false
}

func (t tokens) findAny(keywords []string) (string, bool) {
	for i := range t.words {
		if w, ok := t.matchAt(i, keywords, true); ok {
			return w, true
		}
	}
	return "", false
}

func sameWord(tok, kw string, plurals bool) bool {
	if tok == kw {
		return true
	}
	if plurals && len(tok) > 2 && (strings.HasSuffix(tok, "s") || strings.HasSuffix(tok, "x")) {
		return tok[:len(tok)-1] == kw
	}
	return false
}
