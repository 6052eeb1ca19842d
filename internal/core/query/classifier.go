package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/llm"
)

// LLMClassifier asks a language model for the entity kind and filters of a
// question, answering in the shape of model.ExtractedIntent.
type LLMClassifier struct {
	LLM llm.LLMClient
}

func NewLLMClassifier(client llm.LLMClient) *LLMClassifier {
	return &LLMClassifier{LLM: client}
}

func (c *LLMClassifier) Classify(ctx context.Context, question string) (model.Interpretation, error) {
	prompt, err := classificationPrompt(question)
	if err != nil {
		return model.Interpretation{}, err
	}

	resp, err := c.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.Interpretation{}, fmt.Errorf("failed to classify question: %w", err)
	}

	extracted, err := common.ParseJSON[model.ExtractedIntent](resp)
	if err != nil {
		return model.Interpretation{}, err
	}

	kind, ok := model.ParseKind(extracted.Kind)
	if !ok {
		return model.Interpretation{}, fmt.Errorf("classifier answered unknown kind %q", extracted.Kind)
	}

	in := model.Interpretation{
		Kind:     kind,
		Intent:   extracted.Intent,
		Entities: extracted.Entities,
		Source:   "llm",
	}
	for _, f := range extracted.Filters {
		if _, known := propertyFields[f.Property]; !known {
			continue
		}
		built := buildFilter(f.Property, strings.ToLower(f.Modifier))
		in.Filters = append(in.Filters, built)
	}
	return in, nil
}

func classificationPrompt(question string) (string, error) {
	ctxData := model.ClassificationContext{
		Question:   question,
		Properties: []string{PropCalories, PropGlycemic, PropFibres, PropSodium},
		Modifiers:  []string{ModLow, ModHigh, ModMedium},
	}
	for _, k := range model.AllKinds() {
		ctxData.Kinds = append(ctxData.Kinds, k.Label())
	}
	payload, err := json.Marshal(ctxData)
	if err != nil {
		return "", fmt.Errorf("failed to encode classification context: %w", err)
	}

	return fmt.Sprintf(`<CONTEXT>
%s
</CONTEXT>

Instructions:
Identify which kind of entity the question is about (one of "kinds"), a short intent,
the named entities it mentions, and any property filters (property from "properties",
modifier from "modifiers").
Return ONLY a JSON object:
{"kind": "Aliment", "intent": "filter", "entities": [], "filters": [{"property": "fibres", "modifier": "élevé"}]}
`, payload), nil
}
