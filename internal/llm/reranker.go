package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

// Rank returns a permutation of docs' indices, most relevant first. Any LLM
// failure or malformed answer degrades to the original order.
func (r *SimpleLLMReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) == 1 {
		return []int{0}, nil
	}

	var docList strings.Builder
	for i, d := range docs {
		content := []rune(d)
		if len(content) > 200 {
			d = string(content[:200]) + "..."
		}
		fmt.Fprintf(&docList, "[%d] %s\n", i, d)
	}

	prompt := fmt.Sprintf(`Tu classes les résultats d'une base de connaissances nutritionnelle.
Question : %s

Résultats :
%s
Classe les résultats du plus pertinent au moins pertinent pour la question.
Réponds UNIQUEMENT par les indices séparés par des virgules, par exemple : 0, 2, 1`, query, docList.String())

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		return identity(len(docs)), nil
	}
	return completePermutation(parseIndices(resp), len(docs)), nil
}

var indexPattern = regexp.MustCompile(`\d+`)

func parseIndices(s string) []int {
	matches := indexPattern.FindAllString(s, -1)
	var indices []int
	for _, m := range matches {
		if i, err := strconv.Atoi(m); err == nil {
			indices = append(indices, i)
		}
	}
	return indices
}

// completePermutation drops out-of-range and repeated indices, then appends the
// ones the model forgot in their original order.
func completePermutation(indices []int, n int) []int {
	seen := make([]bool, n)
	out := make([]int, 0, n)
	for _, i := range indices {
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
