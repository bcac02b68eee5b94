package orchestrator

import (
	"regexp"
	"strings"
)

// Complexity buckets ad-hoc user questions by the tier they deserve.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// Factual lookups route to the cheap tier.
var simplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(who said|when did|what time|how many|list|name)\b`),
	regexp.MustCompile(`(?i)\b(quién dijo|cuándo|a qué hora|cuántos|nombr)\b`),
	regexp.MustCompile(`(?i)\b(quem disse|quando|que horas|quantos)\b`),
	regexp.MustCompile(`(?i)^(repeat|repite|repita)\b`),
}

// Analytical questions route to the conversational tier.
var complexPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(why|explain|analyze|impact|risk|strategy|compare)\b`),
	regexp.MustCompile(`(?i)\b(por qué|explica|analiza|impacto|riesgo|estrategia)\b`),
	regexp.MustCompile(`(?i)\b(por que|explique|analise|impacto|risco)\b`),
	regexp.MustCompile(`(?i)\b(summarize|resum|suggest|recommend|pros.cons)\b`),
}

// ClassifyQuery decides whether a question is a cheap factual lookup or
// needs the conversational tier. Complex patterns win over simple ones,
// and ambiguous questions default to complex so answer quality never
// degrades silently.
func ClassifyQuery(question string) Complexity {
	if len(strings.Fields(question)) <= 4 {
		return ComplexitySimple
	}

	for _, p := range complexPatterns {
		if p.MatchString(question) {
			return ComplexityComplex
		}
	}
	for _, p := range simplePatterns {
		if p.MatchString(question) {
			return ComplexitySimple
		}
	}
	return ComplexityComplex
}
