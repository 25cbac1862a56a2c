// Package classify selects an execution mode for a free-text task
// description. The Classifier interface keeps the strategy pluggable; the
// keyword implementation is a pure, total function so it can be tested in
// isolation and swapped for something smarter later.
package classify

import (
	"strings"

	"github.com/nexusai/nexus/internal/task"
)

type Classifier interface {
	Classify(text string) task.Mode
}

// Keyword sets are checked in priority order: market terms first, then
// build/tech terms, then analysis terms. Ties resolve to the first matching
// set. Terms cover both the Chinese originals and English equivalents.
var (
	researchKeywords = []string{"市场", "趋势", "机会", "竞争", "market", "trend", "opportunit", "competit"}
	developKeywords  = []string{"开发", "代码", "技术", "系统", "develop", "code", "build", "implement", "system"}
	analyzeKeywords  = []string{"分析", "数据", "报告", "analy", "data", "report"}
)

// KeywordClassifier routes descriptions by keyword membership and always
// returns a mode: anything unmatched falls back to analyze.
type KeywordClassifier struct{}

func NewKeywordClassifier() KeywordClassifier { return KeywordClassifier{} }

func (KeywordClassifier) Classify(text string) task.Mode {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, researchKeywords):
		return task.ModeResearch
	case containsAny(lower, developKeywords):
		return task.ModeDevelop
	case containsAny(lower, analyzeKeywords):
		return task.ModeAnalyze
	default:
		return task.ModeAnalyze
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
