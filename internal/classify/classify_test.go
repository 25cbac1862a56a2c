package classify

import (
	"testing"

	"github.com/nexusai/nexus/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name string
		text string
		want task.Mode
	}{
		{"market keyword", "evaluate the European market for robotics", task.ModeResearch},
		{"trend keyword", "what trends are emerging in fintech", task.ModeResearch},
		{"chinese market terms", "分析市场趋势和机会", task.ModeResearch},
		{"develop keyword", "develop a new caching layer", task.ModeDevelop},
		{"chinese tech term", "设计一个新技术方案", task.ModeDevelop},
		{"code keyword", "review this code for bugs", task.ModeDevelop},
		{"analysis keyword", "produce a report on quarterly numbers", task.ModeAnalyze},
		{"chinese data term", "整理这些数据", task.ModeAnalyze},
		{"no keyword falls back", "write a poem about autumn", task.ModeAnalyze},
		{"empty falls back", "", task.ModeAnalyze},
		{"case insensitive", "MARKET Research Plan", task.ModeResearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

// A description matching several keyword sets resolves to the highest
// priority set: market terms beat build terms beat analysis terms.
func TestClassifyPriority(t *testing.T) {
	c := NewKeywordClassifier()

	assert.Equal(t, task.ModeResearch, c.Classify("analyze the market with new code"))
	assert.Equal(t, task.ModeDevelop, c.Classify("analyze the system architecture"))
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewKeywordClassifier()

	first := c.Classify("扫描AI行业最新动态，识别潜在商业机会")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify("扫描AI行业最新动态，识别潜在商业机会"))
	}
	assert.Equal(t, task.ModeResearch, first)
}
