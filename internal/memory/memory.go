// Package memory keeps a flat JSON record of task results and insights with
// linear substring search. Both lists are capped at the most recent 100
// entries and stored results are truncated to 2000 characters.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	maxEntries      = 100
	maxResultLength = 2000
)

type TaskResult struct {
	Task      string    `json:"task"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

type Insight struct {
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SearchResult struct {
	Tasks    []TaskResult `json:"tasks"`
	Insights []Insight    `json:"insights"`
}

type Memory struct {
	mu           sync.Mutex
	tasksFile    string
	insightsFile string
}

func New(dir string) (*Memory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	m := &Memory{
		tasksFile:    filepath.Join(dir, "tasks.json"),
		insightsFile: filepath.Join(dir, "insights.json"),
	}

	for _, file := range []string{m.tasksFile, m.insightsFile} {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			if err := writeJSON(file, []struct{}{}); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Memory) SaveTaskResult(taskDesc, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []TaskResult
	if err := readJSON(m.tasksFile, &results); err != nil {
		results = nil
	}

	if len(result) > maxResultLength {
		result = result[:maxResultLength]
	}

	results = append(results, TaskResult{Task: taskDesc, Result: result, Timestamp: time.Now()})
	if len(results) > maxEntries {
		results = results[len(results)-maxEntries:]
	}

	return writeJSON(m.tasksFile, results)
}

func (m *Memory) RecentTaskResults(limit int) ([]TaskResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []TaskResult
	if err := readJSON(m.tasksFile, &results); err != nil {
		return nil, err
	}

	if len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

func (m *Memory) SaveInsight(category, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var insights []Insight
	if err := readJSON(m.insightsFile, &insights); err != nil {
		insights = nil
	}

	insights = append(insights, Insight{Category: category, Content: content, Timestamp: time.Now()})
	if len(insights) > maxEntries {
		insights = insights[len(insights)-maxEntries:]
	}

	return writeJSON(m.insightsFile, insights)
}

func (m *Memory) Insights(category string) ([]Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var insights []Insight
	if err := readJSON(m.insightsFile, &insights); err != nil {
		return nil, err
	}

	if category == "" {
		return insights, nil
	}

	var filtered []Insight
	for _, insight := range insights {
		if insight.Category == category {
			filtered = append(filtered, insight)
		}
	}
	return filtered, nil
}

// Search does a case-insensitive substring scan over task descriptions and
// insight contents.
func (m *Memory) Search(keyword string) (SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result SearchResult
	keyword = strings.ToLower(keyword)

	var tasks []TaskResult
	if err := readJSON(m.tasksFile, &tasks); err != nil {
		return result, err
	}
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Task), keyword) {
			result.Tasks = append(result.Tasks, t)
		}
	}

	var insights []Insight
	if err := readJSON(m.insightsFile, &insights); err != nil {
		return result, err
	}
	for _, insight := range insights {
		if strings.Contains(strings.ToLower(insight.Content), keyword) {
			result.Insights = append(result.Insights, insight)
		}
	}

	return result, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
