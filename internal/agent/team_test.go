package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nexusai/nexus/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	mu         sync.Mutex
	lastRole   Role
	lastPrompt string
	result     string
	err        error
}

func (s *stubCompleter) Complete(_ context.Context, role Role, instruction string) (string, error) {
	s.mu.Lock()
	s.lastRole = role
	s.lastPrompt = instruction
	s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, CMO, RoleFor(task.ModeResearch))
	assert.Equal(t, CTO, RoleFor(task.ModeDevelop))
	assert.Equal(t, COO, RoleFor(task.ModeAnalyze))
	assert.Equal(t, COO, RoleFor(task.Mode("unknown")))
}

func TestExecuteRoutesToRole(t *testing.T) {
	stub := &stubCompleter{result: "a detailed market report"}
	team := NewTeam(stub)

	out, err := team.Execute(context.Background(), "分析市场趋势和机会", task.ModeResearch)
	require.NoError(t, err)
	assert.Equal(t, "a detailed market report", out)
	assert.Equal(t, "CMO", stub.lastRole.Name)
	assert.Contains(t, stub.lastPrompt, "分析市场趋势和机会")
}

func TestExecuteWrapsFailures(t *testing.T) {
	cause := errors.New("model unavailable")
	stub := &stubCompleter{err: cause}
	team := NewTeam(stub)

	_, err := team.Execute(context.Background(), "build a thing", task.ModeDevelop)
	require.Error(t, err)

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, task.ModeDevelop, de.Mode)
	assert.Equal(t, "CTO", de.Role)
	assert.ErrorIs(t, err, cause)
}

func TestSystemPromptIncludesPersona(t *testing.T) {
	prompt := SystemPrompt(CMO)
	assert.Contains(t, prompt, "Chief Marketing Officer")
	assert.Contains(t, prompt, CMO.Goal)
}

func TestNewGeminiCompleterRequiresKey(t *testing.T) {
	_, err := NewGeminiCompleter(context.Background(), "", "")
	assert.Error(t, err)
}
