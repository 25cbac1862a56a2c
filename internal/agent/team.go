// Package agent dispatches tasks to role-bound executive agents. Each
// execution mode maps to exactly one role and one instruction template;
// actual text generation is delegated through the Completer interface.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexusai/nexus/internal/task"
)

// Role is a named responsibility persona bound to a mode in the dispatch
// mapping.
type Role struct {
	Name      string
	Title     string
	Goal      string
	Backstory string
}

var (
	CEO = Role{
		Name:      "CEO",
		Title:     "Chief Executive Officer",
		Goal:      "Set company strategy, assess market opportunities and make key decisions",
		Backstory: "You are the company's CEO with sharp strategic thinking and business insight. You weigh trade-offs and make the best call in complex situations.",
	}
	CTO = Role{
		Name:      "CTO",
		Title:     "Chief Technology Officer",
		Goal:      "Track frontier technology and design innovative solutions",
		Backstory: "You are the company's CTO and a domain expert in technology. You follow the latest technical trends and solve hard engineering problems.",
	}
	COO = Role{
		Name:      "COO",
		Title:     "Chief Operating Officer",
		Goal:      "Optimize operations and improve system performance",
		Backstory: "You are the company's COO, an operations expert skilled in data analysis and process improvement.",
	}
	CMO = Role{
		Name:      "CMO",
		Title:     "Chief Marketing Officer",
		Goal:      "Analyze market dynamics and discover business opportunities",
		Backstory: "You are the company's CMO, a marketing expert with keen insight into market trends and the competitive landscape.",
	}
	CPO = Role{
		Name:      "CPO",
		Title:     "Chief Product Officer",
		Goal:      "Build products, execute projects and deliver value",
		Backstory: "You are the company's CPO, a product development expert who ships high quality work on time.",
	}
)

// Completer produces text for a role-bound instruction. Implementations may
// be slow and may fail; their internal reasoning is out of scope here.
type Completer interface {
	Complete(ctx context.Context, role Role, instruction string) (string, error)
}

// DispatchError wraps a failure from the external completer with the role
// and mode that were executing.
type DispatchError struct {
	Mode task.Mode
	Role string
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed (mode=%s, role=%s): %v", e.Mode, e.Role, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Team binds the executive roles to a completer.
type Team struct {
	completer Completer
}

func NewTeam(c Completer) *Team {
	return &Team{completer: c}
}

// Execute runs the task under the single role responsible for the mode and
// returns the completer's output unmodified. No retries and no timeout here;
// the caller bounds latency through ctx.
func (t *Team) Execute(ctx context.Context, description string, mode task.Mode) (string, error) {
	role := RoleFor(mode)
	instruction := instructionFor(mode, description)

	out, err := t.completer.Complete(ctx, role, instruction)
	if err != nil {
		return "", &DispatchError{Mode: mode, Role: role.Name, Err: err}
	}

	return out, nil
}

// RoleFor is the fixed total mode→role mapping: research belongs to the CMO,
// develop to the CTO, and analyze (including the fallback) to the COO.
func RoleFor(mode task.Mode) Role {
	switch mode {
	case task.ModeResearch:
		return CMO
	case task.ModeDevelop:
		return CTO
	default:
		return COO
	}
}

func instructionFor(mode task.Mode, description string) string {
	var b strings.Builder

	switch mode {
	case task.ModeResearch:
		b.WriteString("Research the following market area in depth: ")
		b.WriteString(description)
		b.WriteString("\n\nCover:\n1. Market size and growth trends\n2. Main competitors\n3. Opportunities and risks\n4. Recommended business models")
	case task.ModeDevelop:
		b.WriteString("Research and design a technical solution for: ")
		b.WriteString(description)
		b.WriteString("\n\nCover:\n1. Architecture design\n2. Core functionality\n3. Code examples\n4. Technical risk analysis")
	default:
		b.WriteString("Analyze the following: ")
		b.WriteString(description)
		b.WriteString("\n\nCover:\n1. Data collection and organization\n2. In-depth analysis\n3. Insights and recommendations\n4. Conclusions")
	}

	return b.String()
}

// SystemPrompt renders the role persona used as the system instruction.
func SystemPrompt(role Role) string {
	return fmt.Sprintf("You are the %s (%s). Goal: %s. %s", role.Title, role.Name, role.Goal, role.Backstory)
}
