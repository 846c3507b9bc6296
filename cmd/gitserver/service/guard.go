package service

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
	"github.com/theAravinthM/appsmith/common/logger"
)

// celPrefix marks a protected-branch entry as a CEL expression over a
// `branch` string variable, e.g. `cel:branch.startsWith("release/")`.
// Plain entries match exactly.
const celPrefix = "cel:"

// BranchProtectionGuard vetoes destructive operations on protected branches.
// It never blocks read operations; the orchestrator consults it before
// commit, push, discard, delete and merges into a branch.
type BranchProtectionGuard struct {
	env *cel.Env
	log *logger.Logger
}

// NewBranchProtectionGuard creates a new guard
func NewBranchProtectionGuard(log *logger.Logger) (*BranchProtectionGuard, error) {
	env, err := cel.NewEnv(
		cel.Variable("branch", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}

	return &BranchProtectionGuard{
		env: env,
		log: log,
	}, nil
}

// ValidateEntries rejects malformed protected-branch entries before they are
// persisted, so a bad pattern never gets stored
func (g *BranchProtectionGuard) ValidateEntries(entries []string) error {
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			return fmt.Errorf("protected branch entry must not be empty")
		}
		if expr, ok := strings.CutPrefix(entry, celPrefix); ok {
			if _, issues := g.env.Compile(expr); issues != nil && issues.Err() != nil {
				return fmt.Errorf("invalid protection pattern %q: %w", entry, issues.Err())
			}
		}
	}
	return nil
}

// IsProtected reports whether the branch matches the metadata's protected set
func (g *BranchProtectionGuard) IsProtected(meta *models.GitMetadata, branch string) bool {
	for _, entry := range meta.ProtectedBranches {
		expr, ok := strings.CutPrefix(entry, celPrefix)
		if !ok {
			if entry == branch {
				return true
			}
			continue
		}

		matched, err := g.evalPattern(expr, branch)
		if err != nil {
			// A stored pattern that fails to evaluate protects nothing;
			// log it so the misconfiguration is visible.
			g.log.Warn("protection pattern evaluation failed", "pattern", entry, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// CheckMutable returns BranchProtected when a destructive verb targets a
// protected branch
func (g *BranchProtectionGuard) CheckMutable(meta *models.GitMetadata, branch, verb string) error {
	if g.IsProtected(meta, branch) {
		return apperrors.New(apperrors.KindBranchProtected,
			"cannot %s on protected branch %s", verb, branch)
	}
	return nil
}

// CheckDeletable additionally refuses the default branch, which represents
// the artifact's pre-git state and can never be removed
func (g *BranchProtectionGuard) CheckDeletable(meta *models.GitMetadata, branch string) error {
	if branch == meta.DefaultBranch {
		return apperrors.New(apperrors.KindBranchProtected,
			"cannot delete default branch %s", branch)
	}
	return g.CheckMutable(meta, branch, "delete")
}

func (g *BranchProtectionGuard) evalPattern(expr, branch string) (bool, error) {
	ast, issues := g.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, issues.Err()
	}

	prg, err := g.env.Program(ast)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{"branch": branch})
	if err != nil {
		return false, err
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("pattern %q did not evaluate to a boolean", expr)
	}
	return matched, nil
}
