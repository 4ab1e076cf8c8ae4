package rules

import (
	"fmt"

	"github.com/quantmind-br/releasesync/internal/actions"
)

// BranchPartLabel is passed as {1} when formatting a branch destination
const BranchPartLabel = "branch"

// Config is a loaded rule file. It is not modified after Load returns.
type Config struct {
	Path          string
	Owner         string
	Repo          string
	ReleaseFilter *Pattern
	Rules         []Rule
	Branch        *Branch
}

// Rule routes assets whose name matches Pattern into Destination
type Rule struct {
	Pattern     *Pattern
	Destination Template
	ActionName  string
	Action      actions.Action
	// Line is the 1-based line in the rule file, 0 for YAML files
	Line int
}

// Matches reports whether the rule applies to an asset name
func (r *Rule) Matches(name string) bool {
	return r.Pattern != nil && r.Pattern.Match(name)
}

// HasAction reports whether the rule carries a post-action
func (r *Rule) HasAction() bool {
	return r.Action != nil
}

// Branch is the optional branch snapshot target
type Branch struct {
	Name        string
	Destination Template
}

// Resolve formats the branch destination
func (b *Branch) Resolve() (string, error) {
	return b.Destination.Format([]string{b.Name, BranchPartLabel})
}

// Repository returns "owner/repo"
func (c *Config) Repository() string {
	return c.Owner + "/" + c.Repo
}

// Warnings lists suspicious but valid settings
func (c *Config) Warnings() []string {
	var warnings []string

	if len(c.Rules) == 0 && c.Branch == nil {
		warnings = append(warnings, "no routing rules and no branch configured, nothing to do")
	}

	groups := 0
	if c.ReleaseFilter != nil {
		groups = c.ReleaseFilter.NumGroups()
	}
	for _, r := range c.Rules {
		if n := r.Destination.Arity(); n > groups {
			warnings = append(warnings, fmt.Sprintf(
				"rule %q uses %d release part(s) but RELEASE_REGEX captures %d",
				r.Pattern.String(), n, groups))
		}
	}

	if c.Branch != nil {
		if n := c.Branch.Destination.Arity(); n > 2 {
			warnings = append(warnings, fmt.Sprintf(
				"branch destination %q uses %d part(s), only {0} and {1} are available",
				string(c.Branch.Destination), n))
		}
	}

	return warnings
}
