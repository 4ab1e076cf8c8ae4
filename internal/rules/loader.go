package rules

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantmind-br/releasesync/internal/actions"
	"github.com/quantmind-br/releasesync/internal/domain"
)

// Directive names recognised in line-oriented rule files
const (
	DirectiveOwner        = "OWNER"
	DirectiveRepo         = "REPO"
	DirectiveReleaseRegex = "RELEASE_REGEX"
	DirectiveBranch       = "BRANCH"
)

// ActionResolver resolves post-action names
type ActionResolver interface {
	Lookup(name string) (actions.Action, bool)
	Names() []string
}

// Options configures Load
type Options struct {
	// Actions resolves post-action names. Defaults to actions.Default(nil).
	Actions ActionResolver
}

// yamlConfig is the on-disk shape of a YAML rule file
type yamlConfig struct {
	Owner        string      `yaml:"owner"`
	Repo         string      `yaml:"repo"`
	ReleaseRegex string      `yaml:"release_regex"`
	Branch       *yamlBranch `yaml:"branch"`
	Rules        []yamlRule  `yaml:"rules"`
}

type yamlBranch struct {
	Name        string `yaml:"name"`
	Destination string `yaml:"destination"`
}

type yamlRule struct {
	Pattern     string `yaml:"pattern"`
	Destination string `yaml:"destination"`
	Action      string `yaml:"action"`
}

// Load reads and validates a rule file
func Load(path string, opts Options) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Path: path, Message: "failed to read rule file", Err: err}
	}
	return Parse(path, data, opts)
}

// Parse parses rule file content. The format is chosen by the extension of path.
func Parse(path string, data []byte, opts Options) (*Config, error) {
	if opts.Actions == nil {
		opts.Actions = actions.Default(nil)
	}

	p := &parser{path: path, resolver: opts.Actions, cfg: &Config{Path: path}}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = p.parseYAML(data)
	default:
		err = p.parseLines(data)
	}
	if err != nil {
		return nil, err
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p.cfg, nil
}

type parser struct {
	path     string
	resolver ActionResolver
	cfg      *Config
	// raw release regex, compiled once the whole file is read
	releaseRegex string
	regexLine    int
}

func (p *parser) errorf(line int, field, format string, args ...any) error {
	return &domain.ConfigError{
		Path:    p.path,
		Line:    line,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *parser) parseLines(data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, _ := strings.Cut(line, ",")
		switch key {
		case DirectiveOwner:
			p.cfg.Owner = strings.TrimSpace(value)
		case DirectiveRepo:
			p.cfg.Repo = strings.TrimSpace(value)
		case DirectiveReleaseRegex:
			p.releaseRegex = value
			p.regexLine = lineNo
		case DirectiveBranch:
			name, dest, ok := strings.Cut(value, ",")
			if !ok {
				return p.errorf(lineNo, DirectiveBranch, "expected BRANCH,<name>,<destination>")
			}
			if err := p.setBranch(lineNo, strings.TrimSpace(name), dest); err != nil {
				return err
			}
		default:
			if err := p.addRuleLine(lineNo, line); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return &domain.ConfigError{Path: p.path, Message: "failed to read rule file", Err: err}
	}
	return nil
}

// addRuleLine splits from the right so the pattern may contain commas.
// A line with a single comma is <pattern>,<destination> with no action; a
// pattern containing commas needs the trailing action field, even if empty.
func (p *parser) addRuleLine(lineNo int, line string) error {
	last := strings.LastIndex(line, ",")
	if last < 0 {
		return p.errorf(lineNo, "rule", "expected <pattern>,<destination>[,<action>], got %q", line)
	}
	head, tail := line[:last], line[last+1:]

	mid := strings.LastIndex(head, ",")
	if mid < 0 {
		return p.addRule(lineNo, head, tail, "")
	}

	return p.addRule(lineNo, head[:mid], head[mid+1:], strings.TrimSpace(tail))
}

func (p *parser) parseYAML(data []byte) error {
	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &domain.ConfigError{Path: p.path, Message: "invalid YAML", Err: err}
	}

	p.cfg.Owner = strings.TrimSpace(raw.Owner)
	p.cfg.Repo = strings.TrimSpace(raw.Repo)
	p.releaseRegex = raw.ReleaseRegex

	if raw.Branch != nil {
		if err := p.setBranch(0, strings.TrimSpace(raw.Branch.Name), raw.Branch.Destination); err != nil {
			return err
		}
	}

	for i, r := range raw.Rules {
		if err := p.addRule(0, r.Pattern, r.Destination, strings.TrimSpace(r.Action)); err != nil {
			var cfgErr *domain.ConfigError
			if errors.As(err, &cfgErr) {
				cfgErr.Field = fmt.Sprintf("rules[%d].%s", i, cfgErr.Field)
			}
			return err
		}
	}
	return nil
}

func (p *parser) setBranch(lineNo int, name, dest string) error {
	if name == "" {
		return p.errorf(lineNo, DirectiveBranch, "branch name is empty")
	}
	if dest == "" {
		return p.errorf(lineNo, DirectiveBranch, "branch destination is empty")
	}

	tmpl := Template(dest)
	if err := tmpl.Validate(); err != nil {
		return &domain.ConfigError{Path: p.path, Line: lineNo, Field: DirectiveBranch, Message: "invalid destination", Err: err}
	}

	p.cfg.Branch = &Branch{Name: name, Destination: tmpl}
	return nil
}

func (p *parser) addRule(lineNo int, pattern, dest, actionName string) error {
	if pattern == "" {
		return p.errorf(lineNo, "pattern", "pattern is empty")
	}
	re, err := CompilePattern(pattern)
	if err != nil {
		return &domain.ConfigError{Path: p.path, Line: lineNo, Field: "pattern", Message: fmt.Sprintf("invalid pattern %q", pattern), Err: err}
	}

	if dest == "" {
		return p.errorf(lineNo, "destination", "destination is empty")
	}
	tmpl := Template(dest)
	if err := tmpl.Validate(); err != nil {
		return &domain.ConfigError{Path: p.path, Line: lineNo, Field: "destination", Message: "invalid destination", Err: err}
	}

	rule := Rule{Pattern: re, Destination: tmpl, ActionName: actionName, Line: lineNo}
	if actionName != "" {
		action, ok := p.resolver.Lookup(actionName)
		if !ok {
			return p.errorf(lineNo, "action", "unknown post-action %q (available: %s)",
				actionName, strings.Join(p.resolver.Names(), ", "))
		}
		rule.Action = action
	}

	p.cfg.Rules = append(p.cfg.Rules, rule)
	return nil
}

func (p *parser) validate() error {
	var missing []string
	if p.cfg.Owner == "" {
		missing = append(missing, DirectiveOwner)
	}
	if p.cfg.Repo == "" {
		missing = append(missing, DirectiveRepo)
	}
	if p.releaseRegex == "" {
		missing = append(missing, DirectiveReleaseRegex)
	}
	if len(missing) > 0 {
		return p.errorf(0, strings.Join(missing, ", "), "required setting missing")
	}

	re, err := CompilePattern(p.releaseRegex)
	if err != nil {
		return &domain.ConfigError{
			Path:    p.path,
			Line:    p.regexLine,
			Field:   DirectiveReleaseRegex,
			Message: fmt.Sprintf("invalid pattern %q", p.releaseRegex),
			Err:     err,
		}
	}
	p.cfg.ReleaseFilter = re
	return nil
}
