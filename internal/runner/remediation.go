package runner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/runstorm/internal/integration/process"
)

// RulePip is the name of the built-in Python module rule.
const RulePip = "pip"

// Rule is a remediation rule: when a line of stderr matches Pattern, the
// first capture group names the missing dependency and Command installs
// it. A Session applies at most one rule, once.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp

	// Command is the installer argument vector. The placeholder {name}
	// is replaced by the captured dependency name.
	Command []string
}

// NewRule compiles a rule. The pattern must have at least one capture
// group and the command must not be empty.
func NewRule(name, pattern string, command []string) (Rule, error) {
	if name == "" || len(command) == 0 {
		return Rule{}, fmt.Errorf("%w: rule %q needs a name and a command", ErrInvalidRule, name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: rule %q: %v", ErrInvalidRule, name, err)
	}
	if re.NumSubexp() < 1 {
		return Rule{}, fmt.Errorf("%w: rule %q: pattern has no capture group", ErrInvalidRule, name)
	}
	return Rule{Name: name, Pattern: re, Command: append([]string(nil), command...)}, nil
}

// PipRule returns the rule that installs a missing Python module with
// pip, run through the given interpreter.
func PipRule(python string) Rule {
	rule, _ := NewRule(RulePip, `No module named '([^']+)'`,
		[]string{python, "-m", "pip", "install", "{name}"})
	return rule
}

// DefaultRules returns the built-in rules keyed by name.
func DefaultRules(tc Toolchain) map[string]Rule {
	return map[string]Rule{
		RulePip: PipRule(tc.Python),
	}
}

// Match reports whether line names a missing dependency and returns it.
func (r Rule) Match(line string) (string, bool) {
	if r.Pattern == nil {
		return "", false
	}
	m := r.Pattern.FindStringSubmatch(line)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Step builds the installer step for a dependency.
func (r Rule) Step(name string) Step {
	argv := make([]string, len(r.Command))
	for i, arg := range r.Command {
		argv[i] = strings.ReplaceAll(arg, "{name}", name)
	}
	return Step{
		Spec:   process.Spec{Argv: argv, MergeOutput: true},
		Banner: fmt.Sprintf("[INFO] Installing module '%s' with %s...", name, r.Name),
	}
}

// Prefix is prepended to each line of installer output.
func (r Rule) Prefix() string {
	return "[" + r.Name + "] "
}
