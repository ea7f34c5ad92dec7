package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/runstorm/internal/runner"
)

// Config is the complete runstorm configuration.
type Config struct {
	// Shell runs .sh files and the interactive shell.
	Shell string `mapstructure:"shell"`
	// Python runs .py files and is substituted for {python} in rule commands.
	Python string `mapstructure:"python"`
	Node   string `mapstructure:"node"`
	Javac  string `mapstructure:"javac"`
	Java   string `mapstructure:"java"`

	// Prompt is shown whenever the output pane accepts input.
	Prompt string `mapstructure:"prompt"`

	// ClearOnRun clears the output pane when a new run starts.
	ClearOnRun bool `mapstructure:"clear_on_run"`

	// InputQueue bounds the lines waiting to be written to stdin.
	InputQueue int `mapstructure:"input_queue"`

	// MaxProcesses caps the child processes alive at once. 0 means no cap.
	MaxProcesses int `mapstructure:"max_processes"`

	Log LogConfig `mapstructure:"log"`

	// Rules adds remediation rules, or replaces built-in ones by name.
	Rules []RuleConfig `mapstructure:"rules"`

	// Remediation maps a file extension to the rule its runs may use.
	// An empty rule name disables remediation for the extension.
	Remediation map[string]string `mapstructure:"remediation"`
}

// LogConfig configures the diagnostic log.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `mapstructure:"level"`
	// File receives the log. Empty discards it.
	File string `mapstructure:"file"`
}

// RuleConfig describes a remediation rule.
type RuleConfig struct {
	Name    string   `mapstructure:"name"`
	Pattern string   `mapstructure:"pattern"`
	Command []string `mapstructure:"command"`
}

// Default returns the built-in configuration for the host platform.
func Default() *Config {
	tc := runner.DefaultToolchain()
	remediation := make(map[string]string, len(tc.Remediation))
	for ext, rule := range tc.Remediation {
		remediation[ext] = rule
	}
	return &Config{
		Shell:       tc.Shell,
		Python:      tc.Python,
		Node:        tc.Node,
		Javac:       tc.Javac,
		Java:        tc.Java,
		Prompt:      "> ",
		ClearOnRun:  true,
		InputQueue:  64,
		Log:         LogConfig{Level: "info"},
		Remediation: remediation,
	}
}

// Toolchain returns the launch binaries.
func (c *Config) Toolchain() runner.Toolchain {
	remediation := make(map[string]string, len(c.Remediation))
	for ext, rule := range c.Remediation {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if rule != "" {
			remediation[ext] = rule
		}
	}
	return runner.Toolchain{
		Shell:       c.Shell,
		Python:      c.Python,
		Node:        c.Node,
		Javac:       c.Javac,
		Java:        c.Java,
		Remediation: remediation,
	}
}

// RuleSet returns the built-in rules merged with the configured ones.
// {python} in a rule command is replaced by the configured interpreter.
func (c *Config) RuleSet() (map[string]runner.Rule, error) {
	rules := runner.DefaultRules(c.Toolchain())
	for i, rc := range c.Rules {
		command := make([]string, len(rc.Command))
		for j, arg := range rc.Command {
			command[j] = strings.ReplaceAll(arg, "{python}", c.Python)
		}
		rule, err := runner.NewRule(rc.Name, rc.Pattern, command)
		if err != nil {
			return nil, &ValidationError{
				Path:    fmt.Sprintf("rules[%d]", i),
				Message: err.Error(),
				Value:   rc.Name,
			}
		}
		rules[rule.Name] = rule
	}
	return rules, nil
}

// Validate checks the configuration for errors. All problems are
// reported, joined.
func (c *Config) Validate() error {
	var errs []error
	required := map[string]string{
		"shell":  c.Shell,
		"python": c.Python,
		"node":   c.Node,
		"javac":  c.Javac,
		"java":   c.Java,
	}
	for _, path := range []string{"shell", "python", "node", "javac", "java"} {
		if strings.TrimSpace(required[path]) == "" {
			errs = append(errs, &ValidationError{Path: path, Message: "must not be empty", Value: required[path]})
		}
	}
	if c.InputQueue < 1 {
		errs = append(errs, &ValidationError{Path: "input_queue", Message: "must be at least 1", Value: c.InputQueue})
	}
	if c.MaxProcesses < 0 {
		errs = append(errs, &ValidationError{Path: "max_processes", Message: "must not be negative", Value: c.MaxProcesses})
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, &ValidationError{Path: "log.level", Message: "must be debug, info, warn or error", Value: c.Log.Level})
	}

	rules, err := c.RuleSet()
	if err != nil {
		errs = append(errs, err)
	}
	for ext, name := range c.Remediation {
		if name == "" || rules == nil {
			continue
		}
		if _, ok := rules[name]; !ok {
			errs = append(errs, &ValidationError{Path: "remediation." + ext, Message: "unknown rule", Value: name})
		}
	}
	return errors.Join(errs...)
}
