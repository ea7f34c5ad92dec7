package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/dshills/runstorm/internal/integration/process"
)

// Kind classifies how a file is launched.
type Kind int

const (
	// KindShell starts an interactive shell.
	KindShell Kind = iota
	// KindInterpret runs an interpreter on the file.
	KindInterpret
	// KindCompile builds the file first and runs the artifact.
	KindCompile
	// KindUnsupported means the file cannot be run.
	KindUnsupported
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindShell:
		return "shell"
	case KindInterpret:
		return "interpret"
	case KindCompile:
		return "compile"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Step is one command of a plan.
type Step struct {
	// Spec is the command to start.
	Spec process.Spec

	// Banner, if set, is shown before the command line.
	Banner string
}

// Plan is the launch plan derived from a file's type.
type Plan struct {
	Kind Kind

	// Ext is the lower-cased extension without the dot.
	Ext string

	// File is the target file; empty for an interactive shell.
	File string

	// Compile is the build step, or nil when the file is run directly.
	Compile *Step

	// Run is the step that starts the program.
	Run Step

	// Rule names the remediation rule the run is eligible for, if any.
	Rule string
}

// Toolchain names the host binaries used by launch plans.
type Toolchain struct {
	Shell  string
	Python string
	Node   string
	Javac  string
	Java   string

	// Remediation maps a file extension to the rule its runs may use.
	Remediation map[string]string
}

// DefaultToolchain returns the binaries for the host platform.
func DefaultToolchain() Toolchain {
	tc := Toolchain{
		Shell:  "/bin/bash",
		Python: "python3",
		Node:   "node",
		Javac:  "javac",
		Java:   "java",
		Remediation: map[string]string{
			"py": RulePip,
		},
	}
	if runtime.GOOS == "windows" {
		tc.Shell = "cmd.exe"
		tc.Python = "python"
	}
	return tc
}

var javaPackage = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;`)

// Plan returns the launch plan for file. source is the editor's current
// text of the file. An empty file, or one without an extension, gets an
// interactive shell.
func (tc Toolchain) Plan(file, source string) (Plan, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file), "."))
	if file == "" || ext == "" {
		return Plan{
			Kind: KindShell,
			File: file,
			Run:  Step{Spec: process.Spec{Argv: []string{tc.Shell}}},
		}, nil
	}

	plan := Plan{Kind: KindInterpret, Ext: ext, File: file, Rule: tc.Remediation[ext]}
	switch ext {
	case "py":
		plan.Run = Step{Spec: process.Spec{Argv: []string{tc.Python, file}}}
	case "js":
		plan.Run = Step{Spec: process.Spec{Argv: []string{tc.Node, file}}}
	case "sh":
		plan.Run = Step{Spec: process.Spec{Argv: []string{tc.Shell, file}}}
	case "java":
		tc.planJava(&plan, source)
	default:
		return Plan{Kind: KindUnsupported, Ext: ext, File: file},
			fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	return plan, nil
}

// planJava compiles the file in its own directory and runs the class,
// qualified with the package declared in source. A lib directory next
// to the file is added to the classpath.
func (tc Toolchain) planJava(plan *Plan, source string) {
	dir := filepath.Dir(plan.File)
	name := filepath.Base(plan.File)
	class := strings.TrimSuffix(name, filepath.Ext(name))
	if m := javaPackage.FindStringSubmatch(source); m != nil {
		class = m[1] + "." + class
	}

	classpath := "."
	if info, err := os.Stat(filepath.Join(dir, "lib")); err == nil && info.IsDir() {
		classpath = "lib/*" + string(os.PathListSeparator) + "."
	}

	plan.Kind = KindCompile
	plan.Compile = &Step{
		Spec: process.Spec{
			Argv:        []string{tc.Javac, "-cp", classpath, name},
			Dir:         dir,
			MergeOutput: true,
		},
		Banner: "Compiling Java file: " + name,
	}
	plan.Run = Step{
		Spec:   process.Spec{Argv: []string{tc.Java, "-cp", classpath, class}, Dir: dir},
		Banner: "Running Java class: " + class,
	}
}
