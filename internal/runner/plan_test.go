package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolchainPlan(t *testing.T) {
	tc := testToolchain()

	tests := []struct {
		name string
		file string
		kind Kind
		argv []string
		rule string
	}{
		{"python", "script.py", KindInterpret, []string{"python3", "script.py"}, RulePip},
		{"python upper case", "SCRIPT.PY", KindInterpret, []string{"python3", "SCRIPT.PY"}, RulePip},
		{"node", "app.js", KindInterpret, []string{"node", "app.js"}, ""},
		{"shell script", "tool.sh", KindInterpret, []string{"/bin/bash", "tool.sh"}, ""},
		{"no extension", "Makefile", KindShell, []string{"/bin/bash"}, ""},
		{"no file", "", KindShell, []string{"/bin/bash"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := tc.Plan(tt.file, "")
			require.NoError(t, err)
			assert.Equal(t, tt.kind, plan.Kind)
			assert.Equal(t, tt.argv, plan.Run.Spec.Argv)
			assert.Equal(t, tt.rule, plan.Rule)
			assert.Nil(t, plan.Compile)
		})
	}
}

func TestToolchainPlan_Unsupported(t *testing.T) {
	plan, err := testToolchain().Plan("image.png", "")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	assert.Equal(t, KindUnsupported, plan.Kind)
	assert.Equal(t, "png", plan.Ext)
}

func TestToolchainPlan_Java(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Main.java")

	plan, err := testToolchain().Plan(file, "public class Main {}")
	require.NoError(t, err)
	require.NotNil(t, plan.Compile)

	assert.Equal(t, KindCompile, plan.Kind)
	assert.Equal(t, []string{"javac", "-cp", ".", "Main.java"}, plan.Compile.Spec.Argv)
	assert.Equal(t, dir, plan.Compile.Spec.Dir)
	assert.True(t, plan.Compile.Spec.MergeOutput)
	assert.Equal(t, []string{"java", "-cp", ".", "Main"}, plan.Run.Spec.Argv)
	assert.Empty(t, plan.Rule)
}

func TestToolchainPlan_JavaPackageAndLib(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "lib"), 0o755))
	file := filepath.Join(dir, "App.java")

	source := "// header\npackage com.example.app;\n\nimport java.util.List;\n"
	plan, err := testToolchain().Plan(file, source)
	require.NoError(t, err)

	cp := "lib/*" + string(os.PathListSeparator) + "."
	assert.Equal(t, []string{"javac", "-cp", cp, "App.java"}, plan.Compile.Spec.Argv)
	assert.Equal(t, []string{"java", "-cp", cp, "com.example.app.App"}, plan.Run.Spec.Argv)
	assert.Equal(t, "Running Java class: com.example.app.App", plan.Run.Banner)
}

func TestDefaultToolchain(t *testing.T) {
	tc := DefaultToolchain()
	assert.NotEmpty(t, tc.Shell)
	assert.NotEmpty(t, tc.Python)
	assert.Equal(t, RulePip, tc.Remediation["py"])
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "shell", KindShell.String())
	assert.Equal(t, "interpret", KindInterpret.String())
	assert.Equal(t, "compile", KindCompile.String())
	assert.Equal(t, "unsupported", KindUnsupported.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
