package app

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/runstorm/internal/config"
	"github.com/dshills/runstorm/internal/integration/process"
	"github.com/dshills/runstorm/internal/runner"
)

// newScriptApp writes a shell script and returns an Application that
// runs it with sh.
func newScriptApp(t *testing.T, script string) *Application {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	file := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(file, []byte(script), 0o644))

	cfg := config.Default()
	cfg.Shell = sh
	app, err := New(Options{Config: cfg, File: file})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func runPlain(t *testing.T, app *Application, in string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := app.RunPlain(ctx, PlainIO{In: strings.NewReader(in), Out: &out})
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "run did not finish")
	return out.String()
}

func TestRunPlain_Script(t *testing.T) {
	app := newScriptApp(t, "echo hello\nexit 2\n")

	out := runPlain(t, app, "")

	assert.Contains(t, out, "Running command: ")
	assert.Contains(t, out, "hello\n")
	assert.Contains(t, out, "Process exited with code: 2\n")
}

func TestRunPlain_ForwardsInput(t *testing.T) {
	app := newScriptApp(t, "read x\necho \"got $x\"\n")

	out := runPlain(t, app, "abc\n")

	assert.Contains(t, out, "got abc\n")
}

func TestRunPlain_EndOfInputClosesStdin(t *testing.T) {
	app := newScriptApp(t, "cat >/dev/null\necho done\n")

	out := runPlain(t, app, "")

	assert.Contains(t, out, "done\n")
	assert.Contains(t, out, "Process exited with code: 0\n")
}

func TestRunPlain_UnsupportedFile(t *testing.T) {
	app, err := New(Options{File: "notes.rb"})
	require.NoError(t, err)
	defer app.Close()

	var out bytes.Buffer
	require.NoError(t, app.RunPlain(context.Background(), PlainIO{Out: &out}))

	assert.Contains(t, out.String(), "Unsupported file type: rb")
}

func TestRunPlain_InterruptWithoutProcessReturns(t *testing.T) {
	app, err := New(Options{File: "notes.rb"})
	require.NoError(t, err)
	defer app.Close()

	interrupts := make(chan os.Signal, 1)
	interrupts <- os.Interrupt
	var out bytes.Buffer
	assert.NoError(t, app.RunPlain(context.Background(), PlainIO{Out: &out, Interrupts: interrupts}))
}

func screenText(sim tcell.SimulationScreen) string {
	cells, width, height := sim.GetContents()
	var b strings.Builder
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if c := cells[y*width+x]; len(c.Runes) > 0 {
				b.WriteRune(c.Runes[0])
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func TestRunConsole(t *testing.T) {
	app := newScriptApp(t, "echo from-script\n")

	sim := tcell.NewSimulationScreen("")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.RunConsole(ctx, sim) }()

	require.Eventually(t, func() bool {
		return strings.Contains(screenText(sim), "Process exited with code: 0")
	}, 5*time.Second, 10*time.Millisecond)

	text := screenText(sim)
	assert.Contains(t, text, "from-script")
	assert.Contains(t, text, "[exited]")

	sim.InjectKey(tcell.KeyCtrlQ, 0, tcell.ModNone)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("console did not quit")
	}
}

func TestRunConsole_AlreadyRunning(t *testing.T) {
	app, err := New(Options{})
	require.NoError(t, err)
	defer app.Close()

	app.running.Store(true)
	assert.ErrorIs(t, app.RunConsole(context.Background(), tcell.NewSimulationScreen("")), ErrAlreadyRunning)
	assert.ErrorIs(t, app.RunPlain(context.Background(), PlainIO{}), ErrAlreadyRunning)
}

func TestStatusLine(t *testing.T) {
	assert.Contains(t, statusLine("", runner.StateRunning), "shell [running]")
	assert.Contains(t, statusLine("/tmp/a/main.py", runner.StateRemediating), "main.py [remediating]")
}

func TestNew_MaxProcessesCapsSpawner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	cfg := config.Default()
	cfg.MaxProcesses = 1
	app, err := New(Options{Config: cfg})
	require.NoError(t, err)

	first, err := app.spawner.Start("first", process.Spec{Argv: []string{"sleep", "5"}})
	require.NoError(t, err)
	go func() { _, _ = first.Wait() }()
	_, err = app.spawner.Start("second", process.Spec{Argv: []string{"true"}})
	assert.Error(t, err)

	require.NoError(t, app.Close())
	assert.Eventually(t, func() bool { return app.spawner.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNew_WatcherNeedsDirectory(t *testing.T) {
	_, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "missing", "config.toml")})
	assert.ErrorIs(t, err, ErrInitialization)
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runstorm.log")

	log, closer, err := NewLogger(config.LogConfig{Level: "debug", File: path})
	require.NoError(t, err)
	log.Debug("hello", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, string(data), "k=v")

	_, _, err = NewLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)

	log, closer, err = NewLogger(config.LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.NoError(t, closer.Close())
}
