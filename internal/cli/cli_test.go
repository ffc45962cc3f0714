package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// env is an isolated config and data directory pair.
type env struct {
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	return env{
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "data"),
	}
}

func (e env) globals() []string {
	return []string{"--config-dir", e.configDir, "--data-dir", e.dataDir}
}

// run executes one command line and returns stdout, stderr and the exit code.
func (e env) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(NewRootCmd(), append(e.globals(), args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// record runs a command expected to print one JSON record.
func (e env) record(t *testing.T, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, code := e.run(t, args...)
	require.Equal(t, exitSuccess, code, "stderr: %s", stderr)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec), "stdout: %s", stdout)
	return rec
}

func TestVersion(t *testing.T) {
	stdout, _, code := newEnv(t).run(t, "version")
	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "shelf v")
	assert.Contains(t, stdout, modulePath)
}

func TestInitWritesConfigOnce(t *testing.T) {
	e := newEnv(t)

	stdout, stderr, code := e.run(t, "init", "--backend", "jsonl")
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, stdout, "Shelf initialized at "+e.dataDir)
	assert.DirExists(t, e.dataDir)

	data, err := os.ReadFile(filepath.Join(e.configDir, configFileExt))
	require.NoError(t, err)
	var cfg configFile
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "jsonl", cfg.Backend)
	assert.Equal(t, e.dataDir, cfg.DataDir)
	assert.Equal(t, "none", cfg.Log.Provider)

	_, _, code = e.run(t, "init", "--backend", "sqlite")
	require.Equal(t, exitSuccess, code)
	again, err := os.ReadFile(filepath.Join(e.configDir, configFileExt))
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestFirstRunWritesDefaultConfig(t *testing.T) {
	e := newEnv(t)
	_, _, code := e.run(t, "entities")
	require.Equal(t, exitSuccess, code)

	data, err := os.ReadFile(filepath.Join(e.configDir, configFileExt))
	require.NoError(t, err)
	assert.Equal(t, defaultConfigYAML, string(data))
}

func TestConfigFileSelectsBackend(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, configFileExt),
		[]byte("backend: jsonl\nlog:\n  provider: none\n"), 0o644))

	e.record(t, "create", "project", "name=Alpha")
	assert.FileExists(t, filepath.Join(e.dataDir, "project.jsonl"))

	// The flag wins over config.yaml.
	e.record(t, "create", "project", "name=Beta", "--backend", "sqlite")
	assert.FileExists(t, filepath.Join(e.dataDir, "project.db"))
}

func TestLockTimeoutFromConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{"explicit zero does not wait", "lock_timeout: 0\n", types.LockNoWait},
		{"duration", "lock_timeout: 500ms\n", 500 * time.Millisecond},
		{"unset", "backend: json\n", types.DefaultLockTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			require.NoError(t, os.MkdirAll(e.configDir, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(e.configDir, configFileExt), []byte(tt.yaml), 0o644))

			a := newApp()
			a.configDir = e.configDir
			a.dataDir = e.dataDir
			s, err := a.resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.config.LockTimeout)
			assert.NoError(t, s.config.Validate())
		})
	}
}

func TestEntities(t *testing.T) {
	stdout, _, code := newEnv(t).run(t, "entities")
	require.Equal(t, exitSuccess, code)
	want := []string{"conversation", "dialog", "project", "snippet", "tag", "task"}
	if diff := cmp.Diff(want, strings.Fields(stdout)); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaOutput(t *testing.T) {
	e := newEnv(t)

	stdout, _, code := e.run(t, "schema", "project")
	require.Equal(t, exitSuccess, code)
	var sc struct {
		Name   string `json:"name"`
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &sc))
	assert.Equal(t, "project", sc.Name)
	require.Len(t, sc.Fields, 2)
	assert.Equal(t, "name", sc.Fields[0].Name)

	stdout, _, code = e.run(t, "schema", "project", "-o", "yaml")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "name: project\n")
	assert.Contains(t, stdout, "min_length: 1")
}

func TestRecordLifecycle(t *testing.T) {
	for _, backend := range types.Backends() {
		t.Run(backend, func(t *testing.T) {
			e := newEnv(t)
			b := "--backend=" + backend

			rec := e.record(t, b, "create", "project", "name=Alpha", "description=first")
			assert.Equal(t, float64(1), rec["id"])
			assert.Equal(t, "Alpha", rec["name"])

			rec = e.record(t, b, "create", "task", "project_id=1", "title=Write docs")
			assert.Equal(t, float64(1), rec["id"])
			assert.Equal(t, "pending", rec["status"])

			rec = e.record(t, b, "update", "task", "1", "status=completed")
			assert.Equal(t, "completed", rec["status"])

			rec = e.record(t, b, "get", "task", "1")
			assert.Equal(t, "completed", rec["status"])
			assert.Equal(t, "Write docs", rec["title"])

			stdout, _, code := e.run(t, b, "delete", "task", "1")
			require.Equal(t, exitSuccess, code)
			assert.Equal(t, "Deleted task 1\n", stdout)

			_, stderr, code := e.run(t, b, "get", "task", "1")
			assert.Equal(t, exitUserError, code)
			assert.Contains(t, stderr, "task: record 1 not found")
		})
	}
}

func TestCreateWithData(t *testing.T) {
	e := newEnv(t)
	rec := e.record(t, "create", "snippet",
		"--data", `{"title": "hello", "code": "fmt.Println()", "tags": ["go"]}`,
		"language=go", "tags=go,cli")
	assert.Equal(t, "go", rec["language"])
	assert.Equal(t, []any{"go", "cli"}, rec["tags"])
	assert.NotEmpty(t, rec["created_at"])
}

func TestUpdateNoneConvention(t *testing.T) {
	e := newEnv(t)
	e.record(t, "create", "project", "name=Alpha", "description=first")

	rec := e.record(t, "update", "project", "1", "description=none", "name=Beta")
	assert.Equal(t, "first", rec["description"])
	assert.Equal(t, "Beta", rec["name"])

	rec = e.record(t, "update", "project", "1", "description=none")
	assert.Equal(t, "first", rec["description"])

	rec = e.record(t, "update", "project", "1", "description=none", "--keep-none")
	assert.Equal(t, "none", rec["description"])

	_, _, code := e.run(t, "update", "project", "9", "description=none")
	assert.Equal(t, exitUserError, code)
}

func TestListFilters(t *testing.T) {
	e := newEnv(t)
	e.record(t, "create", "snippet", "title=one", "code=a", "tags=go,cli")
	e.record(t, "create", "snippet", "title=two", "code=b", "tags=rust")
	e.record(t, "create", "snippet", "title=three", "code=c", "tags=go")

	stdout, _, code := e.run(t, "list", "snippet", "tags=go")
	require.Equal(t, exitSuccess, code)
	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	titles := make([]string, len(records))
	for i, r := range records {
		titles[i] = r["title"].(string)
	}
	if diff := cmp.Diff([]string{"one", "three"}, titles); diff != "" {
		t.Errorf("filtered titles (-want +got):\n%s", diff)
	}

	stdout, _, code = e.run(t, "list", "snippet", "--count")
	require.Equal(t, exitSuccess, code)
	assert.Equal(t, "3\n", stdout)

	stdout, _, code = e.run(t, "list", "task")
	require.Equal(t, exitSuccess, code)
	assert.Equal(t, "[]\n", stdout)
}

func TestListByID(t *testing.T) {
	e := newEnv(t)
	e.record(t, "create", "project", "name=Alpha")
	e.record(t, "create", "project", "name=Beta")

	stdout, stderr, code := e.run(t, "list", "project", "id=2")
	require.Equal(t, exitSuccess, code, stderr)
	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Beta", records[0]["name"])

	_, stderr, code = e.run(t, "list", "project", "id=two")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "not an integer")
}

func TestListYAML(t *testing.T) {
	e := newEnv(t)
	e.record(t, "create", "project", "name=Alpha", "description=true")

	stdout, _, code := e.run(t, "list", "project", "--output", "yaml")
	require.Equal(t, exitSuccess, code)

	var records []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0]["id"])
	assert.Equal(t, "true", records[0]["description"], "string that looks like a bool stays a string")
}

func TestCompact(t *testing.T) {
	e := newEnv(t)
	e.record(t, "--backend=jsonl", "create", "project", "name=Alpha")
	e.record(t, "--backend=jsonl", "create", "project", "name=Beta")

	stdout, _, code := e.run(t, "--backend=jsonl", "compact", "project")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "Compacted 2 records in ")
	assert.Contains(t, stdout, "project.jsonl")
}

func TestUserErrors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		stderr string
	}{
		{"validation", []string{"create", "project", "name="}, `field "name" failed`},
		{"bad id", []string{"get", "project", "abc"}, "invalid record ID"},
		{"zero id", []string{"delete", "project", "0"}, "invalid record ID"},
		{"unknown entity", []string{"list", "invoice"}, "entity not found"},
		{"bad pair", []string{"create", "project", "Alpha"}, "expected field=value"},
		{"bad integer", []string{"create", "task", "project_id=one", "title=x"}, "not an integer"},
		{"bad data", []string{"create", "project", "--data", "[1]"}, "--data"},
		{"missing args", []string{"get", "project"}, "accepts 2 arg(s)"},
		{"unknown flag", []string{"list", "project", "--bogus"}, "unknown flag"},
		{"bad output", []string{"list", "project", "-o", "xml"}, "unknown output format"},
		{"bad backend", []string{"list", "project", "--backend", "postgres"}, "invalid configuration"},
		{"delete missing", []string{"delete", "project", "7"}, "project: record 7 not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := newEnv(t).run(t, tt.args...)
			assert.Equal(t, exitUserError, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, tt.stderr)
		})
	}
}

func TestCorruptFileIsASystemError(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.dataDir, 0o755))
	path := filepath.Join(e.dataDir, "project.json")
	corrupt := []byte(`[{"id": 1, "name": "Alpha"`)
	require.NoError(t, os.WriteFile(path, corrupt, 0o644))

	_, stderr, code := e.run(t, "create", "project", "name=Beta")
	assert.Equal(t, exitSysError, code)
	assert.Contains(t, stderr, "storage corrupted")
	assert.Contains(t, stderr, "no change was made")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, data)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitSuccess},
		{&types.NotFoundError{Entity: "task", ID: 1}, exitUserError},
		{types.ValidationErrors{{Field: "name", Rule: "required"}}, exitUserError},
		{usageErrorf("bad"), exitUserError},
		{errors.New("unknown command"), exitUserError},
		{&types.CorruptionError{Path: "x.json"}, exitSysError},
		{&types.WriteError{Path: "x.json", Op: "rename", Err: io.ErrShortWrite}, exitSysError},
		{fmt.Errorf("task: %w", types.ErrLockTimeout), exitSysError},
		{fmt.Errorf("task: %w", types.ErrIDExhausted), exitSysError},
		{systemError{errors.New("read config")}, exitSysError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}

// script is a lineReader fed from a fixed list of lines.
type script struct {
	lines   []string
	history []string
}

func (s *script) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *script) AppendHistory(item string) { s.history = append(s.history, item) }

func TestShellLoop(t *testing.T) {
	e := newEnv(t)
	var stdout, stderr bytes.Buffer
	sh := &shell{
		globals: []string{"--config-dir=" + e.configDir, "--data-dir=" + e.dataDir},
		out:     &stdout,
		errOut:  &stderr,
	}
	in := &script{lines: []string{
		`create project name="Alpha Team"`,
		"",
		"list project --count",
		`create project name='unterminated`,
		"get project 5",
		"shell",
		"exit",
		"list project --count",
	}}

	require.NoError(t, sh.loop(in))

	assert.Contains(t, stdout.String(), `"name": "Alpha Team"`)
	assert.Contains(t, stdout.String(), "1\n")
	assert.Contains(t, stderr.String(), "Unterminated")
	assert.Contains(t, stderr.String(), "project: record 5 not found")
	assert.Contains(t, stderr.String(), "already in the shell")
	assert.Len(t, in.history, 6)
	assert.Len(t, in.lines, 1, "lines after exit are not read")
}

func TestShellStopsAtEOF(t *testing.T) {
	var out bytes.Buffer
	sh := &shell{out: &out, errOut: io.Discard}
	assert.NoError(t, sh.loop(&script{}))
}

func TestShellComplete(t *testing.T) {
	sh := &shell{entities: []string{"project", "snippet", "task"}}

	assert.Equal(t, []string{"compact", "create"}, sh.complete("c"))
	assert.Equal(t, []string{"list project"}, sh.complete("list p"))
	assert.Equal(t, []string{"get project", "get snippet", "get task"}, sh.complete("get "))
	assert.Nil(t, sh.complete("version x"))
	assert.Nil(t, sh.complete("get task 1"))
}

func TestGlobalArgsCarryChangedFlags(t *testing.T) {
	root := NewRootCmd()
	pf := root.PersistentFlags()
	require.NoError(t, pf.Set("data-dir", "/tmp/x"))
	require.NoError(t, pf.Set("backend", "jsonl"))

	assert.ElementsMatch(t, []string{"--data-dir=/tmp/x", "--backend=jsonl"}, globalArgs(pf))
}
