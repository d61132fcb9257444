package skill

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecord(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

const bashRecord = `{
  "meta": {"executor": "bash", "file_extension": ".sh", "static_analysis": "shellcheck"},
  "interpreter": [{"role": "system", "content": "You write bash."}],
  "fabricator": [{"role": "system", "content": "Return only bash."}]
}`

func TestLoaderKeysAreRecordStems(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "bash.json", bashRecord)
	writeRecord(t, dir, "py.jsonc", `{
  // comments and trailing commas are allowed
  "meta": {"executor": "python3", "file_extension": "py",},
}`)
	writeRecord(t, dir, "notes.yaml", "meta:\n  executor: sh\ninterpreter:\n  - role: user\n    content: hi\n")
	writeRecord(t, dir, "README.md", "not a record")
	writeRecord(t, dir, ".hidden.json", "{broken")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	registry, err := NewLoader(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"bash", "notes", "py"}, registry.Names())

	bash, err := registry.Resolve("bash")
	require.NoError(t, err)
	assert.Equal(t, "shellcheck", bash.StaticAnalysis)
	assert.Equal(t, []Message{{Role: "system", Content: "You write bash."}}, bash.InterpreterHistory)
	assert.Equal(t, filepath.Join(dir, "bash.json"), bash.SourcePath)

	py, err := registry.Resolve("py")
	require.NoError(t, err)
	assert.Equal(t, ".py", py.FileExtension)
	assert.Empty(t, py.StaticAnalysis)
	assert.NotNil(t, py.FabricatorHistory)

	notes, err := registry.Resolve("notes")
	require.NoError(t, err)
	assert.Equal(t, "sh", notes.Executor)
	assert.Equal(t, ".sh", notes.FileExtension)
	assert.Len(t, notes.InterpreterHistory, 1)
}

func TestLoaderDefaultsMissingFields(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "bare.json", `{}`)
	writeRecord(t, dir, "ruby.json", `{"meta": {"executor": "ruby", "timeout": 5}}`)
	writeRecord(t, dir, "odd.json", `{"meta": {"executor": "cobol", "static_analysis": null}}`)

	registry, err := NewLoader(dir).Load()
	require.NoError(t, err)

	bare, _ := registry.Resolve("bare")
	assert.Equal(t, "bash", bare.Executor)
	assert.Equal(t, ".sh", bare.FileExtension)
	assert.Empty(t, bare.InterpreterHistory)
	assert.Zero(t, bare.Timeout)

	ruby, _ := registry.Resolve("ruby")
	assert.Equal(t, ".rb", ruby.FileExtension)
	assert.Equal(t, 5*time.Second, ruby.Timeout)

	odd, _ := registry.Resolve("odd")
	assert.Equal(t, "cobol", odd.Executor, "executors are validated at run time, not load time")
	assert.Equal(t, ".txt", odd.FileExtension)
	assert.Nil(t, odd.Info().Analysis)
}

func TestLoaderConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name:  "missing directory",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent") },
		},
		{
			name:  "empty directory",
			setup: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name: "only foreign files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeRecord(t, dir, "skill.toml", "meta = 1")
				return dir
			},
		},
		{
			name: "malformed record fails the whole load",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeRecord(t, dir, "good.json", bashRecord)
				writeRecord(t, dir, "bad.json", `{"meta": `)
				return dir
			},
		},
		{
			name: "duplicate stems",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeRecord(t, dir, "dup.json", bashRecord)
				writeRecord(t, dir, "dup.yaml", "meta:\n  executor: sh\n")
				return dir
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, err := NewLoader(tt.setup(t)).Load()
			assert.Nil(t, registry)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestResolveUnknownSkill(t *testing.T) {
	registry := NewRegistry(&Skill{Name: "bash"}, &Skill{Name: "py"})

	s, err := registry.Resolve("perl")
	assert.Nil(t, s)

	var unknown *UnknownSkillError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "perl", unknown.Name)
	assert.Equal(t, []string{"bash", "py"}, unknown.Available)
}

func TestStoreReloadSwapsWholeRegistry(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "old.json", `{"meta": {"executor": "bash"}}`)

	store, err := NewStore(dir)
	require.NoError(t, err)

	before := store.Current()
	oldSkill, err := before.Resolve("old")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "old.json")))
	writeRecord(t, dir, "new.json", `{"meta": {"executor": "sh"}}`)

	after, err := store.Reload()
	require.NoError(t, err)
	assert.Same(t, after, store.Current())
	assert.Equal(t, []string{"new"}, after.Names())

	// The earlier snapshot is untouched.
	assert.Equal(t, []string{"old"}, before.Names())
	assert.Equal(t, "bash", oldSkill.Executor)
}

func TestStoreFailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "keep.json", bashRecord)

	store, err := NewStore(dir)
	require.NoError(t, err)
	previous := store.Current()

	writeRecord(t, dir, "broken.json", "{")
	_, err = store.Reload()

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Same(t, previous, store.Current())
}

func TestStoreConcurrentReadsDuringReload(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", bashRecord)

	store, err := NewStore(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r := store.Current()
				assert.Positive(t, r.Count())
			}
		}()
		go func() {
			defer wg.Done()
			_, err := store.Reload()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
