package deploy

import (
	"bytes"
	"codegen-app/internal/apperr"
	"codegen-app/internal/auth"
	"codegen-app/internal/codegen"
	"codegen-app/internal/repository/db"
	"codegen-app/internal/service/filesaver"
	"codegen-app/internal/testutil"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "user-1"

var caller = auth.Identity{UserID: owner, Username: "alice"}

// sequence yields the given keys in order, then random ones
func sequence(keys ...string) KeySource {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(keys) {
			return RandomKey()
		}
		k := keys[i]
		i++
		return k, nil
	}
}

type fakeBuilder struct {
	err         error
	writeOutput bool
	calls       int
}

func (f *fakeBuilder) Build(ctx context.Context, dir string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.writeOutput {
		if err := os.MkdirAll(filepath.Join(dir, "dist", "assets"), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "dist", "index.html"), []byte("built"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "dist", "assets", "app.js"), []byte("app()"), 0o644)
	}
	return nil
}

func (f *fakeBuilder) OutputDir() string { return "dist" }

type fixture struct {
	mem        *testutil.MemoryDatabase
	saver      *filesaver.Saver
	deployRoot string
	builder    *fakeBuilder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	return &fixture{
		mem:        testutil.NewMemoryDatabase(),
		saver:      filesaver.NewSaver(filepath.Join(base, "out")),
		deployRoot: filepath.Join(base, "deploy"),
		builder:    &fakeBuilder{writeOutput: true},
	}
}

func (f *fixture) manager(opts ...Option) *Manager {
	opts = append([]Option{WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) })}, opts...)
	return NewManager(f.mem, f.saver, f.builder, f.deployRoot, "https://host/", opts...)
}

func (f *fixture) addApp(t *testing.T, id string, genType codegen.Type, result codegen.Result) {
	t.Helper()
	f.mem.PutApplication(db.Application{ID: id, UserID: owner, GenerationType: genType.String()})
	if result != nil {
		_, err := f.saver.Save(result, id)
		require.NoError(t, err)
	}
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func rootEntries(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDeploy_SingleFileScenario(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "<html>...</html>"})

	url, err := f.manager(WithKeySource(sequence("K9x2Qa", "Stg001"))).Deploy(context.Background(), "A1", caller)
	require.NoError(t, err)
	assert.Equal(t, "https://host/K9x2Qa", url)

	if diff := cmp.Diff(map[string]string{"index.html": "<html>...</html>"}, readTree(t, filepath.Join(f.deployRoot, "K9x2Qa"))); diff != "" {
		t.Errorf("published tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"K9x2Qa"}, rootEntries(t, f.deployRoot))

	app, err := f.mem.GetApplication(context.Background(), "A1")
	require.NoError(t, err)
	require.NotNil(t, app.DeployKey)
	assert.Equal(t, "K9x2Qa", *app.DeployKey)
	require.NotNil(t, app.DeployedAt)
	require.NotNil(t, app.EditedAt)
	assert.Equal(t, 0, f.builder.calls)
}

func TestDeploy_PreconditionFailures(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "x"})
	f.addApp(t, "NOSRC", codegen.TypeMultiFile, nil)
	f.mem.PutApplication(db.Application{ID: "BAD", UserID: owner, GenerationType: "vue_project"})

	tests := []struct {
		name    string
		appID   string
		caller  auth.Identity
		wantErr error
	}{
		{name: "unknown app", appID: "missing", caller: caller, wantErr: apperr.ErrNotFound},
		{name: "not the owner", appID: "A1", caller: auth.Identity{UserID: "user-2"}, wantErr: apperr.ErrAuthorization},
		{name: "admin is not the owner", appID: "A1", caller: auth.Identity{UserID: "admin", Role: db.RoleAdmin}, wantErr: apperr.ErrAuthorization},
		{name: "unknown generation type", appID: "BAD", caller: caller, wantErr: apperr.ErrValidation},
		{name: "not generated yet", appID: "NOSRC", caller: caller, wantErr: apperr.ErrNotFound},
		{name: "empty app id", appID: "", caller: caller, wantErr: apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := f.manager().Deploy(context.Background(), tt.appID, tt.caller)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, url)
		})
	}

	assert.Empty(t, rootEntries(t, f.deployRoot))
	keys, _ := f.mem.ListDeployKeys(context.Background())
	assert.Empty(t, keys)
}

func TestDeploy_FrameworkPublishesBuildOutput(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "F1", codegen.TypeFramework, &codegen.FrameworkProject{Files: []codegen.File{
		{Path: "package.json", Content: "{}"},
		{Path: "src/main.js", Content: "main()"},
	}})

	url, err := f.manager(WithKeySource(sequence("Frame1", "Stage1"))).Deploy(context.Background(), "F1", caller)
	require.NoError(t, err)
	assert.Equal(t, "https://host/Frame1", url)
	assert.Equal(t, 1, f.builder.calls)

	want := map[string]string{"index.html": "built", "assets/app.js": "app()"}
	if diff := cmp.Diff(want, readTree(t, filepath.Join(f.deployRoot, "Frame1"))); diff != "" {
		t.Errorf("published tree mismatch (-want +got):\n%s", diff)
	}
}

func TestDeploy_BuildFailures(t *testing.T) {
	tests := []struct {
		name    string
		builder *fakeBuilder
	}{
		{name: "build step fails", builder: &fakeBuilder{err: errors.New("npm ERR!")}},
		{name: "no output directory", builder: &fakeBuilder{writeOutput: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.builder = tt.builder
			f.addApp(t, "F1", codegen.TypeFramework, &codegen.FrameworkProject{Files: []codegen.File{{Path: "package.json", Content: "{}"}}})

			_, err := f.manager().Deploy(context.Background(), "F1", caller)
			assert.ErrorIs(t, err, apperr.ErrBuild)

			app, _ := f.mem.GetApplication(context.Background(), "F1")
			assert.Nil(t, app.DeployKey)
			assert.Empty(t, rootEntries(t, f.deployRoot))
		})
	}
}

func TestDeploy_RetriesOnRecordedKeyCollision(t *testing.T) {
	f := newFixture(t)
	taken := "AAAAAA"
	f.mem.PutApplication(db.Application{ID: "OTHER", UserID: "user-9", GenerationType: "singlefile", DeployKey: &taken})
	f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "x"})

	url, err := f.manager(WithKeySource(sequence("AAAAAA", "BBBBBB", "AAAAAA", "CCCCCC"))).Deploy(context.Background(), "A1", caller)
	require.NoError(t, err)
	assert.Equal(t, "https://host/BBBBBB", url)
	assert.Equal(t, []string{"BBBBBB"}, rootEntries(t, f.deployRoot))
}

func TestDeploy_ExistingDirectoryCountsAsCollision(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "mine"})

	// An unrecorded leftover directory blocks both the key and the staging name
	require.NoError(t, os.MkdirAll(filepath.Join(f.deployRoot, "Orphan"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.deployRoot, "Orphan", "index.html"), []byte("theirs"), 0o644))

	url, err := f.manager(WithKeySource(sequence("Orphan", "KeyOne", "Orphan", "Stage1"))).Deploy(context.Background(), "A1", caller)
	require.NoError(t, err)
	assert.Equal(t, "https://host/KeyOne", url)

	assert.Equal(t, map[string]string{"index.html": "theirs"}, readTree(t, filepath.Join(f.deployRoot, "Orphan")))
	assert.Equal(t, map[string]string{"index.html": "mine"}, readTree(t, filepath.Join(f.deployRoot, "KeyOne")))
	assert.ElementsMatch(t, []string{"Orphan", "KeyOne"}, rootEntries(t, f.deployRoot))
}

func TestDeploy_RedeployKeepsKeyAndReplacesSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "A1", codegen.TypeMultiFile, &codegen.MultiFile{Files: []codegen.File{
		{Path: "index.html", Content: "v1"},
		{Path: "old.css", Content: "stale"},
	}})
	m := f.manager(WithKeySource(sequence("KeepMe", "Stg001", "Stg002")))

	first, err := m.Deploy(context.Background(), "A1", caller)
	require.NoError(t, err)

	_, err = f.saver.Save(&codegen.MultiFile{Files: []codegen.File{{Path: "index.html", Content: "v2"}}}, "A1")
	require.NoError(t, err)

	second, err := m.Deploy(context.Background(), "A1", caller)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, map[string]string{"index.html": "v2"}, readTree(t, filepath.Join(f.deployRoot, "KeepMe")))
	assert.Equal(t, []string{"KeepMe"}, rootEntries(t, f.deployRoot))
}

func TestDeploy_CopyFailureRemovesStaging(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "x"})
	src := f.saver.Dir(codegen.TypeSingleFile, "A1")
	require.NoError(t, os.Symlink("/nonexistent", filepath.Join(src, "link")))

	_, err := f.manager(WithKeySource(sequence("KeyOne", "Stage1"))).Deploy(context.Background(), "A1", caller)
	assert.ErrorIs(t, err, apperr.ErrStorage)

	assert.Empty(t, rootEntries(t, f.deployRoot))
	app, _ := f.mem.GetApplication(context.Background(), "A1")
	assert.Nil(t, app.DeployKey)
}

func TestDeploy_RenameFailureFallsBackToStagingKey(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "x"})

	m := f.manager(WithKeySource(sequence("KeyOne", "Stage1")))
	m.rename = func(oldpath, newpath string) error {
		if filepath.Base(newpath) == "KeyOne" {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errors.New("cross-device link")}
		}
		return os.Rename(oldpath, newpath)
	}

	url, err := m.Deploy(context.Background(), "A1", caller)
	require.NoError(t, err)
	assert.Equal(t, "https://host/Stage1", url)

	app, _ := f.mem.GetApplication(context.Background(), "A1")
	require.NotNil(t, app.DeployKey)
	assert.Equal(t, "Stage1", *app.DeployKey)
	assert.Equal(t, map[string]string{"index.html": "x"}, readTree(t, filepath.Join(f.deployRoot, "Stage1")))
}

func TestDeploy_RedeployRenameFailureRestoresPreviousSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "v1"})
	m := f.manager(WithKeySource(sequence("KeyOne", "Stage1", "Stage2")))

	_, err := m.Deploy(context.Background(), "A1", caller)
	require.NoError(t, err)

	_, err = f.saver.Save(&codegen.SingleFile{Content: "v2"}, "A1")
	require.NoError(t, err)
	m.rename = func(oldpath, newpath string) error {
		if filepath.Base(oldpath) == "Stage2" {
			return errors.New("rename refused")
		}
		return os.Rename(oldpath, newpath)
	}

	url, err := m.Deploy(context.Background(), "A1", caller)
	require.NoError(t, err)
	assert.Equal(t, "https://host/Stage2", url)
	assert.Equal(t, map[string]string{"index.html": "v1"}, readTree(t, filepath.Join(f.deployRoot, "KeyOne")))
	assert.Equal(t, map[string]string{"index.html": "v2"}, readTree(t, filepath.Join(f.deployRoot, "Stage2")))
}

func TestDeploy_ConcurrentAppsNeverShareKey(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "one"})
		f.addApp(t, "A2", codegen.TypeSingleFile, &codegen.SingleFile{Content: "two"})
		// Both deploys draw the same first key
		m := f.manager(WithKeySource(sequence("SameKy", "SameKy")))

		var wg sync.WaitGroup
		urls := make([]string, 2)
		errs := make([]error, 2)
		for i, id := range []string{"A1", "A2"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				urls[i], errs[i] = m.Deploy(context.Background(), id, caller)
			}()
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		require.NotEqual(t, urls[0], urls[1])

		for i, want := range []string{"one", "two"} {
			key := strings.TrimPrefix(urls[i], "https://host/")
			assert.Equal(t, map[string]string{"index.html": want}, readTree(t, filepath.Join(f.deployRoot, key)))
		}
	}
}

func TestDeploy_StoreFailureLeavesApplicationUntouched(t *testing.T) {
	f := newFixture(t)
	f.addApp(t, "A1", codegen.TypeSingleFile, &codegen.SingleFile{Content: "x"})

	store := &testutil.MockDatabase{
		GetApplicationFunc: f.mem.GetApplication,
		DeployKeyExistsFunc: func(ctx context.Context, key string) (bool, error) {
			return false, nil
		},
		UpdateDeploymentFunc: func(ctx context.Context, appID, deployKey string, deployedAt time.Time) error {
			return errors.New("connection refused")
		},
	}
	m := NewManager(store, f.saver, f.builder, f.deployRoot, "https://host")

	_, err := m.Deploy(context.Background(), "A1", caller)
	assert.ErrorIs(t, err, apperr.ErrStorage)

	app, _ := f.mem.GetApplication(context.Background(), "A1")
	assert.Nil(t, app.DeployKey)
}

func TestRandomKey(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		key, err := RandomKey()
		require.NoError(t, err)
		assert.True(t, ValidKey(key), "key %q", key)
		seen[key] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestRandomKeyFrom_RejectsBiasedBytes(t *testing.T) {
	src := bytes.NewReader([]byte{248, 0, 1, 61, 62, 255, 5, 6, 7, 8, 9, 10})
	key, err := randomKeyFrom(src)
	require.NoError(t, err)
	assert.Equal(t, "AB9AFG", key)

	_, err = randomKeyFrom(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("K9x2Qa"))
	assert.False(t, ValidKey("K9x2Q"))
	assert.False(t, ValidKey("K9x2Q-"))
	assert.False(t, ValidKey(".retir"))
}
