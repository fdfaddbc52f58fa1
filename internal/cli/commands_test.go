package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onemodel/internal/model"
)

type cliRun struct {
	stdout string
	stderr string
	code   int
}

// runCLI executes om against the sqlite database at db.
func runCLI(t *testing.T, db string, args ...string) cliRun {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), append([]string{"--db", db}, args...), &stdout, &stderr)
	return cliRun{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// mustRun fails the test unless the command exits 0.
func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	r := runCLI(t, db, args...)
	require.Equal(t, ExitSuccess, r.code, "om %v\nstdout: %s\nstderr: %s", args, r.stdout, r.stderr)
	return r.stdout
}

// decodeData runs a command in JSON mode and decodes the data payload.
func decodeData[T any](t *testing.T, db string, args ...string) T {
	t.Helper()
	out := mustRun(t, db, append([]string{"--format", "json"}, args...)...)
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

// unsetEnv clears variables for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func tempDB(t *testing.T) string {
	t.Helper()
	unsetEnv(t, "ONEMODEL_DB_DRIVER", "ONEMODEL_CONTENT_DRIVER", "ONEMODEL_INCLUDE_ARCHIVED", "ONEMODEL_SEARCH_DEPTH", "ONEMODEL_LOG_LEVEL")
	return filepath.Join(t.TempDir(), "nested", "om.db")
}

func TestInit(t *testing.T) {
	db := tempDB(t)

	out := mustRun(t, db, "init")
	assert.Contains(t, out, "sqlite database ready")
	assert.Contains(t, out, db)
	assert.FileExists(t, db)

	first := decodeData[initResult](t, db, "init")
	second := decodeData[initResult](t, db, "init")
	assert.Equal(t, first.Base, second.Base, "init is idempotent")
	assert.Equal(t, first.Entities, second.Entities)
}

func TestEntityLifecycle(t *testing.T) {
	db := tempDB(t)

	created := decodeData[entityResult](t, db, "entity", "add", "Grocery list")
	assert.Equal(t, "Created", created.Action)
	assert.Equal(t, "Grocery list", created.Entity.Name)

	listed := decodeData[[]model.Entity](t, db, "entity", "list", "--match", "^grocery")
	require.Len(t, listed, 1)
	assert.Equal(t, created.Entity.ID, listed[0].ID)

	out := mustRun(t, db, "entity", "archive", "Grocery list")
	assert.Contains(t, out, "Archived entity")
	assert.Contains(t, out, "[archived]")

	listed = decodeData[[]model.Entity](t, db, "entity", "list", "--match", "^grocery")
	assert.Empty(t, listed)
	listed = decodeData[[]model.Entity](t, db, "entity", "list", "--match", "^grocery", "--archived")
	assert.Len(t, listed, 1)

	mustRun(t, db, "entity", "unarchive", "grocery LIST")
	renamed := decodeData[entityResult](t, db, "entity", "rename", "Grocery list", "Shopping")
	assert.Equal(t, "Shopping", renamed.Entity.Name)

	out = mustRun(t, db, "entity", "delete", "Shopping")
	assert.Contains(t, out, "Deleted entity")

	r := runCLI(t, db, "entity", "delete", "Shopping")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stderr, `no entity named "Shopping"`)
}

func TestEntityRename_RejectsDuplicate(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "entity", "add", "Alice")
	mustRun(t, db, "entity", "add", "Bob")

	r := runCLI(t, db, "entity", "rename", "Bob", "Alice")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stderr, "DUPLICATE_NAME")
	assert.Contains(t, r.stderr, "already in use")

	mustRun(t, db, "entity", "rename", "Bob", "Alice", "--allow-duplicate")

	r = runCLI(t, db, "entity", "archive", "Alice")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stderr, "ambiguous")
}

func TestEntityAdd_RejectsDuplicate(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "entity", "add", "Alice")

	r := runCLI(t, db, "--format", "json", "entity", "add", "Alice")
	assert.Equal(t, ExitFailure, r.code)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp), r.stdout)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DUPLICATE_NAME", resp.Error.Code)

	mustRun(t, db, "entity", "add", "Alice", "--allow-duplicate")
	list := decodeData[entityList](t, db, "entity", "list", "--match", "^Alice$")
	assert.Len(t, list, 2)
}

func TestEntityAdd_UnderWithClass(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "class", "add", "food")
	mustRun(t, db, "entity", "add", "Kitchen")

	milk := decodeData[entityResult](t, db, "entity", "add", "Milk", "--under", "Kitchen", "--class", "food")
	require.NotNil(t, milk.Entity.ClassID)
	out := mustRun(t, db, "text", "list", "Kitchen")
	assert.Contains(t, out, "-> entity "+jsonID(milk.Entity.ID))

	// A failing class step leaves no half-made entity behind.
	r := runCLI(t, db, "entity", "add", "Bread", "--under", "Kitchen", "--class", "12345")
	assert.Equal(t, ExitFailure, r.code)
	list := decodeData[entityList](t, db, "entity", "list", "--match", "Bread")
	assert.Empty(t, list)
}

func TestMetricsFlag(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "init")

	r := runCLI(t, db, "--metrics", "--format", "json", "entity", "add", "Alice")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stderr, `onemodel_store_operations_total{op="create entity",result="ok"} 1`)
	assert.Contains(t, r.stderr, "# TYPE onemodel_store_operation_seconds histogram")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp), r.stdout)
	assert.Equal(t, "ok", resp.Status)

	r = runCLI(t, db, "entity", "add", "Bob")
	assert.NotContains(t, r.stderr, "onemodel_store_operations_total")
}

func TestEntityByID(t *testing.T) {
	db := tempDB(t)
	created := decodeData[entityResult](t, db, "entity", "add", "Alice")

	out := mustRun(t, db, "entity", "archive", "--", jsonID(created.Entity.ID))
	assert.Contains(t, out, "Alice")
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestClassAndGroupHomogeneity(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "class", "add", "person")
	mustRun(t, db, "class", "add", "place")

	r := runCLI(t, db, "--format", "json", "class", "add", "person")
	assert.Equal(t, ExitFailure, r.code)
	var dup CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &dup), r.stdout)
	require.NotNil(t, dup.Error)
	assert.Equal(t, "DUPLICATE_NAME", dup.Error.Code)

	alice := decodeData[entityResult](t, db, "entity", "add", "Alice", "--class", "person")
	require.NotNil(t, alice.Entity.ClassID)
	mustRun(t, db, "entity", "add", "Bob", "--class", "person")
	mustRun(t, db, "entity", "add", "Paris", "--class", "place")

	mustRun(t, db, "group", "add", "Team")
	mustRun(t, db, "group", "member", "Team", "Alice")
	mustRun(t, db, "group", "member", "Team", "Bob")

	r = runCLI(t, db, "group", "member", "Team", "Paris")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stderr, "MIXED_CLASSES")

	members := decodeData[groupEntries](t, db, "group", "list", "Team")
	require.Len(t, members.Members, 2)
	assert.Equal(t, "Alice", members.Members[0].Entity.Name)
	assert.Equal(t, "Bob", members.Members[1].Entity.Name)

	mustRun(t, db, "group", "member", "Team", "Bob", "--after", "")
	members = decodeData[groupEntries](t, db, "group", "list", "Team")
	require.Len(t, members.Members, 2)
	assert.Equal(t, "Bob", members.Members[0].Entity.Name)

	mustRun(t, db, "renumber", "--group", "Team")
	members = decodeData[groupEntries](t, db, "group", "list", "Team")
	assert.Equal(t, "Bob", members.Members[0].Entity.Name)

	out := mustRun(t, db, "group", "list")
	assert.Contains(t, out, "Team\t2 member(s)")

	mustRun(t, db, "group", "member", "Team", "Alice", "--remove")
	out = mustRun(t, db, "group", "list", "Team")
	assert.NotContains(t, out, "Alice")

	mustRun(t, db, "group", "delete", "Team", "--with-entries")
	r = runCLI(t, db, "entity", "archive", "Bob")
	assert.Equal(t, ExitFailure, r.code)
}

func TestRenumber_RequiresOneScope(t *testing.T) {
	db := tempDB(t)
	r := runCLI(t, db, "renumber")
	assert.Equal(t, ExitCommandError, r.code)
	r = runCLI(t, db, "renumber", "--entity", "a", "--group", "b")
	assert.Equal(t, ExitCommandError, r.code)
}

func TestSearch(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "entity", "add", "Home")
	mustRun(t, db, "entity", "add", "Kitchen", "--under", "Home")
	mustRun(t, db, "entity", "add", "Milk", "--under", "Kitchen")
	mustRun(t, db, "text", "add", "Kitchen", "remember the oat milk")

	res := decodeData[searchResult](t, db, "search", "Home", "milk")
	names := make([]string, 0, len(res.Entities))
	for _, e := range res.Entities {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"Kitchen", "Milk"}, names)
	assert.Equal(t, model.DefaultSearchDepth, res.Depth)

	res = decodeData[searchResult](t, db, "search", "Home", "milk", "--depth", "0")
	assert.Empty(t, res.Entities)

	out := mustRun(t, db, "search", "Home", "nothing-like-this")
	assert.Contains(t, out, "0 match(es)")
}

func TestRelate(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "entity", "add", "Alice")
	bob := decodeData[entityResult](t, db, "entity", "add", "Bob")
	mustRun(t, db, "entity", "add", "Carol")
	mustRun(t, db, "reltype", "add", "knows", "is known by", "--dir", "bi")
	toBob := fmt.Sprintf("-> entity %d", bob.Entity.ID)

	out := mustRun(t, db, "relate", "Alice", "knows", "Bob")
	assert.Contains(t, out, "Created relation")

	out = mustRun(t, db, "text", "list", "Alice")
	assert.Contains(t, out, "1 attribute(s)")
	assert.Contains(t, out, toBob)

	out = mustRun(t, db, "relate", "Alice", "knows", "Bob", "--move", "Carol")
	assert.Contains(t, out, "Moved relation")
	assert.Contains(t, mustRun(t, db, "text", "list", "Carol"), toBob)
	assert.NotContains(t, mustRun(t, db, "text", "list", "Alice"), toBob)

	out = mustRun(t, db, "reltype", "list")
	assert.Contains(t, out, "knows")
}

func TestPreferences(t *testing.T) {
	db := tempDB(t)

	out := mustRun(t, db, "pref", "get", "show archived")
	assert.Equal(t, "show archived: (not set)\n", out)

	mustRun(t, db, "pref", "set", "show archived", "true")
	out = mustRun(t, db, "pref", "get", "show archived")
	assert.Equal(t, "show archived: true\n", out)

	r := runCLI(t, db, "pref", "set", "show archived", "maybe")
	assert.Equal(t, ExitCommandError, r.code)

	out = mustRun(t, db, "pref", "default")
	assert.Equal(t, "No default entity.\n", out)

	home := decodeData[entityResult](t, db, "entity", "add", "Home")
	out = mustRun(t, db, "pref", "default", "Home")
	assert.Contains(t, out, "Default entity: ")
	assert.Contains(t, out, "Home")

	got := decodeData[prefResult](t, db, "pref", "get", "first display entity", "--entity")
	require.NotNil(t, got.EntityID)
	assert.Equal(t, home.Entity.ID, *got.EntityID)
}

func TestOmInstances(t *testing.T) {
	db := tempDB(t)

	added := decodeData[omiResult](t, db, "omi", "add", "https://notes.example.org")
	assert.False(t, added.Instance.Local)
	assert.Equal(t, "https://notes.example.org", added.Instance.Address)

	list := decodeData[[]model.OmInstance](t, db, "omi", "list")
	require.Len(t, list, 2)
	assert.True(t, list[0].Local, "local instance first")

	mustRun(t, db, "omi", "delete", added.Instance.ID)
	list = decodeData[[]model.OmInstance](t, db, "omi", "list")
	assert.Len(t, list, 1)

	r := runCLI(t, db, "omi", "delete", list[0].ID)
	assert.Equal(t, ExitFailure, r.code)
}

func TestJSONErrorOnStdout(t *testing.T) {
	db := tempDB(t)
	r := runCLI(t, db, "--format", "json", "entity", "archive", "Nobody")
	assert.Equal(t, ExitFailure, r.code)
	assert.NotContains(t, r.stderr, "Error [")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FAILURE", resp.Error.Code)
}

func TestScenarioRun(t *testing.T) {
	db := tempDB(t)
	out := mustRun(t, db, "scenario", "run", "../harness/testdata/scenarios",
		"--golden", "../harness/testdata/golden")
	assert.Contains(t, out, "✓ chain_search")
	assert.Contains(t, out, "✓ All scenarios passed")
}

const failingScenario = `name: wrong_count
steps:
  - op: create_entity
    as: a
    name: A
assertions:
  - type: entity_count
    count: 99
`

func TestScenarioRun_Failure(t *testing.T) {
	db := tempDB(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_count.yaml"), []byte(failingScenario), 0o644))

	r := runCLI(t, db, "scenario", "run", dir)
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stdout, "✗ wrong_count")
	assert.Contains(t, r.stdout, "0 passed, 1 failed, 1 total")
	assert.NotContains(t, r.stderr, "Error [", "failures are reported once")

	r = runCLI(t, db, "--format", "json", "scenario", "run", dir)
	assert.Equal(t, ExitFailure, r.code)
	var resp struct {
		Status string          `json:"status"`
		Data   ScenarioSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestScenarioRun_UpdateGolden(t *testing.T) {
	db := tempDB(t)
	dir := t.TempDir()
	src := `name: one
steps:
  - op: create_entity
    as: a
    name: A
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yml"), []byte(src), 0o644))

	out := mustRun(t, db, "scenario", "run", dir)
	assert.Contains(t, out, "✓ one (no golden file)")

	out = mustRun(t, db, "scenario", "run", filepath.Join(dir, "one.yml"), "--update")
	assert.Contains(t, out, "(golden updated)")
	golden, err := os.ReadFile(filepath.Join(dir, "golden", "one.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "  A\n")

	out = mustRun(t, db, "scenario", "run", dir)
	assert.Contains(t, out, "✓ one\n")

	r := runCLI(t, db, "scenario", "run", filepath.Join(dir, "missing"))
	assert.Equal(t, ExitCommandError, r.code)
}
