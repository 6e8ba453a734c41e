package provision_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Hazard-House/openclaw/internal/agentconfig"
	"github.com/Hazard-House/openclaw/internal/onboard"
	"github.com/Hazard-House/openclaw/internal/provision"
	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	stateDir      string
	workspaceRoot string
	configPath    string
	store         *agentconfig.Store
	pipeline      *provision.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		stateDir:      filepath.Join(root, "state"),
		workspaceRoot: filepath.Join(root, "workspaces"),
		configPath:    filepath.Join(root, "state", "openclaw.json"),
	}
	f.store = agentconfig.NewStore(f.configPath)
	f.pipeline = provision.New(provision.Options{
		Store:         f.store,
		StateDir:      f.stateDir,
		WorkspaceRoot: f.workspaceRoot,
	})
	return f
}

func TestRun_ProvisionsAgent(t *testing.T) {
	f := newFixture(t)

	res, err := f.pipeline.Run(context.Background(), provision.Request{
		UserName: "Ada",
		BotName:  "Helper",
		RecipeID: "daily-assistant",
	})
	require.NoError(t, err)

	assert.Equal(t, "helper", res.AgentID)
	assert.Equal(t, filepath.Join(f.workspaceRoot, "helper"), res.Workspace)
	assert.Equal(t, "daily-assistant", res.RecipeID)
	assert.Equal(t, "minimax/MiniMax-M2.5", res.Model)
	assert.Empty(t, res.Warnings)

	for _, name := range []string{"IDENTITY.md", "USER.md", "SOUL.md", "AGENTS.md", "TOOLS.md"} {
		assert.FileExists(t, filepath.Join(res.Workspace, name))
	}
	identity, err := os.ReadFile(filepath.Join(res.Workspace, "IDENTITY.md"))
	require.NoError(t, err)
	assert.Contains(t, string(identity), "Helper")
	assert.Contains(t, string(identity), "Daily Assistant")

	user, err := os.ReadFile(filepath.Join(res.Workspace, "USER.md"))
	require.NoError(t, err)
	assert.Contains(t, string(user), "Ada")

	assert.DirExists(t, filepath.Join(f.stateDir, "agents", "helper", "sessions"))

	doc, _, err := f.store.Load()
	require.NoError(t, err)
	entry, ok := doc.Agent("helper")
	require.True(t, ok)
	assert.Equal(t, "Helper", entry.Name)
	assert.Equal(t, res.Workspace, entry.Workspace)
	assert.Equal(t, filepath.Join(f.stateDir, "agents", "helper", "agent"), entry.AgentDir)
	assert.Equal(t, "minimax/MiniMax-M2.5", entry.Model)
	assert.Nil(t, entry.ComposioEnabled)
}

func TestRun_ToolsFileOnlyWhenPresent(t *testing.T) {
	f := newFixture(t)

	res, err := f.pipeline.Run(context.Background(), provision.Request{
		UserName: "Ada", BotName: "Coder", RecipeID: "code-companion",
	})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(res.Workspace, "TOOLS.md"))
	assert.FileExists(t, filepath.Join(res.Workspace, "AGENTS.md"))
}

func TestRun_EntityEnablesBroker(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Run(context.Background(), provision.Request{
		UserName: "Ada", BotName: "Mailer", RecipeID: "inbox-triage", EntityID: "u1",
	})
	require.NoError(t, err)

	doc, _, err := f.store.Load()
	require.NoError(t, err)
	entry, ok := doc.Agent("mailer")
	require.True(t, ok)
	require.NotNil(t, entry.ComposioEnabled)
	assert.True(t, *entry.ComposioEnabled)
}

func TestRun_UnknownRecipeHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Run(context.Background(), provision.Request{
		UserName: "Ada", BotName: "Helper", RecipeID: "does-not-exist",
	})
	require.ErrorIs(t, err, provision.ErrUnknownRecipe)
	assert.Equal(t, `unknown recipe: "does-not-exist"`, err.Error())

	assert.NoDirExists(t, f.workspaceRoot)
	assert.NoDirExists(t, f.stateDir)
}

func TestRun_DuplicateLeavesFirstUntouched(t *testing.T) {
	f := newFixture(t)
	req := provision.Request{UserName: "Ada", BotName: "Helper", RecipeID: "daily-assistant"}

	first, err := f.pipeline.Run(context.Background(), req)
	require.NoError(t, err)

	soulPath := filepath.Join(first.Workspace, "SOUL.md")
	before, err := os.ReadFile(soulPath)
	require.NoError(t, err)
	configBefore, err := os.ReadFile(f.configPath)
	require.NoError(t, err)

	req.RecipeID = "research-analyst"
	_, err = f.pipeline.Run(context.Background(), req)
	require.ErrorIs(t, err, provision.ErrDuplicateAgent)

	after, err := os.ReadFile(soulPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	configAfter, err := os.ReadFile(f.configPath)
	require.NoError(t, err)
	assert.Equal(t, configBefore, configAfter)
}

func TestRun_ReservedIdentifier(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"main", "  MAIN ", "--Main--"} {
		_, err := f.pipeline.Run(context.Background(), provision.Request{
			UserName: "Ada", BotName: name, RecipeID: "daily-assistant",
		})
		assert.ErrorIs(t, err, provision.ErrReservedIdentifier, name)
	}
	assert.NoDirExists(t, f.workspaceRoot)
}

func TestRun_UnusableBotName(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"!!!", "日本", "🤖"} {
		_, err := f.pipeline.Run(context.Background(), provision.Request{
			UserName: "Ada", BotName: name, RecipeID: "daily-assistant",
		})
		require.ErrorIs(t, err, provision.ErrInvalidInput, name)
		assert.NotErrorIs(t, err, provision.ErrReservedIdentifier, name)
		assert.Contains(t, err.Error(), "no usable characters")
	}
	assert.NoDirExists(t, f.workspaceRoot)
}

func TestRun_MissingFields(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  provision.Request
	}{
		{"no user", provision.Request{BotName: "Helper", RecipeID: "daily-assistant"}},
		{"blank bot", provision.Request{UserName: "Ada", BotName: "   ", RecipeID: "daily-assistant"}},
		{"no recipe", provision.Request{UserName: "Ada", BotName: "Helper"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, provision.ErrInvalidInput)
		})
	}
}

func TestRun_FileWriteFailureIsWarning(t *testing.T) {
	f := newFixture(t)

	// A directory where SOUL.md should go makes that one write fail.
	require.NoError(t, os.MkdirAll(filepath.Join(f.workspaceRoot, "helper", "SOUL.md"), 0o755))

	res, err := f.pipeline.Run(context.Background(), provision.Request{
		UserName: "Ada", BotName: "Helper", RecipeID: "daily-assistant",
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "SOUL.md")

	assert.FileExists(t, filepath.Join(res.Workspace, "AGENTS.md"))

	doc, _, err := f.store.Load()
	require.NoError(t, err)
	assert.True(t, doc.HasAgent("helper"))
}

func TestRun_ConcurrentSameNameRegistersOnce(t *testing.T) {
	f := newFixture(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.pipeline.Run(context.Background(), provision.Request{
				UserName: "Ada", BotName: "Helper", RecipeID: "daily-assistant",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, provision.ErrDuplicateAgent)
	}
	assert.Equal(t, 1, ok)

	doc, _, err := f.store.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Agents(), 1)
}

func TestRun_SeparatePipelinesShareRegistry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.stateDir, 0o755))
	require.NoError(t, os.WriteFile(f.configPath, []byte(`{}`), 0o600))

	// A second pipeline over the same file stands in for another process.
	other := provision.New(provision.Options{
		Store:         agentconfig.NewStore(f.configPath),
		StateDir:      f.stateDir,
		WorkspaceRoot: f.workspaceRoot,
	})

	_, err := f.pipeline.Run(context.Background(), provision.Request{UserName: "Ada", BotName: "One", RecipeID: "daily-assistant"})
	require.NoError(t, err)
	_, err = other.Run(context.Background(), provision.Request{UserName: "Ada", BotName: "Two", RecipeID: "daily-assistant"})
	require.NoError(t, err, "each run reloads, so sequential writers do not conflict")

	doc, _, err := f.store.Load()
	require.NoError(t, err)
	assert.True(t, doc.HasAgent("one"))
	assert.True(t, doc.HasAgent("two"))
}

func TestRun_CanceledContextBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, provision.Request{UserName: "Ada", BotName: "Helper", RecipeID: "daily-assistant"})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, f.workspaceRoot)
}

// racingStore registers another agent through a second Store just before
// each Save, the way a concurrent writer in another process would.
type racingStore struct {
	*agentconfig.Store
	other *agentconfig.Store
	saves int
}

func (r *racingStore) Save(doc *agentconfig.Document, expected agentconfig.Revision) (agentconfig.Revision, error) {
	r.saves++
	theirs, rev, err := r.other.Load()
	if err != nil {
		return "", err
	}
	if err := theirs.AddAgent("intruder", "Intruder", ""); err != nil {
		return "", err
	}
	if _, err := r.other.Save(theirs, rev); err != nil {
		return "", err
	}
	return r.Store.Save(doc, expected)
}

func TestRun_ConflictAfterDirectoriesIsNotRolledBack(t *testing.T) {
	f := newFixture(t)
	store := &racingStore{Store: f.store, other: agentconfig.NewStore(f.configPath)}
	p := provision.New(provision.Options{
		Store:         store,
		StateDir:      f.stateDir,
		WorkspaceRoot: f.workspaceRoot,
	})

	_, err := p.Run(context.Background(), provision.Request{
		UserName: "Ada", BotName: "Helper", RecipeID: "daily-assistant",
	})
	require.Error(t, err)
	assert.Equal(t, 1, store.saves)

	var conflict *agentconfig.ConflictError
	require.True(t, errors.As(err, &conflict), "got %T: %v", err, err)
	assert.Equal(t, f.configPath, conflict.Path)

	code, _ := onboard.Classify(err)
	assert.Equal(t, models.ErrorCodeUnavailable, code)

	// Directories were created before the save and stay in place.
	assert.DirExists(t, p.WorkspaceDir("helper"))
	assert.DirExists(t, p.SessionsDir("helper"))
	assert.NoFileExists(t, filepath.Join(p.WorkspaceDir("helper"), "IDENTITY.md"))

	// The other writer's change is on disk and ours is not.
	doc, _, err := f.store.Load()
	require.NoError(t, err)
	assert.True(t, doc.HasAgent("intruder"))
	assert.False(t, doc.HasAgent("helper"))
}
