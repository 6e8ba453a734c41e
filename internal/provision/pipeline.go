// Package provision creates a new agent from a recipe: it registers the agent
// in the configuration document and seeds its workspace.
//
// Side effects happen in a fixed order. Directories are created before the
// configuration is persisted, and workspace files are written after it, so
// the registry is the single record of whether provisioning completed. There
// is no rollback: a failure after DirectoriesEnsured leaves partial state.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Hazard-House/openclaw/internal/agentconfig"
	"github.com/Hazard-House/openclaw/internal/recipes"
	"github.com/Hazard-House/openclaw/internal/telemetry"
	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInvalidInput is a missing or malformed request field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownRecipe is returned when the recipe id is not in the catalog.
	ErrUnknownRecipe = errors.New("unknown recipe")
	// ErrReservedIdentifier is returned when the bot name maps to the built-in agent id.
	ErrReservedIdentifier = errors.New("reserved agent id")
	// ErrDuplicateAgent is returned when the agent id is already registered.
	ErrDuplicateAgent = errors.New("agent already exists")
)

// State is a step of a single provisioning run.
type State string

const (
	StateValidating         State = "Validating"
	StateRecipeResolved     State = "RecipeResolved"
	StateIdentifierResolved State = "IdentifierResolved"
	StateUniquenessChecked  State = "UniquenessChecked"
	StateConfigComputed     State = "ConfigComputed"
	StateDirectoriesEnsured State = "DirectoriesEnsured"
	StateConfigPersisted    State = "ConfigPersisted"
	StateFilesWritten       State = "FilesWritten"
	StateDone               State = "Done"
)

// Request is the input to Run.
type Request struct {
	UserName string
	BotName  string
	RecipeID string
	// EntityID, when set, enables the broker integration for the new agent.
	EntityID string
}

// Result describes the provisioned agent. Warnings lists workspace files that
// could not be written; the agent is registered regardless.
type Result struct {
	AgentID   string   `json:"agentId"`
	Workspace string   `json:"workspace"`
	RecipeID  string   `json:"recipeId"`
	Model     string   `json:"model"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Registry loads and saves the configuration document. Save must fail with
// *agentconfig.ConflictError when the document changed since Load.
// *agentconfig.Store implements it.
type Registry interface {
	Load() (*agentconfig.Document, agentconfig.Revision, error)
	Save(doc *agentconfig.Document, expected agentconfig.Revision) (agentconfig.Revision, error)
}

// Options configure a Pipeline.
type Options struct {
	Store         Registry
	Recipes       *recipes.Catalog
	StateDir      string
	WorkspaceRoot string
	// Model defaults to models.DefaultModel.
	Model string
}

// Pipeline runs provisioning requests. Registry check through persistence is
// serialized per Pipeline, and the save is a compare-and-swap on the loaded
// revision so writers in other processes are detected.
type Pipeline struct {
	store         Registry
	recipes       *recipes.Catalog
	stateDir      string
	workspaceRoot string
	model         string
	tracer        trace.Tracer

	mu sync.Mutex
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		store:         opts.Store,
		recipes:       opts.Recipes,
		stateDir:      opts.StateDir,
		workspaceRoot: opts.WorkspaceRoot,
		model:         opts.Model,
		tracer:        telemetry.Tracer("provision"),
	}
	if p.recipes == nil {
		p.recipes = recipes.Default()
	}
	if p.model == "" {
		p.model = models.DefaultModel
	}
	return p
}

// WorkspaceDir returns the workspace directory for an agent id.
func (p *Pipeline) WorkspaceDir(agentID string) string {
	return filepath.Join(p.workspaceRoot, agentID)
}

// AgentDir returns the per-agent state directory.
func (p *Pipeline) AgentDir(agentID string) string {
	return filepath.Join(p.stateDir, "agents", agentID, "agent")
}

// SessionsDir returns the transcripts directory, a sibling of AgentDir.
func (p *Pipeline) SessionsDir(agentID string) string {
	return filepath.Join(p.stateDir, "agents", agentID, "sessions")
}

// Run provisions one agent.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := p.tracer.Start(ctx, "provision.Run",
		trace.WithAttributes(telemetry.AttrRecipe.String(req.RecipeID)))
	defer func() { telemetry.End(span, err) }()

	run := &runState{logger: log.With().Str("recipe", req.RecipeID).Logger()}
	run.advance(StateValidating)

	// 1. Sanitize.
	userName := SanitizeName(req.UserName)
	botName := SanitizeName(req.BotName)
	switch {
	case userName == "":
		return nil, fmt.Errorf("%w: userName is required", ErrInvalidInput)
	case botName == "":
		return nil, fmt.Errorf("%w: botName is required", ErrInvalidInput)
	case strings.TrimSpace(req.RecipeID) == "":
		return nil, fmt.Errorf("%w: recipeId is required", ErrInvalidInput)
	}

	// 2. Recipe.
	recipe, ok := p.recipes.Get(strings.TrimSpace(req.RecipeID))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecipe, req.RecipeID)
	}
	run.advance(StateRecipeResolved)

	// 3. Identifier.
	agentID := NormalizeAgentID(botName)
	if agentID == "" {
		return nil, fmt.Errorf("%w: botName has no usable characters", ErrInvalidInput)
	}
	if agentID == models.DefaultAgentID {
		return nil, fmt.Errorf("%w: %q", ErrReservedIdentifier, agentID)
	}
	run.logger = run.logger.With().Str("agent", agentID).Logger()
	span.SetAttributes(telemetry.AttrAgent.String(agentID))
	run.advance(StateIdentifierResolved)

	entityID := strings.TrimSpace(req.EntityID)
	workspace := p.WorkspaceDir(agentID)

	if err := p.register(ctx, run, agentID, botName, workspace, entityID); err != nil {
		return nil, err
	}

	// 9. Workspace files. Each write stands alone.
	warnings := p.writeFiles(run, workspace, recipe, botName, userName)
	run.advance(StateFilesWritten)

	res = &Result{
		AgentID:   agentID,
		Workspace: workspace,
		RecipeID:  recipe.ID,
		Model:     p.model,
		Warnings:  warnings,
	}
	run.advance(StateDone)

	run.logger.Info().
		Str("workspace", workspace).
		Int("warnings", len(warnings)).
		Bool("broker", entityID != "").
		Msg("Agent provisioned")
	return res, nil
}

// register runs steps 4 to 8 under the pipeline lock.
func (p *Pipeline) register(ctx context.Context, run *runState, agentID, botName, workspace, entityID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 4. Uniqueness.
	doc, rev, err := p.store.Load()
	if err != nil {
		return err
	}
	if doc.HasAgent(agentID) {
		return fmt.Errorf("%w: %q", ErrDuplicateAgent, agentID)
	}
	run.advance(StateUniquenessChecked)

	// 5-6. Compute the next document.
	next := doc.Clone()
	if err := next.AddAgent(agentID, botName, workspace); err != nil {
		return err
	}
	if err := next.SetAgentDir(agentID, p.AgentDir(agentID)); err != nil {
		return err
	}
	if err := next.SetAgentModel(agentID, p.model); err != nil {
		return err
	}
	if entityID != "" {
		if err := next.EnableBroker(agentID); err != nil {
			return err
		}
	}
	run.advance(StateConfigComputed)

	if err := ctx.Err(); err != nil {
		return err
	}

	// 7. Directories before the registry entry.
	for _, dir := range []string{workspace, p.SessionsDir(agentID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	run.advance(StateDirectoriesEnsured)

	// 8. Persist.
	if _, err := p.store.Save(next, rev); err != nil {
		run.logger.Error().Err(err).Msg("Config not persisted; directories were left in place")
		return err
	}
	run.advance(StateConfigPersisted)
	return nil
}

type workspaceFile struct {
	name    string
	content string
}

func (p *Pipeline) writeFiles(run *runState, workspace string, recipe models.Recipe, botName, userName string) []string {
	files := []workspaceFile{
		{"IDENTITY.md", identityDoc(botName, recipe)},
		{"USER.md", userDoc(userName)},
		{"SOUL.md", recipe.Soul},
		{"AGENTS.md", recipe.Agents},
	}
	if strings.TrimSpace(recipe.Tools) != "" {
		files = append(files, workspaceFile{"TOOLS.md", recipe.Tools})
	}

	var warnings []string
	for _, f := range files {
		path := filepath.Join(workspace, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			run.logger.Warn().Err(err).Str("file", f.name).Msg("Workspace file not written; agent is registered")
			warnings = append(warnings, fmt.Sprintf("%s: %v", f.name, err))
		}
	}
	return warnings
}

func identityDoc(botName string, r models.Recipe) string {
	return fmt.Sprintf("# IDENTITY.md\n\n- **Name:** %s\n- **Emoji:** %s\n- **Persona:** %s\n", botName, r.Emoji, r.Label)
}

func userDoc(userName string) string {
	return fmt.Sprintf("# USER.md\n\n- **Name:** %s\n- **What to call them:** %s\n", userName, userName)
}

// runState carries the per-run logger and logs each state transition.
type runState struct {
	logger zerolog.Logger
	state  State
}

func (r *runState) advance(s State) {
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(s)).Msg("Provisioning state")
	r.state = s
}
