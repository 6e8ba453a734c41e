// Package agentconfig reads and writes the persisted OpenClaw configuration
// document.
//
// Only the parts the onboarding flow owns are typed: the agent registry under
// agents.list and the broker settings under plugins.entries.composio. Every
// other key is kept as decoded and written back unchanged.
package agentconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/tidwall/jsonc"
)

// BrokerPlugin is the plugin entry key for the connection broker.
const BrokerPlugin = "composio"

// ErrAgentExists is returned when adding an id that is already registered.
var ErrAgentExists = errors.New("agent already exists")

// ErrAgentNotFound is returned when updating an id that is not registered.
var ErrAgentNotFound = errors.New("agent not found")

// ErrMalformed is returned when a section this package writes holds a value
// of the wrong type. The document is left unchanged.
var ErrMalformed = errors.New("malformed config")

// BrokerConfig is plugins.entries.composio.config.
type BrokerConfig struct {
	APIKey          string `json:"apiKey,omitempty"`
	BaseURL         string `json:"baseUrl,omitempty"`
	DefaultEntityID string `json:"defaultEntityId,omitempty"`
}

// Document is the configuration document as a generic JSON tree.
type Document struct {
	root map[string]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{root: map[string]any{}}
}

// Parse decodes a document. Comments and trailing commas are accepted.
// An empty input yields an empty document.
func Parse(data []byte) (*Document, error) {
	stripped := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(stripped)) == 0 {
		return NewDocument(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if root == nil {
		return nil, errors.New("parse config: top level must be an object")
	}
	return &Document{root: root}, nil
}

// Marshal encodes the document as indented JSON with a trailing newline.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d.root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return append(data, '\n'), nil
}

// Clone returns a deep copy, so merge steps never touch the loaded snapshot.
func (d *Document) Clone() *Document {
	return &Document{root: cloneValue(d.root).(map[string]any)}
}

// ── Agent registry ──────────────────────────────────────────

// Agents returns the registered agents in file order. Entries without an id
// are skipped.
func (d *Document) Agents() []models.AgentConfigEntry {
	list := d.agentList()
	out := make([]models.AgentConfigEntry, 0, len(list))
	for _, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		e := decodeEntry(entry)
		if e.ID == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// HasAgent reports whether id is registered. Ids compare case-insensitively.
func (d *Document) HasAgent(id string) bool {
	return d.findAgent(id) != nil
}

// Agent returns the registered entry for id.
func (d *Document) Agent(id string) (models.AgentConfigEntry, bool) {
	entry := d.findAgent(id)
	if entry == nil {
		return models.AgentConfigEntry{}, false
	}
	return decodeEntry(entry), true
}

// AddAgent appends a registry entry with id, name and workspace.
func (d *Document) AddAgent(id, name, workspace string) error {
	if d.HasAgent(id) {
		return fmt.Errorf("%w: %s", ErrAgentExists, id)
	}
	if err := d.checkAgentList(); err != nil {
		return err
	}
	entry := map[string]any{"id": id}
	if name != "" {
		entry["name"] = name
	}
	if workspace != "" {
		entry["workspace"] = workspace
	}
	agents := d.section("agents")
	agents["list"] = append(d.agentList(), entry)
	return nil
}

// SetAgentDir records the agent's state directory.
func (d *Document) SetAgentDir(id, dir string) error {
	return d.setAgentField(id, "agentDir", dir)
}

// SetAgentModel assigns the agent's model.
func (d *Document) SetAgentModel(id, model string) error {
	return d.setAgentField(id, "model", model)
}

// EnableBroker turns the broker integration on for the agent and for the
// plugin entry.
func (d *Document) EnableBroker(id string) error {
	if err := d.setAgentField(id, "composioEnabled", true); err != nil {
		return err
	}
	entries := d.section("plugins", "entries")
	plugin, _ := entries[BrokerPlugin].(map[string]any)
	if plugin == nil {
		plugin = map[string]any{}
		entries[BrokerPlugin] = plugin
	}
	plugin["enabled"] = true
	return nil
}

func (d *Document) setAgentField(id, key string, value any) error {
	entry := d.findAgent(id)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	entry[key] = value
	return nil
}

func (d *Document) findAgent(id string) map[string]any {
	for _, raw := range d.agentList() {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if existing, _ := entry["id"].(string); strings.EqualFold(strings.TrimSpace(existing), id) {
			return entry
		}
	}
	return nil
}

// checkAgentList fails when agents or agents.list exist with the wrong type,
// so appending never replaces user data.
func (d *Document) checkAgentList() error {
	raw, ok := d.root["agents"]
	if !ok || raw == nil {
		return nil
	}
	agents, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: agents is %T, want object", ErrMalformed, raw)
	}
	if list, ok := agents["list"]; ok && list != nil {
		if _, ok := list.([]any); !ok {
			return fmt.Errorf("%w: agents.list is %T, want array", ErrMalformed, list)
		}
	}
	return nil
}

func (d *Document) agentList() []any {
	agents, _ := d.root["agents"].(map[string]any)
	list, _ := agents["list"].([]any)
	return list
}

// ── Broker settings ─────────────────────────────────────────

// Broker returns the broker plugin settings. Missing or wrong-typed values
// read as empty.
func (d *Document) Broker() BrokerConfig {
	plugins, _ := d.root["plugins"].(map[string]any)
	entries, _ := plugins["entries"].(map[string]any)
	plugin, _ := entries[BrokerPlugin].(map[string]any)
	cfg, _ := plugin["config"].(map[string]any)
	return BrokerConfig{
		APIKey:          stringAt(cfg, "apiKey"),
		BaseURL:         stringAt(cfg, "baseUrl"),
		DefaultEntityID: stringAt(cfg, "defaultEntityId"),
	}
}

// SetBroker writes the broker plugin settings, keeping any other keys in
// the plugin entry. Empty fields are removed.
func (d *Document) SetBroker(b BrokerConfig) {
	entries := d.section("plugins", "entries")
	plugin, _ := entries[BrokerPlugin].(map[string]any)
	if plugin == nil {
		plugin = map[string]any{}
		entries[BrokerPlugin] = plugin
	}
	cfg, _ := plugin["config"].(map[string]any)
	if cfg == nil {
		cfg = map[string]any{}
		plugin["config"] = cfg
	}
	for key, value := range map[string]string{
		"apiKey":          b.APIKey,
		"baseUrl":         b.BaseURL,
		"defaultEntityId": b.DefaultEntityID,
	} {
		if value == "" {
			delete(cfg, key)
		} else {
			cfg[key] = value
		}
	}
}

// ── Helpers ─────────────────────────────────────────────────

// section returns the object at path, creating missing or non-object levels.
func (d *Document) section(path ...string) map[string]any {
	node := d.root
	for _, key := range path {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[key] = next
		}
		node = next
	}
	return node
}

func decodeEntry(entry map[string]any) models.AgentConfigEntry {
	e := models.AgentConfigEntry{
		ID:        stringAt(entry, "id"),
		Name:      stringAt(entry, "name"),
		Workspace: stringAt(entry, "workspace"),
		AgentDir:  stringAt(entry, "agentDir"),
		Model:     stringAt(entry, "model"),
	}
	if v, ok := entry["composioEnabled"].(bool); ok {
		e.ComposioEnabled = &v
	}
	return e
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
