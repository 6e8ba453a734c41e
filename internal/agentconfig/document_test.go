package agentconfig_test

import (
	"encoding/json"
	"testing"

	"github.com/Hazard-House/openclaw/internal/agentconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  // user comments are allowed
  "gateway": {"port": 18789, "mode": "local"},
  "agents": {
    "defaults": {"model": "anthropic/claude"},
    "list": [
      {"id": "main", "default": true},
      {"id": "helper", "name": "Helper", "workspace": "/ws/helper", "custom": [1, 2]},
    ],
  },
  "plugins": {
    "entries": {
      "composio": {"enabled": false, "config": {"apiKey": "ck_123", "baseUrl": "https://broker.example"}}
    }
  }
}`

func TestParse_AcceptsCommentsAndTrailingCommas(t *testing.T) {
	doc, err := agentconfig.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	agents := doc.Agents()
	require.Len(t, agents, 2)
	assert.Equal(t, "main", agents[0].ID)
	assert.Equal(t, "Helper", agents[1].Name)
	assert.Equal(t, "/ws/helper", agents[1].Workspace)
}

func TestParse_Empty(t *testing.T) {
	doc, err := agentconfig.Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Agents())
}

func TestParse_RejectsNonObject(t *testing.T) {
	_, err := agentconfig.Parse([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = agentconfig.Parse([]byte(`null`))
	assert.Error(t, err)
}

func TestHasAgent_CaseInsensitive(t *testing.T) {
	doc, err := agentconfig.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.True(t, doc.HasAgent("helper"))
	assert.True(t, doc.HasAgent("HELPER"))
	assert.False(t, doc.HasAgent("other"))
}

func TestMergeSteps(t *testing.T) {
	doc := agentconfig.NewDocument()

	require.NoError(t, doc.AddAgent("scout", "Scout", "/ws/scout"))
	require.NoError(t, doc.SetAgentDir("scout", "/state/agents/scout/agent"))
	require.NoError(t, doc.SetAgentModel("scout", "minimax/MiniMax-M2.5"))
	require.NoError(t, doc.EnableBroker("scout"))

	e, ok := doc.Agent("scout")
	require.True(t, ok)
	assert.Equal(t, "Scout", e.Name)
	assert.Equal(t, "/state/agents/scout/agent", e.AgentDir)
	assert.Equal(t, "minimax/MiniMax-M2.5", e.Model)
	require.NotNil(t, e.ComposioEnabled)
	assert.True(t, *e.ComposioEnabled)

	assert.ErrorIs(t, doc.AddAgent("scout", "again", ""), agentconfig.ErrAgentExists)
	assert.ErrorIs(t, doc.SetAgentModel("ghost", "m"), agentconfig.ErrAgentNotFound)
}

func TestClone_IsIndependent(t *testing.T) {
	doc, err := agentconfig.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	next := doc.Clone()
	require.NoError(t, next.AddAgent("scout", "Scout", "/ws/scout"))
	require.NoError(t, next.SetAgentModel("helper", "changed"))

	assert.False(t, doc.HasAgent("scout"))
	e, _ := doc.Agent("helper")
	assert.Empty(t, e.Model)
}

func TestMarshal_PreservesUnknownKeys(t *testing.T) {
	doc, err := agentconfig.Parse([]byte(sampleConfig))
	require.NoError(t, err)
	require.NoError(t, doc.AddAgent("scout", "Scout", "/ws/scout"))

	data, err := doc.Marshal()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))

	gateway := out["gateway"].(map[string]any)
	assert.Equal(t, float64(18789), gateway["port"])

	agents := out["agents"].(map[string]any)
	assert.Equal(t, "anthropic/claude", agents["defaults"].(map[string]any)["model"])

	list := agents["list"].([]any)
	require.Len(t, list, 3)
	assert.Equal(t, []any{float64(1), float64(2)}, list[1].(map[string]any)["custom"])
	assert.Equal(t, true, list[0].(map[string]any)["default"])
}

func TestBroker(t *testing.T) {
	doc, err := agentconfig.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	b := doc.Broker()
	assert.Equal(t, "ck_123", b.APIKey)
	assert.Equal(t, "https://broker.example", b.BaseURL)
	assert.Empty(t, b.DefaultEntityID)

	doc.SetBroker(agentconfig.BrokerConfig{APIKey: "ck_456", DefaultEntityID: "u1"})
	b = doc.Broker()
	assert.Equal(t, "ck_456", b.APIKey)
	assert.Empty(t, b.BaseURL)
	assert.Equal(t, "u1", b.DefaultEntityID)
}

func TestBroker_WrongTypesReadEmpty(t *testing.T) {
	doc, err := agentconfig.Parse([]byte(`{"plugins": {"entries": {"composio": {"config": {"apiKey": 42}}}}}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Broker().APIKey)

	doc, err = agentconfig.Parse([]byte(`{"plugins": "nope"}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Broker().APIKey)
}

func TestAddAgent_MalformedListIsKept(t *testing.T) {
	tests := []struct {
		name, input string
	}{
		{"list not array", `{"agents": {"list": {"id": "main"}}}`},
		{"agents not object", `{"agents": "main"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := agentconfig.Parse([]byte(tt.input))
			require.NoError(t, err)
			before, err := doc.Marshal()
			require.NoError(t, err)

			err = doc.AddAgent("helper", "Helper", "/ws/helper")
			require.ErrorIs(t, err, agentconfig.ErrMalformed)

			after, err := doc.Marshal()
			require.NoError(t, err)
			assert.JSONEq(t, string(before), string(after))
		})
	}
}

func TestAddAgent_NullListIsEmpty(t *testing.T) {
	doc, err := agentconfig.Parse([]byte(`{"agents": {"list": null}}`))
	require.NoError(t, err)
	require.NoError(t, doc.AddAgent("helper", "Helper", ""))
	assert.True(t, doc.HasAgent("helper"))
}
