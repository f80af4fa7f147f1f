package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LLMs: map[string]config.LLMProviderConfig{
			"test-llm": {Type: "mock", Model: "test-model"},
		},
		Agents: map[string]config.AgentConfig{
			"lead": {
				Name:     "lead",
				LLM:      "test-llm",
				Children: []string{"helper"},
			},
			"helper": {
				Name: "helper",
				LLM:  "test-llm",
			},
		},
		Storage: config.StorageConfig{
			Files: config.FileStoreConfig{BasePath: t.TempDir()},
		},
	}
}

func TestNewComponentManager_WiresRegistriesAndDelegation(t *testing.T) {
	cm, err := NewComponentManager(testConfig(t))
	require.NoError(t, err)

	lead, err := cm.GetAgent("lead")
	require.NoError(t, err)
	assert.Equal(t, "lead", lead.GetName())

	_, err = cm.GetAgent("helper")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"helper", "lead"}, cm.GetAgentRegistry().ListAgents())

	provider, err := cm.GetLLM("test-llm")
	require.NoError(t, err)
	assert.NotNil(t, provider)

	assert.NotNil(t, cm.GetToolRegistry())
	assert.NotNil(t, cm.GetFileStore())
	assert.NotNil(t, cm.GetThreadStore())
}

func TestNewComponentManager_UnknownLLMFails(t *testing.T) {
	cfg := testConfig(t)
	agentCfg := cfg.Agents["lead"]
	agentCfg.LLM = "does-not-exist"
	cfg.Agents["lead"] = agentCfg

	_, err := NewComponentManager(cfg)
	assert.Error(t, err)
}

func TestNewComponentManager_UnknownChildFails(t *testing.T) {
	cfg := testConfig(t)
	agentCfg := cfg.Agents["lead"]
	agentCfg.Children = []string{"ghost"}
	cfg.Agents["lead"] = agentCfg

	_, err := NewComponentManager(cfg)
	assert.Error(t, err)
}

func TestNewComponentManager_DefaultsToMemoryThreadStore(t *testing.T) {
	cfg := testConfig(t)
	require.Empty(t, cfg.Storage.Threads.Backend)

	cm, err := NewComponentManager(cfg)
	require.NoError(t, err)
	assert.NotNil(t, cm.GetThreadStore())
}

func TestNewComponentManager_UnsupportedThreadStoreBackendFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Threads.Backend = "mongo"

	_, err := NewComponentManager(cfg)
	assert.Error(t, err)
}
