package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCharacter = `{
  "name": "chairman",
  "bio": "Treasury steward for the DAO.",
  "traits": ["measured", "transparent"],
  "loop_delay": 30,
  "connections": [
    {
      "name": "discord",
      "interval": 60,
      "channel_id": "123456",
      "trigger_words": ["treasury", "proposal"],
      "ignore_bots": true
    },
    {
      "name": "snapshot",
      "interval": 300,
      "space": "cow.eth",
      "instructions": "Analyze each proposal for treasury impact."
    }
  ],
  "tasks": [
    {"name": "discord", "weight": 2},
    {"name": "snapshot", "weight": 5}
  ]
}`

func writeCharacter(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "character.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	agent, err := Load(writeCharacter(t, sampleCharacter))
	require.NoError(t, err)

	assert.Equal(t, "chairman", agent.Name)
	assert.Equal(t, 30, agent.LoopDelay)
	require.Len(t, agent.Connections, 2)

	dc := agent.Connection("discord")
	require.NotNil(t, dc)
	assert.Equal(t, "123456", dc.ChannelID)
	assert.True(t, dc.IgnoreBots)
	assert.Equal(t, []string{"treasury", "proposal"}, dc.TriggerWords)

	sc := agent.Connection("snapshot")
	require.NotNil(t, sc)
	assert.Equal(t, "cow.eth", sc.Space)
	assert.NotEmpty(t, sc.Instructions)

	assert.Nil(t, agent.Connection("forum"))
	assert.Equal(t, 5.0, agent.TaskWeight("snapshot"))
	assert.Equal(t, 0.0, agent.TaskWeight("unlisted"))
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	agent := &Agent{
		LoopDelay: -1,
		Connections: []ConnectionConfig{
			{Name: "discord", Interval: -5},
			{Name: "discord"},
		},
		Tasks: []Task{{Name: "discord", Weight: -1}},
	}

	err := agent.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, "bio is required")
	assert.Contains(t, msg, "loop_delay")
	assert.Contains(t, msg, "interval must not be negative")
	assert.Contains(t, msg, "duplicate connection")
	assert.Contains(t, msg, "weight must not be negative")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestPersona(t *testing.T) {
	agent := &Agent{
		Name:     "chairman",
		Bio:      "Treasury steward.",
		Traits:   []string{"measured"},
		Examples: []string{"The proposal looks sound."},
	}
	p := agent.Persona()
	assert.Contains(t, p, "You are chairman")
	assert.Contains(t, p, "measured")
	assert.Contains(t, p, "The proposal looks sound.")
}

func TestLoadCreds(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := LoadCreds()
	assert.Error(t, err, "absent LLM key is a configuration error")

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("DISCORD_BOT_TOKEN", "disc-token")
	creds, err := LoadCreds()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", creds.AnthropicKey)
	assert.Equal(t, "disc-token", creds.DiscordToken)
}
