// Package config loads the agent character file and environment
// credentials. The character file defines who the agent is and which
// sources it watches; secrets never live in it.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Agent is the character file root.
type Agent struct {
	Name      string   `mapstructure:"name"`
	Bio       string   `mapstructure:"bio"`
	Traits    []string `mapstructure:"traits"`
	Examples  []string `mapstructure:"examples"`
	LoopDelay int      `mapstructure:"loop_delay"`

	Connections []ConnectionConfig `mapstructure:"connections"`
	Tasks       []Task             `mapstructure:"tasks"`
}

// ConnectionConfig configures one source or client. Name selects the
// kind; the other fields apply per kind and unused ones stay empty.
type ConnectionConfig struct {
	Name     string `mapstructure:"name"`
	Interval int    `mapstructure:"interval"` // seconds between polls

	// discord
	ChannelID    string   `mapstructure:"channel_id"`
	TriggerWords []string `mapstructure:"trigger_words"`
	IgnoreBots   bool     `mapstructure:"ignore_bots"`

	// snapshot
	Space string `mapstructure:"space"`

	// forum
	URL      string `mapstructure:"url"`
	Category string `mapstructure:"category"`

	// safe, cowswap
	Endpoint    string `mapstructure:"endpoint"`
	SafeAddress string `mapstructure:"safe_address"`
	Signer      string `mapstructure:"signer"`

	// per-source reasoning instructions
	Instructions string `mapstructure:"instructions"`
}

// Task weights order source polling within a tick, heaviest first.
type Task struct {
	Name   string  `mapstructure:"name"`
	Weight float64 `mapstructure:"weight"`
}

// Load reads and validates a character file (JSON or YAML, by
// extension).
func Load(path string) (*Agent, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read character file: %w", err)
	}

	var agent Agent
	if err := v.Unmarshal(&agent); err != nil {
		return nil, fmt.Errorf("parse character file: %w", err)
	}
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	return &agent, nil
}

// Validate collects every problem at once so a broken character file is
// fixed in one pass.
func (a *Agent) Validate() error {
	var problems []string
	if a.Name == "" {
		problems = append(problems, "name is required")
	}
	if a.Bio == "" {
		problems = append(problems, "bio is required")
	}
	if a.LoopDelay < 0 {
		problems = append(problems, "loop_delay must not be negative")
	}
	if len(a.Connections) == 0 {
		problems = append(problems, "at least one connection is required")
	}

	seen := map[string]bool{}
	for i, c := range a.Connections {
		if c.Name == "" {
			problems = append(problems, fmt.Sprintf("connections[%d]: name is required", i))
			continue
		}
		if seen[c.Name] {
			problems = append(problems, fmt.Sprintf("connections[%d]: duplicate connection %q", i, c.Name))
		}
		seen[c.Name] = true
		if c.Interval < 0 {
			problems = append(problems, fmt.Sprintf("connection %q: interval must not be negative", c.Name))
		}
	}

	for _, t := range a.Tasks {
		if t.Name == "" {
			problems = append(problems, "task without a name")
		}
		if t.Weight < 0 {
			problems = append(problems, fmt.Sprintf("task %q: weight must not be negative", t.Name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid character file:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// Connection returns the config block for name, nil when absent.
func (a *Agent) Connection(name string) *ConnectionConfig {
	for i := range a.Connections {
		if a.Connections[i].Name == name {
			return &a.Connections[i]
		}
	}
	return nil
}

// TaskWeight returns the configured weight for a task, zero when the
// task is not listed.
func (a *Agent) TaskWeight(name string) float64 {
	for _, t := range a.Tasks {
		if t.Name == name {
			return t.Weight
		}
	}
	return 0
}

// Persona renders the system prompt base from the character fields.
func (a *Agent) Persona() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s", a.Name, a.Bio)
	if len(a.Traits) > 0 {
		fmt.Fprintf(&b, "\n\nTraits: %s.", strings.Join(a.Traits, ", "))
	}
	if len(a.Examples) > 0 {
		b.WriteString("\n\nExamples of how you speak:")
		for _, ex := range a.Examples {
			fmt.Fprintf(&b, "\n- %s", ex)
		}
	}
	return b.String()
}

// Creds carries process credentials, all sourced from the environment.
type Creds struct {
	AnthropicKey  string
	DiscordToken  string
	TelegramToken string
	DatabaseURL   string
	NotifierURL   string
}

// LoadCreds reads credentials from the environment. Only the LLM key is
// mandatory here; connection-specific tokens are checked where the
// connection is built.
func LoadCreds() (Creds, error) {
	creds := Creds{
		AnthropicKey:  firstEnv("LLM_API_KEY", "ANTHROPIC_API_KEY"),
		DiscordToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		NotifierURL:   os.Getenv("NOTIFIER_URL"),
	}
	if creds.AnthropicKey == "" {
		return creds, fmt.Errorf("LLM_API_KEY (or ANTHROPIC_API_KEY) is not set")
	}
	return creds, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
