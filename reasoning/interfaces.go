// Package reasoning composes the system prompt an agent presents to its
// provider and folds the raw stream chunks a provider emits back into a
// single logical assistant turn.
package reasoning

import (
	"strings"

	"github.com/kadirpekel/threadrunner/config"
)

// PromptSlots are the named sections an agent's composed system prompt is
// built from. Any slot left empty is omitted rather than rendered blank.
type PromptSlots struct {
	SystemRole            string
	ReasoningInstructions string
	ToolUsage             string
	DelegationInstructions string
	OutputFormat          string
	CommunicationStyle    string
	Additional            string
}

// ToolDescriptor is the minimal shape the prompt composer needs to describe
// a tool available to the agent.
type ToolDescriptor struct {
	Name        string
	Description string
}

// ComposeSystemPrompt builds the final system prompt text for an agent: an
// explicit prompt.system_prompt always wins; otherwise the slots are joined
// in a fixed order, each preceded by its own heading, and the available
// tool/child-agent names are appended so the model knows what it may call.
func ComposeSystemPrompt(cfg config.PromptConfig, slots PromptSlots, tools []ToolDescriptor, children []string) string {
	if strings.TrimSpace(cfg.SystemPrompt) != "" {
		return cfg.SystemPrompt
	}

	var b strings.Builder
	section := func(heading, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(heading)
		b.WriteString("\n")
		b.WriteString(body)
	}

	section("", slots.SystemRole)
	if cfg.Purpose != "" {
		section("Purpose:", cfg.Purpose)
	}
	if cfg.Notes != "" {
		section("Notes:", cfg.Notes)
	}
	section("Reasoning:", slots.ReasoningInstructions)
	section("Tool usage:", slots.ToolUsage)
	section("Delegation:", slots.DelegationInstructions)
	section("Output format:", slots.OutputFormat)
	section("Communication style:", slots.CommunicationStyle)
	section("Additional:", slots.Additional)

	if len(tools) > 0 {
		var tb strings.Builder
		for _, t := range tools {
			tb.WriteString("- ")
			tb.WriteString(t.Name)
			if t.Description != "" {
				tb.WriteString(": ")
				tb.WriteString(t.Description)
			}
			tb.WriteString("\n")
		}
		section("Available tools:", strings.TrimRight(tb.String(), "\n"))
	}

	if len(children) > 0 {
		section("Available sub-agents (via delegate_to_<name>):", strings.Join(children, ", "))
	}

	return b.String()
}
