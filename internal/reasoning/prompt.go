package reasoning

import (
	"strings"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/tool"
)

// reactSystemPrompt renders the system prompt of the text protocol.
func reactSystemPrompt(base string, defs []tool.Definition) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nAnswer the question as best you can. You have access to the following tools:\n\n")
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		b.WriteString(d.Name)
		b.WriteString(": ")
		b.WriteString(d.Description)
		b.WriteByte('\n')
		names = append(names, d.Name)
	}
	if len(defs) == 0 {
		b.WriteString("(no tools available)\n")
	}
	b.WriteString(`
Use the following format:

Thought: think about what to do next
Action: the tool to use, one of [`)
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(`]
Action Input: the input to the tool
Observation: the result of the tool
... (Thought/Action/Action Input/Observation can repeat)
Thought: I now know the final answer
Final Answer: the answer to the original question

Write only one Action per reply and stop after Action Input.`)
	return b.String()
}

// renderScratchpad writes entries in the text protocol.
func renderScratchpad(entries []agent.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case agent.EntryThought:
			b.WriteString("Thought: ")
			b.WriteString(e.Payload)
		case agent.EntryAction:
			b.WriteString("Action: ")
			b.WriteString(e.Tool)
			b.WriteString("\nAction Input: ")
			b.WriteString(e.Payload)
		case agent.EntryObservation:
			b.WriteString("Observation: ")
			b.WriteString(e.Payload)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// guardMessages applies the fallbacks every request goes through: an
// empty list gets the default system prompt, and an empty last message
// gets DefaultFiller.
func guardMessages(msgs []provider.LLMMessage) []provider.LLMMessage {
	if len(msgs) == 0 {
		return []provider.LLMMessage{{Role: provider.MessageRoleSystem, Content: DefaultSystemPrompt}}
	}
	last := &msgs[len(msgs)-1]
	if strings.TrimSpace(last.Content) == "" && len(last.ToolCalls) == 0 {
		last.Content = DefaultFiller
	}
	return msgs
}

// conversation returns history without system messages, trimmed to the
// token budget. The port supplies its own system prompt.
func conversation(est TokenEstimator, history []provider.LLMMessage, budget int) []provider.LLMMessage {
	out := make([]provider.LLMMessage, 0, len(history))
	for _, m := range history {
		if m.Role == provider.MessageRoleSystem {
			continue
		}
		out = append(out, m)
	}
	return trimHistory(est, out, budget)
}

func correctionMessages(req agent.StepRequest) []provider.LLMMessage {
	if req.Correction == "" {
		return nil
	}
	var msgs []provider.LLMMessage
	if strings.TrimSpace(req.Rejected) != "" {
		msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: req.Rejected})
	}
	return append(msgs, provider.LLMMessage{Role: provider.MessageRoleUser, Content: req.Correction})
}
