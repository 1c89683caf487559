package reasoning

import (
	"strings"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/tool"
)

type section int

const (
	secThought section = iota
	secAction
	secInput
	secFinal
	secObservation
)

// keywords are matched case-insensitively at the start of a line.
// "Action Input:" must be tried before "Action:".
var keywords = []struct {
	prefix string
	sec    section
}{
	{"action input:", secInput},
	{"action:", secAction},
	{"final answer:", secFinal},
	{"thought:", secThought},
	{"observation:", secObservation},
}

func keyword(line string) (section, string, bool) {
	line = strings.TrimLeft(line, "*_ ")
	for _, k := range keywords {
		if len(line) >= len(k.prefix) && strings.EqualFold(line[:len(k.prefix)], k.prefix) {
			rest := strings.TrimLeft(line[len(k.prefix):], "*_")
			return k.sec, strings.TrimSpace(rest), true
		}
	}
	return 0, "", false
}

// ParseAction reads one model reply in the text protocol.
//
// The first Action line wins, and parsing stops at the first Observation
// after it. An action takes precedence over a Final Answer in the same
// reply. A reply with neither yields an *agent.MalformedActionError.
func ParseAction(text string) (agent.Action, error) {
	var (
		thought, input, final strings.Builder
		name                  string
		hasAction, hasInput   bool
		hasFinal              bool
	)

	cur := secThought
scan:
	for _, line := range strings.Split(text, "\n") {
		sec, rest, ok := keyword(strings.TrimSpace(line))
		if !ok {
			switch cur {
			case secThought:
				writeLine(&thought, line)
			case secInput:
				writeLine(&input, line)
			case secFinal:
				writeLine(&final, line)
			}
			continue
		}

		switch sec {
		case secThought:
			if hasAction {
				break scan
			}
			writeLine(&thought, rest)
		case secAction:
			if hasAction {
				break scan
			}
			hasAction = true
			name = rest
		case secInput:
			if hasInput {
				break scan
			}
			hasInput = true
			writeLine(&input, rest)
		case secFinal:
			hasFinal = true
			writeLine(&final, rest)
		case secObservation:
			if hasAction {
				break scan
			}
		}
		cur = sec
	}

	thoughtText := strings.TrimSpace(thought.String())

	if hasAction {
		name = cleanName(name)
		if name == "" {
			return nil, &agent.MalformedActionError{Output: text, Reason: "action without a tool name"}
		}
		return agent.ToolCall{
			Name:    name,
			Input:   cleanInput(input.String()),
			Thought: thoughtText,
		}, nil
	}

	if hasFinal {
		answer := strings.TrimSpace(final.String())
		if answer == "" {
			return nil, &agent.MalformedActionError{Output: text, Reason: "empty final answer"}
		}
		return agent.Finish{Answer: answer, Thought: thoughtText}, nil
	}

	return nil, &agent.MalformedActionError{Output: text, Reason: "no action or final answer"}
}

func writeLine(b *strings.Builder, line string) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(line)
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "`\"'[]*")
	return strings.TrimSpace(name)
}

func cleanInput(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.Trim(input, "`")
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "{") && strings.HasSuffix(input, "}") {
		return tool.ArgumentText([]byte(input))
	}
	return unquote(input)
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
