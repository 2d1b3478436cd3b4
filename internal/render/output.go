package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/joss/taskagent/internal/agent"
	"github.com/joss/taskagent/internal/domain"
)

// Renderer formats runs and transcripts. Pretty output uses color and
// icons; plain output is one stable line per item for piping.
type Renderer struct {
	pretty bool
	// MaxOutput caps tool output shown per result, 0 for no cap
	MaxOutput int
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty, MaxOutput: 500}
}

// Message formats one transcript entry.
func (r *Renderer) Message(m domain.Message) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		switch part := p.(type) {
		case domain.TextPart:
			if strings.TrimSpace(part.Text) == "" {
				continue
			}
			r.line(&sb, roleLabel(m.Role), part.Text, roleColor(m.Role))
		case domain.ToolCallPart:
			call := fmt.Sprintf("%s(%s)", part.Name, compactArgs(part.Args))
			r.line(&sb, "call", call, color.New(color.FgYellow))
		case domain.ToolResultPart:
			r.toolResult(&sb, part)
		case domain.ImagePart:
			r.line(&sb, "image", fmt.Sprintf("[%s, %d bytes base64]", part.MediaType, len(part.Base64)), color.New(color.FgHiBlack))
		}
	}
	return sb.String()
}

func (r *Renderer) toolResult(sb *strings.Builder, part domain.ToolResultPart) {
	out := part.Output
	if r.MaxOutput > 0 {
		out = Truncate(out, r.MaxOutput)
	}
	dur := ""
	if part.Duration > 0 {
		dur = " (" + FormatDuration(part.Duration) + ")"
	}
	if !r.pretty {
		status := "ok"
		if part.Failed() {
			status = "error"
		}
		fmt.Fprintf(sb, "[result] %s %s%s: %s\n", part.Name, status, dur, oneLine(out))
		return
	}
	icon := color.GreenString("✓")
	c := color.New(color.Reset)
	if part.Failed() {
		icon = color.RedString("✗")
		c = color.New(color.FgRed)
	}
	fmt.Fprintf(sb, "%s %s%s\n", icon, color.CyanString(part.Name), color.HiBlackString(dur))
	for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		fmt.Fprintf(sb, "    %s\n", c.Sprint(l))
	}
}

func (r *Renderer) line(sb *strings.Builder, label, text string, c *color.Color) {
	if r.pretty {
		fmt.Fprintf(sb, "%s %s\n", c.Sprintf("%-9s", label+":"), text)
		return
	}
	fmt.Fprintf(sb, "[%s] %s\n", label, oneLine(text))
}

// Transcript formats a whole conversation.
func (r *Renderer) Transcript(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return "No messages recorded"
	}
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(r.Message(m))
	}
	return sb.String()
}

// Result formats the outcome of a finished run.
func (r *Renderer) Result(res *agent.Result) string {
	var sb strings.Builder
	state := res.State.String()
	if r.pretty {
		sb.WriteString(strings.Repeat("─", 60) + "\n")
		fmt.Fprintf(&sb, "%s %s after %d step(s)\n", stateColor(state).Sprint(StateIcon(state)), stateColor(state).Sprint(state), res.Steps)
		if res.Message != "" {
			fmt.Fprintf(&sb, "  Message: %s\n", res.Message)
		}
		if res.Err != nil {
			fmt.Fprintf(&sb, "  Error:   %s\n", color.RedString(res.Err.Error()))
		}
		fmt.Fprintf(&sb, "  Run:     %s\n", color.HiBlackString(res.RunID))
		return sb.String()
	}
	fmt.Fprintf(&sb, "run=%s state=%s steps=%d", res.RunID, state, res.Steps)
	if res.Message != "" {
		fmt.Fprintf(&sb, " message=%q", res.Message)
	}
	if res.Err != nil {
		fmt.Fprintf(&sb, " error=%q", res.Err.Error())
	}
	sb.WriteString("\n")
	return sb.String()
}

// Runs formats the run history, newest first as given.
func (r *Renderer) Runs(runs []agent.RunRecord) string {
	if len(runs) == 0 {
		return "No runs found"
	}
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Recent Runs\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for _, run := range runs {
		state := run.State.String()
		started := run.StartedAt.Local().Format("2006-01-02 15:04")
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s %s\n",
				stateColor(state).Sprint(StateIcon(state)),
				color.HiBlackString(started),
				color.HiBlackString(shortID(run.ID)),
				Truncate(oneLine(run.Prompt), 60))
			continue
		}
		fmt.Fprintf(&sb, "%s\t%s\t%s\t%d\t%s\n", run.ID, started, state, run.Steps, oneLine(run.Prompt))
	}
	return sb.String()
}

// RunDetail formats a single run header.
func (r *Renderer) RunDetail(run agent.RunRecord) string {
	var sb strings.Builder
	state := run.State.String()
	fmt.Fprintf(&sb, "Run:     %s\n", run.ID)
	fmt.Fprintf(&sb, "Model:   %s\n", run.Model)
	fmt.Fprintf(&sb, "State:   %s\n", stateColor(state).Sprint(state))
	fmt.Fprintf(&sb, "Steps:   %d\n", run.Steps)
	fmt.Fprintf(&sb, "Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if !run.EndedAt.IsZero() {
		fmt.Fprintf(&sb, "Took:    %s\n", FormatDuration(run.EndedAt.Sub(run.StartedAt)))
	}
	if run.Message != "" {
		fmt.Fprintf(&sb, "Message: %s\n", run.Message)
	}
	if run.Error != "" {
		fmt.Fprintf(&sb, "Error:   %s\n", color.RedString(run.Error))
	}
	fmt.Fprintf(&sb, "Prompt:  %s\n", run.Prompt)
	return sb.String()
}

// Tools formats the enabled tool list, marking the termination tool.
func (r *Renderer) Tools(tools []domain.Tool, terminator string) string {
	if len(tools) == 0 {
		return "No tools enabled"
	}
	var sb strings.Builder
	for _, t := range tools {
		desc := t.ShortDescription
		if desc == "" {
			desc = firstLine(t.Description)
		}
		mark := ""
		if t.Name == terminator {
			mark = " (ends the run)"
		}
		if r.pretty {
			fmt.Fprintf(&sb, "  %s%s\n      %s\n", color.CyanString(t.Name), color.HiBlackString(mark), desc)
			continue
		}
		fmt.Fprintf(&sb, "%s%s\t%s\n", t.Name, mark, desc)
	}
	return sb.String()
}

func roleLabel(role domain.Role) string {
	switch role {
	case domain.RoleUser:
		return "user"
	case domain.RoleAssistant:
		return "assistant"
	case domain.RoleTool:
		return "tool"
	default:
		return string(role)
	}
}

func roleColor(role domain.Role) *color.Color {
	switch role {
	case domain.RoleUser:
		return color.New(color.FgGreen, color.Bold)
	case domain.RoleAssistant:
		return color.New(color.FgBlue, color.Bold)
	default:
		return color.New(color.FgHiBlack)
	}
}

func stateColor(state string) *color.Color {
	switch state {
	case "terminated":
		return color.New(color.FgGreen)
	case "failed":
		return color.New(color.FgRed)
	case "exhausted_steps":
		return color.New(color.FgYellow)
	default:
		return color.New(color.Reset)
	}
}

// compactArgs renders args as sorted key=value pairs with long values cut
func compactArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		var v string
		switch val := args[k].(type) {
		case string:
			v = fmt.Sprintf("%q", Truncate(oneLine(val), 60))
		default:
			b, _ := json.Marshal(val)
			v = Truncate(string(b), 60)
		}
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ", ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
