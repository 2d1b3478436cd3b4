package agent

import (
	"fmt"
	"strings"

	"github.com/joss/taskagent/internal/domain"
)

// DefaultSystemPrompt is the agent persona sent with every model request
const DefaultSystemPrompt = "You are TaskAgent, an all-capable AI assistant aimed at solving any task presented by the user. " +
	"You have various tools at your disposal that you can call upon to efficiently complete complex requests. " +
	"Whether it is programming, information retrieval, file processing or web browsing, you can handle it all."

// DefaultNextStepPrompt is used when no tool besides the termination tool is available
const DefaultNextStepPrompt = "Based on user needs, decide how to proceed. " +
	"If the task needs no further work, end the conversation."

// RenderInstructions builds the next-step guidance that advertises tools to
// the model. The termination tool is left out of the tool list and named in
// the closing instruction instead. Output depends only on the arguments.
func RenderInstructions(tools []domain.Tool, terminator string) string {
	var names []string
	var details []string
	for _, t := range tools {
		if t.Name == terminator {
			continue
		}
		names = append(names, t.Name)
		details = append(details, fmt.Sprintf("%s: %s", t.Name, strings.TrimSpace(t.ShortDescription)))
	}
	if len(names) == 0 {
		return DefaultNextStepPrompt
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You can interact with the computer using the following tools: %s.\n\n", strings.Join(names, ", "))
	sb.WriteString(strings.Join(details, "\n\n"))
	sb.WriteString("\n\nBased on user needs, proactively select the most appropriate tool or combination of tools. ")
	sb.WriteString("For complex tasks, break the problem down and use different tools step by step to solve it. ")
	sb.WriteString("After using each tool, clearly explain the execution results and suggest the next steps.")
	if terminator != "" {
		fmt.Fprintf(&sb, " %s is a special tool that ends the conversation when the task is completed. ", terminator)
		fmt.Fprintf(&sb, "Check whether the tool %s should be used to end the conversation.", terminator)
	}
	return sb.String()
}
