// Package hostui is the host's interactive loop: a top-level menu of
// Query, Tools, Resources, Prompts and Quit over a discovered provider.
package hostui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ajitpratap0/mcp-userhub/pkg/agent"
	"github.com/ajitpratap0/mcp-userhub/pkg/client"
	"github.com/ajitpratap0/mcp-userhub/pkg/elicit"
	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/llm"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
)

// ErrQuit ends the loop without an error, e.g. on Ctrl-C.
var ErrQuit = errors.New("quit")

// Choice is one selectable menu entry.
type Choice struct {
	Label       string
	Value       string
	Description string
}

// UI is the set of interactions the loop needs.
type UI interface {
	elicit.Prompter
	Select(label string, choices []Choice) (string, error)
	Confirm(label string) (bool, error)
}

// Top-level menu entries
const (
	MenuQuery     = "Query"
	MenuTools     = "Tools"
	MenuResources = "Resources"
	MenuPrompts   = "Prompts"
	MenuQuit      = "Quit"
)

// App drives one host session.
type App struct {
	Session  client.Client
	Snapshot *client.Snapshot
	Model    llm.Model
	UI       UI
	Out      io.Writer
	Logger   logging.Logger

	// AgentOptions apply to every Query.
	AgentOptions []agent.Option
}

// Run shows the menu until the user quits or the session dies. Failures of
// a single action are printed and the menu comes back.
func (a *App) Run(ctx context.Context) error {
	if a.Logger == nil {
		a.Logger = logging.NewNop()
	}
	menu := []Choice{
		{Label: MenuQuery, Value: MenuQuery, Description: "Ask the model; it may call tools"},
		{Label: MenuTools, Value: MenuTools},
		{Label: MenuResources, Value: MenuResources},
		{Label: MenuPrompts, Value: MenuPrompts},
		{Label: MenuQuit, Value: MenuQuit},
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		option, err := a.UI.Select("What would you like to do", menu)
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		switch option {
		case MenuQuery:
			err = a.query(ctx)
		case MenuTools:
			err = a.tools(ctx)
		case MenuResources:
			err = a.resources(ctx)
		case MenuPrompts:
			err = a.prompts(ctx)
		case MenuQuit:
			return nil
		}

		switch {
		case err == nil:
		case errors.Is(err, ErrQuit):
			return nil
		case sessionLost(err):
			return err
		default:
			a.Logger.WithError(err).Debug("action failed", logging.String("option", option))
			fmt.Fprintf(a.Out, "Error: %v\n", err)
		}
	}
}

func sessionLost(err error) bool {
	return mcperrors.IsFatal(err) || errors.Is(err, mcperrors.ErrConnectionClosed)
}

func (a *App) tools(ctx context.Context) error {
	if len(a.Snapshot.Tools) == 0 {
		fmt.Fprintln(a.Out, "The provider has no tools.")
		return nil
	}
	choices := make([]Choice, 0, len(a.Snapshot.Tools))
	for _, t := range a.Snapshot.Tools {
		choices = append(choices, Choice{Label: t.DisplayName(), Value: t.Name, Description: t.Description})
	}
	name, err := a.UI.Select("Select a tool", choices)
	if err != nil {
		return err
	}
	tool, ok := a.Snapshot.Tool(name)
	if !ok {
		return mcperrors.CapabilityNotFound("tool", name)
	}

	args, err := elicit.ForTool(a.UI, tool)
	if err != nil {
		return err
	}
	result, err := a.Session.CallTool(ctx, tool.Name, args)
	if err != nil {
		return err
	}
	printToolResult(a.Out, result)
	return nil
}

func (a *App) resources(ctx context.Context) error {
	choices := make([]Choice, 0, len(a.Snapshot.Resources)+len(a.Snapshot.ResourceTemplates))
	for _, r := range a.Snapshot.Resources {
		choices = append(choices, Choice{Label: r.Name, Value: r.URI, Description: r.Description})
	}
	for _, t := range a.Snapshot.ResourceTemplates {
		choices = append(choices, Choice{Label: t.Name, Value: t.URITemplate, Description: t.Description})
	}
	if len(choices) == 0 {
		fmt.Fprintln(a.Out, "The provider has no resources.")
		return nil
	}
	selected, err := a.UI.Select("Select a resource", choices)
	if err != nil {
		return err
	}

	uri, err := elicit.ForTemplate(a.UI, selected)
	if err != nil {
		return err
	}
	result, err := a.Session.ReadResource(ctx, uri)
	if err != nil {
		return err
	}
	for _, c := range result.Contents {
		fmt.Fprintln(a.Out, c.Text)
	}
	return nil
}

func (a *App) prompts(ctx context.Context) error {
	if len(a.Snapshot.Prompts) == 0 {
		fmt.Fprintln(a.Out, "The provider has no prompts.")
		return nil
	}
	choices := make([]Choice, 0, len(a.Snapshot.Prompts))
	for _, p := range a.Snapshot.Prompts {
		choices = append(choices, Choice{Label: p.Name, Value: p.Name, Description: p.Description})
	}
	name, err := a.UI.Select("Select a prompt", choices)
	if err != nil {
		return err
	}
	prompt, ok := a.Snapshot.Prompt(name)
	if !ok {
		return mcperrors.CapabilityNotFound("prompt", name)
	}

	args, err := elicit.ForPrompt(a.UI, prompt)
	if err != nil {
		return err
	}
	result, err := a.Session.GetPrompt(ctx, prompt.Name, args)
	if err != nil {
		return err
	}

	for _, msg := range result.Messages {
		if msg.Content.Type != protocol.ContentTypeText {
			continue
		}
		fmt.Fprintf(a.Out, "[%s] %s\n", msg.Role, msg.Content.Text)
		run, err := a.UI.Confirm("Would you like to run the above prompt")
		if err != nil {
			return err
		}
		if !run {
			continue
		}
		resp, err := a.Model.Generate(ctx, &llm.Request{History: llm.UserText(msg.Content.Text)})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.Out, resp.Text)
	}
	return nil
}

func (a *App) query(ctx context.Context) error {
	query, err := a.UI.Input("Enter your query")
	if err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}

	result, err := agent.New(a.Model, a.Session, a.Snapshot.Tools, a.AgentOptions...).Run(ctx, query)
	if result != nil {
		for _, r := range result.ToolResults {
			status := "ok"
			if r.IsError {
				status = "error"
			}
			fmt.Fprintf(a.Out, "[tool %s: %s] %s\n", r.Name, status, r.Content)
		}
		if result.Answer != "" {
			fmt.Fprintln(a.Out, result.Answer)
		}
	}
	return err
}

func printToolResult(w io.Writer, result *protocol.CallToolResult) {
	if result.IsError {
		fmt.Fprintf(w, "Tool error: %s\n", result.Text())
		return
	}
	fmt.Fprintln(w, result.Text())
}
