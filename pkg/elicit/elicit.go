// Package elicit collects argument values for a tool, a prompt or a
// resource template from an interactive prompter, one per declared
// parameter in declaration order.
package elicit

import (
	"fmt"

	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
	"github.com/ajitpratap0/mcp-userhub/pkg/uritemplate"
)

// Prompter asks the user for one line of text.
type Prompter interface {
	Input(label string) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(label string) (string, error)

func (f PrompterFunc) Input(label string) (string, error) {
	return f(label)
}

// Label is the question shown for a parameter.
func Label(p protocol.Param) string {
	if p.Type == "" {
		return fmt.Sprintf("Enter value for %s", p.Name)
	}
	return fmt.Sprintf("Enter value for %s (%s)", p.Name, p.Type)
}

// Params asks for every parameter in order. Values stay text; the provider
// validates them.
func Params(prompter Prompter, params []protocol.Param) (map[string]string, error) {
	values := make(map[string]string, len(params))
	for _, p := range params {
		value, err := prompter.Input(Label(p))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p.Name, err)
		}
		values[p.Name] = value
	}
	return values, nil
}

// ForTool collects the arguments of a tool call. A tool without parameters
// yields an empty map and asks nothing.
func ForTool(prompter Prompter, tool protocol.Tool) (map[string]interface{}, error) {
	values, err := Params(prompter, tool.InputSchema.Params())
	if err != nil {
		return nil, err
	}
	args := make(map[string]interface{}, len(values))
	for name, value := range values {
		args[name] = value
	}
	return args, nil
}

// ForPrompt collects the arguments of a prompt.
func ForPrompt(prompter Prompter, prompt protocol.Prompt) (map[string]string, error) {
	return Params(prompter, prompt.Params())
}

// ForTemplate asks for each distinct placeholder of uri in order of
// appearance and returns the resolved URI. A URI without placeholders is
// returned as is.
func ForTemplate(prompter Prompter, uri string) (string, error) {
	return uritemplate.ResolveWith(uri, func(name string) (string, error) {
		return prompter.Input(Label(protocol.Param{Name: name}))
	})
}
