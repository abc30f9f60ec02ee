package hostui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mcp-userhub/internal/users"
	"github.com/ajitpratap0/mcp-userhub/pkg/client"
	"github.com/ajitpratap0/mcp-userhub/pkg/llm"
	"github.com/ajitpratap0/mcp-userhub/pkg/llm/llmtest"
	"github.com/ajitpratap0/mcp-userhub/pkg/server"
	"github.com/ajitpratap0/mcp-userhub/pkg/store"
	"github.com/ajitpratap0/mcp-userhub/pkg/transport"
)

// scriptedUI answers from fixed queues and fails when one runs dry.
type scriptedUI struct {
	selects  []string
	inputs   []string
	confirms []bool
	labels   []string
}

func (s *scriptedUI) Select(label string, choices []Choice) (string, error) {
	s.labels = append(s.labels, label)
	if len(s.selects) == 0 {
		return "", ErrQuit
	}
	value := s.selects[0]
	s.selects = s.selects[1:]
	for _, c := range choices {
		if c.Value == value {
			return value, nil
		}
	}
	return "", fmt.Errorf("%q is not offered by %q", value, label)
}

func (s *scriptedUI) Input(label string) (string, error) {
	s.labels = append(s.labels, label)
	if len(s.inputs) == 0 {
		return "", errors.New("unexpected input prompt: " + label)
	}
	value := s.inputs[0]
	s.inputs = s.inputs[1:]
	return value, nil
}

func (s *scriptedUI) Confirm(label string) (bool, error) {
	s.labels = append(s.labels, label)
	if len(s.confirms) == 0 {
		return false, errors.New("unexpected confirm: " + label)
	}
	value := s.confirms[0]
	s.confirms = s.confirms[1:]
	return value, nil
}

type fixture struct {
	app   *App
	out   *bytes.Buffer
	store *store.MemoryStore
	model *llmtest.Model
}

func newFixture(t *testing.T, ui UI, steps ...llmtest.Step) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	srv := server.New()
	require.NoError(t, users.Register(srv, s, nil))

	hostCh, providerCh := transport.Pipe()
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Serve(context.Background(), providerCh)
	}()

	model := llmtest.New(steps...)
	session, err := client.Connect(context.Background(), hostCh,
		client.WithCompletionHandler(client.SamplingFromModel(model)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Close()
		_ = providerCh.Close()
		<-served
	})

	snapshot, err := session.Discover(context.Background())
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &fixture{
		app:   &App{Session: session, Snapshot: snapshot, Model: model, UI: ui, Out: out},
		out:   out,
		store: s,
		model: model,
	}
}

func TestApp_QuitEndsLoop(t *testing.T) {
	f := newFixture(t, &scriptedUI{selects: []string{MenuQuit}})

	assert.NoError(t, f.app.Run(context.Background()))
}

func TestApp_CreateUserThroughToolsMenu(t *testing.T) {
	ui := &scriptedUI{
		selects: []string{MenuTools, "create-user", MenuQuit},
		inputs:  []string{"Ann", "ann@example.com", "1 Main St", "555-0100"},
	}
	f := newFixture(t, ui)

	require.NoError(t, f.app.Run(context.Background()))

	assert.Contains(t, f.out.String(), "Saved User successful with id - 1")
	assert.Contains(t, ui.labels, "Enter value for name (string)")
	assert.Contains(t, ui.labels, "Enter value for phone (string)")
	record, err := f.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ann", record.Fields["name"])
}

func TestApp_ReadTemplatedResource(t *testing.T) {
	ui := &scriptedUI{
		selects: []string{MenuResources, "users://{userId}/profile", MenuQuit},
		inputs:  []string{"1"},
	}
	f := newFixture(t, ui)
	_, err := f.store.Append(context.Background(), map[string]interface{}{"name": "Ann"})
	require.NoError(t, err)

	require.NoError(t, f.app.Run(context.Background()))

	assert.Contains(t, f.out.String(), `{"id":1,"name":"Ann"}`)
	assert.Contains(t, ui.labels, "Enter value for userId")
}

func TestApp_PromptRunsThroughModelWhenConfirmed(t *testing.T) {
	ui := &scriptedUI{
		selects:  []string{MenuPrompts, "generate-fake-user", MenuPrompts, "generate-fake-user", MenuQuit},
		inputs:   []string{"Bo", "Cy"},
		confirms: []bool{true, false},
	}
	f := newFixture(t, ui, llmtest.Reply("Bo Smith, bo@example.com"))

	require.NoError(t, f.app.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Generate a fake user with name Bo.")
	assert.Contains(t, out, "Bo Smith, bo@example.com")
	assert.Contains(t, out, "Generate a fake user with name Cy.")
	assert.Len(t, f.model.Requests(), 1, "declined prompt is not sent")
}

func TestApp_QueryRunsAgent(t *testing.T) {
	ui := &scriptedUI{
		selects: []string{MenuQuery, MenuQuit},
		inputs:  []string{"add Ann"},
	}
	f := newFixture(t, ui,
		llmtest.CallTools(llm.ToolCall{ID: "1", Name: "create-user", Arguments: map[string]interface{}{
			"name": "Ann", "email": "a@example.com", "address": "x", "phone": "1",
		}}),
		llmtest.Reply("Ann was added."),
	)

	require.NoError(t, f.app.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "[tool create-user: ok] Saved User successful with id - 1")
	assert.Contains(t, out, "Ann was added.")
}

func TestApp_ActionErrorKeepsMenu(t *testing.T) {
	ui := &scriptedUI{
		selects: []string{MenuResources, "users://{userId}/profile", MenuQuit},
		inputs:  []string{""},
	}
	f := newFixture(t, ui)

	require.NoError(t, f.app.Run(context.Background()))

	assert.Contains(t, f.out.String(), "Error:")
}

func TestApp_SessionLossEndsLoop(t *testing.T) {
	ui := &scriptedUI{
		selects: []string{MenuTools, "create-random-user", MenuQuit},
	}
	f := newFixture(t, ui)
	require.NoError(t, f.app.Session.Close())

	err := f.app.Run(context.Background())

	assert.Error(t, err)
}
