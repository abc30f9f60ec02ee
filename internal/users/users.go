// Package users is the provider's capability set: tools that create user
// records, resources that read them back and a prompt that drafts one.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
	"github.com/ajitpratap0/mcp-userhub/pkg/server"
	"github.com/ajitpratap0/mcp-userhub/pkg/store"
)

const (
	jsonMimeType = "application/json"

	// RandomUserMaxTokens caps the model reply for create-random-user.
	RandomUserMaxTokens = 1024

	// Instructions is what the provider tells the host on initialize.
	Instructions = "Manages a list of users. Create one with create-user or create-random-user, list them at users://all and read one at users://{userId}/profile."

	randomUserPrompt = "Generate fake user data.the user should have a realistic name, email , address and phone number.Return this data as a JSON object with no other text or formatter so it can be used with JSON.parse."
)

// User is the input of create-user.
type User struct {
	Name    string `json:"name" jsonschema:"description=Full name"`
	Email   string `json:"email" jsonschema:"description=Email address"`
	Address string `json:"address" jsonschema:"description=Postal address"`
	Phone   string `json:"phone" jsonschema:"description=Phone number"`
}

func (u User) fields() map[string]interface{} {
	return map[string]interface{}{
		"name":    u.Name,
		"email":   u.Email,
		"address": u.Address,
		"phone":   u.Phone,
	}
}

// Handlers serves the capabilities from a record store.
type Handlers struct {
	store  store.Store
	logger logging.Logger
}

// Register adds every users capability to srv.
func Register(srv *server.Server, s store.Store, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Handlers{store: s, logger: logger.WithFields(logging.Component("users"))}

	openWorld := func(title string) *protocol.ToolAnnotations {
		return &protocol.ToolAnnotations{Title: title, OpenWorldHint: true}
	}

	if err := server.AddTypedTool(srv, protocol.Tool{
		Name:        "create-user",
		Description: "Create a new user in database",
		Annotations: openWorld("Create User"),
	}, h.createUser); err != nil {
		return err
	}
	if err := srv.AddTool(protocol.Tool{
		Name:        "create-random-user",
		Description: "Create a random user with fake data",
		InputSchema: protocol.NewInputSchema(),
		Annotations: openWorld("Create Random User"),
	}, h.createRandomUser); err != nil {
		return err
	}

	if err := srv.AddResource(protocol.Resource{
		URI:         "users://all",
		Name:        "users",
		Title:       "Users",
		Description: "Get all users data from the database",
		MimeType:    jsonMimeType,
	}, h.allUsers); err != nil {
		return err
	}
	if err := srv.AddResourceTemplate(protocol.ResourceTemplate{
		URITemplate: "users://{userId}/profile",
		Name:        "user-details",
		Title:       "User detail",
		Description: "Get all user detail from the database",
		MimeType:    jsonMimeType,
	}, h.userProfile); err != nil {
		return err
	}

	return srv.AddPrompt(protocol.Prompt{
		Name:        "generate-fake-user",
		Description: "Generate a fake user based on a given name",
		Arguments:   []protocol.PromptArgument{{Name: "name", Required: true}},
	}, h.generateFakeUser)
}

func (h *Handlers) createUser(ctx context.Context, _ server.ToolRequest, user User) (*protocol.CallToolResult, error) {
	id, err := h.store.Append(ctx, user.fields())
	if err != nil {
		h.logger.WithError(err).Error("saving user failed")
		return protocol.NewToolErrorResult("Failed to save users"), nil
	}
	h.logger.Info("user created", logging.Int("id", id))
	return protocol.NewToolResult(fmt.Sprintf("Saved User successful with id - %d", id)), nil
}

func (h *Handlers) createRandomUser(ctx context.Context, req server.ToolRequest) (*protocol.CallToolResult, error) {
	text, err := server.CompleteText(ctx, req.Sampler, randomUserPrompt, RandomUserMaxTokens)
	if err != nil {
		h.logger.WithError(err).Warn("sampling a random user failed")
		if mcperrors.IsCode(err, mcperrors.CodeContentMismatch) {
			return protocol.NewToolErrorResult("Failed to get user data in text"), nil
		}
		return protocol.NewToolErrorResult("Failed to save random user"), nil
	}

	fields, err := parseUserJSON(text)
	if err != nil {
		h.logger.WithError(err).Warn("model returned unusable user data")
		return protocol.NewToolErrorResult("Failed to generate user data"), nil
	}
	id, err := h.store.Append(ctx, fields)
	if err != nil {
		h.logger.WithError(err).Error("saving random user failed")
		return protocol.NewToolErrorResult("Failed to generate user data"), nil
	}
	h.logger.Info("random user created", logging.Int("id", id))
	return protocol.NewToolResult(fmt.Sprintf("User %d created successful", id)), nil
}

// parseUserJSON accepts a JSON object, optionally wrapped in a ```json
// fence the way models like to answer.
func parseUserJSON(text string) (map[string]interface{}, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("user data is not an object")
	}
	return fields, nil
}

func (h *Handlers) allUsers(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	records, err := h.store.List(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return protocol.NewTextResource(uri, jsonMimeType, string(data)), nil
}

const notFoundBody = `{"error":"Not user found"}`

// userProfile answers an unknown or non-numeric id with an error body rather
// than a failed read.
func (h *Handlers) userProfile(ctx context.Context, uri string, vars map[string]string) (*protocol.ReadResourceResult, error) {
	id, err := strconv.Atoi(vars["userId"])
	if err != nil {
		return protocol.NewTextResource(uri, jsonMimeType, notFoundBody), nil
	}

	record, err := h.store.Get(ctx, id)
	if errors.Is(err, mcperrors.ErrRecordNotFound) {
		return protocol.NewTextResource(uri, jsonMimeType, notFoundBody), nil
	}
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return protocol.NewTextResource(uri, jsonMimeType, string(data)), nil
}

func (h *Handlers) generateFakeUser(ctx context.Context, args map[string]string) (*protocol.GetPromptResult, error) {
	return &protocol.GetPromptResult{
		Messages: []protocol.PromptMessage{{
			Role: protocol.RoleUser,
			Content: protocol.TextContent(fmt.Sprintf(
				"Generate a fake user with name %s.The user should have a realistic email,address and phone number.",
				args["name"])),
		}},
	}, nil
}
