// Package mcp exposes the support chat over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/neilberkman/supportchat/internal/core/chat"
	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/render"
	"github.com/neilberkman/supportchat/internal/core/search"
)

// AskArgs defines arguments for the ask_support tool
type AskArgs struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// ListSessionsArgs defines arguments for the list_sessions tool
type ListSessionsArgs struct {
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// HistoryArgs defines arguments for the get_history tool
type HistoryArgs struct {
	SessionID string `json:"session_id"`
}

// RenameArgs defines arguments for the rename_session tool
type RenameArgs struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

// Answer is the result of ask_support
type Answer struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Links     []string `json:"links,omitempty"`
	Offline   bool     `json:"offline,omitempty"`
}

// SessionSummary represents a session in the list result
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	MessageCount int    `json:"message_count"`
	Synced       bool   `json:"synced"`
	Snippet      string `json:"snippet,omitempty"`
}

// MessageDetail is one transcript line
type MessageDetail struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Direction string `json:"direction"`
}

// SessionDetail is a session with its transcript
type SessionDetail struct {
	SessionID string          `json:"session_id"`
	Title     string          `json:"title"`
	Messages  []MessageDetail `json:"messages"`
}

// NewServer registers the chat tools on a new MCP server
func NewServer(svc *chat.Service, logger *log.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"SupportChat",
		"1.0.0",
	)
	// tools work through the service's single active session
	var mu sync.Mutex

	askTool := mcp.NewTool("ask_support",
		mcp.WithDescription("Ask the customer support assistant a question. Starts a new conversation unless session_id is given."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to ask")),
		mcp.WithString("session_id",
			mcp.Description("Continue this session instead of starting a new one")),
	)
	s.AddTool(askTool, serialized(&mu, makeAskHandler(svc, logger)))

	listTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List support chat sessions, newest first. The query matches titles and message text and accepts after:, before:, is:local and is:synced filters."),
		mcp.WithString("query",
			mcp.Description("Optional filter, e.g. 'password after:2025-01-01'")),
		mcp.WithNumber("limit",
			mcp.Description("Max sessions to return (default: 20)")),
	)
	s.AddTool(listTool, serialized(&mu, makeListSessionsHandler(svc, logger)))

	historyTool := mcp.NewTool("get_history",
		mcp.WithDescription("Retrieve the full transcript of a support chat session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id to retrieve")),
	)
	s.AddTool(historyTool, serialized(&mu, makeHistoryHandler(svc, logger)))

	renameTool := mcp.NewTool("rename_session",
		mcp.WithDescription("Rename a support chat session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id to rename")),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("New title")),
	)
	s.AddTool(renameTool, serialized(&mu, makeRenameHandler(svc, logger)))

	return s
}

// StartServer serves the chat tools on stdio until stdin closes
func StartServer(svc *chat.Service, logger *log.Logger) error {
	return server.ServeStdio(NewServer(svc, logger))
}

// serialized runs h with mu held
func serialized(mu *sync.Mutex, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mu.Lock()
		defer mu.Unlock()
		return h(ctx, request)
	}
}

func decodeArgs(request mcp.CallToolRequest, v any) error {
	argsBytes, _ := json.Marshal(request.Params.Arguments)
	return json.Unmarshal(argsBytes, v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// syncSessions pulls the server listing before tools read the registry
func syncSessions(ctx context.Context, svc *chat.Service, logger *log.Logger) {
	if _, err := svc.SyncSessions(ctx); err != nil {
		logger.Warn("mcp: session sync failed", "err", err)
	}
}

func makeAskHandler(svc *chat.Service, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AskArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		if args.SessionID != "" {
			syncSessions(ctx, svc, logger)
			if err := svc.Switch(ctx, args.SessionID); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		} else {
			svc.NewChat()
		}

		c, err := svc.Send(ctx, args.Question)
		if errors.Is(err, chat.ErrEmptyMessage) {
			return mcp.NewToolResultError("question is empty"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		r := render.Message(models.NewMessage(models.RoleBot, c.Answer))
		return jsonResult(Answer{
			SessionID: c.SessionID,
			Answer:    r.Plain(),
			Links:     r.Links(),
			Offline:   c.Failed(),
		})
	}
}

func makeListSessionsHandler(svc *chat.Service, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListSessionsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		limit := args.Limit
		if limit <= 0 {
			limit = 20
		}

		syncSessions(ctx, svc, logger)
		sessions := svc.Registry().Sessions()
		for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
			sessions[i], sessions[j] = sessions[j], sessions[i]
		}

		results := search.Filter(sessions, search.ParseQuery(args.Query, time.Now()))
		if len(results) > limit {
			results = results[:limit]
		}

		out := make([]SessionSummary, 0, len(results))
		for _, r := range results {
			out = append(out, SessionSummary{
				SessionID:    r.Session.ID,
				Title:        r.Session.Title,
				CreatedAt:    r.Session.Created().Format("2006-01-02 15:04:05"),
				MessageCount: len(r.Session.Messages),
				Synced:       r.Session.Synced,
				Snippet:      r.Snippet,
			})
		}
		return jsonResult(map[string]interface{}{
			"sessions": out,
		})
	}
}

func makeHistoryHandler(svc *chat.Service, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args HistoryArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		syncSessions(ctx, svc, logger)
		if err := svc.Switch(ctx, args.SessionID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("session not found: %v", err)), nil
		}

		active, _ := svc.Registry().Active()
		detail := SessionDetail{SessionID: active.ID, Title: active.Title, Messages: []MessageDetail{}}
		for _, m := range svc.Registry().Visible() {
			r := render.Message(m)
			detail.Messages = append(detail.Messages, MessageDetail{
				Role:      string(r.Role),
				Text:      r.Plain(),
				Direction: string(r.Direction),
			})
		}
		return jsonResult(detail)
	}
}

func makeRenameHandler(svc *chat.Service, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args RenameArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		syncSessions(ctx, svc, logger)
		if err := svc.Rename(ctx, args.SessionID, args.Title); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("rename failed: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{
			"session_id": args.SessionID,
			"title":      args.Title,
		})
	}
}
