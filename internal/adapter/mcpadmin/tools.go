// Package mcpadmin exposes a small set of admin operations as MCP tools
// via mark3labs/mcp-go, so an MCP-speaking client can submit and inspect
// tasks alongside the HTTP admin surface.
package mcpadmin

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kestrel-run/orchestra/internal/service"
)

// Server wires the registry, orchestrator, and decomposer into an MCP
// tool server exposing submit_task, get_task, list_agents, and
// cancel_task.
type Server struct {
	Registry     *service.Registry
	Orchestrator *service.Orchestrator
	Decomposer   *service.Decomposer
}

// Register adds this server's tools to an *mcpserver.MCPServer.
func (s *Server) Register(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcplib.NewTool("submit_task",
			mcplib.WithDescription("Decompose a goal into a plan and start dispatching it"),
			mcplib.WithString("goal", mcplib.Required(), mcplib.Description("Natural-language goal to decompose and execute")),
		),
		s.submitTask,
	)

	srv.AddTool(
		mcplib.NewTool("get_task",
			mcplib.WithDescription("Get the status of a plan"),
			mcplib.WithString("plan_id", mcplib.Required()),
		),
		s.getTask,
	)

	srv.AddTool(
		mcplib.NewTool("list_agents",
			mcplib.WithDescription("List registered agents, optionally filtered by type"),
			mcplib.WithString("type"),
		),
		s.listAgents,
	)

	srv.AddTool(
		mcplib.NewTool("cancel_task",
			mcplib.WithDescription("Cancel a running plan"),
			mcplib.WithString("plan_id", mcplib.Required()),
		),
		s.cancelTask,
	)
}

func (s *Server) submitTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	goal, err := req.RequireString("goal")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	plan, err := s.Decomposer.Decompose(ctx, goal)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	if err := s.Orchestrator.StartPlan(ctx, plan); err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	return mcplib.NewToolResultText(fmt.Sprintf("started plan %s (pattern=%s)", plan.ID, plan.Pattern)), nil
}

func (s *Server) getTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	planID, err := req.RequireString("plan_id")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	status, err := s.Orchestrator.GetPlanStatus(planID)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf("plan %s: %s", planID, status)), nil
}

func (s *Server) listAgents(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	typeID := req.GetString("type", "")
	agents := s.Registry.ListAgents(typeID)
	return mcplib.NewToolResultText(fmt.Sprintf("%d agents", len(agents))), nil
}

func (s *Server) cancelTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	planID, err := req.RequireString("plan_id")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	if err := s.Orchestrator.CancelPlan(ctx, planID); err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf("cancelled plan %s", planID)), nil
}
