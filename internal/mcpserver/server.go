// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the record store and clean pass as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tatami/internal/apperr"
	"github.com/starford/tatami/internal/record"
	"github.com/starford/tatami/internal/service"
)

const formatURI = "tatami://record-format"

// Server wraps the MCP server with record tools.
type Server struct {
	mcp *server.MCPServer
	svc *service.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *service.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Tatami",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	familyArg := mcp.WithString("family", mcp.Required(),
		mcp.Description("Record family: "+strings.Join(svc.Families(), ", ")))

	s.mcp.AddTool(mcp.NewTool("list_families",
		mcp.WithDescription("List the record families served by this knowledge base."),
	), s.listFamilies)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List the ids of every record in a family."),
		familyArg,
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Read one record as JSON, with the checksum of its stored document."),
		familyArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id (e.g. triangle)")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a new record. The record MUST follow the record format "+
			"contract; read it first via get_record_contract or the "+formatURI+" resource. "+
			"Run clean afterwards to mirror relationships onto other records."),
		familyArg,
		mcp.WithString("record", mcp.Required(), mcp.Description("Record document as a JSON object")),
	), s.createRecord)

	s.mcp.AddTool(mcp.NewTool("update_record",
		mcp.WithDescription("Overwrite an existing record with a complete document. Pass the "+
			"checksum from get_record as if_match to refuse the write when the record changed "+
			"in the meantime."),
		familyArg,
		mcp.WithString("record", mcp.Required(), mcp.Description("Record document as a JSON object")),
		mcp.WithString("if_match", mcp.Description("Expected checksum of the stored document")),
	), s.updateRecord)

	s.mcp.AddTool(mcp.NewTool("delete_record",
		mcp.WithDescription("Delete a record. References to it are removed by the next clean pass."),
		familyArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.deleteRecord)

	s.mcp.AddTool(mcp.NewTool("clean",
		mcp.WithDescription("Run the referential-integrity pass over a family: drop dangling "+
			"references, make inverses mutual and mirror followups/preceding. Fails without "+
			"partial repair when two records claim different inverses."),
		familyArg,
	), s.clean)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the record document format contract."),
	), s.getRecordContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Record Format Contract",
			mcp.WithResourceDescription("Document format every record must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError("already exists: " + err.Error())
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listFamilies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(s.svc.Families(), "\n")), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	family, err := req.RequireString("family")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := s.svc.ListIDs(ctx, family)
	if err != nil {
		return toolError(err), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultText("no records found"), nil
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	family, err := req.RequireString("family")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Get(ctx, family, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d), nil
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	family, err := req.RequireString("family")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("record")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var rec record.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid record JSON: %v", err)), nil
	}
	if _, err := s.svc.Create(ctx, family, &rec); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s/%s", family, rec.ID)), nil
}

func (s *Server) updateRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	family, err := req.RequireString("family")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("record")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var rec record.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid record JSON: %v", err)), nil
	}
	d, err := s.svc.Update(ctx, family, &rec, req.GetString("if_match", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d), nil
}

func (s *Server) deleteRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	family, err := req.RequireString("family")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, family, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/%s", family, id)), nil
}

func (s *Server) clean(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	family, err := req.RequireString("family")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.svc.Clean(ctx, family)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rep), nil
}

func (s *Server) getRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
