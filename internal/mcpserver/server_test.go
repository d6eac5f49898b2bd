package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/tatami/internal/reconcile"
	"github.com/starford/tatami/internal/record"
	"github.com/starford/tatami/internal/service"
	"github.com/starford/tatami/internal/testutil"
)

func testServer(t *testing.T) (*Server, *service.Service) {
	t.Helper()
	svc := testutil.MemoryService(t)
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_families":
		result, err = srv.listFamilies(ctx, req)
	case "list_records":
		result, err = srv.listRecords(ctx, req)
	case "get_record":
		result, err = srv.getRecord(ctx, req)
	case "create_record":
		result, err = srv.createRecord(ctx, req)
	case "update_record":
		result, err = srv.updateRecord(ctx, req)
	case "delete_record":
		result, err = srv.deleteRecord(ctx, req)
	case "clean":
		result, err = srv.clean(ctx, req)
	case "get_record_contract":
		result, err = srv.getRecordContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListFamilies(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_families", map[string]interface{}{})
	if got := resultText(r); got != "techniques\narticles" {
		t.Errorf("families = %q", got)
	}
}

func TestCreateAndGetRecord(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_record", map[string]interface{}{
		"family": "techniques",
		"record": `{"id":"triangle","name":"Triangle","summary":"s","types":[201],"difficulty":10}`,
	})
	if got := resultText(r); got != "created: techniques/triangle" {
		t.Fatalf("create result = %q", got)
	}

	r = callTool(t, srv, "get_record", map[string]interface{}{
		"family": "techniques",
		"id":     "triangle",
	})
	if r.IsError {
		t.Fatalf("get error: %s", resultText(r))
	}
	var d service.RecordDetail
	if err := json.Unmarshal([]byte(resultText(r)), &d); err != nil {
		t.Fatal(err)
	}
	if d.Record.Name != "Triangle" || d.Checksum == "" {
		t.Errorf("detail = %+v", d)
	}
}

func TestCreateRecordInvalidJSON(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_record", map[string]interface{}{
		"family": "techniques",
		"record": "{not json",
	})
	if !r.IsError {
		t.Error("expected error for invalid JSON")
	}
}

func TestCreateRecordDuplicate(t *testing.T) {
	srv, svc := testServer(t)
	if _, err := svc.Create(context.Background(), "techniques", testutil.Technique("a")); err != nil {
		t.Fatal(err)
	}
	r := callTool(t, srv, "create_record", map[string]interface{}{
		"family": "techniques",
		"record": `{"id":"a","name":"A","types":[100]}`,
	})
	if !r.IsError || !strings.HasPrefix(resultText(r), "already exists") {
		t.Errorf("result = %q, want already exists error", resultText(r))
	}
}

func TestUpdateRecord(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "techniques", testutil.Technique("a"))
	if err != nil {
		t.Fatal(err)
	}

	doc := `{"id":"a","name":"A","summary":"v2","types":[100]}`
	r := callTool(t, srv, "update_record", map[string]interface{}{
		"family":   "techniques",
		"record":   doc,
		"if_match": created.Checksum,
	})
	if r.IsError {
		t.Fatalf("update error: %s", resultText(r))
	}
	var d service.RecordDetail
	if err := json.Unmarshal([]byte(resultText(r)), &d); err != nil {
		t.Fatal(err)
	}
	if d.Record.Summary != "v2" || d.Checksum == created.Checksum {
		t.Errorf("detail = %+v", d)
	}

	// created.Checksum is stale now.
	r = callTool(t, srv, "update_record", map[string]interface{}{
		"family":   "techniques",
		"record":   doc,
		"if_match": created.Checksum,
	})
	if !r.IsError || !strings.HasPrefix(resultText(r), "conflict") {
		t.Errorf("stale if_match result = %q, want conflict", resultText(r))
	}

	// Without if_match the write is unconditional.
	r = callTool(t, srv, "update_record", map[string]interface{}{"family": "techniques", "record": doc})
	if r.IsError {
		t.Errorf("unconditional update error: %s", resultText(r))
	}
}

func TestUpdateRecordMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "update_record", map[string]interface{}{
		"family": "techniques",
		"record": `{"id":"ghost","name":"Ghost","types":[100]}`,
	})
	if !r.IsError || !strings.HasPrefix(resultText(r), "not found") {
		t.Errorf("result = %q, want not found", resultText(r))
	}
}

func TestGetRecordMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_record", map[string]interface{}{"family": "techniques", "id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing record")
	}
}

func TestUnknownFamily(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_records", map[string]interface{}{"family": "recipes"})
	if !r.IsError {
		t.Error("expected error for unknown family")
	}
}

func TestMissingArgument(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_record", map[string]interface{}{"family": "techniques"})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestListAndDeleteRecords(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a"} {
		if _, err := svc.Create(ctx, "techniques", testutil.Technique(id)); err != nil {
			t.Fatal(err)
		}
	}

	r := callTool(t, srv, "list_records", map[string]interface{}{"family": "techniques"})
	if got := resultText(r); got != "a\nb" {
		t.Errorf("list = %q", got)
	}

	r = callTool(t, srv, "delete_record", map[string]interface{}{"family": "techniques", "id": "a"})
	if got := resultText(r); got != "deleted: techniques/a" {
		t.Errorf("delete = %q", got)
	}

	r = callTool(t, srv, "delete_record", map[string]interface{}{"family": "techniques", "id": "a"})
	if !r.IsError {
		t.Error("expected error deleting missing record")
	}
}

func TestListRecordsEmpty(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_records", map[string]interface{}{"family": "articles"})
	if got := resultText(r); got != "no records found" {
		t.Errorf("list = %q", got)
	}
}

func TestCleanMirrorsFollowups(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	a := testutil.Technique("a")
	a.Followups = []string{"b", "ghost"}
	if _, err := svc.Create(ctx, "techniques", a); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, "techniques", testutil.Technique("b")); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "clean", map[string]interface{}{"family": "techniques"})
	if r.IsError {
		t.Fatalf("clean error: %s", resultText(r))
	}
	var rep reconcile.Report
	if err := json.Unmarshal([]byte(resultText(r)), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Visited != 2 || rep.Writes != 2 {
		t.Errorf("report = %+v, want 2 visited and 2 writes", rep)
	}

	d, err := svc.Get(ctx, "techniques", "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Record.Preceding) != 1 || d.Record.Preceding[0] != "a" {
		t.Errorf("b.preceding = %v, want [a]", d.Record.Preceding)
	}
}

func TestCleanInverseConflict(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	a, b, c := testutil.Technique("a"), testutil.Technique("b"), testutil.Technique("c")
	a.Inverse = "b"
	b.Inverse = "c"
	for _, rec := range []*record.Record{a, b, c} {
		if _, err := svc.Create(ctx, "techniques", rec); err != nil {
			t.Fatal(err)
		}
	}

	r := callTool(t, srv, "clean", map[string]interface{}{"family": "techniques"})
	if !r.IsError || !strings.Contains(resultText(r), `"c"`) {
		t.Errorf("result = %q, want inverse conflict naming c", resultText(r))
	}
}

func TestRecordContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_record_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "followups") {
		t.Error("contract does not describe followups")
	}
}
