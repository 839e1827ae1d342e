package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	s := New(Options{})
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cache == nil {
		t.Fatal("New() did not initialize cache")
	}
	if s.grid.MinDimension == 0 {
		t.Error("New() did not default the grid config")
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{"string id", `{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`, "test-1", "tools/list"},
		{"number id", `{"jsonrpc":"2.0","id":42,"method":"ping"}`, float64(42), "ping"},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"initialize"}`, nil, "initialize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest(t *testing.T) {
	s := New(Options{Version: "1.2.3"})
	ctx := context.Background()

	t.Run("initialize", func(t *testing.T) {
		resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})
		if resp == nil || resp.Error != nil {
			t.Fatalf("unexpected response %+v", resp)
		}
		result := resp.Result.(map[string]interface{})
		if result["protocolVersion"] != "2024-11-05" {
			t.Errorf("protocolVersion: got %v", result["protocolVersion"])
		}
		info := result["serverInfo"].(map[string]interface{})
		if info["name"] != "findereye" || info["version"] != "1.2.3" {
			t.Errorf("serverInfo: got %v", info)
		}
	})

	t.Run("initialized notification", func(t *testing.T) {
		if resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"}); resp != nil {
			t.Errorf("expected no response, got %+v", resp)
		}
	})

	t.Run("ping", func(t *testing.T) {
		resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"})
		if resp == nil || resp.Error != nil || resp.ID != "ping-1" {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", ID: 2, Method: "resources/list"})
		if resp == nil || resp.Error == nil || resp.Error.Code != -32601 {
			t.Errorf("expected method-not-found, got %+v", resp)
		}
	})

	t.Run("tools list", func(t *testing.T) {
		resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", ID: 3, Method: "tools/list"})
		tools := resp.Result.(map[string]interface{})["tools"].([]Tool)
		if len(tools) != len(GetToolDefinitions()) {
			t.Errorf("got %d tools", len(tools))
		}
	})
}

func TestGetToolDefinitions(t *testing.T) {
	want := []string{
		"find_in_image", "stream_frame", "set_suspended", "reset_stream", "stream_stats",
		"get_settings", "update_settings", "image_dimensions", "crop_tile",
	}
	tools := GetToolDefinitions()
	if len(tools) != len(want) {
		t.Fatalf("got %d tools, want %d", len(tools), len(want))
	}
	seen := make(map[string]bool)
	for _, tool := range tools {
		if seen[tool.Name] {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		seen[tool.Name] = true
		if tool.Description == "" {
			t.Errorf("tool %s has no description", tool.Name)
		}
		if tool.InputSchema["type"] != "object" {
			t.Errorf("tool %s schema type = %v", tool.Name, tool.InputSchema["type"])
		}
	}
	for _, name := range want {
		if !seen[name] {
			t.Errorf("missing tool %s", name)
		}
	}
}

func TestServe(t *testing.T) {
	s := New(Options{})
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n")

	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var resps []MCPResponse
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var resp MCPResponse
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", sc.Text(), err)
		}
		resps = append(resps, resp)
	}
	if len(resps) != 3 {
		t.Fatalf("got %d responses, want 3", len(resps))
	}
	if resps[0].ID != float64(1) || resps[2].ID != float64(2) {
		t.Errorf("response ids = %v, %v, want 1, 2", resps[0].ID, resps[2].ID)
	}
	if resps[1].ID != nil || resps[1].Error == nil || resps[1].Error.Code != codeParseError {
		t.Errorf("bad line response = %+v, want a parse error", resps[1])
	}
}
