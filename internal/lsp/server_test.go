package lsp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/internal/config"
	"github.com/oxhq/structgrep/internal/lsp"
	"github.com/oxhq/structgrep/internal/scan"
	"github.com/oxhq/structgrep/pkg/lang"
	_ "github.com/oxhq/structgrep/pkg/lang/golang"
	"github.com/oxhq/structgrep/pkg/rule"
)

func frame(t *testing.T, msg any) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(data), data))
}

func testEngine(t *testing.T) *scan.Engine {
	t.Helper()
	yamlSrc := `
id: no-fmt-println
message: avoid fmt.Println
severity: warning
language: go
rule:
  pattern: fmt.Println($$$ARGS)
`
	cfgs, err := config.LoadRuleConfigs([]byte(yamlSrc), lang.Default, rule.NewRegistry())
	require.NoError(t, err)
	return &scan.Engine{Configs: cfgs, Languages: lang.Default}
}

func TestServeInitializeAndPublishDiagnostics(t *testing.T) {
	var in bytes.Buffer
	in.Write(frame(t, map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": map[string]any{},
	}))
	in.Write(frame(t, map[string]any{
		"jsonrpc": "2.0", "method": "textDocument/didOpen",
		"params": map[string]any{
			"textDocument": map[string]any{
				"uri":        "file:///tmp/main.go",
				"languageId": "go",
				"version":    1,
				"text":       "package main\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n",
			},
		},
	}))
	in.Write(frame(t, map[string]any{"jsonrpc": "2.0", "method": "exit"}))

	var out bytes.Buffer
	srv := lsp.NewServer(testEngine(t), &in, &out)
	require.NoError(t, srv.Serve(context.Background()))
	require.NotEmpty(t, srv.SessionID())

	got := out.String()
	require.Contains(t, got, `"textDocumentSync":1`)
	require.Contains(t, got, "textDocument/publishDiagnostics")
	require.Contains(t, got, `"code":"no-fmt-println"`)
	require.Contains(t, got, "avoid fmt.Println")
}

func TestServeDidCloseClearsDiagnostics(t *testing.T) {
	var in bytes.Buffer
	in.Write(frame(t, map[string]any{
		"jsonrpc": "2.0", "method": "textDocument/didClose",
		"params": map[string]any{
			"textDocument": map[string]any{"uri": "file:///tmp/main.go"},
		},
	}))
	in.Write(frame(t, map[string]any{"jsonrpc": "2.0", "method": "exit"}))

	var out bytes.Buffer
	srv := lsp.NewServer(testEngine(t), &in, &out)
	require.NoError(t, srv.Serve(context.Background()))
	require.Contains(t, out.String(), `"diagnostics":[]`)
}

func TestServeUnknownMethod(t *testing.T) {
	var in bytes.Buffer
	in.Write(frame(t, map[string]any{"jsonrpc": "2.0", "id": 9, "method": "workspace/symbol"}))

	var out bytes.Buffer
	srv := lsp.NewServer(testEngine(t), &in, &out)
	require.NoError(t, srv.Serve(context.Background()))
	require.Contains(t, out.String(), `"code":-32601`)
}
