// Package lsp is a minimal Language Server Protocol shim over the scan
// engine: it speaks Content-Length-framed JSON-RPC on stdio, tracks open
// documents with full-text sync, and publishes one diagnostic per rule
// finding whenever a document is opened or edited.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oxhq/structgrep/internal/config"
	"github.com/oxhq/structgrep/internal/scan"
)

// Server handles LSP communication over a reader/writer pair (stdio in
// production, in-memory pipes in tests).
type Server struct {
	sessionID string
	engine    *scan.Engine

	reader  *bufio.Reader
	writer  *bufio.Writer
	writeMu sync.Mutex

	docMu sync.Mutex
	docs  map[string]*document

	shutdown bool

	debugLog func(format string, args ...any)
}

type document struct {
	text    string
	version int
}

// NewServer wires an LSP shim around the given engine. Every session gets a
// fresh identifier so log lines from concurrent editors stay attributable.
func NewServer(engine *scan.Engine, r io.Reader, w io.Writer) *Server {
	return &Server{
		sessionID: uuid.NewString(),
		engine:    engine,
		reader:    bufio.NewReader(r),
		writer:    bufio.NewWriter(w),
		docs:      make(map[string]*document),
		debugLog:  func(string, ...any) {},
	}
}

// SessionID returns this server's session identifier.
func (s *Server) SessionID() string { return s.sessionID }

// SetDebugLog installs a logging callback for protocol tracing.
func (s *Server) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		s.debugLog = fn
	}
}

// Serve reads framed messages until EOF or an `exit` notification. Requests
// get responses; notifications are dispatched and may trigger server-pushed
// diagnostics.
func (s *Server) Serve(ctx context.Context) error {
	for {
		msg, err := s.readMessage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lsp: reading message: %w", err)
		}

		var req RequestMessage
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(nil, CodeParseError, err.Error())
			continue
		}
		s.debugLog("lsp[%s] <- %s", s.sessionID, req.Method)

		if req.Method == "exit" {
			return nil
		}
		if req.ID == nil {
			s.handleNotification(ctx, req)
			continue
		}
		s.handleRequest(ctx, req)
	}
}

func (s *Server) handleRequest(ctx context.Context, req RequestMessage) {
	if s.shutdown {
		s.sendError(req.ID, CodeInvalidRequest, "server is shutting down")
		return
	}
	switch req.Method {
	case "initialize":
		s.sendResult(req.ID, initializeResult{
			Capabilities: serverCapabilities{TextDocumentSync: 1},
			ServerInfo:   serverInfo{Name: "structgrep-lsp", Version: "0.1.0"},
		})
	case "shutdown":
		s.shutdown = true
		s.sendResult(req.ID, nil)
	default:
		s.sendError(req.ID, CodeMethodNotFound, "unsupported method "+req.Method)
	}
}

func (s *Server) handleNotification(ctx context.Context, req RequestMessage) {
	switch req.Method {
	case "initialized":
	case "textDocument/didOpen":
		var p didOpenParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return
		}
		s.docMu.Lock()
		s.docs[p.TextDocument.URI] = &document{text: p.TextDocument.Text, version: p.TextDocument.Version}
		s.docMu.Unlock()
		s.publishDiagnostics(ctx, p.TextDocument.URI, p.TextDocument.Text)
	case "textDocument/didChange":
		var p didChangeParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return
		}
		if len(p.ContentChanges) == 0 {
			return
		}
		// Full sync: the last change carries the complete new text.
		text := p.ContentChanges[len(p.ContentChanges)-1].Text
		s.docMu.Lock()
		s.docs[p.TextDocument.URI] = &document{text: text, version: p.TextDocument.Version}
		s.docMu.Unlock()
		s.publishDiagnostics(ctx, p.TextDocument.URI, text)
	case "textDocument/didClose":
		var p didCloseParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return
		}
		s.docMu.Lock()
		delete(s.docs, p.TextDocument.URI)
		s.docMu.Unlock()
		// Clear stale squiggles for the closed buffer.
		s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
			URI: p.TextDocument.URI, Diagnostics: []Diagnostic{},
		})
	}
}

func (s *Server) publishDiagnostics(ctx context.Context, uri, text string) {
	findings := s.engine.ScanSource(ctx, uriToPath(uri), []byte(text))
	diags := make([]Diagnostic, 0, len(findings))
	for _, f := range findings {
		diags = append(diags, Diagnostic{
			Range: Range{
				Start: Position{Line: f.Start.Row, Character: f.Start.Column},
				End:   Position{Line: f.End.Row, Character: f.End.Column},
			},
			Severity: severityCode(f.Severity),
			Code:     f.RuleID,
			Source:   "structgrep",
			Message:  f.Message,
		})
	}
	s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI: uri, Diagnostics: diags,
	})
}

func severityCode(s config.Severity) int {
	switch s {
	case config.SeverityError:
		return SeverityError
	case config.SeverityWarning:
		return SeverityWarning
	case config.SeverityInfo:
		return SeverityInformation
	case config.SeverityHint:
		return SeverityHint
	default:
		return SeverityWarning
	}
}

// uriToPath converts a file:// URI to a filesystem path; anything else is
// passed through (the engine only needs the extension).
func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return u.Path
}

func (s *Server) sendResult(id any, result any) {
	s.writeFrame(ResponseMessage{JSONRPC: JSONRPCVersion, ID: id, Result: result})
}

func (s *Server) sendError(id any, code int, msg string) {
	s.writeFrame(ResponseMessage{JSONRPC: JSONRPCVersion, ID: id, Error: &ErrorObject{Code: code, Message: msg}})
}

func (s *Server) sendNotification(method string, params any) {
	s.writeFrame(NotificationMessage{JSONRPC: JSONRPCVersion, Method: method, Params: params})
}

func (s *Server) writeFrame(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.debugLog("lsp[%s] marshal error: %v", s.sessionID, err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fmt.Fprintf(s.writer, "Content-Length: %d\r\n\r\n", len(data))
	s.writer.Write(data)
	s.writer.Flush()
}

// readMessage consumes one Content-Length-framed JSON-RPC payload.
func (s *Server) readMessage() ([]byte, error) {
	contentLength := -1
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("bad Content-Length: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, errors.New("missing Content-Length header")
	}
	buf := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
