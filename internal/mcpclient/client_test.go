package mcpclient

import (
	"bufio"
	"encoding/json"
	"io"
	"testing"
	"time"
)

// pipeTransport is an in-memory transport.Transport backed by io.Pipe,
// letting tests drive a fake MCP server without spawning a real process.
type pipeTransport struct {
	clientStdin  io.WriteCloser // what the client writes to (one end of a pipe)
	serverStdin  io.Reader      // what the mock server reads from (other end)
	serverStdout io.WriteCloser // what the mock server writes to
	clientStdout io.Reader      // what the client reads from
}

func newPipeTransport() *pipeTransport {
	cr, cw := io.Pipe() // client -> server (client writes, server reads)
	sr, sw := io.Pipe() // server -> client (server writes, client reads)
	return &pipeTransport{
		clientStdin:  cw,
		serverStdin:  cr,
		serverStdout: sw,
		clientStdout: sr,
	}
}

func (p *pipeTransport) Stdin() io.WriteCloser { return p.clientStdin }
func (p *pipeTransport) Stdout() io.Reader     { return p.clientStdout }
func (p *pipeTransport) Stderr() io.Reader     { return discardReader{} }
func (p *pipeTransport) Shutdown() error {
	_ = p.clientStdin.Close()
	return nil
}

type discardReader struct{}

func (discardReader) Read(p []byte) (int, error) { return 0, io.EOF }

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// readRequest reads and decodes one line the client wrote to the mock
// server's stdin.
func readRequest(t *testing.T, r *bufio.Reader) rpcEnvelope {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	var env rpcEnvelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return env
}

func writeLine(t *testing.T, w io.Writer, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestInitializeHappyPath(t *testing.T) {
	tr := newPipeTransport()
	serverIn := bufio.NewReader(tr.serverStdin)

	client := New(tr)

	done := make(chan error, 1)
	go func() {
		_, err := client.Initialize()
		done <- err
	}()

	req := readRequest(t, serverIn)
	if req.Method != "initialize" {
		t.Fatalf("expected initialize, got %q", req.Method)
	}
	var params map[string]any
	_ = json.Unmarshal(req.Params, &params)
	if params["protocolVersion"] != "2024-11-05" {
		t.Fatalf("expected protocolVersion 2024-11-05, got %v", params["protocolVersion"])
	}

	writeLine(t, tr.serverStdout, map[string]any{
		"jsonrpc": "2.0",
		"id":      *req.ID,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      map[string]any{"name": "x", "version": "1"},
		},
	})

	// The transport is an unbuffered io.Pipe, so Initialize cannot return
	// until the notification it writes has been read.
	notif := readRequest(t, serverIn)
	if err := <-done; err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if notif.Method != "notifications/initialized" {
		t.Fatalf("expected notifications/initialized, got %q", notif.Method)
	}
	if notif.ID != nil {
		t.Fatalf("expected notification to carry no id")
	}
}

func TestConcurrentToolCallsCorrelateByID(t *testing.T) {
	tr := newPipeTransport()
	serverIn := bufio.NewReader(tr.serverStdin)
	client := New(tr)

	initDone := make(chan error, 1)
	go func() { _, err := client.Initialize(); initDone <- err }()
	req := readRequest(t, serverIn)
	writeLine(t, tr.serverStdout, map[string]any{
		"jsonrpc": "2.0", "id": *req.ID,
		"result": map[string]any{"capabilities": map[string]any{}},
	})
	readRequest(t, serverIn) // drain notifications/initialized
	if err := <-initDone; err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	type callResult struct {
		label string
		res   *ToolResult
		err   error
	}
	results := make(chan callResult, 3)
	for _, q := range []string{"a", "b", "c"} {
		q := q
		go func() {
			args, _ := MarshalArgs(map[string]any{"q": q})
			res, err := client.CallTool("search", args)
			results <- callResult{label: q, res: res, err: err}
		}()
	}

	reqs := make([]rpcEnvelope, 0, 3)
	for i := 0; i < 3; i++ {
		reqs = append(reqs, readRequest(t, serverIn))
	}

	// Reply out of order: c, a, b (matching S2's reply ordering).
	order := []int{2, 0, 1}
	for _, idx := range order {
		r := reqs[idx]
		var p struct {
			Arguments map[string]any `json:"arguments"`
		}
		_ = json.Unmarshal(r.Params, &p)
		q := p.Arguments["q"]
		writeLine(t, tr.serverStdout, map[string]any{
			"jsonrpc": "2.0", "id": *r.ID,
			"result": map[string]any{
				"content": []map[string]any{{"type": "text", "text": q}},
			},
		})
	}

	got := make(map[string]bool, 3)
	for i := 0; i < 3; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				t.Fatalf("CallTool(%s): %v", r.label, r.err)
			}
			if r.res.Content != r.label {
				t.Fatalf("expected content %q, got %q", r.label, r.res.Content)
			}
			got[r.label] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for call results")
		}
	}
	for _, q := range []string{"a", "b", "c"} {
		if !got[q] {
			t.Fatalf("missing result for %q", q)
		}
	}
}

func TestListToolsDecodesSchemaAndDefaultsMissingOnes(t *testing.T) {
	tr := newPipeTransport()
	serverIn := bufio.NewReader(tr.serverStdin)
	client := New(tr)

	initDone := make(chan error, 1)
	go func() { _, err := client.Initialize(); initDone <- err }()
	req := readRequest(t, serverIn)
	writeLine(t, tr.serverStdout, map[string]any{
		"jsonrpc": "2.0", "id": *req.ID,
		"result": map[string]any{"capabilities": map[string]any{}},
	})
	readRequest(t, serverIn)
	if err := <-initDone; err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	listDone := make(chan struct {
		tools []Tool
		err   error
	}, 1)
	go func() {
		tools, err := client.ListTools()
		listDone <- struct {
			tools []Tool
			err   error
		}{tools, err}
	}()

	listReq := readRequest(t, serverIn)
	if listReq.Method != "tools/list" {
		t.Fatalf("expected tools/list, got %q", listReq.Method)
	}
	writeLine(t, tr.serverStdout, map[string]any{
		"jsonrpc": "2.0", "id": *listReq.ID,
		"result": map[string]any{
			"tools": []any{
				map[string]any{
					"name": "search", "description": "full-text search",
					"inputSchema": map[string]any{"type": "object", "properties": map[string]any{"q": map[string]any{"type": "string"}}},
				},
				map[string]any{"name": "no-schema"},
			},
		},
	})

	result := <-listDone
	if result.err != nil {
		t.Fatalf("ListTools: %v", result.err)
	}
	if len(result.tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(result.tools))
	}
	if result.tools[0].InputSchema == nil || result.tools[0].InputSchema.Type != "object" {
		t.Fatalf("expected decoded object schema, got %+v", result.tools[0].InputSchema)
	}
	if result.tools[1].InputSchema == nil || result.tools[1].InputSchema.Type != "object" {
		t.Fatalf("expected a tool with no inputSchema to default to an object schema, got %+v", result.tools[1].InputSchema)
	}
}

func TestCallToolBeforeInitializeFailsNotConnected(t *testing.T) {
	tr := newPipeTransport()
	client := New(tr)

	_, err := client.CallTool("search", nil)
	if _, ok := err.(NotConnected); !ok {
		t.Fatalf("expected NotConnected, got %v (%T)", err, err)
	}
}

func TestChildCrashMidCallFailsConnectionFailed(t *testing.T) {
	tr := newPipeTransport()
	serverIn := bufio.NewReader(tr.serverStdin)
	client := New(tr)

	initDone := make(chan error, 1)
	go func() { _, err := client.Initialize(); initDone <- err }()
	req := readRequest(t, serverIn)
	writeLine(t, tr.serverStdout, map[string]any{
		"jsonrpc": "2.0", "id": *req.ID,
		"result": map[string]any{"capabilities": map[string]any{}},
	})
	readRequest(t, serverIn)
	if err := <-initDone; err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	callDone := make(chan error, 1)
	go func() {
		_, err := client.CallTool("search", nil)
		callDone <- err
	}()
	readRequest(t, serverIn) // drain the tools/call request

	// Simulate the child closing stdout.
	_ = tr.serverStdout.Close()

	select {
	case err := <-callDone:
		if _, ok := err.(*ConnectionFailed); !ok {
			t.Fatalf("expected ConnectionFailed, got %v (%T)", err, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call to fail")
	}

	_, err := client.CallTool("search", nil)
	if _, ok := err.(NotConnected); !ok {
		t.Fatalf("expected NotConnected after stream close, got %v (%T)", err, err)
	}
}
