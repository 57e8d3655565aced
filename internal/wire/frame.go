package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// ProtocolVersion is the MCP protocol version this client speaks.
const ProtocolVersion = "2024-11-05"

// Request is an outgoing JSON-RPC call expecting a Response.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  *Value `json:"params,omitempty"`
}

// NewRequest builds a Request with the jsonrpc version field set.
func NewRequest(id int64, method string, params *Value) Request {
	return Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}

// Notification is an outgoing JSON-RPC call with no id, expecting no reply.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  *Value `json:"params,omitempty"`
}

// NewNotification builds a Notification with the jsonrpc version field set.
func NewNotification(method string, params *Value) Notification {
	return Notification{JSONRPC: "2.0", Method: method, Params: params}
}

// RPCError is the `error` member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *Value `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// InboundFrame is a decoded line from the child's stdout. ID is nil when
// the frame is a notification from the server. Exactly one of Result or
// Error is set when ID is non-nil and the frame parsed as a response.
type InboundFrame struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      *int64    `json:"id"`
	Method  string    `json:"method,omitempty"`
	Params  *Value    `json:"params,omitempty"`
	Result  *Value    `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// IsNotification reports whether this frame carries no id.
func (f *InboundFrame) IsNotification() bool { return f.ID == nil }

// Encode serializes v as a single line terminated by \n and writes it to w
// in one call, matching the spec's "one frame per write" requirement.
func Encode(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: encode frame: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// FrameReader decodes newline-delimited JSON-RPC frames from a stream.
// It tolerates malformed lines by reporting them through the error return
// of Next without terminating the underlying scan.
type FrameReader struct {
	scanner *bufio.Scanner
}

// NewFrameReader wraps r with a line scanner sized to handle large tool
// payloads (matches the 1 MiB buffer convention used elsewhere in MCP
// stdio clients in this codebase).
func NewFrameReader(r io.Reader) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &FrameReader{scanner: scanner}
}

// Next reads the next non-empty line and decodes it. It returns
// (nil, nil, false) when the stream is exhausted. A decode error on a
// given line is returned as (nil, err, true) so the caller can log and
// continue reading rather than aborting the loop.
func (r *FrameReader) Next() (frame *InboundFrame, decodeErr error, more bool) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f InboundFrame
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, fmt.Errorf("wire: decode line: %w", err), true
		}
		return &f, nil, true
	}
	return nil, nil, false
}
