package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/HyphaGroup/sourcehub/internal/transport"
	"github.com/HyphaGroup/sourcehub/internal/wire"
)

// defaultTimeout bounds a single RPC round-trip; the spec leaves this as
// an implementation choice ("implementations should apply a bounded
// default (e.g., 30 s)").
const defaultTimeout = 30 * time.Second

// Tool describes one operation advertised by a connected MCP server.
// InputSchema is always non-nil: a tool that omits inputSchema gets the
// default open object schema, the same fallback the teacher's
// registerOublietteTool applies before handing a schema to the SDK.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// decodeInputSchema converts the raw MCP inputSchema value into a
// jsonschema.Schema by round-tripping through encoding/json, the same
// marshal-then-unmarshal conversion the teacher uses before registering a
// caller tool with the MCP SDK.
func decodeInputSchema(raw wire.Value) (*jsonschema.Schema, error) {
	data, err := json.Marshal(raw.Raw())
	if err != nil {
		return nil, err
	}
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(data, schema); err != nil {
		return nil, err
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}

// ToolResult is the flattened outcome of a tools/call.
type ToolResult struct {
	Content string
	IsError bool
}

// Client is a per-server MCP actor. It is single-use: after Disconnect it
// cannot be re-initialized, and a new Client must be constructed.
type Client struct {
	mux *multiplexer
	tr  transport.Transport

	mu           sync.Mutex
	initialized  bool
	disconnected bool

	limiter    *RateLimiter
	limiterKey string
}

// SetRateLimiter attaches an optional per-key rate limiter that CallTool
// will block on before issuing each tools/call. Passing a nil limiter
// disables rate limiting (the default).
func (c *Client) SetRateLimiter(limiter *RateLimiter, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limiter = limiter
	c.limiterKey = key
}

// clientInfo identifies this implementation to the peer during handshake.
type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

const (
	clientName    = "sourcehub"
	clientVersion = "1.0.0"
)

// New wraps an already-spawned transport. Initialize must be called
// exactly once before ListTools/CallTool are usable.
func New(tr transport.Transport) *Client {
	c := &Client{tr: tr, mux: newMultiplexer(tr)}
	go c.mux.readLoop()
	return c
}

// Capabilities mirrors the MCP handshake result's capabilities map; only
// Tools is consumed by the manager, the rest is retained opaquely.
type Capabilities struct {
	Tools     *wire.Value
	Resources *wire.Value
	Prompts   *wire.Value
}

// Initialize performs the MCP handshake exactly once. On success it sends
// notifications/initialized and marks the client ready.
func (c *Client) Initialize() (*Capabilities, error) {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil, fmt.Errorf("mcpclient: initialize already called")
	}
	c.mu.Unlock()

	params := wire.NewValue(map[string]any{
		"protocolVersion": wire.ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
	})

	result, err := c.call("initialize", &params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &ResponseParseError{Cause: fmt.Errorf("initialize: empty result")}
	}

	caps := &Capabilities{}
	if v := result.Get("capabilities"); !v.IsNull() {
		if tools := v.Get("tools"); !tools.IsNull() {
			t := tools
			caps.Tools = &t
		}
		if resources := v.Get("resources"); !resources.IsNull() {
			r := resources
			caps.Resources = &r
		}
		if prompts := v.Get("prompts"); !prompts.IsNull() {
			p := prompts
			caps.Prompts = &p
		}
	}

	if err := c.mux.notify("notifications/initialized", nil); err != nil {
		// Many servers don't reply to (or care about) this notification;
		// a write failure here still means the transport is broken.
		return nil, &ConnectionFailed{Message: err.Error()}
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()

	return caps, nil
}

// ListTools sends tools/list and returns the tools array from the result
// (empty if absent).
func (c *Client) ListTools() ([]Tool, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}

	result, err := c.call("tools/list", nil)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	arr, ok := result.Get("tools").Array()
	if !ok {
		return nil, nil
	}

	tools := make([]Tool, 0, len(arr))
	for _, item := range arr {
		name, ok := item.Get("name").String()
		if !ok || name == "" {
			continue
		}
		desc, _ := item.Get("description").String()
		t := Tool{Name: name, Description: desc}

		schema := item.Get("inputSchema")
		decoded, err := decodeInputSchema(schema)
		if err != nil {
			decoded = &jsonschema.Schema{Type: "object"}
		}
		t.InputSchema = decoded

		tools = append(tools, t)
	}
	return tools, nil
}

// CallTool sends tools/call with {name, arguments}. If the response
// carries an error, it fails with ServerError. Otherwise it decodes
// {content: [{type, text?}...], isError?} and flattens text content with
// newlines, dropping non-text items.
func (c *Client) CallTool(name string, arguments map[string]wire.Value) (*ToolResult, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	limiter, key := c.limiter, c.limiterKey
	c.mu.Unlock()
	if limiter != nil {
		if err := limiter.Wait(context.Background(), key); err != nil {
			return nil, &ConnectionFailed{Message: "rate limit wait: " + err.Error()}
		}
	}

	params := wire.StringArguments(map[string]wire.Value{
		"name":      wire.StringValue(name),
		"arguments": wire.StringArguments(arguments),
	})

	result, err := c.call("tools/call", &params)
	if err != nil {
		var se *ServerError
		if asServerError(err, &se) {
			return nil, se
		}
		return nil, err
	}
	if result == nil {
		return &ToolResult{Content: "", IsError: true}, nil
	}

	isError, _ := result.Get("isError").Bool()
	content, ok := result.Get("content").Array()
	if !ok {
		return &ToolResult{Content: "", IsError: isError}, nil
	}

	var parts []string
	for _, item := range content {
		typ, _ := item.Get("type").String()
		if typ != "text" {
			continue
		}
		text, ok := item.Get("text").String()
		if !ok {
			continue
		}
		parts = append(parts, text)
	}

	return &ToolResult{Content: strings.Join(parts, "\n"), IsError: isError}, nil
}

// Disconnect terminates the child via the transport. Idempotent;
// subsequent calls on this client fail with NotConnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return nil
	}
	c.disconnected = true
	c.mu.Unlock()
	return c.tr.Shutdown()
}

func (c *Client) requireReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return NotConnected{}
	}
	if !c.initialized {
		return NotConnected{}
	}
	return nil
}

// call submits a request and blocks for its matching response or the
// default RPC timeout, whichever comes first.
func (c *Client) call(method string, params *wire.Value) (*wire.Value, error) {
	_, ch, err := c.mux.submit(method, params)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	case <-time.After(defaultTimeout):
		return nil, &ConnectionFailed{Message: "timed out waiting for response"}
	}
}

func asServerError(err error, target **ServerError) bool {
	se, ok := err.(*ServerError)
	if ok {
		*target = se
	}
	return ok
}

// marshalArgs is a convenience for adapters building tools/call arguments
// from plain Go values rather than hand-built wire.Value trees.
func marshalArgs(v map[string]any) (map[string]wire.Value, error) {
	out := make(map[string]wire.Value, len(v))
	for k, val := range v {
		data, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		var wv wire.Value
		if err := json.Unmarshal(data, &wv); err != nil {
			return nil, err
		}
		out[k] = wv
	}
	return out, nil
}

// MarshalArgs exposes marshalArgs for callers outside the package (the
// source adapters) building tools/call arguments from plain Go maps.
func MarshalArgs(v map[string]any) (map[string]wire.Value, error) {
	return marshalArgs(v)
}
