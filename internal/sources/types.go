// Package sources implements the server manager: a registry that owns a
// set of MCP clients keyed by source kind, drives their lifecycle, and
// fans out search across all connected sources.
package sources

import "github.com/HyphaGroup/sourcehub/internal/mcpclient"

// Kind is a closed enumeration of supported backends. It is the key into
// every per-source map the manager holds.
type Kind string

const (
	KindNotion      Kind = "notion"
	KindObsidian    Kind = "obsidian"
	KindNeo4j       Kind = "neo4j"
	KindGoogleDrive Kind = "google_drive"
	KindGitHub      Kind = "github"
)

// AllKinds lists every supported source kind in a fixed order. NewManager
// uses it to give every kind an initial status; config validation uses it
// to recognize known kinds.
var AllKinds = []Kind{KindNotion, KindObsidian, KindNeo4j, KindGoogleDrive, KindGitHub}

// SourceConfig is one record per Kind, pushed in by the UI collaborator and
// replaced atomically per kind via UpdateConfig.
type SourceConfig struct {
	Kind    Kind
	Enabled bool

	Command string   // program to exec; empty means "not configured"
	Args    []string // ordered
	Env     map[string]string

	// Containerized routes this source's transport through Docker instead
	// of a local process, using Image as the container image.
	Containerized bool
	Image         string

	// MaxRequestsPerSecond, if non-zero, bounds the rate of tools/call
	// invocations issued against this source (see mcpclient rate limiter).
	MaxRequestsPerSecond float64
}

// incomplete reports the spec's invariant: enabled with no command (or no
// args slot) never partially arms a source.
func (c SourceConfig) incomplete() bool {
	return c.Enabled && (c.Command == "" || c.Args == nil)
}

// Status is a tagged variant, one per Kind. Ordering is not cyclic; see
// the manager's state machine.
type Status struct {
	state   statusState
	n       int
	message string
}

type statusState int

const (
	StateDisconnected statusState = iota
	StateConnecting
	StateConnected
	StateError
)

func Disconnected() Status              { return Status{state: StateDisconnected} }
func Connecting() Status                { return Status{state: StateConnecting} }
func Connected(toolCount int) Status    { return Status{state: StateConnected, n: toolCount} }
func ErrorStatus(message string) Status { return Status{state: StateError, message: message} }

// State returns the tag of the status variant.
func (s Status) State() statusState { return s.state }

// ToolCount is meaningful only when State() == StateConnected.
func (s Status) ToolCount() int { return s.n }

// Message is meaningful only when State() == StateError.
func (s Status) Message() string { return s.message }

func (s Status) String() string {
	switch s.state {
	case StateConnected:
		return "connected"
	case StateConnecting:
		return "connecting"
	case StateError:
		return "error: " + s.message
	default:
		return "disconnected"
	}
}

// Tag returns the bare state name, without the error message, for use as a
// metrics label value.
func (s Status) Tag() string {
	switch s.state {
	case StateConnected:
		return "connected"
	case StateConnecting:
		return "connecting"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// Tool re-exports the client-level tool description for callers that only
// import the sources package.
type Tool = mcpclient.Tool

// ToolResult re-exports the client-level tool result.
type ToolResult = mcpclient.ToolResult

// SearchResult is one normalized, scored hit from a fan-out search.
type SearchResult struct {
	ID        string
	Source    Kind
	Title     string
	Snippet   string // truncated to <=200 chars
	URL       string
	Relevance float64
	Metadata  map[string]string
}

// maxSnippetLength is normative per the spec: "the hard-coded 200-character
// snippet length is normative."
const maxSnippetLength = 200
