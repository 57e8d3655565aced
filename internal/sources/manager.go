package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HyphaGroup/sourcehub/internal/history"
	"github.com/HyphaGroup/sourcehub/internal/logger"
	"github.com/HyphaGroup/sourcehub/internal/mcpclient"
	"github.com/HyphaGroup/sourcehub/internal/metrics"
	"github.com/HyphaGroup/sourcehub/internal/sources/adapter"
	"github.com/HyphaGroup/sourcehub/internal/transport"
)

// Manager is the registry that owns a set of MCP clients keyed by source
// kind, drives their lifecycle, aggregates status, and implements the
// fan-out search. It is the single "UI-affinity" serialization domain:
// every mutation of configs/clients/statuses/tools happens under mu.
type Manager struct {
	mu       sync.RWMutex
	configs  map[Kind]SourceConfig
	clients  map[Kind]*mcpclient.Client
	statuses map[Kind]Status
	tools    map[Kind][]Tool

	// toolsFetchedAt records when each kind's tool cache was last
	// refreshed, for housekeeping's staleness check only.
	toolsFetchedAt map[Kind]time.Time

	// connectingSince records when each kind most recently entered the
	// Connecting state, for housekeeping's stuck-in-Connecting check only.
	connectingSince map[Kind]time.Time

	adapters map[Kind]adapter.Adapter

	// stderrTails holds the trailing stderr lines from each connected
	// kind's child, for enriching error messages. Cleared on StopServer.
	stderrTails map[Kind]*stderrTail

	history *history.Store // optional; nil disables history recording

	dockerSpawners   map[string]*transport.DockerSpawner
	dockerSpawnersMu sync.Mutex

	// spawnerFactory picks the transport.Spawner for a config. Overridable
	// by tests to avoid spawning real processes or containers.
	spawnerFactory func(cfg SourceConfig) (transport.Spawner, error)
}

// NewManager constructs a Manager with every kind initialized to
// Disconnected and no config. hist may be nil to disable history
// recording (an optional add-on, not part of the core contract).
func NewManager(hist *history.Store) *Manager {
	m := &Manager{
		configs:         make(map[Kind]SourceConfig),
		clients:         make(map[Kind]*mcpclient.Client),
		statuses:        make(map[Kind]Status),
		tools:           make(map[Kind][]Tool),
		toolsFetchedAt:  make(map[Kind]time.Time),
		connectingSince: make(map[Kind]time.Time),
		dockerSpawners:  make(map[string]*transport.DockerSpawner),
		stderrTails:     make(map[Kind]*stderrTail),
		history:         hist,
	}
	m.spawnerFactory = m.defaultSpawnerFor
	for _, k := range AllKinds {
		m.statuses[k] = Disconnected()
	}
	m.adapters = map[Kind]adapter.Adapter{
		KindNotion:      adapter.Notion{},
		KindObsidian:    adapter.Obsidian{},
		KindNeo4j:       adapter.Neo4j{},
		KindGoogleDrive: adapter.GoogleDrive{},
		KindGitHub:      adapter.GitHub{},
	}
	return m
}

// UpdateConfig replaces the config for cfg.Kind. It never touches a
// running client; the new config takes effect on the next StartServer.
func (m *Manager) UpdateConfig(cfg SourceConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.Kind] = cfg
}

// Statuses returns a snapshot of every kind's current status.
func (m *Manager) Statuses() map[Kind]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Kind]Status, len(m.statuses))
	for k, v := range m.statuses {
		out[k] = v
	}
	return out
}

// Tools returns a snapshot of every kind's cached tool list.
func (m *Manager) Tools() map[Kind][]Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Kind][]Tool, len(m.tools))
	for k, v := range m.tools {
		cp := make([]Tool, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func (m *Manager) setStatus(kind Kind, status Status) {
	m.mu.Lock()
	m.statuses[kind] = status
	if status.State() == StateConnecting {
		if _, already := m.connectingSince[kind]; !already {
			m.connectingSince[kind] = time.Now()
		}
	} else {
		delete(m.connectingSince, kind)
	}
	m.mu.Unlock()
	metrics.SetSourceStatus(string(kind), status.Tag())
	metrics.SetSourcesConnected(m.countConnected())
}

// connectingDuration reports how long kind has been continuously in the
// Connecting state. ok is false if kind is not currently Connecting.
func (m *Manager) connectingDuration(kind Kind) (d time.Duration, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	since, ok := m.connectingSince[kind]
	if !ok {
		return 0, false
	}
	return time.Since(since), true
}

// toolCacheAge reports how long ago kind's tool cache was last refreshed.
// ok is false if kind has never had a successful StartServer.
func (m *Manager) toolCacheAge(kind Kind) (age time.Duration, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fetchedAt, ok := m.toolsFetchedAt[kind]
	if !ok {
		return 0, false
	}
	return time.Since(fetchedAt), true
}

func (m *Manager) countConnected() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.statuses {
		if s.State() == StateConnected {
			n++
		}
	}
	return n
}

// StartServer implements the spec's startServer transition: Disconnected
// or Error -> Connecting -> Connected(n) | Error(msg). It never returns
// leaving the kind in Connecting.
func (m *Manager) StartServer(kind Kind) error {
	m.mu.RLock()
	cfg, ok := m.configs[kind]
	m.mu.RUnlock()

	if !ok || !cfg.Enabled || cfg.incomplete() {
		m.setStatus(kind, ErrorStatus("Not configured"))
		return Sanitize(fmt.Errorf("sources: %s not configured", kind), "start source")
	}

	m.setStatus(kind, Connecting())

	spawner, err := m.spawnerFactory(cfg)
	if err != nil {
		m.setStatus(kind, ErrorStatus(err.Error()))
		return Sanitize(err, "start source")
	}

	tr, err := spawner.Spawn(cfg.Command, cfg.Args, sanitizedEnv(cfg.Env))
	if err != nil {
		m.setStatus(kind, ErrorStatus(err.Error()))
		return Sanitize(err, "start source")
	}

	tail := newStderrTail(tr.Stderr())
	m.mu.Lock()
	m.stderrTails[kind] = tail
	m.mu.Unlock()

	client := mcpclient.New(tr)
	if cfg.MaxRequestsPerSecond > 0 {
		client.SetRateLimiter(mcpclient.NewRateLimiter(cfg.MaxRequestsPerSecond, int(cfg.MaxRequestsPerSecond)+1), string(kind))
	}

	if _, err := client.Initialize(); err != nil {
		_ = client.Disconnect()
		m.setStatus(kind, ErrorStatus(m.annotateWithStderr(kind, err.Error())))
		return Sanitize(err, "start source")
	}

	toolList, err := client.ListTools()
	if err != nil {
		_ = client.Disconnect()
		m.setStatus(kind, ErrorStatus(m.annotateWithStderr(kind, err.Error())))
		return Sanitize(err, "start source")
	}

	m.mu.Lock()
	m.clients[kind] = client
	m.tools[kind] = toolList
	m.toolsFetchedAt[kind] = time.Now()
	m.mu.Unlock()

	m.setStatus(kind, Connected(len(toolList)))
	return nil
}

// sanitizedEnv drops empty-string values so an unset secret is never
// forwarded to the child. An empty value does not by itself make the
// source "Not configured"; the child is still started without it.
func sanitizedEnv(env map[string]string) map[string]string {
	if len(env) == 0 {
		return env
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func (m *Manager) defaultSpawnerFor(cfg SourceConfig) (transport.Spawner, error) {
	if !cfg.Containerized {
		return transport.LocalSpawner{}, nil
	}
	if cfg.Image == "" {
		return nil, fmt.Errorf("containerized source %s has no image configured", cfg.Kind)
	}

	m.dockerSpawnersMu.Lock()
	defer m.dockerSpawnersMu.Unlock()
	if s, ok := m.dockerSpawners[cfg.Image]; ok {
		return s, nil
	}
	s, err := transport.NewDockerSpawner(cfg.Image)
	if err != nil {
		return nil, err
	}
	m.dockerSpawners[cfg.Image] = s
	return s, nil
}

// StopServer disconnects kind's client if present, clears cached tools,
// and sets Disconnected.
func (m *Manager) StopServer(kind Kind) error {
	m.mu.Lock()
	client, ok := m.clients[kind]
	delete(m.clients, kind)
	delete(m.tools, kind)
	delete(m.toolsFetchedAt, kind)
	delete(m.stderrTails, kind)
	m.mu.Unlock()

	if ok {
		if err := client.Disconnect(); err != nil {
			logger.Error("sources: error disconnecting %s: %v", kind, err)
		}
	}

	m.setStatus(kind, Disconnected())
	return nil
}

// StartAllEnabled starts every enabled, configured kind concurrently.
// Ordering across kinds is not guaranteed.
func (m *Manager) StartAllEnabled() {
	m.mu.RLock()
	kinds := make([]Kind, 0, len(m.configs))
	for k, cfg := range m.configs {
		if cfg.Enabled {
			kinds = append(kinds, k)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, k := range kinds {
		wg.Add(1)
		go func(kind Kind) {
			defer wg.Done()
			if err := m.StartServer(kind); err != nil {
				logger.Error("sources: failed to start %s: %v", kind, err)
			}
		}(k)
	}
	wg.Wait()
}

// StopAll stops every currently running client.
func (m *Manager) StopAll() {
	m.mu.RLock()
	kinds := make([]Kind, 0, len(m.clients))
	for k := range m.clients {
		kinds = append(kinds, k)
	}
	m.mu.RUnlock()

	for _, k := range kinds {
		_ = m.StopServer(k)
	}
}

// CallTool dispatches to kind's client, recording history and metrics.
func (m *Manager) CallTool(kind Kind, name string, arguments map[string]any) (*ToolResult, error) {
	m.mu.RLock()
	client, ok := m.clients[kind]
	m.mu.RUnlock()
	if !ok {
		return nil, &ServerNotFound{DisplayName: string(kind)}
	}

	args, err := mcpclient.MarshalArgs(arguments)
	if err != nil {
		return nil, Sanitize(fmt.Errorf("sources: marshal arguments: %w", err), "call tool")
	}

	start := time.Now()
	result, err := client.CallTool(name, args)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordToolCall(string(kind), name, status, duration.Seconds())
	m.recordHistory(&history.Entry{
		Kind: string(kind), Operation: "tool_call", ToolName: name,
		Success: err == nil, ErrorMessage: errMessage(err),
		DurationMs: duration.Milliseconds(),
	})

	return result, Sanitize(err, "call tool")
}

// SearchAcrossSources fans out a search across every currently-connected
// client, aggregates all returned results, and sorts them by relevance
// descending. Per-source failures are logged and swallowed.
func (m *Manager) SearchAcrossSources(query string) []SearchResult {
	start := time.Now()

	m.mu.RLock()
	kinds := make([]Kind, 0, len(m.clients))
	for k := range m.clients {
		kinds = append(kinds, k)
	}
	m.mu.RUnlock()

	type partial struct {
		results []SearchResult
	}
	resultsCh := make(chan partial, len(kinds))

	var wg sync.WaitGroup
	for _, k := range kinds {
		wg.Add(1)
		go func(kind Kind) {
			defer wg.Done()
			hits, err := m.searchOne(kind, query)
			if err != nil {
				logger.Error("sources: search on %s failed: %v", kind, err)
				resultsCh <- partial{}
				return
			}
			resultsCh <- partial{results: hits}
		}(k)
	}
	wg.Wait()
	close(resultsCh)

	var merged []SearchResult
	for p := range resultsCh {
		merged = append(merged, p.results...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})

	metrics.RecordSearch(time.Since(start).Seconds(), len(merged))

	return merged
}

// searchOne dispatches query to kind's client and records one HistoryEntry
// for this source's dispatch, independent of the other sources fanned out
// to by SearchAcrossSources.
func (m *Manager) searchOne(kind Kind, query string) ([]SearchResult, error) {
	start := time.Now()
	hits, err := m.searchOneDispatch(kind, query)

	m.recordHistory(&history.Entry{
		Kind: string(kind), Operation: "search", Query: query,
		ResultCount: len(hits), Success: err == nil, ErrorMessage: errMessage(err),
		DurationMs: time.Since(start).Milliseconds(),
	})

	return hits, err
}

func (m *Manager) searchOneDispatch(kind Kind, query string) ([]SearchResult, error) {
	ad, ok := m.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter for %s", kind)
	}

	m.mu.RLock()
	client, ok := m.clients[kind]
	m.mu.RUnlock()
	if !ok {
		return nil, &ServerNotFound{DisplayName: string(kind)}
	}

	queryArgs, err := ad.BuildQuery(query)
	if err != nil {
		return nil, err
	}
	args, err := adapter.BuildArguments(queryArgs)
	if err != nil {
		return nil, err
	}

	toolResult, err := client.CallTool(ad.ToolName(), args)
	if err != nil {
		return nil, err
	}
	if toolResult.IsError {
		return nil, fmt.Errorf("tool %s returned an error result", ad.ToolName())
	}

	hits := ad.Parse(toolResult.Content, query)
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, SearchResult{
			ID:        uuid.New().String(),
			Source:    kind,
			Title:     h.Title,
			Snippet:   h.Snippet,
			URL:       h.URL,
			Relevance: h.Score,
			Metadata:  h.Metadata,
		})
	}
	return out, nil
}

func (m *Manager) recordHistory(e *history.Entry) {
	if m.history == nil {
		return
	}
	if err := m.history.Record(e); err != nil {
		logger.Error("sources: failed to record history: %v", err)
	}
}

// History returns read access to the audit trail, most recent first. It
// fails if no history.Store was configured (hist was nil at NewManager) or
// if ctx is already canceled.
func (m *Manager) History(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.history == nil {
		return nil, fmt.Errorf("sources: history recording is disabled")
	}

	entries, err := m.history.List(filter)
	if err != nil {
		return nil, Sanitize(err, "read history")
	}

	out := make([]history.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	return out, nil
}

// annotateWithStderr appends kind's trailing stderr lines to a failure
// message, when any were captured, so a child's own diagnostic output
// reaches the Error(msg) status instead of being silently discarded.
func (m *Manager) annotateWithStderr(kind Kind, message string) string {
	m.mu.RLock()
	tail, ok := m.stderrTails[kind]
	m.mu.RUnlock()
	if !ok {
		return message
	}
	if lines := tail.Snapshot(); lines != "" {
		return message + "\nstderr: " + lines
	}
	return message
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
