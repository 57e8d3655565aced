package mcpclient

import (
	"sync"

	"github.com/HyphaGroup/sourcehub/internal/logger"
	"github.com/HyphaGroup/sourcehub/internal/transport"
	"github.com/HyphaGroup/sourcehub/internal/wire"
)

// awaiter is a one-shot completion channel delivering a decoded response or
// a terminal error for one outstanding request id.
type awaiter chan awaiterResult

type awaiterResult struct {
	result *wire.Value
	err    error
}

// multiplexer assigns request ids, parks awaiters, and dispatches incoming
// frames by id. It is the single serialization domain for one client's
// nextId, pending table, and stdin writer, matching the spec's per-client
// concurrency model.
type multiplexer struct {
	tr transport.Transport

	mu      sync.Mutex
	nextID  int64
	pending map[int64]awaiter
	closed  bool
}

func newMultiplexer(tr transport.Transport) *multiplexer {
	return &multiplexer{
		tr:      tr,
		nextID:  1,
		pending: make(map[int64]awaiter),
	}
}

// submit allocates an id, registers an awaiter, writes the request frame,
// and returns the awaiter for the caller to wait on. It never blocks on
// the response itself.
func (m *multiplexer) submit(method string, params *wire.Value) (int64, awaiter, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, nil, NotConnected{}
	}
	id := m.nextID
	m.nextID++
	ch := make(awaiter, 1)
	m.pending[id] = ch
	req := wire.NewRequest(id, method, params)
	err := wire.Encode(m.tr.Stdin(), req)
	if err != nil {
		delete(m.pending, id)
		m.mu.Unlock()
		return 0, nil, &ConnectionFailed{Message: err.Error()}
	}
	m.mu.Unlock()
	return id, ch, nil
}

// notify writes a notification frame directly without touching the
// pending table; it produces no future.
func (m *multiplexer) notify(method string, params *wire.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NotConnected{}
	}
	return wire.Encode(m.tr.Stdin(), wire.NewNotification(method, params))
}

// readLoop drains stdout line by line, completing the matching awaiter for
// each decoded response frame. It never terminates on a single frame's
// parse error; it only stops at EOF or an unrecoverable read error, at
// which point all outstanding awaiters are completed with ConnectionFailed.
func (m *multiplexer) readLoop() {
	reader := wire.NewFrameReader(m.tr.Stdout())
	for {
		frame, err, more := reader.Next()
		if !more {
			break
		}
		if err != nil {
			logger.Error("mcpclient: discarding malformed frame: %v", err)
			continue
		}
		if frame.IsNotification() {
			// Notifications are logged and dropped; see Open Questions.
			logger.Info("mcpclient: dropping notification %q", frame.Method)
			continue
		}

		m.mu.Lock()
		ch, ok := m.pending[*frame.ID]
		if ok {
			delete(m.pending, *frame.ID)
		}
		m.mu.Unlock()

		if !ok {
			logger.Error("mcpclient: response for unknown id %d dropped", *frame.ID)
			continue
		}

		if frame.Error != nil {
			ch <- awaiterResult{err: &ServerError{Code: frame.Error.Code, Message: frame.Error.Message}}
			continue
		}
		ch <- awaiterResult{result: frame.Result}
	}

	m.closeAll()
}

// closeAll completes every outstanding awaiter with ConnectionFailed and
// marks the multiplexer closed so further submit calls fail fast.
func (m *multiplexer) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, ch := range m.pending {
		ch <- awaiterResult{err: &ConnectionFailed{Message: "stream closed"}}
		delete(m.pending, id)
	}
}
