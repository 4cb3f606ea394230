package server

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wirechat/wirechat/core/protocol"
	"github.com/wirechat/wirechat/memory"
	"github.com/wirechat/wirechat/model"
	"github.com/wirechat/wirechat/observability"
)

// Conn owns one client connection's lifecycle. It is either idle or
// generating exactly one request; a valid client frame arriving mid-
// generation supersedes the in-flight request. All state transitions happen
// on the read loop goroutine, so the connection is logically single-threaded
// with respect to its own state. Outbound writes are serialized by writeMu
// because the generation goroutine and the read loop both emit frames.
type Conn struct {
	ws         *websocket.Conn
	sessionID  string
	store      *memory.Store
	invoker    model.Invoker
	observer   observability.Observer
	metrics    *metrics
	timeouts   timeouts
	limitBytes int64

	writeMu sync.Mutex

	// active is the in-flight request. Owned by the read loop; nil when idle.
	active *inflight
}

// inflight tracks one accepted request's cancellation handle. done is closed
// by the generation goroutine after it has emitted its terminal frame and
// finished any memory write, which is what makes supersession safe: waiting
// on done guarantees no stale delta can trail the next request's start frame
// and that memory writes for this session stay serialized.
type inflight struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func newConn(ws *websocket.Conn, sessionID string, s *Server) *Conn {
	return &Conn{
		ws:         ws,
		sessionID:  sessionID,
		store:      s.store,
		invoker:    s.invoker,
		observer:   s.observer,
		metrics:    s.metrics,
		timeouts:   s.timeouts,
		limitBytes: s.limitBytes,
	}
}

// run drives the connection until the peer goes away: emit ready, then read
// frames and dispatch. Must be called once, on its own goroutine.
func (c *Conn) run(ctx context.Context) {
	c.metrics.activeConnections.Inc()
	c.emit(ctx, EventConnOpen, observability.LevelInfo, nil)

	defer func() {
		c.abandon()
		c.ws.Close()
		c.metrics.activeConnections.Dec()
		c.emit(ctx, EventConnClose, observability.LevelInfo, nil)
	}()

	if err := c.writeFrame(protocol.Ready()); err != nil {
		return
	}

	c.ws.SetReadLimit(c.limitBytes)
	c.ws.SetReadDeadline(time.Now().Add(2 * c.timeouts.ping))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * c.timeouts.ping))
	})

	stopPings := c.keepalive(ctx)
	defer stopPings()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(ctx, data)
	}
}

// handleFrame processes one inbound client frame on the read loop.
func (c *Conn) handleFrame(ctx context.Context, data []byte) {
	frame, err := protocol.DecodeClientFrame(data)
	if err != nil {
		c.reject(ctx, "", "invalid message: expected a JSON object")
		return
	}

	turns, err := frame.Normalize()
	if err != nil {
		c.reject(ctx, frame.ID, err.Error())
		return
	}

	// Supersession: the old request must reach its terminal frame before
	// the new one is announced.
	c.abandon()

	id := frame.ID
	if id == "" {
		id = uuid.NewString()
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req := &inflight{id: id, cancel: cancel, done: make(chan struct{})}
	c.active = req

	c.emit(ctx, EventRequestStart, observability.LevelInfo, map[string]any{"request_id": id})
	if err := c.writeFrame(protocol.Start(id)); err != nil {
		cancel()
		close(req.done)
		c.active = nil
		return
	}

	go c.generate(reqCtx, req, turns, paramsFromFrame(frame))
}

// abandon cancels the in-flight request, if any, and waits for its
// generation goroutine to finish. Called from the read loop only.
func (c *Conn) abandon() {
	if c.active == nil {
		return
	}
	c.active.cancel()
	<-c.active.done
	c.active = nil
}

// reject reports a protocol-level failure without leaving the idle state.
func (c *Conn) reject(ctx context.Context, id, message string) {
	c.metrics.requests.WithLabelValues(outcomeRejected).Inc()
	c.emit(ctx, EventRequestRejected, observability.LevelWarning, map[string]any{
		"request_id": id,
		"reason":     message,
	})
	c.writeFrame(protocol.Error(id, message))
}

// generate runs one request to its terminal frame: read memory, invoke the
// model, forward fragments, then commit the exchange to memory. Exactly one
// of end/error is emitted per request, always by this goroutine.
func (c *Conn) generate(ctx context.Context, req *inflight, input []protocol.Turn, params model.Params) {
	defer close(req.done)
	defer req.cancel()

	strategy, err := c.store.Get(c.sessionID)
	if err != nil {
		c.fail(ctx, req.id, err)
		return
	}

	prior, err := strategy.Read(ctx)
	if err != nil {
		c.fail(ctx, req.id, err)
		return
	}

	turns := make([]protocol.Turn, 0, len(prior)+len(input))
	turns = append(turns, prior...)
	turns = append(turns, input...)

	stream, err := c.invoker.Stream(ctx, turns, params)
	if err != nil {
		c.fail(ctx, req.id, err)
		return
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.fail(ctx, req.id, err)
			return
		}

		reply.WriteString(fragment)
		c.metrics.fragments.Inc()
		if err := c.writeFrame(protocol.Delta(req.id, fragment)); err != nil {
			// Peer is gone; the deferred cancel aborts upstream work.
			return
		}
	}

	c.metrics.requests.WithLabelValues(outcomeCompleted).Inc()
	c.emit(ctx, EventRequestComplete, observability.LevelInfo, map[string]any{
		"request_id":   req.id,
		"reply_length": reply.Len(),
	})
	c.writeFrame(protocol.End(req.id))

	c.commit(strategy, input, reply.String())
}

// commit persists the completed exchange. Generation already succeeded, so
// this runs under its own bounded context rather than the request context:
// supersession must not abort a write for a request that finished, and a
// half-applied write is worse than a stale one. Compaction failures degrade
// future context instead of failing the turn.
func (c *Conn) commit(strategy memory.Strategy, input []protocol.Turn, reply string) {
	userContent := lastUserContent(input)
	if userContent == "" || reply == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.compaction)
	defer cancel()

	if err := strategy.Write(ctx, userContent, reply); err != nil {
		var compErr *memory.CompactionError
		if errors.As(err, &compErr) {
			c.metrics.compactionFailures.Inc()
		}
		c.emit(ctx, EventMemoryWriteError, observability.LevelWarning, map[string]any{
			"error": err.Error(),
		})
	}
}

// fail emits the request's terminal error frame.
func (c *Conn) fail(ctx context.Context, id string, cause error) {
	message := cause.Error()
	if errors.Is(cause, context.Canceled) {
		message = "request cancelled"
		c.metrics.requests.WithLabelValues(outcomeCancelled).Inc()
		c.emit(ctx, EventRequestCancelled, observability.LevelInfo, map[string]any{"request_id": id})
	} else {
		c.metrics.requests.WithLabelValues(outcomeFailed).Inc()
		c.emit(ctx, EventRequestFailed, observability.LevelWarning, map[string]any{
			"request_id": id,
			"error":      message,
		})
	}
	c.writeFrame(protocol.Error(id, message))
}

func (c *Conn) writeFrame(frame protocol.ServerFrame) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.timeouts.write))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// keepalive pings the peer on a ticker until the returned stop function is
// called or ctx ends.
func (c *Conn) keepalive(ctx context.Context) func() {
	ticker := time.NewTicker(c.timeouts.ping)
	stop := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(c.timeouts.write)
				if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

func paramsFromFrame(frame *protocol.ClientFrame) model.Params {
	return model.Params{
		Model:        frame.Model,
		Temperature:  frame.Temperature,
		MaxTokens:    frame.MaxTokens,
		EnableSearch: frame.EnableSearch,
	}
}

// lastUserContent returns the content of the newest user-role turn, which is
// what gets committed to memory as the exchange's user side.
func lastUserContent(turns []protocol.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == protocol.RoleUser {
			return turns[i].Content
		}
	}
	return ""
}
