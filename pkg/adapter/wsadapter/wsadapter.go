// Package wsadapter drives the URL of a browser connected over a WebSocket.
//
// The server owns the query state; the client applies url messages with
// history.pushState or history.replaceState and reports back/forward
// navigation with popstate messages:
//
//	server → client  {"type":"url","history":"push","shallow":true,"scroll":false,"query":"lat=42&lng=12"}
//	server → client  {"type":"state","values":{"lat":42,"lng":12}}
//	server → client  {"type":"error","code":"E400","message":"..."}
//	client → server  {"type":"popstate","query":"lat=40"}
//	client → server  {"type":"set","key":"lat","value":"40"}
//
// A set message with a null value asks for the key to be removed.
package wsadapter

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/adapter"
	"github.com/vango-dev/querystate/pkg/options"
)

// Message types.
const (
	TypeURL      = "url"
	TypeState    = "state"
	TypeError    = "error"
	TypePopState = "popstate"
	TypeSet      = "set"
)

// Conn is the subset of *websocket.Conn used by the adapter.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// URLMessage asks the client to update its URL.
type URLMessage struct {
	Type    string `json:"type"`
	History string `json:"history"`
	Shallow bool   `json:"shallow"`
	Scroll  bool   `json:"scroll"`
	Query   string `json:"query"`
}

// StateMessage carries resolved state for the client to render.
type StateMessage struct {
	Type   string         `json:"type"`
	Values map[string]any `json:"values"`
}

// ErrorMessage reports a rejected client message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientMessage is any message sent by the client.
type ClientMessage struct {
	Type  string  `json:"type"`
	Query string  `json:"query,omitempty"`
	Key   string  `json:"key,omitempty"`
	Value *string `json:"value,omitempty"`
}

// SetFunc handles a set message. A nil value removes the key.
type SetFunc func(key string, value *string)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// WithRateLimitFactor scales every throttle interval for this client.
func WithRateLimitFactor(f float64) Option {
	return func(a *Adapter) {
		a.factor = f
	}
}

// WithOnSet registers the handler for set messages.
func WithOnSet(fn SetFunc) Option {
	return func(a *Adapter) {
		a.onSet = fn
	}
}

// WithID sets the session id. By default a random UUID is used.
func WithID(id string) Option {
	return func(a *Adapter) {
		a.id = id
	}
}

// Adapter implements adapter.Adapter, adapter.Watcher and
// adapter.RateLimiter for one connected client.
type Adapter struct {
	id     string
	conn   Conn
	logger *slog.Logger
	factor float64
	onSet  SetFunc

	writeMu sync.Mutex

	mu       sync.Mutex
	params   url.Values
	watchers map[int]func(url.Values)
	nextID   int
	closed   bool
}

var (
	_ adapter.Adapter     = (*Adapter)(nil)
	_ adapter.Watcher     = (*Adapter)(nil)
	_ adapter.RateLimiter = (*Adapter)(nil)
)

// New creates an Adapter for conn. initialQuery is the client's query string
// at connection time, without the leading "?".
func New(conn Conn, initialQuery string, opts ...Option) (*Adapter, error) {
	params, err := url.ParseQuery(initialQuery)
	if err != nil {
		return nil, errors.New("E402").Wrap(err)
	}
	a := &Adapter{
		conn:     conn,
		factor:   1,
		params:   params,
		watchers: make(map[int]func(url.Values)),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.id == "" {
		a.id = uuid.NewString()
	}
	if a.logger == nil {
		a.logger = slog.Default().With("component", "wsadapter")
	}
	a.logger = a.logger.With("session", a.id)
	return a, nil
}

// ID returns the session id.
func (a *Adapter) ID() string { return a.id }

// SearchParams implements adapter.Adapter.
func (a *Adapter) SearchParams() url.Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	return adapter.Clone(a.params)
}

// UpdateURL records params and sends a url message. If the message cannot
// be written the previous params are restored.
func (a *Adapter) UpdateURL(ctx context.Context, params url.Values, nav options.Navigation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next := adapter.Clone(params)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errors.New("E401")
	}
	prev := a.params
	a.params = next
	a.mu.Unlock()

	msg := URLMessage{
		Type:    TypeURL,
		History: nav.History.String(),
		Shallow: nav.Shallow,
		Scroll:  nav.Scroll,
		Query:   params.Encode(),
	}
	if err := a.write(msg); err != nil {
		a.mu.Lock()
		// A popstate may have replaced params while writing.
		if sameValues(a.params, next) {
			a.params = prev
		}
		a.mu.Unlock()
		return errors.New("E401").Wrap(err)
	}

	a.notify(next)
	return nil
}

func sameValues(a, b url.Values) bool {
	return a.Encode() == b.Encode()
}

// RateLimitFactor implements adapter.RateLimiter.
func (a *Adapter) RateLimitFactor() float64 { return a.factor }

// Watch implements adapter.Watcher.
func (a *Adapter) Watch(fn func(url.Values)) func() {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.watchers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.watchers, id)
		a.mu.Unlock()
	}
}

// SendState sends resolved values to the client.
func (a *Adapter) SendState(values map[string]any) error {
	return a.write(StateMessage{Type: TypeState, Values: values})
}

// ReadLoop reads client messages until the connection closes or ctx is
// done. A normal closure returns nil.
func (a *Adapter) ReadLoop(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		a.Close()
	})
	defer stop()

	for {
		var msg ClientMessage
		if err := a.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				return nil
			}
			if isDecodeError(err) {
				a.reject(errors.New("E400").Wrap(err))
				continue
			}
			return errors.New("E401").Wrap(err)
		}
		a.handle(msg)
	}
}

func (a *Adapter) handle(msg ClientMessage) {
	switch msg.Type {
	case TypePopState:
		params, err := url.ParseQuery(msg.Query)
		if err != nil {
			a.reject(errors.New("E402").Wrap(err))
			return
		}
		a.mu.Lock()
		a.params = params
		a.mu.Unlock()
		a.logger.Debug("popstate", "query", msg.Query)
		a.notify(adapter.Clone(params))

	case TypeSet:
		if msg.Key == "" {
			a.reject(errors.New("E400").WithDetail("set message without key"))
			return
		}
		if a.onSet != nil {
			a.onSet(msg.Key, msg.Value)
		}

	default:
		a.reject(errors.New("E400").WithDetail("unknown message type " + msg.Type))
	}
}

func (a *Adapter) reject(err *errors.Error) {
	a.logger.Warn("rejected client message", "error", err)
	if werr := a.write(ErrorMessage{Type: TypeError, Code: err.Code, Message: err.Error()}); werr != nil {
		a.logger.Debug("error message not sent", "error", werr)
	}
}

func (a *Adapter) write(v any) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteJSON(v)
}

func (a *Adapter) notify(params url.Values) {
	a.mu.Lock()
	fns := make([]func(url.Values), 0, len(a.watchers))
	for _, fn := range a.watchers {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(adapter.Clone(params))
	}
}

// Close closes the connection. Later URL updates fail with E401.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	return a.conn.Close()
}
