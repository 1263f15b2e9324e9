package server

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/adapter/wsadapter"
	"github.com/vango-dev/querystate/pkg/options"
	"github.com/vango-dev/querystate/pkg/parsers"
	"github.com/vango-dev/querystate/pkg/querystate"
	"github.com/vango-dev/querystate/pkg/queue"
)

// DemoKeys are the keys bound for every demo session.
func DemoKeys() querystate.Keys {
	return querystate.Keys{
		"lat":  parsers.Float.WithDefault(45.18),
		"lng":  parsers.Float.WithDefault(5.72),
		"q":    parsers.String.WithDefault("").WithOptions(options.ClearOnDefault(true)),
		"page": parsers.Int.WithDefault(1).WithOptions(options.ClearOnDefault(true), options.Push()),
		"sort": parsers.StringEnum("asc", "desc").WithDefault("asc"),
	}
}

// serveSession runs one client until its connection closes or ctx is done.
func (s *Server) serveSession(ctx context.Context, conn *websocket.Conn, query string) {
	keys := DemoKeys()
	var binding *querystate.Binding

	a, err := wsadapter.New(conn, query,
		wsadapter.WithLogger(s.base.With("component", "wsadapter")),
		wsadapter.WithRateLimitFactor(s.cfg.Queue.RateLimitFactor),
		wsadapter.WithOnSet(func(key string, value *string) {
			if value == nil {
				binding.Set(key, nil)
				return
			}
			parser, ok := keys[key]
			if !ok {
				s.logger.Debug("ignoring unknown key", "key", key)
				return
			}
			v, err := parser.ParseAny(*value)
			if err != nil {
				s.logger.Warn("rejected value", "error", errors.New("E200").WithKey(key).Wrap(err))
				return
			}
			binding.Set(key, v)
		}),
	)
	if err != nil {
		s.logger.Error("session failed", "error", err)
		conn.Close()
		return
	}
	base := s.base.With("session", a.ID())
	logger := base.With("component", "server")

	queueOpts := []queue.Option{
		queue.WithClock(s.clock),
		queue.WithLogger(base.With("component", "queue")),
	}
	if s.metrics != nil {
		queueOpts = append(queueOpts, queue.WithObserver(s.metrics))
		s.metrics.SessionOpened()
		defer s.metrics.SessionClosed()
	}
	rt := querystate.NewRuntime(a,
		querystate.WithQueue(queue.New(queueOpts...)),
		querystate.WithLogger(base),
		querystate.WithDefaults(s.cfg.Options()),
	)
	binding = rt.Bind(keys, querystate.WithOnChange(func(state querystate.State) {
		if err := a.SendState(state); err != nil {
			logger.Debug("state not sent", "error", err)
		}
	}))
	defer binding.Close()
	defer a.Close()

	logger.Info("session opened", "query", query)
	if err := a.SendState(binding.State()); err != nil {
		logger.Debug("state not sent", "error", err)
		return
	}
	if err := a.ReadLoop(ctx); err != nil {
		logger.Error("read loop ended", "error", err)
	}
	logger.Info("session closed")
}
