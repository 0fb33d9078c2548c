// Package phoenix subscribes to row changes over the hosted backend's
// realtime websocket, which speaks the Phoenix channels protocol.
package phoenix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"waselni/internal/realtime"
)

const (
	writeWait         = 10 * time.Second
	defaultHeartbeat  = 30 * time.Second
	defaultJoinWait   = 10 * time.Second
	maxMessageSize    = 1 << 20
	protocolVersion   = "1.0.0"
	defaultSchemaName = "public"
	streamBuffer      = 64
)

var (
	// ErrJoinRejected is returned when the server refuses a channel join.
	ErrJoinRejected = errors.New("realtime join rejected")
)

// Config configures the websocket source.
type Config struct {
	// BaseURL is the project URL, e.g. https://xyz.supabase.co.
	BaseURL           string
	APIKey            string
	Schema            string
	HeartbeatInterval time.Duration
	JoinTimeout       time.Duration
}

// Source opens one websocket channel per subscription.
type Source struct {
	endpoint string
	cfg      Config
	dialer   *websocket.Dialer
	log      logrus.FieldLogger
}

var _ realtime.Source = (*Source)(nil)

// NewSource creates a source for the given project.
func NewSource(cfg Config, log logrus.FieldLogger) (*Source, error) {
	endpoint, err := websocketURL(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if cfg.Schema == "" {
		cfg.Schema = defaultSchemaName
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinWait
	}
	return &Source{
		endpoint: endpoint,
		cfg:      cfg,
		dialer:   websocket.DefaultDialer,
		log:      log.WithField("component", "realtime.phoenix"),
	}, nil
}

// websocketURL maps http(s)://host to ws(s)://host/realtime/v1/websocket.
func websocketURL(base, apiKey string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported realtime url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", protocolVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe dials the websocket, joins a channel for sub and waits for the
// join reply.
func (s *Source) Subscribe(ctx context.Context, sub realtime.Subscription) (realtime.Stream, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("apikey", s.cfg.APIKey)

	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	topic := "realtime:" + string(sub.Collection) + ":" + uuid.NewString()
	st := &stream{
		conn:   conn,
		topic:  topic,
		events: make(chan realtime.Event, streamBuffer),
		done:   make(chan struct{}),
		log:    s.log.WithField("topic", topic),
	}

	joinRef := st.nextRef()
	join, err := joinMessage(topic, joinRef, s.cfg.Schema, s.cfg.APIKey, sub)
	if err != nil {
		conn.Close()
		return nil, err
	}
	st.joinRef = joinRef

	if err := st.write(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join realtime channel: %w", err)
	}
	if err := st.awaitJoin(ctx, joinRef, s.cfg.JoinTimeout); err != nil {
		conn.Close()
		return nil, err
	}

	st.wg.Add(2)
	go st.readLoop()
	go st.heartbeatLoop(s.cfg.HeartbeatInterval)

	return st, nil
}

type stream struct {
	conn    *websocket.Conn
	topic   string
	joinRef string
	events  chan realtime.Event
	done    chan struct{}
	log     logrus.FieldLogger

	ref     atomic.Uint64
	writeMu sync.Mutex
	once    sync.Once
	wg      sync.WaitGroup
}

func (st *stream) Events() <-chan realtime.Event {
	return st.events
}

func (st *stream) nextRef() string {
	return strconv.FormatUint(st.ref.Add(1), 10)
}

func (st *stream) write(m message) error {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	st.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return st.conn.WriteJSON(m)
}

func (st *stream) awaitJoin(ctx context.Context, ref string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	st.conn.SetReadDeadline(deadline)
	defer st.conn.SetReadDeadline(time.Time{})

	for {
		var m message
		if err := st.conn.ReadJSON(&m); err != nil {
			return fmt.Errorf("await realtime join: %w", err)
		}
		if m.Topic != st.topic || m.Event != eventReply || m.Ref == nil || *m.Ref != ref {
			continue
		}
		var reply replyPayload
		if err := json.Unmarshal(m.Payload, &reply); err != nil {
			return fmt.Errorf("decode join reply: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("%w: %s", ErrJoinRejected, string(reply.Response))
		}
		return nil
	}
}

func (st *stream) readLoop() {
	defer st.wg.Done()
	defer close(st.events)

	for {
		var m message
		if err := st.conn.ReadJSON(&m); err != nil {
			select {
			case <-st.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					st.log.WithError(err).Warn("realtime connection lost")
				}
			}
			return
		}
		if m.Topic != st.topic {
			continue
		}

		switch m.Event {
		case eventChanges:
			e, err := decodeChange(m.Payload)
			if err != nil {
				st.log.WithError(err).Warn("failed to decode realtime change")
				continue
			}
			select {
			case st.events <- e:
			case <-st.done:
				return
			}
		case eventError, eventClose:
			st.log.WithField("event", m.Event).Warn("realtime channel closed by server")
			return
		}
	}
}

func (st *stream) heartbeatLoop(interval time.Duration) {
	defer st.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-st.done:
			return
		case <-ticker.C:
			if err := st.write(heartbeatMessage(st.nextRef())); err != nil {
				st.log.WithError(err).Warn("realtime heartbeat failed")
				return
			}
		}
	}
}

// Close leaves the channel, closes the connection and waits for the
// stream's goroutines.
func (st *stream) Close() error {
	var err error
	st.once.Do(func() {
		close(st.done)
		if werr := st.write(leaveMessage(st.topic, st.nextRef(), st.joinRef)); werr != nil {
			st.log.WithError(werr).Debug("realtime leave not sent")
		}
		st.writeMu.Lock()
		_ = st.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		st.writeMu.Unlock()
		err = st.conn.Close()
		st.wg.Wait()
	})
	return err
}
