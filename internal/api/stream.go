package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/observability/metrics"
)

const (
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamWriteWait  = 10 * time.Second
	streamSendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// StreamFrame is the reply to one message on the cipher stream. Seq counts
// messages received on the connection, starting at 1.
type StreamFrame struct {
	Seq       int    `json:"seq"`
	Operation string `json:"operation,omitempty"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// handleStream upgrades to a websocket and transforms every text message.
//
// With ?operation=NAME the connection is bound to one operation: each message
// is raw input and the remaining query parameters are its params. Without it
// each message is a CipherOperationRequest document.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	bound := strings.TrimSpace(query.Get("operation"))
	var boundParams map[string]any
	if bound != "" {
		if _, ok := s.svc.Operation(bound); !ok {
			writeError(w, fmt.Errorf("%w: %s", cipher.ErrUnknownOperation, bound))
			return
		}
		boundParams = streamParams(query)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("stream upgrade failed")
		return
	}
	defer conn.Close()
	done := metrics.TrackStream()
	defer done()
	s.trackStream(conn, true)
	defer s.trackStream(conn, false)

	send := make(chan StreamFrame, streamSendBuffer)
	writerDone := make(chan struct{})
	go streamWriter(conn, send, writerDone)
	defer func() {
		close(send)
		<-writerDone
	}()

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	ctx := withCaller(r.Context())
	for seq := 1; ; seq++ {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("stream closed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		if kind != websocket.TextMessage {
			send <- StreamFrame{Seq: seq, Error: "only text messages are accepted", Kind: "bad_request"}
			continue
		}
		send <- s.streamFrame(ctx, seq, bound, boundParams, msg)
	}
}

func (s *Server) streamFrame(ctx context.Context, seq int, operation string, params map[string]any, msg []byte) StreamFrame {
	input := string(msg)
	if operation == "" {
		var req CipherOperationRequest
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			return StreamFrame{Seq: seq, Error: "invalid json: " + err.Error(), Kind: "bad_request"}
		}
		if strings.TrimSpace(req.Operation) == "" {
			return StreamFrame{Seq: seq, Error: "operation field is required", Kind: "bad_request"}
		}
		operation, params, input = req.Operation, req.Params, req.Input
	}
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	out, err := s.svc.Execute(ctx, operation, []byte(input), params)
	if err != nil {
		_, kind := classify(err)
		return StreamFrame{Seq: seq, Operation: operation, Error: err.Error(), Kind: kind}
	}
	return StreamFrame{Seq: seq, Operation: operation, Output: string(out)}
}

// streamWriter owns every data write on conn. After a failed write it closes
// conn, which ends the read loop, and keeps draining send until it is closed.
func streamWriter(conn *websocket.Conn, send <-chan StreamFrame, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	broken := false
	fail := func() {
		broken = true
		_ = conn.Close()
	}
	for {
		select {
		case frame, ok := <-send:
			if !ok {
				if !broken {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(streamWriteWait))
				}
				return
			}
			if broken {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				fail()
			}
		case <-ticker.C:
			if broken {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				fail()
			}
		}
	}
}

// streamParams turns the query of a bound stream into operation params.
func streamParams(query url.Values) map[string]any {
	params := make(map[string]any, len(query))
	for key, vals := range query {
		if key == "operation" || key == "access_token" || len(vals) == 0 {
			continue
		}
		params[key] = vals[0]
	}
	return params
}

func (s *Server) trackStream(conn *websocket.Conn, open bool) {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	if open {
		s.streams[conn] = struct{}{}
		return
	}
	delete(s.streams, conn)
}

// closeStreams tells every open stream the server is going away. Hijacked
// connections are invisible to http.Server.Shutdown.
func (s *Server) closeStreams() {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	deadline := time.Now().Add(time.Second)
	for conn := range s.streams {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = conn.Close()
	}
}
