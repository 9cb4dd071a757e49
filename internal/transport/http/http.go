// Package http implements the HTTP/WebSocket transport for thirdeye.
//
// This transport exposes a REST API for commands and camera frames, and a
// WebSocket endpoint that streams events (speech, overlay boxes, torch) to
// the client UI. It is best suited for the phone web app.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/thirdeye/docs" // registers the OpenAPI spec served at /swagger/doc.json
	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/transport"
)

const (
	maxFrameBytes   = 8 << 20
	maxCommandBytes = 10 << 20

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Transport implements transport.Transport over HTTP and WebSocket.
type Transport struct {
	port     int
	origins  []string
	server   *http.Server
	subs     *transport.Subscribers
	upgrader websocket.Upgrader
}

// New creates a new HTTP transport.
func New(cfg config.HTTPConfig) *Transport {
	t := &Transport{
		port:    cfg.Port,
		origins: cfg.AllowedOrigins,
		subs:    transport.NewSubscribers("http", 32),
	}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     t.checkOrigin,
	}
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(ctx, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Handler builds the route table. WebSocket connections are closed when ctx is done.
func (t *Transport) Handler(ctx context.Context, handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/commands", func(w http.ResponseWriter, r *http.Request) {
		t.handleCommand(w, r, handler)
	})
	mux.HandleFunc("POST /v1/modes/{mode}", func(w http.ResponseWriter, r *http.Request) {
		t.handleSelectMode(w, r, handler)
	})
	mux.HandleFunc("POST /v1/stop", func(w http.ResponseWriter, r *http.Request) {
		t.dispatch(w, r, handler, &message.Command{Kind: message.CommandStop})
	})
	mux.HandleFunc("POST /v1/describe", func(w http.ResponseWriter, r *http.Request) {
		t.dispatch(w, r, handler, &message.Command{Kind: message.CommandDescribe})
	})
	mux.HandleFunc("POST /v1/ask", func(w http.ResponseWriter, r *http.Request) {
		t.handleAsk(w, r, handler)
	})
	mux.HandleFunc("POST /v1/torch", func(w http.ResponseWriter, r *http.Request) {
		t.handleTorch(w, r, handler)
	})
	mux.HandleFunc("POST /v1/frames", func(w http.ResponseWriter, r *http.Request) {
		t.handleFrame(w, r, handler)
	})
	mux.HandleFunc("GET /v1/state", func(w http.ResponseWriter, r *http.Request) {
		t.dispatch(w, r, handler, &message.Command{Kind: message.CommandState})
	})

	// GET /ws streams events to the UI and accepts commands in the other direction.
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		t.serveWS(ctx, w, r, handler)
	})

	// Swagger UI serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// handleCommand processes a POST /v1/commands request.
//
// @Summary     Send a command
// @Description Accepts any command envelope (select_mode, stop, describe, ask, torch, utterance,
// @Description frame, brightness, location, voices, detections, focus_box, mute, state) and
// @Description returns the state after it was applied.
// @Tags        commands
// @Accept      json
// @Produce     json
// @Param       command  body      message.Command  true  "Command envelope"
// @Success     200      {object}  message.State    "State after the command"
// @Failure     400      {string}  string           "Invalid command"
// @Failure     500      {string}  string           "Internal processing error"
// @Router      /v1/commands [post]
func (t *Transport) handleCommand(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var cmd message.Command
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCommandBytes)).Decode(&cmd); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	t.dispatch(w, r, handler, &cmd)
}

// handleSelectMode processes a POST /v1/modes/{mode} request.
//
// @Summary     Select a mode
// @Description Selecting the mode that is already active toggles back to idle.
// @Tags        commands
// @Produce     json
// @Param       mode  path      string         true  "Mode"  Enums(idle, scan, read, navigate, emergency)
// @Success     200   {object}  message.State  "State after the transition"
// @Failure     400   {string}  string         "Unknown mode"
// @Router      /v1/modes/{mode} [post]
func (t *Transport) handleSelectMode(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	mode, err := message.ParseMode(r.PathValue("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t.dispatch(w, r, handler, &message.Command{Kind: message.CommandSelectMode, Mode: mode})
}

type askRequest struct {
	Text string `json:"text"`
}

// handleAsk processes a POST /v1/ask request.
//
// @Summary     Ask a question about the current view
// @Description Runs one analysis of the latest frame with the question replacing the mode instruction.
// @Tags        commands
// @Accept      json
// @Produce     json
// @Param       question  body      askRequest     true  "Question"
// @Success     200       {object}  message.State  "State after the trigger"
// @Failure     400       {string}  string         "Missing question"
// @Router      /v1/ask [post]
func (t *Transport) handleAsk(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	t.dispatch(w, r, handler, &message.Command{Kind: message.CommandAsk, Text: req.Text})
}

type torchRequest struct {
	On bool `json:"on"`
}

// handleTorch processes a POST /v1/torch request.
//
// @Summary     Switch the torch
// @Description Turning the torch off manually stops automatic switch-on until a mode is selected.
// @Tags        commands
// @Accept      json
// @Produce     json
// @Param       torch  body      torchRequest   true  "Requested torch state"
// @Success     200    {object}  message.State  "State after the switch"
// @Router      /v1/torch [post]
func (t *Transport) handleTorch(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req torchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	t.dispatch(w, r, handler, &message.Command{Kind: message.CommandTorch, On: &req.On})
}

// handleFrame processes a POST /v1/frames request.
//
// @Summary     Upload a camera frame
// @Description Stores a JPEG still as the latest frame. Analysis and brightness sampling read from it.
// @Tags        frames
// @Accept      image/jpeg
// @Produce     json
// @Param       X-Thirdeye-Source  header    string         false  "Sender identifier"
// @Success     200                {object}  message.State  "Current state"
// @Failure     400                {string}  string         "Empty or non-JPEG body"
// @Failure     413                {string}  string         "Frame too large"
// @Router      /v1/frames [post]
func (t *Transport) handleFrame(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "frame too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "reading frame: "+err.Error(), http.StatusBadRequest)
		return
	}
	t.dispatch(w, r, handler, &message.Command{
		Kind:   message.CommandFrame,
		Frame:  data,
		Source: r.Header.Get("X-Thirdeye-Source"),
	})
}

func (t *Transport) dispatch(w http.ResponseWriter, r *http.Request, handler transport.Handler, cmd *message.Command) {
	state, err := t.handle(r.Context(), handler, cmd)
	if err != nil {
		if errors.Is(err, transport.ErrBadCommand) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("command failed", "kind", cmd.Kind, "id", cmd.ID, "error", err)
		http.Error(w, "command error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}

func (t *Transport) handle(ctx context.Context, handler transport.Handler, cmd *message.Command) (*message.State, error) {
	if err := transport.Prepare(cmd, t.Name()); err != nil {
		return nil, err
	}
	return handler(ctx, cmd)
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if len(t.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.ContainsFunc(t.origins, func(o string) bool {
		return o == "*" || strings.EqualFold(o, origin)
	})
}

// serveWS upgrades the connection, then pumps events out and commands in
// until either side hangs up.
func (t *Transport) serveWS(ctx context.Context, w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	events, unsubscribe := t.subs.Subscribe()
	slog.Info("websocket client connected", "remote", r.RemoteAddr, "clients", t.subs.Len())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		t.writePump(conn, events)
	}()

	t.readPump(ctx, conn, handler)

	unsubscribe()
	<-writerDone
	_ = conn.Close()
	slog.Info("websocket client disconnected", "remote", r.RemoteAddr)
}

func (t *Transport) writePump(conn *websocket.Conn, events <-chan message.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("websocket write failed", "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (t *Transport) readPump(ctx context.Context, conn *websocket.Conn, handler transport.Handler) {
	conn.SetReadLimit(maxCommandBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd message.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Warn("websocket: invalid command", "error", err)
			continue
		}
		if _, err := t.handle(ctx, handler, &cmd); err != nil {
			slog.Warn("websocket command failed", "kind", cmd.Kind, "id", cmd.ID, "error", err)
		}
	}
}

// Publish pushes ev to every connected WebSocket client.
func (t *Transport) Publish(_ context.Context, ev message.Event) error {
	t.subs.Broadcast(ev)
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
