// ABOUTME: WebSocket bridge exposing the metronome and media player
// ABOUTME: Dispatches JSON requests and pushes beat events to every client
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/internal/media"
	"github.com/Resonate-Protocol/resonate-metronome/internal/version"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/metronome"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Path is the WebSocket endpoint
const Path = "/metronome"

const (
	sendBuffer    = 64
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

var errSendBufferFull = errors.New("client send buffer full")

// Metronome is the engine surface the bridge drives
type Metronome interface {
	Start(bpm, volume float64) error
	Stop() error
	SetBPM(bpm float64) error
	SetVolume(volume float64) error
	Stats() metronome.Stats
}

// Media is the one-shot player surface the bridge drives
type Media interface {
	Play(ctx context.Context, uri string, isLocalResource bool) <-chan error
	Pause()
	Resume()
	Stop()
	Playing() (string, bool)
}

// Config holds bridge configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
}

// Server is the bridge
type Server struct {
	config    Config
	serverID  string
	metronome Metronome
	media     Media

	upgrader websocket.Upgrader
	mux      *http.ServeMux

	clients   map[string]*client
	clientsMu sync.RWMutex
	closing   bool

	// wg counts live connections and the goroutines they spawn
	wg sync.WaitGroup
}

// client is one connected controller
type client struct {
	id       string
	conn     *websocket.Conn
	sendChan chan any
	ctx      context.Context
	cancel   context.CancelFunc

	closeOnce sync.Once
}

// New creates a bridge over m and p
func New(config Config, m Metronome, p Media) *Server {
	s := &Server{
		config:    config,
		serverID:  uuid.New().String(),
		metronome: m,
		media:     p,
		mux:       http.NewServeMux(),
		clients:   make(map[string]*client),
		upgrader: websocket.Upgrader{
			// Controllers are local apps without a browser origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the bridge
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	httpServer := &http.Server{Addr: addr, Handler: s.mux}

	var advertiser *Advertiser
	if s.config.EnableMDNS {
		advertiser = NewAdvertiser(s.config.Name, s.config.Port)
		if err := advertiser.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
			advertiser = nil
		}
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Bridge listening on %s%s", addr, Path)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		log.Printf("Bridge shutting down...")
	case err := <-errChan:
		log.Printf("Bridge HTTP server error: %v", err)
		serverErr = err
	}

	if advertiser != nil {
		advertiser.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Bridge shutdown error: %v", err)
	}

	s.shutdown()
	s.wg.Wait()

	if serverErr != nil {
		return fmt.Errorf("bridge HTTP server failed: %w", serverErr)
	}
	return nil
}

// Clients returns the number of connected clients
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// BroadcastBeat pushes a beat event to every client. It never blocks; a
// client that cannot keep up misses beats.
func (s *Server) BroadcastBeat(b metronome.Beat) {
	event := Event{Event: EventBeat, Data: BeatEvent{
		Index: b.Index,
		Role:  b.Role.String(),
		At:    b.At.UnixMilli(),
	}}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		_ = c.send(event)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "bridge shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New bridge connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		id:       uuid.New().String(),
		conn:     conn,
		sendChan: make(chan any, sendBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	if !s.register(c) {
		cancel()
		log.Printf("Refusing bridge connection during shutdown")
		return
	}

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		c.close()
		log.Printf("Bridge client disconnected: %s", c.id)
		s.wg.Done()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	hello := Hello{
		ServerID:     s.serverID,
		ClientID:     c.id,
		Name:         s.config.Name,
		Product:      version.Product,
		Manufacturer: version.Manufacturer,
		Version:      version.Version,
	}
	if err := c.send(Event{Event: EventHello, Data: hello}); err != nil {
		log.Printf("Error sending hello: %v", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Bridge WebSocket error: %v", err)
			}
			return
		}
		s.handleMessage(c, data)
	}
}

// clientWriter serializes every write to the connection
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.sendChan:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(c *client, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(Response{Error: &Error{Code: CodeBadRequest, Message: fmt.Sprintf("malformed request: %v", err)}})
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] Bridge request %s: %s", req.ID, req.Method)
	}

	if req.Method == MethodPlay {
		s.handlePlay(c, req)
		return
	}

	result, err := s.dispatch(req)
	c.reply(respond(req.ID, result, err))
}

// dispatch runs every method that answers immediately
func (s *Server) dispatch(req Request) (any, error) {
	switch req.Method {
	case MethodStartMetronome:
		var p StartParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if p.BPM == nil || p.Volume == nil {
			return nil, badRequest("bpm and volume are required")
		}
		return ok{true}, s.metronome.Start(*p.BPM, *p.Volume)

	case MethodStopMetronome:
		return ok{true}, s.metronome.Stop()

	case MethodSetMetronomeBPM:
		var p BPMParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if p.BPM == nil {
			return nil, badRequest("bpm is required")
		}
		return ok{true}, s.metronome.SetBPM(*p.BPM)

	case MethodSetMetronomeVolume:
		var p VolumeParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if p.Volume == nil {
			return nil, badRequest("volume is required")
		}
		return ok{true}, s.metronome.SetVolume(*p.Volume)

	case MethodPause:
		s.media.Pause()
		return ok{true}, nil

	case MethodResume:
		s.media.Resume()
		return ok{true}, nil

	case MethodStop:
		s.media.Stop()
		return ok{true}, nil

	case MethodStatus:
		return s.status(), nil

	default:
		return nil, &requestError{code: CodeUnknownMethod, msg: fmt.Sprintf("unknown method: %q", req.Method)}
	}
}

// handlePlay answers when playback ends, so it must not hold up the read loop
func (s *Server) handlePlay(c *client, req Request) {
	var p PlayParams
	if err := decodeParams(req.Params, &p); err != nil {
		c.reply(respond(req.ID, nil, err))
		return
	}
	if err := media.ValidateURI(p.URI, p.IsResource); err != nil {
		c.reply(respond(req.ID, nil, err))
		return
	}

	result := s.media.Play(c.ctx, p.URI, p.IsResource)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case err := <-result:
			c.reply(respond(req.ID, ok{true}, err))
		case <-c.ctx.Done():
		}
	}()
}

func (s *Server) status() Status {
	st := s.metronome.Stats()
	status := Status{
		Running:      st.Running,
		BPM:          st.BPM,
		Volume:       st.Volume,
		BeatIndex:    st.BeatIndex,
		BeatsEmitted: st.BeatsEmitted,
		Recoveries:   st.Recoveries,
		Underruns:    st.Underruns,
		Session:      st.Session,
	}
	if uri, playing := s.media.Playing(); playing {
		status.Media = uri
	}
	return status
}

// register adds c and counts its connection, unless shutdown has begun.
// Counting under clientsMu orders every Add before shutdown's Wait.
func (s *Server) register(c *client) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closing {
		return false
	}
	s.clients[c.id] = c
	s.wg.Add(1)
	return true
}

func (s *Server) shuttingDown() bool {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return s.closing
}

// shutdown refuses new connections and closes the live ones
func (s *Server) shutdown() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	s.closing = true
	for _, c := range s.clients {
		c.close()
	}
}

// send queues msg without blocking
func (c *client) send(msg any) error {
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *client) reply(resp Response) {
	if err := c.send(resp); err != nil {
		log.Printf("Dropping response %s for %s: %v", resp.ID, c.id, err)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}

// requestError is a failure with an explicit code
type requestError struct {
	code string
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{code: CodeBadRequest, msg: msg}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest(fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}

// respond builds the response for a finished call
func respond(id string, result any, err error) Response {
	if err == nil {
		return Response{ID: id, Result: result}
	}
	return Response{ID: id, Error: &Error{Code: codeFor(err), Message: err.Error()}}
}

// codeFor maps an error to its wire code
func codeFor(err error) string {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.code
	case errors.Is(err, metronome.ErrInvalidArgument), errors.Is(err, media.ErrInvalidURI):
		return CodeInvalidArgument
	case errors.Is(err, metronome.ErrDeviceFault), errors.Is(err, metronome.ErrShutdownTimeout):
		return CodeDeviceFault
	case errors.Is(err, media.ErrPlayback), errors.Is(err, media.ErrResourceNotFound), errors.Is(err, media.ErrInterrupted):
		return CodePlaybackError
	default:
		return CodeInternal
	}
}
