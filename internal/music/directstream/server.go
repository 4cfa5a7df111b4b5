// Package directstream serves the player output as an AAC stream over HTTP
// for users listening outside of Discord.
package directstream

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ddmbot/internal/logging"
	"ddmbot/internal/music/users"
)

const (
	frameQueue     = 50
	clientQueue    = 64
	readChunk      = 4096
	restartDelay   = time.Second
	shutdownPeriod = 3 * time.Second
)

// Encoder turns PCM written into it into AAC read out of it.
type Encoder interface {
	io.Writer
	io.Reader
	Close() error
	Wait() error
}

// EncoderFactory starts a new encoder.
type EncoderFactory func(ctx context.Context) (Encoder, error)

// Tokens resolves personal stream tokens to user IDs.
type Tokens interface {
	StreamTokenOwner(token string) (string, bool, error)
}

// Listeners registers direct listeners.
type Listeners interface {
	AddListener(id string, direct bool) error
	RemoveListener(id string, direct bool) error
}

// Mover moves users between the music voice channel and the direct channel.
type Mover interface {
	MoveToDirect(ctx context.Context, userID string)
	MoveBack(ctx context.Context, userID string)
}

// Status is reported on /status.
type Status struct {
	State           string `json:"state"`
	Title           string `json:"title"`
	Listeners       int    `json:"listeners"`
	DirectListeners int    `json:"direct_listeners"`
}

type Options struct {
	Bind    string
	Name    string
	MetaInt int

	Encoder   EncoderFactory
	Tokens    Tokens
	Listeners Listeners
	Mover     Mover
	Status    func() Status
}

type client struct {
	userID string
	data   chan []byte
}

type Server struct {
	opts   Options
	engine *gin.Engine
	frames chan []byte

	mu      sync.RWMutex
	clients map[*client]struct{}
	title   string

	connected atomic.Int32
	log       zerolog.Logger
}

func New(opts Options) *Server {
	if opts.MetaInt <= 0 {
		opts.MetaInt = 16000
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		opts:    opts,
		frames:  make(chan []byte, frameQueue),
		clients: make(map[*client]struct{}),
		log:     logging.Component("stream"),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/status", s.handleStatus)
	r.GET("/stream/:token", s.handleStream)
	s.engine = r
	return s
}

// Handler exposes the HTTP routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// IsConnected reports whether anybody listens to the direct stream.
func (s *Server) IsConnected() bool {
	return s.connected.Load() > 0
}

// WriteFrame queues a PCM frame for the encoder. It never blocks and reports
// false when the frame was dropped.
func (s *Server) WriteFrame(frame []byte) bool {
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

// SetMeta changes the title announced in the ICY metadata.
func (s *Server) SetMeta(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

func (s *Server) meta() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// Run serves HTTP and keeps an encoder running until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("Shutting down direct stream server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	}()

	if s.opts.Encoder != nil {
		go s.runEncoder(ctx)
	}

	s.log.Info().Str("addr", ln.Addr().String()).Msg("direct stream server listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runEncoder restarts the encoder whenever it dies.
func (s *Server) runEncoder(ctx context.Context) {
	for ctx.Err() == nil {
		enc, err := s.opts.Encoder(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to start the direct stream encoder")
		} else {
			s.pump(ctx, enc)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

// pump feeds queued frames into enc and fans its output out to the clients
// until the encoder fails or ctx is done.
func (s *Server) pump(ctx context.Context, enc Encoder) {
	done := make(chan struct{})
	defer func() {
		_ = enc.Close()
		<-done
		_ = enc.Wait()
	}()

	go func() {
		defer close(done)
		buf := make([]byte, readChunk)
		for {
			n, err := enc.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.broadcast(chunk)
			}
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn().Err(err).Msg("direct stream encoder output ended")
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case frame := <-s.frames:
			if _, err := enc.Write(frame); err != nil {
				s.log.Warn().Err(err).Msg("direct stream encoder input failed")
				return
			}
		}
	}
}

// broadcast hands a chunk to every client; slow clients miss it.
func (s *Server) broadcast(chunk []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.data <- chunk:
		default:
		}
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.connected.Add(1)
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	s.connected.Add(-1)
}

func (s *Server) handleStatus(c *gin.Context) {
	var st Status
	if s.opts.Status != nil {
		st = s.opts.Status()
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleStream(c *gin.Context) {
	token := c.Param("token")
	userID, ok, err := s.opts.Tokens.StreamTokenOwner(token)
	if err != nil {
		s.log.Error().Err(err).Msg("token lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown stream token"})
		return
	}

	if err := s.opts.Listeners.AddListener(userID, true); err != nil {
		if errors.Is(err, users.ErrAlreadyListening) {
			c.JSON(http.StatusConflict, gin.H{"error": "you are already listening to the direct stream"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx := c.Request.Context()
	cl := &client{userID: userID, data: make(chan []byte, clientQueue)}
	s.addClient(cl)
	s.log.Info().Str("user", userID).Str("remote", c.ClientIP()).Msg("direct listener connected")
	if s.opts.Mover != nil {
		s.opts.Mover.MoveToDirect(ctx, userID)
	}

	defer func() {
		s.removeClient(cl)
		if err := s.opts.Listeners.RemoveListener(userID, true); err != nil {
			s.log.Warn().Err(err).Str("user", userID).Msg("failed to remove direct listener")
		}
		if s.opts.Mover != nil {
			s.opts.Mover.MoveBack(context.WithoutCancel(ctx), userID)
		}
		s.log.Info().Str("user", userID).Msg("direct listener disconnected")
	}()

	c.Header("Content-Type", "audio/aac")
	c.Header("Cache-Control", "no-cache, no-store")
	c.Header("Connection", "close")
	c.Header("icy-name", s.opts.Name)

	var out io.Writer = c.Writer
	if c.GetHeader("Icy-MetaData") == "1" {
		c.Header("icy-metaint", strconv.Itoa(s.opts.MetaInt))
		out = newICYWriter(c.Writer, s.opts.MetaInt, s.meta)
	}
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case chunk := <-cl.data:
			_, err := out.Write(chunk)
			return err == nil
		}
	})
}
