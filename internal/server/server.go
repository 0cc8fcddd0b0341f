package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"passvault/internal/observability"
	"passvault/internal/protocol"
	"passvault/internal/server/store"
	"passvault/internal/transport"
)

var (
	ErrMissingTLSMaterial = errors.New("server: tls requires both a certificate and a key")
	ErrUnknownMethod      = errors.New("server: unknown method")
)

const DefaultSessionTTL = 3 * time.Hour

// Config carries the listener settings for a vault server.
type Config struct {
	Addr        string
	TLSCertFile string
	TLSKeyFile  string
	SessionTTL  time.Duration
	ReadTimeout time.Duration
}

type handlerFunc func(req, res *protocol.Message, sn *session)

// Server accepts framed vault requests over TCP or TLS. Each
// connection carries exactly one exchange; session state lives in the
// session table keyed by token, not on the connection.
type Server struct {
	cfg      Config
	store    *store.Store
	sessions *sessionTable
	methods  map[string]handlerFunc

	mu       sync.Mutex
	listener net.Listener
}

func New(cfg Config, st *store.Store) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = transport.DefaultReadTimeout
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		sessions: newSessionTable(cfg.SessionTTL),
	}
	s.methods = map[string]handlerFunc{
		protocol.MethodCreateUser:     s.handleCreateUser,
		protocol.MethodLoginRequest:   s.handleLoginRequest,
		protocol.MethodLoginTest:      s.handleLoginTest,
		protocol.MethodGetSources:     s.handleGetSources,
		protocol.MethodGetPassword:    s.handleGetPassword,
		protocol.MethodSetPassword:    s.handleSetPassword,
		protocol.MethodDeletePassword: s.handleDeletePassword,
		protocol.MethodDeleteUser:     s.handleDeleteUser,
	}
	return s
}

// Addr reports the listener address once Serve has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve binds the configured address and accepts connections until ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.sessions.sweep(ctx)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Info().Str("addr", ln.Addr().String()).Bool("tls", s.cfg.TLSCertFile != "").Msg("vault_server_listening")

	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.handleConn(raw)
	}
}

func (s *Server) listen() (net.Listener, error) {
	if s.cfg.TLSCertFile == "" && s.cfg.TLSKeyFile == "" {
		ln, err := net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
		}
		return ln, nil
	}
	if s.cfg.TLSCertFile == "" || s.cfg.TLSKeyFile == "" {
		return nil, ErrMissingTLSMaterial
	}

	cert, err := tls.LoadX509KeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("server: load tls keypair: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	ln, err := tls.Listen("tcp", s.cfg.Addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("server: listen tls %s: %w", s.cfg.Addr, err)
	}
	return ln, nil
}

// handleConn runs one request/response exchange and closes the socket.
func (s *Server) handleConn(raw net.Conn) {
	conn := transport.NewConn(raw, s.cfg.ReadTimeout)
	defer conn.Close()

	start := time.Now()

	req, err := conn.ReceiveMessage()
	if err != nil {
		log.Warn().Err(err).Str("peer", raw.RemoteAddr().String()).Msg("receive_failed")
		observability.RecordRequest("unknown", "error", time.Since(start))
		return
	}

	method, _ := req.Header(protocol.HeaderMethod)
	res, err := s.dispatch(req)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Msg("dispatch_failed")
		observability.RecordRequest(method, "error", time.Since(start))
		return
	}

	data, err := protocol.Encode(res)
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("encode_failed")
		observability.RecordRequest(method, "error", time.Since(start))
		return
	}
	if err := conn.Send(data); err != nil {
		log.Warn().Err(err).Str("method", method).Msg("send_failed")
		observability.RecordRequest(method, "error", time.Since(start))
		return
	}

	observability.RecordRequest(method, outcomeOf(res), time.Since(start))
	log.Debug().
		Str("method", method).
		Str("peer", raw.RemoteAddr().String()).
		Dur("elapsed", time.Since(start)).
		Msg("vault_request")
}

// dispatch resolves the session token, runs the method handler and
// honors the close-after-response marker.
func (s *Server) dispatch(req *protocol.Message) (*protocol.Message, error) {
	token, _ := req.Header(protocol.HeaderSession)
	if token == "" {
		token = protocol.SessionNone
	}

	// a fresh session was asked for
	if token == protocol.SessionNew {
		token = s.sessions.Create()
	}

	closeAfter := strings.HasPrefix(token, protocol.SessionClosePrefix)
	token = strings.TrimPrefix(token, protocol.SessionClosePrefix)

	var sn *session
	if token != protocol.SessionNone {
		sn = s.sessions.Get(token)
	}

	res := &protocol.Message{Direction: protocol.Response}
	res.SetHeader(protocol.HeaderSession, token)

	method, _ := req.Header(protocol.HeaderMethod)
	handler, ok := s.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	handler(req, res, sn)

	if closeAfter {
		s.sessions.Close(token)
	}
	return res, nil
}

// outcomeOf maps a response body to a metrics outcome label.
func outcomeOf(res *protocol.Message) string {
	switch {
	case len(res.Body) == 0:
		return "failure"
	case strings.HasPrefix(string(res.Body), "Failed"):
		return "failure"
	default:
		return "success"
	}
}
