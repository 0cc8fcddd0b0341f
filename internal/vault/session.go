// Package vault orchestrates the password-vault operations on top of
// the protocol client: account creation, the challenge-response login
// handshake, and CRUD on password entries.
//
// Plaintext passwords never cross the transport: SetPassword encrypts
// under the user's public key before sending, and GetPassword returns
// server-side ciphertext that only DecryptPassword can open.
package vault

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"passvault/internal/keys"
	"passvault/internal/protocol"
)

var (
	ErrNoKey            = errors.New("vault: no key pair loaded")
	ErrNotAuthenticated = errors.New("vault: not authenticated")
	ErrNoChallenge      = errors.New("vault: no outstanding login challenge")
	ErrMissingSession   = errors.New("vault: response missing session header")
	ErrLoginFailed      = errors.New("vault: login rejected")
	ErrRejected         = errors.New("vault: request rejected by server")
)

// SuccessBody is the literal response body the server sends when an
// operation succeeds.
const SuccessBody = "Success"

// State identifies the login handshake phase.
type State int

const (
	Anonymous State = iota
	AwaitingChallenge
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case AwaitingChallenge:
		return "awaiting-challenge"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Exchanger performs one request/response exchange. client.Client
// satisfies it; tests substitute in-memory fakes.
type Exchanger interface {
	Exchange(ctx context.Context, method string, body []byte, session string, contentType string) (*protocol.Message, error)
}

// Session owns the user's key pair and the server-issued session
// token, and drives the Anonymous -> AwaitingChallenge ->
// Authenticated state machine. A mutex serializes callers; the server
// supports only one in-flight exchange per logical session anyway.
type Session struct {
	mu        sync.Mutex
	exchanger Exchanger
	key       *rsa.PrivateKey

	state     State
	token     string
	challenge []byte
}

func New(exchanger Exchanger, key *rsa.PrivateKey) *Session {
	return &Session{
		exchanger: exchanger,
		key:       key,
		state:     Anonymous,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the active session token, or the no-session sentinel.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return protocol.SessionNone
	}
	return s.token
}

type createUserBody struct {
	UserName  string `json:"userName"`
	PublicKey string `json:"publicKey"`
}

// CreateUser registers username with the server, sending the public
// half of the key pair base64-encoded in a JSON body. It is stateless
// with respect to the login state machine; the literal server body is
// returned for the caller to interpret.
func (s *Session) CreateUser(ctx context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return "", ErrNoKey
	}

	der, err := keys.MarshalPublicDER(&s.key.PublicKey)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(createUserBody{
		UserName:  username,
		PublicKey: base64.StdEncoding.EncodeToString(der),
	})
	if err != nil {
		return "", err
	}

	res, err := s.exchanger.Exchange(ctx, protocol.MethodCreateUser, body, protocol.SessionNone, "json")
	if err != nil {
		return "", err
	}
	return string(res.Body), nil
}

// LoginRequest opens the handshake: the server issues a fresh session
// token and a random number encrypted under the user's public key. An
// empty response body means the user is unknown or the server refused;
// the state machine resets to Anonymous.
func (s *Session) LoginRequest(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return ErrNoKey
	}

	res, err := s.exchanger.Exchange(ctx, protocol.MethodLoginRequest, []byte(username), protocol.SessionNew, "ascii")
	if err != nil {
		s.reset()
		return err
	}
	token, ok := res.Header(protocol.HeaderSession)
	if !ok {
		s.reset()
		return ErrMissingSession
	}
	if len(res.Body) == 0 {
		s.reset()
		return fmt.Errorf("%w: unknown user %q", ErrLoginFailed, username)
	}

	s.state = AwaitingChallenge
	s.token = token
	s.challenge = append([]byte(nil), res.Body...)
	return nil
}

// LoginTest closes the handshake: the challenge is decrypted with the
// private key and sent back under the issued token. A "Success" body
// authenticates the session; anything else resets to Anonymous.
func (s *Session) LoginTest(ctx context.Context, challenge []byte, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return ErrNoKey
	}

	number, err := keys.Decrypt(s.key, challenge)
	if err != nil {
		s.reset()
		return err
	}

	res, err := s.exchanger.Exchange(ctx, protocol.MethodLoginTest, number, token, "bytes")
	if err != nil {
		s.reset()
		return err
	}
	if string(res.Body) != SuccessBody {
		s.reset()
		return fmt.Errorf("%w: %s", ErrLoginFailed, res.Body)
	}

	s.state = Authenticated
	s.token = token
	s.challenge = nil
	return nil
}

// Login runs the whole handshake for username.
func (s *Session) Login(ctx context.Context, username string) error {
	if err := s.LoginRequest(ctx, username); err != nil {
		return err
	}
	s.mu.Lock()
	challenge := s.challenge
	token := s.token
	s.mu.Unlock()
	if len(challenge) == 0 {
		return ErrNoChallenge
	}
	return s.LoginTest(ctx, challenge, token)
}

// Sources lists the source names with stored passwords. An empty
// response body signals server-side rejection (for example an expired
// session).
func (s *Session) Sources(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAuth(); err != nil {
		return nil, err
	}

	res, err := s.exchanger.Exchange(ctx, protocol.MethodGetSources, nil, s.token, "ascii")
	if err != nil {
		return nil, err
	}
	if len(res.Body) == 0 {
		return nil, ErrRejected
	}
	var sources []string
	if err := json.Unmarshal(res.Body, &sources); err != nil {
		return nil, fmt.Errorf("%w: malformed source list: %v", ErrRejected, err)
	}
	return sources, nil
}

// Password fetches the stored ciphertext for source. The server never
// sees the plaintext; pass the result to DecryptPassword.
func (s *Session) Password(ctx context.Context, source string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAuth(); err != nil {
		return nil, err
	}

	res, err := s.exchanger.Exchange(ctx, protocol.MethodGetPassword, []byte(source), s.token, "ascii")
	if err != nil {
		return nil, err
	}
	if len(res.Body) == 0 {
		return nil, ErrRejected
	}
	return res.Body, nil
}

// DecryptPassword recovers the plaintext from ciphertext returned by
// Password.
func (s *Session) DecryptPassword(ciphertext []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return "", ErrNoKey
	}
	plain, err := keys.Decrypt(s.key, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

type setPasswordBody struct {
	Source   string `json:"source"`
	Password string `json:"password"`
}

// SetPassword stores a password for source. The plaintext is encrypted
// under the user's public key and base64-encoded into the JSON body;
// the literal server body is returned.
func (s *Session) SetPassword(ctx context.Context, source, plaintext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAuth(); err != nil {
		return "", err
	}

	ciphertext, err := keys.Encrypt(&s.key.PublicKey, []byte(plaintext))
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(setPasswordBody{
		Source:   source,
		Password: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", err
	}

	res, err := s.exchanger.Exchange(ctx, protocol.MethodSetPassword, body, s.token, "json")
	if err != nil {
		return "", err
	}
	return string(res.Body), nil
}

// DeletePassword removes the stored password for source.
func (s *Session) DeletePassword(ctx context.Context, source string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAuth(); err != nil {
		return "", err
	}

	res, err := s.exchanger.Exchange(ctx, protocol.MethodDeletePassword, []byte(source), s.token, "ascii")
	if err != nil {
		return "", err
	}
	return string(res.Body), nil
}

// DeleteUser removes the logged-in user and every stored password. On
// success the session falls back to Anonymous.
func (s *Session) DeleteUser(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAuth(); err != nil {
		return "", err
	}

	res, err := s.exchanger.Exchange(ctx, protocol.MethodDeleteUser, nil, s.token, "ascii")
	if err != nil {
		return "", err
	}
	if string(res.Body) == SuccessBody {
		s.reset()
	}
	return string(res.Body), nil
}

// Logout asks the server to close the session by sending the token
// with the close prefix, then resets local state regardless of the
// server's answer.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAuth(); err != nil {
		return err
	}

	_, err := s.exchanger.Exchange(ctx, protocol.MethodGetSources, nil, protocol.SessionClosePrefix+s.token, "ascii")
	s.reset()
	return err
}

func (s *Session) requireAuth() error {
	if s.state != Authenticated {
		return fmt.Errorf("%w: state is %s", ErrNotAuthenticated, s.state)
	}
	return nil
}

// reset drops back to Anonymous. Callers hold the mutex.
func (s *Session) reset() {
	s.state = Anonymous
	s.token = ""
	s.challenge = nil
}
