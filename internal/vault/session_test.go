package vault

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"passvault/internal/keys"
	"passvault/internal/protocol"
)

// fakeVault implements Exchanger with the server's method semantics
// in memory: random tokens, an 8-byte encrypted login challenge, and
// per-user password storage.
type fakeVault struct {
	t *testing.T

	users     map[string]*rsa.PublicKey
	passwords map[string]map[string][]byte
	sessions  map[string]*fakeSession
	nextToken int
}

type fakeSession struct {
	loginNumber []byte
	loginUser   string
	loggedIn    string
}

func newFakeVault(t *testing.T) *fakeVault {
	return &fakeVault{
		t:         t,
		users:     make(map[string]*rsa.PublicKey),
		passwords: make(map[string]map[string][]byte),
		sessions:  make(map[string]*fakeSession),
	}
}

func (f *fakeVault) respond(session string, body []byte) *protocol.Message {
	res := &protocol.Message{Direction: protocol.Response}
	res.SetHeader(protocol.HeaderSession, session)
	res.SetHeader(protocol.HeaderContentLength, strconv.Itoa(len(body)))
	res.Body = body
	return res
}

func (f *fakeVault) Exchange(_ context.Context, method string, body []byte, session string, _ string) (*protocol.Message, error) {
	if session == protocol.SessionNew {
		f.nextToken++
		session = fmt.Sprintf("S%d", f.nextToken)
		f.sessions[session] = &fakeSession{}
	}
	closing := false
	if strings.HasPrefix(session, protocol.SessionClosePrefix) {
		session = strings.TrimPrefix(session, protocol.SessionClosePrefix)
		closing = true
	}
	sn := f.sessions[session]
	defer func() {
		if closing {
			delete(f.sessions, session)
		}
	}()

	switch method {
	case protocol.MethodCreateUser:
		var req struct {
			UserName  string `json:"userName"`
			PublicKey string `json:"publicKey"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			f.t.Fatalf("fake vault: create_user body: %v", err)
		}
		if _, exists := f.users[req.UserName]; exists {
			return f.respond(session, []byte("User with this username already exists, choose a different username")), nil
		}
		der, err := base64.StdEncoding.DecodeString(req.PublicKey)
		if err != nil {
			f.t.Fatalf("fake vault: public key base64: %v", err)
		}
		pub, err := keys.ParsePublicDER(der)
		if err != nil {
			f.t.Fatalf("fake vault: public key der: %v", err)
		}
		f.users[req.UserName] = pub
		f.passwords[req.UserName] = make(map[string][]byte)
		return f.respond(session, []byte(SuccessBody)), nil

	case protocol.MethodLoginRequest:
		username := string(body)
		pub, exists := f.users[username]
		if !exists || sn == nil {
			return f.respond(session, nil), nil
		}
		number := make([]byte, 8)
		if _, err := rand.Read(number); err != nil {
			f.t.Fatalf("fake vault: random: %v", err)
		}
		encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, pub, number)
		if err != nil {
			f.t.Fatalf("fake vault: encrypt challenge: %v", err)
		}
		sn.loginNumber = number
		sn.loginUser = username
		return f.respond(session, encrypted), nil

	case protocol.MethodLoginTest:
		if sn == nil || sn.loginNumber == nil {
			return f.respond(session, []byte("Failed - no session")), nil
		}
		if string(body) != string(sn.loginNumber) {
			return f.respond(session, []byte("Failed - incorrect number")), nil
		}
		sn.loggedIn = sn.loginUser
		return f.respond(session, []byte(SuccessBody)), nil

	case protocol.MethodGetSources:
		if sn == nil || sn.loggedIn == "" {
			return f.respond(session, nil), nil
		}
		sources := make([]string, 0, len(f.passwords[sn.loggedIn]))
		for source := range f.passwords[sn.loggedIn] {
			sources = append(sources, source)
		}
		out, err := json.Marshal(sources)
		if err != nil {
			f.t.Fatalf("fake vault: marshal sources: %v", err)
		}
		return f.respond(session, out), nil

	case protocol.MethodGetPassword:
		if sn == nil || sn.loggedIn == "" {
			return f.respond(session, nil), nil
		}
		ciphertext, ok := f.passwords[sn.loggedIn][string(body)]
		if !ok {
			return f.respond(session, nil), nil
		}
		return f.respond(session, ciphertext), nil

	case protocol.MethodSetPassword:
		if sn == nil || sn.loggedIn == "" {
			return f.respond(session, []byte("Failed - not logged in")), nil
		}
		var req struct {
			Source   string `json:"source"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			f.t.Fatalf("fake vault: set_password body: %v", err)
		}
		if _, exists := f.passwords[sn.loggedIn][req.Source]; exists {
			return f.respond(session, []byte("Failed - password for source already exists")), nil
		}
		ciphertext, err := base64.StdEncoding.DecodeString(req.Password)
		if err != nil {
			f.t.Fatalf("fake vault: password base64: %v", err)
		}
		f.passwords[sn.loggedIn][req.Source] = ciphertext
		return f.respond(session, []byte(SuccessBody)), nil

	case protocol.MethodDeletePassword:
		if sn == nil || sn.loggedIn == "" {
			return f.respond(session, []byte("Failed - not logged in")), nil
		}
		if _, exists := f.passwords[sn.loggedIn][string(body)]; !exists {
			return f.respond(session, []byte("Failed - password for source doesn't exist")), nil
		}
		delete(f.passwords[sn.loggedIn], string(body))
		return f.respond(session, []byte(SuccessBody)), nil

	case protocol.MethodDeleteUser:
		if sn == nil || sn.loggedIn == "" {
			return f.respond(session, []byte("Failed - not logged in")), nil
		}
		delete(f.passwords, sn.loggedIn)
		delete(f.users, sn.loggedIn)
		sn.loggedIn = ""
		return f.respond(session, []byte(SuccessBody)), nil

	default:
		f.t.Fatalf("fake vault: unexpected method %q", method)
		return nil, nil
	}
}

func newTestSession(t *testing.T) (*Session, *fakeVault, *rsa.PrivateKey) {
	t.Helper()
	key, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fake := newFakeVault(t)
	return New(fake, key), fake, key
}

func TestLoginHandshake(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	body, err := s.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if body != SuccessBody {
		t.Fatalf("create user body: %q", body)
	}
	if s.State() != Anonymous {
		t.Fatalf("create user must not change state, got %s", s.State())
	}

	if err := s.LoginRequest(ctx, "alice"); err != nil {
		t.Fatalf("login request: %v", err)
	}
	if s.State() != AwaitingChallenge {
		t.Fatalf("expected awaiting-challenge, got %s", s.State())
	}

	if err := s.LoginTest(ctx, s.challenge, s.token); err != nil {
		t.Fatalf("login test: %v", err)
	}
	if s.State() != Authenticated {
		t.Fatalf("expected authenticated, got %s", s.State())
	}
	if s.Token() == protocol.SessionNone {
		t.Fatalf("expected an active token")
	}
}

func TestLoginUnknownUser(t *testing.T) {
	s, _, _ := newTestSession(t)

	err := s.LoginRequest(context.Background(), "nobody")
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	if s.State() != Anonymous {
		t.Fatalf("expected anonymous after rejected login, got %s", s.State())
	}
}

func TestLoginTamperedChallenge(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.LoginRequest(ctx, "alice"); err != nil {
		t.Fatalf("login request: %v", err)
	}

	tampered := append([]byte(nil), s.challenge...)
	tampered[0] ^= 0xff
	tampered[len(tampered)-1] ^= 0xff

	err := s.LoginTest(ctx, tampered, s.token)
	if !errors.Is(err, keys.ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
	if s.State() != Anonymous {
		t.Fatalf("expected anonymous after tampered challenge, got %s", s.State())
	}
}

func TestLoginWrongNumber(t *testing.T) {
	s, _, key := newTestSession(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.LoginRequest(ctx, "alice"); err != nil {
		t.Fatalf("login request: %v", err)
	}

	// A challenge encrypted for the right key but carrying a number
	// the server never issued.
	bogus, err := rsa.EncryptPKCS1v15(rand.Reader, &key.PublicKey, []byte("12345678"))
	if err != nil {
		t.Fatalf("encrypt bogus challenge: %v", err)
	}

	err = s.LoginTest(ctx, bogus, s.Token())
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	if s.State() != Anonymous {
		t.Fatalf("expected anonymous after failed test, got %s", s.State())
	}
}

func TestVaultOperationsRequireAuthentication(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	if _, err := s.Sources(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Sources: expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := s.Password(ctx, "github"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Password: expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := s.SetPassword(ctx, "github", "p@ss"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("SetPassword: expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := s.DeletePassword(ctx, "github"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("DeletePassword: expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := s.DeleteUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("DeleteUser: expected ErrNotAuthenticated, got %v", err)
	}
}

func TestPasswordLifecycle(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.Login(ctx, "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}

	body, err := s.SetPassword(ctx, "github", "p@ss")
	if err != nil {
		t.Fatalf("set password: %v", err)
	}
	if body != SuccessBody {
		t.Fatalf("set password body: %q", body)
	}

	// Storing a second password under the same source is a protocol
	// failure reported in the body, not an error.
	body, err = s.SetPassword(ctx, "github", "other")
	if err != nil {
		t.Fatalf("set password duplicate: %v", err)
	}
	if body == SuccessBody {
		t.Fatalf("expected failure body for duplicate source")
	}

	sources, err := s.Sources(ctx)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 1 || sources[0] != "github" {
		t.Fatalf("sources mismatch: %v", sources)
	}

	ciphertext, err := s.Password(ctx, "github")
	if err != nil {
		t.Fatalf("password: %v", err)
	}
	if string(ciphertext) == "p@ss" {
		t.Fatalf("server returned plaintext")
	}
	plain, err := s.DecryptPassword(ciphertext)
	if err != nil {
		t.Fatalf("decrypt password: %v", err)
	}
	if plain != "p@ss" {
		t.Fatalf("plaintext mismatch: %q", plain)
	}

	if body, err = s.DeletePassword(ctx, "github"); err != nil || body != SuccessBody {
		t.Fatalf("delete password: body=%q err=%v", body, err)
	}
	if _, err := s.Password(ctx, "github"); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected for deleted source, got %v", err)
	}
}

func TestDeleteUserResetsState(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.Login(ctx, "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}

	body, err := s.DeleteUser(ctx)
	if err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if body != SuccessBody {
		t.Fatalf("delete user body: %q", body)
	}
	if s.State() != Anonymous {
		t.Fatalf("expected anonymous after delete, got %s", s.State())
	}
	if s.Token() != protocol.SessionNone {
		t.Fatalf("expected no-session token, got %q", s.Token())
	}
}

func TestLogoutClosesServerSession(t *testing.T) {
	s, fake, _ := newTestSession(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.Login(ctx, "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	token := s.Token()

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.State() != Anonymous {
		t.Fatalf("expected anonymous after logout, got %s", s.State())
	}
	if _, exists := fake.sessions[token]; exists {
		t.Fatalf("server session %q still open after logout", token)
	}
}
