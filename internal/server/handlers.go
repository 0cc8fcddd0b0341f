package server

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"passvault/internal/keys"
	"passvault/internal/protocol"
	"passvault/internal/server/store"
)

const challengeBytes = 8

// Body strings that authenticated clients key off.
const (
	bodySuccess          = "Success"
	bodyNoSession        = "Failed - no session"
	bodyNotLoggedIn      = "Failed - not logged in"
	bodyWrongNumber      = "Failed - incorrect number"
	bodyNoLoginNumber    = "Failed - no login number in session"
	bodyUsernameTaken    = "User with this username already exists, choose a different username"
	bodyPublicKeyTaken   = "User with this public key already exists, choose a different public key"
	bodySourceExists     = "Failed - password for source already exists"
	bodySourceMissing    = "Failed - password for source doesn't exist"
	bodyMalformedRequest = "Failed - malformed request body"
)

func bodyStoreError(err error) string {
	return fmt.Sprintf("Failed - server database error\n%v", err)
}

type createUserBody struct {
	UserName  string `json:"userName"`
	PublicKey string `json:"publicKey"`
}

type setPasswordBody struct {
	Source   string `json:"source"`
	Password string `json:"password"`
}

// asciiReply fills res with a textual status body.
func asciiReply(res *protocol.Message, method, body string) {
	res.Body = []byte(body)
	res.SetHeader(protocol.HeaderContentLength, fmt.Sprintf("%d", len(res.Body)))
	res.SetHeader(protocol.HeaderMethod, method)
	res.SetHeader(protocol.HeaderContentType, "ascii")
}

// emptyReply fills res with no body. Clients treat an empty body on the
// read paths as a rejection.
func emptyReply(res *protocol.Message, method string) {
	res.Body = nil
	res.SetHeader(protocol.HeaderContentLength, "0")
	res.SetHeader(protocol.HeaderMethod, method)
	res.SetHeader(protocol.HeaderContentType, "bytes")
}

func bytesReply(res *protocol.Message, method string, body []byte) {
	res.Body = body
	res.SetHeader(protocol.HeaderContentLength, fmt.Sprintf("%d", len(body)))
	res.SetHeader(protocol.HeaderMethod, method)
	res.SetHeader(protocol.HeaderContentType, "bytes")
}

func (s *Server) handleCreateUser(req, res *protocol.Message, _ *session) {
	var body createUserBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		asciiReply(res, protocol.MethodCreateUser, bodyMalformedRequest)
		return
	}
	publicKey, err := base64.StdEncoding.DecodeString(body.PublicKey)
	if err != nil || body.UserName == "" {
		asciiReply(res, protocol.MethodCreateUser, bodyMalformedRequest)
		return
	}

	switch err := s.store.CreateUser(body.UserName, publicKey); {
	case errors.Is(err, store.ErrUsernameTaken):
		asciiReply(res, protocol.MethodCreateUser, bodyUsernameTaken)
	case errors.Is(err, store.ErrPublicKeyTaken):
		asciiReply(res, protocol.MethodCreateUser, bodyPublicKeyTaken)
	case err != nil:
		asciiReply(res, protocol.MethodCreateUser, bodyStoreError(err))
	default:
		log.Info().Str("user", body.UserName).Msg("user_created")
		asciiReply(res, protocol.MethodCreateUser, bodySuccess)
	}
}

// handleLoginRequest answers with a fresh 64-bit challenge encrypted
// under the user's stored public key. Unknown users and sessionless
// requests get an empty body so that existence is not leaked.
func (s *Server) handleLoginRequest(req, res *protocol.Message, sn *session) {
	username := string(req.Body)

	if sn == nil {
		emptyReply(res, protocol.MethodLoginRequest)
		return
	}

	der, err := s.store.PublicKey(username)
	if err != nil {
		emptyReply(res, protocol.MethodLoginRequest)
		return
	}
	pub, err := keys.ParsePublicDER(der)
	if err != nil {
		emptyReply(res, protocol.MethodLoginRequest)
		return
	}

	challenge := make([]byte, challengeBytes)
	if _, err := rand.Read(challenge); err != nil {
		emptyReply(res, protocol.MethodLoginRequest)
		return
	}
	encrypted, err := keys.Encrypt(pub, challenge)
	if err != nil {
		emptyReply(res, protocol.MethodLoginRequest)
		return
	}

	sn.loginNumber = challenge
	sn.loginUser = username
	bytesReply(res, protocol.MethodLoginRequest, encrypted)
}

func (s *Server) handleLoginTest(req, res *protocol.Message, sn *session) {
	switch {
	case sn == nil:
		asciiReply(res, protocol.MethodLoginTest, bodyNoSession)
	case sn.loginNumber == nil || sn.loginUser == "":
		asciiReply(res, protocol.MethodLoginTest, bodyNoLoginNumber)
	case !bytes.Equal(req.Body, sn.loginNumber):
		asciiReply(res, protocol.MethodLoginTest, bodyWrongNumber)
	default:
		userID, err := s.store.UserID(sn.loginUser)
		if errors.Is(err, store.ErrUnknownUser) {
			asciiReply(res, protocol.MethodLoginTest, fmt.Sprintf("Failed - user %s doesn't exist", sn.loginUser))
			return
		}
		if err != nil {
			asciiReply(res, protocol.MethodLoginTest, bodyStoreError(err))
			return
		}
		sn.userID = userID
		sn.loggedIn = true
		log.Info().Str("user", sn.loginUser).Msg("login_succeeded")
		asciiReply(res, protocol.MethodLoginTest, bodySuccess)
	}
}

func (s *Server) handleGetSources(_, res *protocol.Message, sn *session) {
	if sn == nil || !sn.loggedIn {
		emptyReply(res, protocol.MethodGetSources)
		return
	}
	sources, err := s.store.Sources(sn.userID)
	if err != nil {
		emptyReply(res, protocol.MethodGetSources)
		return
	}
	if sources == nil {
		sources = []string{}
	}
	body, err := json.Marshal(sources)
	if err != nil {
		emptyReply(res, protocol.MethodGetSources)
		return
	}
	res.Body = body
	res.SetHeader(protocol.HeaderContentLength, fmt.Sprintf("%d", len(body)))
	res.SetHeader(protocol.HeaderMethod, protocol.MethodGetSources)
	res.SetHeader(protocol.HeaderContentType, "ascii json")
}

func (s *Server) handleGetPassword(req, res *protocol.Message, sn *session) {
	if sn == nil || !sn.loggedIn {
		emptyReply(res, protocol.MethodGetPassword)
		return
	}
	ciphertext, err := s.store.Password(sn.userID, string(req.Body))
	if err != nil {
		emptyReply(res, protocol.MethodGetPassword)
		return
	}
	bytesReply(res, protocol.MethodGetPassword, ciphertext)
}

func (s *Server) handleSetPassword(req, res *protocol.Message, sn *session) {
	if sn == nil {
		asciiReply(res, protocol.MethodSetPassword, bodyNoSession)
		return
	}
	if !sn.loggedIn {
		asciiReply(res, protocol.MethodSetPassword, bodyNotLoggedIn)
		return
	}

	var body setPasswordBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		asciiReply(res, protocol.MethodSetPassword, bodyMalformedRequest)
		return
	}
	ciphertext, err := base64.StdEncoding.DecodeString(body.Password)
	if err != nil {
		asciiReply(res, protocol.MethodSetPassword, bodyMalformedRequest)
		return
	}

	switch err := s.store.SetPassword(sn.userID, body.Source, ciphertext); {
	case errors.Is(err, store.ErrSourceExists):
		asciiReply(res, protocol.MethodSetPassword, bodySourceExists)
	case err != nil:
		asciiReply(res, protocol.MethodSetPassword, bodyStoreError(err))
	default:
		asciiReply(res, protocol.MethodSetPassword, bodySuccess)
	}
}

func (s *Server) handleDeletePassword(req, res *protocol.Message, sn *session) {
	if sn == nil {
		asciiReply(res, protocol.MethodDeletePassword, bodyNoSession)
		return
	}
	if !sn.loggedIn {
		asciiReply(res, protocol.MethodDeletePassword, bodyNotLoggedIn)
		return
	}

	switch err := s.store.DeletePassword(sn.userID, string(req.Body)); {
	case errors.Is(err, store.ErrUnknownSource):
		asciiReply(res, protocol.MethodDeletePassword, bodySourceMissing)
	case err != nil:
		asciiReply(res, protocol.MethodDeletePassword, bodyStoreError(err))
	default:
		asciiReply(res, protocol.MethodDeletePassword, bodySuccess)
	}
}

func (s *Server) handleDeleteUser(_, res *protocol.Message, sn *session) {
	if sn == nil {
		asciiReply(res, protocol.MethodDeleteUser, bodyNoSession)
		return
	}
	if !sn.loggedIn {
		asciiReply(res, protocol.MethodDeleteUser, bodyNotLoggedIn)
		return
	}

	if err := s.store.DeleteUser(sn.userID); err != nil {
		asciiReply(res, protocol.MethodDeleteUser, bodyStoreError(err))
		return
	}
	log.Info().Str("user", sn.loginUser).Msg("user_deleted")
	sn.loggedIn = false
	sn.userID = 0
	asciiReply(res, protocol.MethodDeleteUser, bodySuccess)
}
