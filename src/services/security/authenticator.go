package security

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/nas-ai/uploads-api/src/config"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthorized      = errors.New("authentication failed")
	ErrInsufficientScope = errors.New("credentials do not grant this operation")
)

// Scope is the level of access a request needs.
type Scope int

const (
	ScopeRead Scope = iota
	ScopeWrite
)

func (s Scope) String() string {
	if s == ScopeWrite {
		return "write"
	}
	return "read"
}

// Credentials is whatever a request presented. Which fields matter depends
// on the authenticator variant.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// Authenticator decides whether credentials grant a scope.
type Authenticator interface {
	Authenticate(creds Credentials, scope Scope) error
	Mode() string
}

// NewAuthenticator picks the variant configured at startup.
func NewAuthenticator(cfg *config.Config) (Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthModeToken:
		return NewSharedTokenAuthenticator(cfg.WriteToken, cfg.ReadToken)
	case config.AuthModePassword:
		return NewUsernamePasswordAuthenticator(cfg.Username, cfg.Password, cfg.PasswordHash)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

// SharedTokenAuthenticator compares a bearer token against static secrets.
// The write token grants every scope; the optional read token only reads.
type SharedTokenAuthenticator struct {
	writeToken []byte
	readToken  []byte
}

func NewSharedTokenAuthenticator(writeToken, readToken string) (*SharedTokenAuthenticator, error) {
	if writeToken == "" {
		return nil, fmt.Errorf("write token is required")
	}
	a := &SharedTokenAuthenticator{writeToken: []byte(writeToken)}
	if readToken != "" {
		a.readToken = []byte(readToken)
	}
	return a, nil
}

func (a *SharedTokenAuthenticator) Mode() string { return config.AuthModeToken }

func (a *SharedTokenAuthenticator) Authenticate(creds Credentials, scope Scope) error {
	if creds.Token == "" {
		return ErrUnauthorized
	}
	token := []byte(creds.Token)

	if subtle.ConstantTimeCompare(token, a.writeToken) == 1 {
		return nil
	}
	if a.readToken != nil && subtle.ConstantTimeCompare(token, a.readToken) == 1 {
		if scope == ScopeRead {
			return nil
		}
		return ErrInsufficientScope
	}
	return ErrUnauthorized
}

// UsernamePasswordAuthenticator checks one configured account. The password
// may be configured in clear text or as a bcrypt hash.
type UsernamePasswordAuthenticator struct {
	username     []byte
	password     []byte
	passwordHash []byte
}

func NewUsernamePasswordAuthenticator(username, password, passwordHash string) (*UsernamePasswordAuthenticator, error) {
	if err := config.ValidateCredentials(username, password, passwordHash); err != nil {
		return nil, err
	}
	a := &UsernamePasswordAuthenticator{username: []byte(username)}
	if passwordHash != "" {
		a.passwordHash = []byte(passwordHash)
	} else {
		a.password = []byte(password)
	}
	return a, nil
}

func (a *UsernamePasswordAuthenticator) Mode() string { return config.AuthModePassword }

func (a *UsernamePasswordAuthenticator) Authenticate(creds Credentials, _ Scope) error {
	if creds.Username == "" || creds.Password == "" {
		return ErrUnauthorized
	}
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), a.username) == 1

	var passOK bool
	if a.passwordHash != nil {
		passOK = bcrypt.CompareHashAndPassword(a.passwordHash, []byte(creds.Password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(creds.Password), a.password) == 1
	}

	if !userOK || !passOK {
		return ErrUnauthorized
	}
	return nil
}
