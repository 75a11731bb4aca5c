// Package account signs users in and out and keeps the persisted session in
// step with the server's answer.
package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/session"
	"github.com/bazarteer/bazaar/internal/validate"
)

// Authenticator is the part of the API the account service needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
}

// Sessions persists the outcome of login, signup and logout.
type Sessions interface {
	Replace(s session.Session) error
	Clear() error
}

// Service implements login, signup and logout.
type Service struct {
	auth     Authenticator
	sessions Sessions
	log      *zap.Logger
}

// New returns a Service.
func New(auth Authenticator, sessions Sessions, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{auth: auth, sessions: sessions, log: log}
}

// Error is a rejected login or signup. Message is what the user sees.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SignupForm is the registration form.
type SignupForm struct {
	Name            string `json:"name" validate:"required"`
	Surname         string `json:"surname" validate:"required"`
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// MinPasswordLength is the shortest password signup accepts.
const MinPasswordLength = 6

var loginMessages = map[string]string{
	"username": "Please enter your username and password",
	"password": "Please enter your username and password",
}

var signupMessages = map[string]string{
	"name":            "Please fill in all fields",
	"surname":         "Please fill in all fields",
	"username":        "Please fill in all fields",
	"password":        "Please fill in all fields",
	"confirmPassword": "Please fill in all fields",
}

// Validate checks the signup form: every field present, then matching
// passwords, then password length.
func (f SignupForm) Validate() error {
	if err := validate.Struct(f, signupMessages); err != nil {
		if verr, ok := err.(*validate.Error); ok && verr.Rule == "eqfield" {
			verr.Message = "Passwords do not match"
		}
		return err
	}
	return validate.Var(f.Password, fmt.Sprintf("min=%d", MinPasswordLength), "password",
		fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
}

// Login authenticates and persists the resulting session.
func (s *Service) Login(ctx context.Context, c Credentials) (session.Session, error) {
	if err := validate.Struct(c, loginMessages); err != nil {
		return session.Session{}, err
	}
	cred, err := s.auth.Login(ctx, c.Username, c.Password)
	if err != nil {
		s.log.Info("login failed", zap.String("username", c.Username), zap.Error(err))
		return session.Session{}, &Error{Message: api.MessageOr(err, "Login failed"), Err: err}
	}
	return s.establish(cred, c.Username)
}

// Signup registers a new account and signs it in.
func (s *Service) Signup(ctx context.Context, f SignupForm) (session.Session, error) {
	if err := f.Validate(); err != nil {
		return session.Session{}, err
	}
	cred, err := s.auth.Register(ctx, api.RegisterRequest{
		Name:     f.Name,
		Surname:  f.Surname,
		Username: f.Username,
		Password: f.Password,
	})
	if err != nil {
		s.log.Info("signup failed", zap.String("username", f.Username), zap.Error(err))
		return session.Session{}, &Error{Message: api.MessageOr(err, "Registration failed"), Err: err}
	}
	return s.establish(cred, f.Username)
}

// Logout forgets the persisted session.
func (s *Service) Logout() error {
	return s.sessions.Clear()
}

func (s *Service) establish(cred, username string) (session.Session, error) {
	sess := session.Session{Credential: session.SanitizeCredential(cred), Username: username}
	if err := s.sessions.Replace(sess); err != nil {
		return session.Session{}, fmt.Errorf("saving session: %w", err)
	}
	s.log.Info("signed in", zap.String("username", username))
	return sess, nil
}
