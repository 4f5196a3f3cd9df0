package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/study-planner/internal/model"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Verifier turns a sign-in token into an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// Session holds the current identity and broadcasts every change to it.
type Session struct {
	verifier Verifier
	logger   *zap.Logger

	mu      sync.Mutex
	current *model.Identity
	subs    map[int]chan *model.Identity
	nextID  int
}

func NewSession(verifier Verifier, logger *zap.Logger) *Session {
	return &Session{
		verifier: verifier,
		logger:   logger,
		subs:     make(map[int]chan *model.Identity),
	}
}

func (s *Session) Current() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a channel that carries the current identity first and
// then every later one. Only the newest value is kept for a slow reader.
// The returned func unsubscribes and closes the channel.
func (s *Session) Subscribe() (<-chan *model.Identity, func()) {
	ch := make(chan *model.Identity, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.current
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) SignIn(ctx context.Context, token string) (*model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	s.SetIdentity(identity)
	s.logger.Info("signed in", zap.String("uid", identity.UID))
	return identity, nil
}

func (s *Session) SignOut() {
	if prev := s.Current(); prev != nil {
		s.logger.Info("signed out", zap.String("uid", prev.UID))
	}
	s.SetIdentity(nil)
}

// SetIdentity replaces the current identity without verification.
func (s *Session) SetIdentity(identity *model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = identity
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- identity
	}
}

func (s *Session) Profile() *model.UserProfile {
	identity := s.Current()
	if identity == nil {
		return nil
	}
	p := identity.Profile
	return &p
}
