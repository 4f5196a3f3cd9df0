package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/study-planner/internal/model"
)

func next(t *testing.T, ch <-chan *model.Identity) *model.Identity {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(time.Second):
		t.Fatal("no identity emitted")
		return nil
	}
}

func TestSession_SubscribeEmitsCurrentThenChanges(t *testing.T) {
	s := NewSession(DevVerifier{}, zap.NewNop())

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	assert.Nil(t, next(t, ch))

	id, err := s.SignIn(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UID)
	assert.Equal(t, "alice", next(t, ch).UID)

	s.SignOut()
	assert.Nil(t, next(t, ch))
	assert.Nil(t, s.Current())
	assert.Nil(t, s.Profile())
}

func TestSession_SlowSubscriberSeesLatest(t *testing.T) {
	s := NewSession(DevVerifier{}, zap.NewNop())
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.SetIdentity(model.NewIdentity("a", "", "", ""))
	s.SetIdentity(model.NewIdentity("b", "", "", ""))
	s.SetIdentity(model.NewIdentity("c", "", "", ""))

	assert.Equal(t, "c", next(t, ch).UID)
}

func TestSession_UnsubscribeCloses(t *testing.T) {
	s := NewSession(DevVerifier{}, zap.NewNop())
	ch, unsubscribe := s.Subscribe()
	<-ch
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	s.SetIdentity(model.NewIdentity("a", "", "", ""))
}

func TestSession_RejectsEmptyToken(t *testing.T) {
	s := NewSession(DevVerifier{}, zap.NewNop())
	_, err := s.SignIn(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, s.Current())
}

func TestIdentityFromClaims(t *testing.T) {
	id := identityFromClaims("sub-1", map[string]interface{}{
		"name":    "Ada",
		"email":   "ada@example.com",
		"picture": "https://example.com/ada.png",
	})
	assert.Equal(t, "sub-1", id.UID)
	assert.Equal(t, "Ada", id.Profile.DisplayName)
	assert.Equal(t, "https://example.com/ada.png", id.Profile.PhotoURL)

	bare := identityFromClaims("sub-2", map[string]interface{}{})
	assert.Equal(t, model.DefaultDisplayName, bare.Profile.DisplayName)
	assert.Equal(t, model.DefaultEmail, bare.Profile.Email)
}
