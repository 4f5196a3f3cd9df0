package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/BuzzLyutic/study-planner/internal/model"
)

// GoogleVerifier checks Google Sign-In ID tokens issued for clientID.
type GoogleVerifier struct {
	validator *idtoken.Validator
	clientID  string
}

func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("google verifier: client id is required")
	}
	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("google verifier: %w", err)
	}
	return &GoogleVerifier{validator: v, clientID: clientID}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	payload, err := g.validator.Validate(ctx, token, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return identityFromClaims(payload.Subject, payload.Claims), nil
}

func identityFromClaims(subject string, claims map[string]interface{}) *model.Identity {
	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}
	return model.NewIdentity(subject, str("name"), str("email"), str("picture"))
}

// DevVerifier accepts any non-empty token and uses it as the uid. Only meant
// for local development without a Google client id.
type DevVerifier struct{}

func (DevVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	return model.NewIdentity(token, "", "", ""), nil
}
