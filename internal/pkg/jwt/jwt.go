package jwt

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var ErrNoUserID = errors.New("token has no user_id claim")

type Service interface {
	// UserIDFromAccessToken reads the user_id claim of a platform access token.
	// The signature is not checked: the client cannot, and the server does on every call.
	UserIDFromAccessToken(token string) (string, error)
	// GenerateLocalToken issues a token for the local consumer API.
	GenerateLocalToken(userID string, ttl time.Duration) (string, error)
	// JWTAuth returns the local API verifier, nil when the local API is unauthenticated.
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	tokenAuth *jwtauth.JWTAuth
}

// NewJWTService creates the service. An empty localSecret disables local API auth.
func NewJWTService(localSecret string) Service {
	s := &JWTService{}
	if localSecret != "" {
		s.tokenAuth = jwtauth.New("HS256", []byte(localSecret), nil, jwt.WithAcceptableSkew(30*time.Second))
	}
	return s
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) UserIDFromAccessToken(token string) (string, error) {
	parsed, err := jwt.ParseString(token,
		jwt.WithVerify(false),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	if err != nil {
		return "", err
	}

	userIDVal, ok := parsed.Get("user_id")
	if !ok {
		if parsed.Subject() != "" {
			return parsed.Subject(), nil
		}
		return "", ErrNoUserID
	}

	userID, ok := userIDVal.(string)
	if !ok || userID == "" {
		return "", ErrNoUserID
	}
	return userID, nil
}

func (j *JWTService) GenerateLocalToken(userID string, ttl time.Duration) (string, error) {
	if j.tokenAuth == nil {
		return "", errors.New("local API auth is disabled")
	}
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id": userID,
		"type":    "local",
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return tokenString, err
}
