package auth

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/user/entity"
)

// Principals is the user lookup the issuer and the authenticator depend on.
type Principals interface {
	AuthenticatePassword(ctx context.Context, username, password string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
}

// SessionPair is returned by login and refresh. Nothing about it is stored.
type SessionPair struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

var (
	ErrTokenExpired    = apperr.Unauthorized("Token expired.")
	ErrNotRefreshToken = apperr.Unauthorized("Not a refresh token.")
)

var tracer = otel.Tracer("tasklist/auth")

// SessionIssuer mints token pairs on login and refresh.
type SessionIssuer struct {
	codec      *TokenCodec
	users      Principals
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.SugaredLogger
}

func NewSessionIssuer(codec *TokenCodec, users Principals, accessTTL, refreshTTL time.Duration, logger *zap.SugaredLogger) *SessionIssuer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SessionIssuer{codec: codec, users: users, accessTTL: accessTTL, refreshTTL: refreshTTL, logger: logger}
}

// Login checks the credentials and mints a fresh pair.
func (s *SessionIssuer) Login(ctx context.Context, username, password string) (*SessionPair, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	u, err := s.users.AuthenticatePassword(ctx, username, password)
	if err != nil {
		logins.WithLabelValues("login", apperr.KindOf(err).String()).Inc()
		span.SetStatus(codes.Error, "login failed")
		s.logger.Debugw("login failed", "username", username, "err", err)
		return nil, err
	}
	pair, err := s.mint(u)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	logins.WithLabelValues("login", "ok").Inc()
	span.SetAttributes(attribute.Int64("user.id", u.ID))
	return pair, nil
}

// Refresh exchanges a live refresh token for a new pair carrying the user's
// current roles.
func (s *SessionIssuer) Refresh(ctx context.Context, token string) (*SessionPair, error) {
	ctx, span := tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	pair, err := s.refresh(ctx, token)
	if err != nil {
		logins.WithLabelValues("refresh", apperr.KindOf(err).String()).Inc()
		span.SetStatus(codes.Error, "refresh failed")
		s.logger.Debugw("refresh failed", "err", err)
		return nil, err
	}
	logins.WithLabelValues("refresh", "ok").Inc()
	span.SetAttributes(attribute.Int64("user.id", pair.ID))
	return pair, nil
}

func (s *SessionIssuer) refresh(ctx context.Context, token string) (*SessionPair, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenRefresh {
		return nil, ErrNotRefreshToken
	}
	if !s.codec.live(claims) {
		return nil, ErrTokenExpired
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.mint(u)
}

func (s *SessionIssuer) mint(u *entity.User) (*SessionPair, error) {
	access, err := s.codec.Encode(TokenAccess, u.ID, u.Username, u.RoleNames(), s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Encode(TokenRefresh, u.ID, u.Username, nil, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	tokensIssued.WithLabelValues(string(TokenAccess)).Inc()
	tokensIssued.WithLabelValues(string(TokenRefresh)).Inc()
	return &SessionPair{ID: u.ID, Username: u.Username, AccessToken: access, RefreshToken: refresh}, nil
}
