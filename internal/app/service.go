package app

import (
	"context"
	"strings"
	"time"
	"unicode"

	"tradepost/api/internal/auth"
	"tradepost/api/internal/authpw"
	"tradepost/api/internal/config"
	"tradepost/api/internal/search"
	"tradepost/api/internal/session"
	"tradepost/api/internal/store"
	"tradepost/api/internal/util"
)

// Session is the request-scoped identity passed into every core operation.
// Core code never reads identity from anywhere else.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Username     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type entityStore interface {
	CreateUser(ctx context.Context, user store.User) (string, error)
	GetUser(ctx context.Context, id string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	FindUserForReset(ctx context.Context, email, birthdate string) (store.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	SetUserNotifications(ctx context.Context, id string, notifications []store.Notification) error
	InsertOfferable(ctx context.Context, o store.Offerable) (string, error)
	GetOfferable(ctx context.Context, kind store.Kind, id string) (store.Offerable, error)
	ListOfferables(ctx context.Context, kind store.Kind, visibilities []string) ([]store.Offerable, error)
	SetInterested(ctx context.Context, kind store.Kind, id string, userIDs []string) error
	SetAcceptance(ctx context.Context, kind store.Kind, id, acceptedUserID, status string) error
	InsertComment(ctx context.Context, comment store.Comment) error
	ListComments(ctx context.Context, kind store.Kind, subjectID string) ([]store.Comment, error)
	InsertRating(ctx context.Context, rating store.Rating) error
	ListRatings(ctx context.Context, targetUserID string) ([]store.Rating, error)
	InsertGroup(ctx context.Context, group store.Group) (string, error)
	GetGroup(ctx context.Context, id string) (store.Group, error)
	AddGroupMember(ctx context.Context, id, userID string) error
	ListGroupNamesForUser(ctx context.Context, userID string) ([]string, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexListing(rec search.ListingRecord)
}

type Service struct {
	cfg      config.Config
	store    entityStore
	sessions sessionStore
	search   searchService
	accounts *authpw.Service
}

func New(cfg config.Config, entities *store.MongoStore, sessions *session.RedisStore, searchSvc *search.Service, accounts *authpw.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    entities,
		sessions: sessions,
		search:   searchSvc,
		accounts: accounts,
	}
}

// Accounts exposes the email/password flows to the handler layer.
func (s *Service) Accounts() *authpw.Service {
	return s.accounts
}

// CreateSession issues an access token and a refresh token for a signed-in
// user.
func (s *Service) CreateSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewToken(8)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.Username,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken(32)
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token and issues a new session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.CreateSession(ctx, user)
}

// SessionFromToken validates an access token and rebuilds the session
// identity from its claims.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		Username:  claims.Name,
		Email:     claims.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Logout revokes the refresh token; the access token simply expires.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

// Profile returns the caller's account with their rating summary.
func (s *Service) Profile(ctx context.Context, sess Session) (map[string]any, error) {
	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	summary, err := s.UserRatings(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"birthdate": user.Birthdate,
		"rating":    summary,
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// Search runs a listing search.
func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// capitalizeFirst upcases the first rune of a display name the way the
// templates rendered names.
func capitalizeFirst(value string) string {
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
