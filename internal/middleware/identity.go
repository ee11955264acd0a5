package middleware

// identity.go turns a request's token into a verified CurrentUser.  The
// token is only trusted after the named user has been re-read from the
// store, and the id and role handed to handlers come from that row.

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/model"
	"github.com/iliyamo/cereal-api/internal/repository"
	"github.com/iliyamo/cereal-api/internal/utils"
)

// TokenCookie is the cookie login sets and the resolver reads first.
const TokenCookie = "token"

const currentUserKey = "current_user"

// CurrentUser is the authenticated caller as stored right now.
type CurrentUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserLookup is the part of the user store the resolver needs.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

// ExtractToken returns the raw token of a request: the "token" cookie when
// present, otherwise the credentials of an "Authorization: Bearer" header.
// The empty string means no token was supplied.
func ExtractToken(cookies []*http.Cookie, header http.Header) string {
	for _, ck := range cookies {
		if ck.Name == TokenCookie && strings.TrimSpace(ck.Value) != "" {
			return strings.TrimSpace(ck.Value)
		}
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Resolver validates tokens and re-checks their subject against the store.
type Resolver struct {
	Users    UserLookup
	Secret   string
	Issuer   string
	Audience string
	Now      func() time.Time // nil means time.Now
	Log      *zap.Logger      // optional; store failures are logged here
}

// Resolve returns the current user for token.  Every failure, including a
// valid token whose user no longer exists, yields ok == false.
func (r *Resolver) Resolve(ctx context.Context, token string) (CurrentUser, bool) {
	if strings.TrimSpace(token) == "" {
		return CurrentUser{}, false
	}
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	id, ok := utils.ValidateToken(token, r.Secret, utils.TokenExpectations{
		Issuer:   r.Issuer,
		Audience: r.Audience,
		Now:      now,
	})
	if !ok || id.UserID == 0 || strings.TrimSpace(id.Username) == "" {
		return CurrentUser{}, false
	}

	u, err := r.Users.GetByUsername(ctx, id.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) && r.Log != nil {
			r.Log.Warn("resolve identity: user lookup failed", zap.String("username", id.Username), zap.Error(err))
		}
		return CurrentUser{}, false
	}
	// The name was freed and taken by someone else since the token was issued.
	if u.ID != id.UserID {
		return CurrentUser{}, false
	}
	return CurrentUser{ID: u.ID, Username: u.Username, Role: u.Role}, true
}

// CurrentUserFrom returns the user stored by Authenticate.
func CurrentUserFrom(c echo.Context) (CurrentUser, bool) {
	u, ok := c.Get(currentUserKey).(CurrentUser)
	return u, ok
}

func setCurrentUser(c echo.Context, u CurrentUser) {
	c.Set(currentUserKey, u)
}
