package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/config"
	"github.com/iliyamo/cereal-api/internal/middleware"
	"github.com/iliyamo/cereal-api/internal/model"
	"github.com/iliyamo/cereal-api/internal/repository"
	"github.com/iliyamo/cereal-api/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Hasher utils.PasswordHasher
	Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		Cfg:    cfg,
		Users:  users,
		Hasher: utils.NewPasswordHasher(cfg.PasswordIterations),
		Log:    log,
	}
}

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResp struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func bindCredentials(c echo.Context) (credentialsReq, bool) {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return req, false
	}
	req.Username = strings.TrimSpace(req.Username)
	return req, req.Username != "" && req.Password != ""
}

// Register creates an account with the baseline role.
func (h *AuthHandler) Register(c echo.Context) error {
	req, ok := bindCredentials(c)
	if !ok {
		return badRequest(c, "username and password are required")
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return serverError(c, h.Log, "hash password failed", err)
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Username, hash, model.RoleUser)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		}
		return serverError(c, h.Log, "create user failed", err)
	}

	h.Log.Info("user registered", zap.Int64("user_id", id), zap.String("username", req.Username))
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "username": req.Username})
}

// Login verifies the credentials, migrates a legacy stored credential to
// the hashed format, and issues a token both in the body and as an HttpOnly
// cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	req, ok := bindCredentials(c)
	if !ok {
		return badRequest(c, "username and password are required")
	}

	ctx, cancel := storeCtx(c)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return serverError(c, h.Log, "query failed", err)
	}

	if utils.LooksHashed(u.PasswordHash) {
		if !h.Hasher.Verify(req.Password, u.PasswordHash) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
	} else {
		if !utils.VerifyLegacy(req.Password, u.PasswordHash) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		h.migrateCredential(c, u, req.Password)
	}

	token, exp, err := utils.IssueToken(h.Cfg.JWTSecret, utils.TokenParams{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		KeyID:    h.Cfg.JWTKeyVersion,
		Lifetime: h.Cfg.TokenTTL,
		Issuer:   h.Cfg.JWTIssuer,
		Audience: h.Cfg.JWTAudience,
	})
	if err != nil {
		return serverError(c, h.Log, "issue token failed", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(time.Until(exp).Seconds()),
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, authResp{Token: token, Username: u.Username, Role: u.Role})
}

// migrateCredential replaces a legacy credential with its hash.  Failure
// is logged and does not block the login; the next login retries.
func (h *AuthHandler) migrateCredential(c echo.Context, u model.User, password string) {
	hash, err := h.Hasher.Hash(password)
	if err == nil {
		ctx, cancel := storeCtx(c)
		defer cancel()
		err = h.Users.UpdatePasswordHash(ctx, u.ID, hash)
	}
	if err != nil {
		h.Log.Warn("legacy credential migration failed", zap.Int64("user_id", u.ID), zap.Error(err))
		return
	}
	h.Log.Info("legacy credential migrated", zap.Int64("user_id", u.ID))
}

// Logout expires the token cookie.  Bearer tokens stay valid until they
// expire; clients drop them themselves.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Me returns the authenticated user as currently stored.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUserFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
