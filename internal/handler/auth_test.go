package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cereal-api/internal/middleware"
	"github.com/iliyamo/cereal-api/internal/utils"
)

func TestRegister(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/auth/register", `{"username":" alice ","password":"pw-1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.NotZero(t, body["id"])

	u, err := app.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "user", u.Role)
	assert.True(t, utils.LooksHashed(u.PasswordHash))

	rec = app.do(http.MethodPost, "/auth/register", `{"username":"alice","password":"other"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	for _, b := range []string{`{"username":"bob"}`, `{"password":"x"}`, `{}`, `not json`} {
		rec = app.do(http.MethodPost, "/auth/register", b, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, b)
	}
}

func TestRegister_IgnoresRoleInBody(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodPost, "/auth/register", `{"username":"mallory","password":"pw","role":"admin"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	u, err := app.users.GetByUsername(context.Background(), "mallory")
	require.NoError(t, err)
	assert.Equal(t, "user", u.Role)
}

func TestLogin_SetsCookieAndReturnsToken(t *testing.T) {
	app := newTestApp(t)
	app.addUser(t, "alice", "s3cret", "admin")

	rec := app.do(http.MethodPost, "/auth/login", `{"username":"alice","password":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[authResp](t, rec)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "admin", resp.Role)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	r := httptestRequestWithCookie(http.MethodGet, "/auth/me", cookie)
	me := app.serve(r)
	require.Equal(t, http.StatusOK, me.Code)
	assert.JSONEq(t, `{"user":{"id":1,"username":"alice","role":"admin"}}`, me.Body.String())
}

func TestLogin_UniformFailure(t *testing.T) {
	app := newTestApp(t)
	app.addUser(t, "alice", "s3cret", "user")

	wrongPw := app.do(http.MethodPost, "/auth/login", `{"username":"alice","password":"nope"}`, "")
	noUser := app.do(http.MethodPost, "/auth/login", `{"username":"ghost","password":"nope"}`, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, http.StatusUnauthorized, noUser.Code)
	assert.Equal(t, wrongPw.Body.String(), noUser.Body.String())

	rec := app.do(http.MethodPost, "/auth/login", `{"username":"alice"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_MigratesLegacyCredential(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	plainID, err := app.users.Create(ctx, "plain", "old-password", "user")
	require.NoError(t, err)
	b, err := bcrypt.GenerateFromPassword([]byte("bcrypt-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	bcryptID, err := app.users.Create(ctx, "crypt", string(b), "user")
	require.NoError(t, err)

	rec := app.do(http.MethodPost, "/auth/login", `{"username":"plain","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	u, err := app.users.GetByID(ctx, plainID)
	require.NoError(t, err)
	assert.Equal(t, "old-password", u.PasswordHash, "failed login leaves the credential alone")

	app.login(t, "plain", "old-password")
	u, err = app.users.GetByID(ctx, plainID)
	require.NoError(t, err)
	assert.True(t, utils.LooksHashed(u.PasswordHash))
	assert.True(t, utils.NewPasswordHasher(0).Verify("old-password", u.PasswordHash))

	// The migrated credential keeps working.
	app.login(t, "plain", "old-password")

	app.login(t, "crypt", "bcrypt-pw")
	u, err = app.users.GetByID(ctx, bcryptID)
	require.NoError(t, err)
	assert.True(t, utils.LooksHashed(u.PasswordHash))
}

func TestLogout_ExpiresCookie(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodPost, "/auth/logout", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.TokenCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestMe_RequiresAuthentication(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(http.MethodGet, "/auth/me", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
