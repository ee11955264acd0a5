package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/config"
	"github.com/iliyamo/cereal-api/internal/database"
	"github.com/iliyamo/cereal-api/internal/middleware"
	"github.com/iliyamo/cereal-api/internal/queue"
	"github.com/iliyamo/cereal-api/internal/repository"
	"github.com/iliyamo/cereal-api/internal/utils"
)

type recordingSink struct {
	mu     sync.Mutex
	events []queue.ProductChangedEvent
}

func (s *recordingSink) ProductChanged(ev queue.ProductChangedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Action)
	}
	return out
}

type testApp struct {
	e        *echo.Echo
	cfg      config.Config
	users    *repository.UserRepo
	products *repository.ProductRepo
	events   *recordingSink
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, zap.NewNop()))

	cfg := config.Config{
		JWTSecret:          "handler-test-secret",
		JWTKeyVersion:      "v1",
		TokenTTL:           time.Hour,
		PasswordIterations: 1000,
		WriteRoles:         []string{"admin"},
	}
	app := &testApp{
		cfg:      cfg,
		users:    repository.NewUserRepo(db),
		products: repository.NewProductRepo(db),
		events:   &recordingSink{},
	}

	auth := NewAuthHandler(cfg, app.users, zap.NewNop())
	ph := NewProductHandler(app.products, app.events, zap.NewNop())
	authn := middleware.Authenticate(&middleware.Resolver{Users: app.users, Secret: cfg.JWTSecret})
	write := middleware.RequireRole(cfg.WriteRoles...)

	e := echo.New()
	e.GET("/healthz", Health)
	e.POST("/auth/register", auth.Register)
	e.POST("/auth/login", auth.Login)
	e.POST("/auth/logout", auth.Logout)
	e.GET("/auth/me", auth.Me, authn)

	e.GET("/cereals", ph.ListCereals)
	e.GET("/cereals/top/:take", ph.TopCereals)
	e.POST("/cereals", ph.CreateCereal, authn, write)
	e.PUT("/cereals/:name/:mfr/:type", ph.UpdateCereal, authn, write)
	e.DELETE("/cereals/:name/:mfr/:type", ph.DeleteCereal, authn, write)

	e.GET("/products", ph.ListProducts)
	e.GET("/products/liste", ph.SearchProducts)
	e.GET("/products/:id", ph.GetProduct)
	e.POST("/products", ph.SaveProduct, authn, write)
	e.DELETE("/products/:id", ph.DeleteProduct, authn, write)
	e.POST("/ops/import-csv", ph.ImportCSV, authn, write)
	app.e = e
	return app
}

// do sends a request with an optional JSON body and bearer token.
func (a *testApp) do(method, target, body, token string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, r)
	return rec
}

// addUser stores a user with a hashed password.
func (a *testApp) addUser(t *testing.T, username, password, role string) int64 {
	t.Helper()
	hash, err := utils.NewPasswordHasher(1000).Hash(password)
	require.NoError(t, err)
	id, err := a.users.Create(context.Background(), username, hash, role)
	require.NoError(t, err)
	return id
}

func (a *testApp) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := a.do(http.MethodPost, "/auth/login", `{"username":"`+username+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (a *testApp) adminToken(t *testing.T) string {
	t.Helper()
	a.addUser(t, "root", "root-pw", "admin")
	return a.login(t, "root", "root-pw")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testApp) upload(t *testing.T, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/ops/import-csv", &buf)
	r.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, r)
	return rec
}

func httptestRequestWithCookie(method, target string, c *http.Cookie) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.AddCookie(c)
	return r
}

func (a *testApp) serve(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, r)
	return rec
}
