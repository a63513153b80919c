package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/apiclient"
	"github.com/trezcool/masomo-admin/core/auth"
	"github.com/trezcool/masomo-admin/core/transfer"
	"github.com/trezcool/masomo-admin/core/user"
	"github.com/trezcool/masomo-admin/services/metrics"
)

type (
	// ServerDeps are the collaborators of the mock API server.
	ServerDeps struct {
		Conf    *core.Config
		Logger  core.Logger
		Issuer  *auth.Issuer
		Files   *transfer.Store
		Mock    apiclient.MockProvider
		Metrics *metrics.Collector // optional
	}

	Server interface {
		http.Handler
		Start() error
		Shutdown(context.Context) error
	}

	server struct {
		deps ServerDeps
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if deps.Logger == nil {
		deps.Logger = core.NopLogger{}
	}
	s := &server{
		deps: deps,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.MockServer.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.observe)
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(s.deps.Issuer))

	api.GET("/health", s.health)
	api.GET("/version", s.version)

	// auth: answered by the mock table, which issues the tokens
	api.POST("/auth/login", s.fromTable)
	api.POST("/auth/refresh", s.fromTable)
	api.POST("/auth/logout", s.fromTable)

	api.GET("/files/:name", s.downloadFile)

	upload := api.Group("/upload", jwt)
	upload.GET("/check", s.fromTable)
	upload.POST("/chunk", s.fromTable)
	upload.POST("/merge", s.fromTable)

	// admin only resources: the collection path and everything below it
	admin := adminMiddleware(user.AdminRoles...)
	for _, prefix := range []string{"/users", "/students", "/applications"} {
		g := api.Group(prefix, jwt, admin)
		g.Any("", s.fromTable)
		g.Any("/*", s.fromTable)
	}
	api.Any("/*", s.fromTable, jwt, staffMiddleware)
}

func (s *server) Start() error {
	return s.app.Start(s.deps.Conf.MockServer.Address)
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// observe reports every served request to the metrics collector.
func (s *server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		resourceType, _ := apiclient.Classify(ctx.Request().URL.Path)
		s.deps.Metrics.ObserveRequest(resourceType, apiclient.SourceMock, time.Since(start))
		return err
	}
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" mock API!")
}
