package echoweb

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/account"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		AccountSvc     *account.Service
		Sessions       *scs.SessionManager
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
		Clock          func() time.Time // defaults to time.Now
	}

	Server struct {
		opts     *Options
		app      *echo.Echo
		jwtConf  middleware.JWTConfig
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(opts *Options) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setup() error {
	conf := s.opts.Conf

	renderer, err := newTemplateRenderer()
	if err != nil {
		return err
	}

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator)
	s.app.Renderer = renderer
	s.app.Debug = conf.Debug

	// browser portal: one Session Store per browser, kept in its scs session
	web := s.app.Group("", loadAndSave(s.opts.Sessions, s.opts.Logger), s.storeMiddleware)
	registerPortal(web, s.opts)

	// JSON API: bearer tokens carry the Identity
	s.jwtConf = newJWTConfig(conf)
	v1 := s.app.Group("/v1")
	registerAPI(v1, middleware.JWTWithConfig(s.jwtConf), s.jwtConf, s.opts)

	return nil
}

// Start listens on conf.Server.Address. It blocks until the server stops;
// unexpected errors are sent to Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
