package echoweb

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/session"
)

const contextTokenKey = "userToken"

var nowFunc = time.Now

// Claims represents the authorization claims transmitted via a JWT.
// The token carries the whole Identity so API calls never hit the account directory.
type Claims struct {
	jwt.StandardClaims
	Identity session.Identity `json:"identity"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func newClaims(conf *core.Config, id session.Identity) *Claims {
	now := nowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   id.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Identity: id,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(jwtConf middleware.JWTConfig, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// apiStore materialises the bearer Identity into a throw-away Session Store so the portal queries apply.
func apiStore(ctx echo.Context) (*session.Store, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(nil)
	store.Login(claims.Identity)
	return store, nil
}

type (
	api struct {
		conf     *core.Config
		jwtConf  middleware.JWTConfig
		svc      *account.Service
		validate *validator.Validate
	}

	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SessionResponse struct {
		Identity    session.Identity `json:"identity"`
		Role        session.RoleInfo `json:"role"`
		Permissions []string         `json:"permissions"`
	}

	PermissionResponse struct {
		Permission string `json:"permission"`
		Allowed    bool   `json:"allowed"`
	}
)

func registerAPI(g *echo.Group, jwtMw echo.MiddlewareFunc, jwtConf middleware.JWTConfig, opts *Options) {
	a := api{
		conf:     opts.Conf,
		jwtConf:  jwtConf,
		svc:      opts.AccountSvc,
		validate: opts.Validate,
	}

	// un-authed endpoints
	g.POST("/login", a.login)
	g.GET("/roles", a.queryRoles)

	// authed endpoints
	ag := g.Group("", jwtMw)
	ag.GET("/session", a.session)
	ag.GET("/permissions/:perm", a.checkPermission)
}

// Handlers

func (a *api) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := a.validate.Struct(data); err != nil {
		return err
	}

	id, err := a.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	switch errors.Cause(err) {
	case nil:
	case account.ErrAuthenticationFailed:
		return errAuthenticationFailed
	case account.ErrAccountDeactivated:
		return errAccountDeactivated
	default:
		return errors.Wrap(err, "authenticating")
	}

	token, err := GenerateToken(a.jwtConf, newClaims(a.conf, id))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (a *api) session(ctx echo.Context) error {
	store, err := apiStore(ctx)
	if err != nil {
		return err
	}
	id, _ := store.Identity()
	return ctx.JSON(http.StatusOK, SessionResponse{
		Identity:    id,
		Role:        session.RoleInfo{Name: id.Role.DisplayName(), Value: id.Role},
		Permissions: session.PermissionsOf(id.Role),
	})
}

func (a *api) checkPermission(ctx echo.Context) error {
	store, err := apiStore(ctx)
	if err != nil {
		return err
	}
	perm := ctx.Param("perm")
	return ctx.JSON(http.StatusOK, PermissionResponse{Permission: perm, Allowed: store.HasPermission(perm)})
}

func (a *api) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, session.Roles)
}
