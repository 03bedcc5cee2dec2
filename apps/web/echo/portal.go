package echoweb

import (
	"html/template"
	"net/http"

	"github.com/alexedwards/scs/v2"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/authz"
	"github.com/trezcool/masomo-portal/core/session"
)

const dashboardPath = "/dashboard"

type (
	// action is a button of a module page, shown only to roles granted Permission.
	action struct {
		Label      string
		Permission string
		Fallback   string
	}

	module struct {
		Path     string
		Title    string
		Roles    []session.Role
		Fallback string
		Actions  []action
	}

	moduleView struct {
		Module  module
		Actions []template.HTML
	}

	dashboardView struct {
		RoleName    string
		Permissions []string
		Links       []navLink
	}

	loginView struct {
		Username       string
		Error          string
		FieldErrors    map[string]string
		SessionExpired bool
		DemoAccounts   []account.Account
	}
)

func roles(rs ...session.Role) []session.Role { return rs }

// modules lists the pages of the portal and the roles allowed on each of them.
var modules = []module{
	{
		Path:  "/students",
		Title: "Students",
		Roles: roles(session.RoleAdmin, session.RolePrincipal, session.RoleTeacher),
		Actions: []action{
			{Label: "Add student", Permission: "students"},
			{Label: "Export list", Permission: "students.export"},
		},
	},
	{
		Path:    "/staff",
		Title:   "Staff",
		Roles:   roles(session.RoleAdmin, session.RolePrincipal),
		Actions: []action{{Label: "Add staff member", Permission: "staff"}},
	},
	{
		Path:  "/attendance",
		Title: "Attendance",
		Roles: roles(session.RoleAdmin, session.RolePrincipal, session.RoleTeacher, session.RoleParent, session.RoleStudent),
		Actions: []action{
			{Label: "Mark attendance", Permission: "attendance.mark"},
			{Label: "Export register", Permission: "attendance.export"},
			{Label: "My attendance", Permission: "attendance.self"},
			{Label: "My children", Permission: "attendance.children"},
		},
	},
	{
		Path:     "/finance",
		Title:    "Finance",
		Roles:    roles(session.RoleAdmin, session.RolePrincipal, session.RoleAccountant),
		Fallback: dashboardPath,
		Actions: []action{
			{Label: "New invoice", Permission: "finance.invoices", Fallback: "Invoices are managed by the accounts office."},
			{Label: "Record payment", Permission: "finance.payments"},
			{Label: "Export ledger", Permission: "finance.export"},
		},
	},
	{
		Path:  "/library",
		Title: "Library",
		Roles: roles(session.RoleAdmin, session.RoleLibrarian, session.RoleStudent),
		Actions: []action{
			{Label: "Issue loan", Permission: "library.loans"},
			{Label: "Browse catalogue", Permission: "library.view"},
		},
	},
	{
		Path:  "/transport",
		Title: "Transport",
		Roles: roles(session.RoleAdmin, session.RoleTransportManager, session.RoleParent),
		Actions: []action{
			{Label: "Edit routes", Permission: "transport.routes"},
			{Label: "Track buses", Permission: "transport.tracking"},
		},
	},
	{
		Path:    "/clubs",
		Title:   "Clubs",
		Roles:   roles(session.RoleAdmin, session.RolePrincipal, session.RoleTeacher, session.RoleStudent),
		Actions: []action{{Label: "Manage clubs", Permission: "clubs"}},
	},
	{
		Path:  "/exams",
		Title: "Exams",
		Roles: roles(session.RoleAdmin, session.RolePrincipal, session.RoleTeacher, session.RoleStudent, session.RoleParent),
		Actions: []action{
			{Label: "Enter grades", Permission: "exams.grade"},
			{Label: "View results", Permission: "exams.results"},
		},
	},
	{
		Path:    "/scholarships",
		Title:   "Scholarships",
		Roles:   roles(session.RoleAdmin, session.RolePrincipal, session.RoleAccountant),
		Actions: []action{{Label: "Award scholarship", Permission: "scholarships"}},
	},
}

type portal struct {
	svc        *account.Service
	sm         *scs.SessionManager
	validate   *validator.Validate
	translator ut.Translator
}

func registerPortal(g *echo.Group, opts *Options) {
	p := portal{
		svc:        opts.AccountSvc,
		sm:         opts.Sessions,
		validate:   opts.Validate,
		translator: opts.Translator,
	}

	g.GET("/", p.home)
	g.GET("/login", p.loginPage)
	g.POST("/login", p.login)
	g.POST("/logout", p.logout)
	g.GET(dashboardPath, p.dashboard, protectRoute(session.AllRoles, ""))
	for _, m := range modules {
		g.GET(m.Path, p.modulePage(m), protectRoute(m.Roles, m.Fallback))
	}
}

// Handlers

func (p *portal) home(c echo.Context) error {
	return c.Redirect(http.StatusFound, dashboardPath)
}

func (p *portal) loginPage(c echo.Context) error {
	store, err := getContextStore(c)
	if err != nil {
		return err
	}
	if store.IsAuthenticated() {
		return c.Redirect(http.StatusFound, dashboardPath)
	}
	return p.renderLogin(c, store, http.StatusOK, loginView{})
}

func (p *portal) renderLogin(c echo.Context, store *session.Store, code int, view loginView) error {
	_, view.SessionExpired = store.SessionExpiredAt()
	demo, err := p.svc.Demo(c.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing demo accounts")
	}
	view.DemoAccounts = demo
	return c.Render(code, "login", newPageData(c, store, "Sign in", view))
}

type loginForm struct {
	Username string `form:"username" validate:"required_without=Demo"`
	Password string `form:"password" validate:"required_without=Demo"`
	Demo     string `form:"demo"`
}

func (p *portal) login(c echo.Context) error {
	store, err := getContextStore(c)
	if err != nil {
		return err
	}

	var form loginForm
	if err = c.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to loginForm")
	}
	view := loginView{Username: form.Username}
	if err = p.validate.Struct(form); err != nil {
		vErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.Wrap(err, "validating loginForm")
		}
		view.FieldErrors = make(map[string]string, len(vErrs))
		for _, vErr := range vErrs {
			view.FieldErrors[vErr.Field()] = vErr.Translate(p.translator)
		}
		return p.renderLogin(c, store, http.StatusBadRequest, view)
	}

	ctx := c.Request().Context()
	var id session.Identity
	if form.Demo != "" {
		id, err = p.svc.LoginDemo(ctx, form.Demo)
	} else {
		id, err = p.svc.Authenticate(ctx, form.Username, form.Password)
	}
	switch errors.Cause(err) {
	case nil:
	case account.ErrAuthenticationFailed, account.ErrAccountDeactivated, account.ErrDemoDisabled:
		view.Error = err.Error()
		return p.renderLogin(c, store, http.StatusBadRequest, view)
	default:
		return errors.Wrap(err, "authenticating")
	}

	// new identity, new session token
	if err = p.sm.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renewing session token")
	}
	store.Login(id)
	if idle := getContextIdle(c); idle != nil {
		idle.touch()
	}
	return c.Redirect(http.StatusFound, dashboardPath)
}

func (p *portal) logout(c echo.Context) error {
	store, err := getContextStore(c)
	if err != nil {
		return err
	}
	store.Logout()
	if err = p.sm.RenewToken(c.Request().Context()); err != nil {
		return errors.Wrap(err, "renewing session token")
	}
	return c.Redirect(http.StatusFound, authz.LoginPath)
}

func (p *portal) dashboard(c echo.Context) error {
	store, err := getContextStore(c)
	if err != nil {
		return err
	}
	role, _ := store.Role()
	pd := newPageData(c, store, "Dashboard", nil)
	pd.Data = dashboardView{
		RoleName:    role.DisplayName(),
		Permissions: session.PermissionsOf(role),
		Links:       pd.Nav,
	}
	return c.Render(http.StatusOK, "dashboard", pd)
}

func (p *portal) modulePage(m module) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := getContextStore(c)
		if err != nil {
			return err
		}
		view := moduleView{Module: m}
		for _, a := range m.Actions {
			btn := template.HTML(`<button type="button">` + template.HTMLEscapeString(a.Label) + `</button>`)
			var fallback []template.HTML
			if a.Fallback != "" {
				fallback = append(fallback, template.HTML(`<p class="muted">`+template.HTMLEscapeString(a.Fallback)+`</p>`))
			}
			if html := (authz.Gate{Permission: a.Permission}).Render(store, btn, fallback...); html != "" {
				view.Actions = append(view.Actions, html)
			}
		}
		return c.Render(http.StatusOK, "module", newPageData(c, store, m.Title, view))
	}
}
