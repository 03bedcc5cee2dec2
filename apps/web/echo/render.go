package echoweb

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/authz"
	"github.com/trezcool/masomo-portal/core/session"
)

//go:embed views
var views embed.FS

// templateRenderer renders every page inside the shared page shell (views/layout.gohtml).
type templateRenderer struct {
	templates map[string]*template.Template
}

var _ echo.Renderer = (*templateRenderer)(nil)

func newTemplateRenderer() (*templateRenderer, error) {
	pages, err := fs.Glob(views, "views/pages/*.gohtml")
	if err != nil {
		return nil, errors.Wrap(err, "listing views")
	}

	r := &templateRenderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".gohtml")
		tmpl, err := template.New(name).ParseFS(views, "views/layout.gohtml", page)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing view %s", name)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("view %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

type navLink struct {
	Path  string
	Title string
}

// pageData is handed to every view.
type pageData struct {
	AppName  string
	Title    string
	Path     string
	Identity *session.Identity
	Nav      []navLink
	Data     interface{}

	store *session.Store
}

func newPageData(c echo.Context, store *session.Store, title string, data interface{}) pageData {
	pd := pageData{
		AppName: appName(c),
		Title:   title,
		Path:    c.Request().URL.Path,
		Data:    data,
		store:   store,
	}
	if store == nil {
		return pd
	}
	if id, ok := store.Identity(); ok {
		pd.Identity = &id
	}
	for _, m := range modules {
		if (authz.Gate{Roles: m.Roles}).Allows(store) {
			pd.Nav = append(pd.Nav, navLink{Path: m.Path, Title: m.Title})
		}
	}
	return pd
}

// Can gates a fragment on a permission.
func (pd pageData) Can(perm string) bool {
	return pd.store != nil && authz.Gate{Permission: perm}.Allows(pd.store)
}

// HasRole gates a fragment on the current role. An unknown role name fails the rendering.
func (pd pageData) HasRole(roles ...string) (bool, error) {
	allowed, err := session.ParseRoles(roles...)
	if err != nil {
		return false, err
	}
	return pd.store != nil && authz.Gate{Roles: allowed}.Allows(pd.store), nil
}

func appName(c echo.Context) string {
	if name, ok := c.Get(contextAppNameKey).(string); ok && name != "" {
		return name
	}
	return "Masomo"
}
