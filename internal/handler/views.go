// Package handler turns HTTP requests into service calls.
//
// Views renders the server-side HTML pages behind the session cookie; API
// serves the same operations as JSON behind a bearer token. Neither holds
// business rules: they parse input, call a service with the caller's id,
// and render or redirect.
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/service"
	"github.com/sakif/warbler/internal/session"
)

// pages are the content templates; each is parsed together with base.html.
var pages = []string{
	"home_anon.html",
	"home.html",
	"signup.html",
	"login.html",
	"users_index.html",
	"user_show.html",
	"follow_list.html",
	"message_new.html",
	"message_show.html",
	"profile_edit.html",
	"error.html",
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("02 January 2006") },
}

type Views struct {
	templates map[string]*template.Template
	sessions  *session.Manager
	auth      *service.AuthService
	users     *service.UserService
	follows   *service.FollowService
	messages  *service.MessageService
	logger    *slog.Logger
}

// Services groups the services both Views and API depend on.
type Services struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Follows  *service.FollowService
	Messages *service.MessageService
}

// NewViews parses every page template from templates up front so a broken
// template fails at startup.
func NewViews(templates fs.FS, sessions *session.Manager, svc Services, logger *slog.Logger) (*Views, error) {
	parsed := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t, err := template.New(p).Funcs(templateFuncs).ParseFS(templates, "base.html", p)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", p, err)
		}
		parsed[p] = t
	}

	return &Views{
		templates: parsed,
		sessions:  sessions,
		auth:      svc.Auth,
		users:     svc.Users,
		follows:   svc.Follows,
		messages:  svc.Messages,
		logger:    logger,
	}, nil
}

// Routes registers the HTML routes. Everything below the RequireUser group
// redirects anonymous callers to "/" with an "Access unauthorized." flash.
func (v *Views) Routes(r chi.Router) {
	r.Use(v.sessions.Middleware, v.LoadUser)

	r.Get("/", v.HandleHome)
	r.Get("/signup", v.HandleSignupForm)
	r.Post("/signup", v.HandleSignup)
	r.Get("/login", v.HandleLoginForm)
	r.Post("/login", v.HandleLogin)
	r.Post("/logout", v.HandleLogout)

	r.Get("/users", v.HandleUserIndex)
	r.Get("/users/{id}", v.HandleUserShow)
	r.Get("/messages/{id}", v.HandleMessageShow)

	r.Group(func(r chi.Router) {
		r.Use(v.sessions.RequireUser)

		r.Get("/users/{id}/following", v.HandleFollowing)
		r.Get("/users/{id}/followers", v.HandleFollowers)
		r.Get("/users/{id}/likes", v.HandleLikes)
		r.Post("/users/follow/{id}", v.HandleFollow)
		r.Post("/users/stop-following/{id}", v.HandleStopFollowing)
		r.Get("/users/profile", v.HandleProfileForm)
		r.Post("/users/profile", v.HandleProfile)
		r.Post("/users/delete", v.HandleDeleteUser)
		r.Post("/users/add_like/{id}", v.HandleToggleLike)

		r.Get("/messages/new", v.HandleNewMessageForm)
		r.Post("/messages/new", v.HandleNewMessage)
		r.Post("/messages/{id}/delete", v.HandleDeleteMessage)
	})
}

type currentUserKey struct{}

// LoadUser resolves the session's user id to a *model.User. A session that
// points at a deleted account is logged out and the request continues
// anonymously.
func (v *Views) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := v.users.GetByID(r.Context(), id)
		switch {
		case err == nil:
			r = r.WithContext(context.WithValue(r.Context(), currentUserKey{}, user))
		case errors.Is(err, apperror.ErrNotFound):
			if err := v.sessions.Logout(w, r); err != nil {
				v.logger.Error("clearing stale session", slog.String("error", err.Error()))
			}
			r = r.WithContext(auth.WithUserID(r.Context(), ""))
		default:
			v.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser is the signed-in user, or nil.
func currentUser(r *http.Request) *model.User {
	u, _ := r.Context().Value(currentUserKey{}).(*model.User)
	return u
}

// page is the data every template receives.
type page struct {
	Title   string
	Path    string
	User    *model.User
	Flashes []session.Flash
	Form    map[string]string
	Errors  map[string]string
	Data    any
}

// render executes name into a buffer first so a template error never
// leaves half a page on the wire.
func (v *Views) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	tmpl, ok := v.templates[name]
	if !ok {
		v.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	p.Path = r.URL.Path
	p.User = currentUser(r)
	p.Flashes = v.sessions.Flashes(w, r)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", p); err != nil {
		v.logger.Error("failed to render template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	Status  int
	Message string
}

// fail renders the error page with the status classify picks for err.
func (v *Views) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classify(err)

	message := http.StatusText(status)
	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		message = appErr.Message
	} else {
		v.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	v.render(w, r, status, "error.html", page{
		Title: http.StatusText(status),
		Data:  errorPage{Status: status, Message: message},
	})
}

// flash queues a message, logging rather than failing if the cookie cannot
// be written.
func (v *Views) flash(w http.ResponseWriter, r *http.Request, category, message string) {
	if err := v.sessions.AddFlash(w, r, category, message); err != nil {
		v.logger.Error("saving flash", slog.String("error", err.Error()))
	}
}

// redirect sends a 303 so the browser follows a POST with a GET.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeNext returns the "next" form value when it is a local path, else
// fallback. Protocol-relative "//host" values are not local.
func safeNext(r *http.Request, fallback string) string {
	next := r.PostFormValue("next")
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\") {
		return next
	}
	return fallback
}

// callerID is the signed-in user's id. Only valid behind RequireUser.
func callerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func userPath(id string) string {
	return "/users/" + id
}
