package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/service"
)

// timelineLimit is how many messages the home page shows.
const timelineLimit = 100

type feedPage struct {
	Profile  *model.Profile
	Messages []model.Message
	Liked    map[string]bool
}

// HandleHome shows the landing page to anonymous visitors and the timeline
// to signed-in users.
func (v *Views) HandleHome(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		v.render(w, r, http.StatusOK, "home_anon.html", page{Title: "Home"})
		return
	}

	ctx := r.Context()
	profile, err := v.users.Profile(ctx, user.ID)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	feed, err := v.messages.Timeline(ctx, user.ID, timelineLimit)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	liked, err := v.messages.LikedSet(ctx, user.ID)
	if err != nil {
		v.fail(w, r, err)
		return
	}

	v.render(w, r, http.StatusOK, "home.html", page{
		Title: "Home",
		Data:  feedPage{Profile: profile, Messages: feed, Liked: liked},
	})
}

func (v *Views) HandleSignupForm(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		redirect(w, r, "/")
		return
	}
	v.render(w, r, http.StatusOK, "signup.html", page{Title: "Sign up"})
}

// HandleSignup creates the account and signs it in. A taken username or
// email re-renders the form with "Username already taken".
func (v *Views) HandleSignup(w http.ResponseWriter, r *http.Request) {
	form := formValues(r, "username", "email", "image_url")

	user, err := v.auth.Signup(r.Context(), service.SignupInput{
		Email:    form["email"],
		Username: form["username"],
		Password: r.PostFormValue("password"),
		ImageURL: form["image_url"],
	})
	if err != nil {
		var appErr *apperror.AppError
		switch {
		case errors.Is(err, apperror.ErrIntegrity):
			v.flash(w, r, "danger", "Username already taken")
		case errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr):
			v.render(w, r, http.StatusBadRequest, "signup.html", page{
				Title:  "Sign up",
				Form:   form,
				Errors: map[string]string{appErr.Field: appErr.Message},
			})
			return
		default:
			v.fail(w, r, err)
			return
		}
		v.render(w, r, http.StatusOK, "signup.html", page{Title: "Sign up", Form: form})
		return
	}

	if err := v.sessions.Login(w, r, user.ID); err != nil {
		v.fail(w, r, err)
		return
	}
	redirect(w, r, "/")
}

func (v *Views) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		redirect(w, r, "/")
		return
	}
	v.render(w, r, http.StatusOK, "login.html", page{Title: "Log in"})
}

func (v *Views) HandleLogin(w http.ResponseWriter, r *http.Request) {
	form := formValues(r, "username")

	user, ok, err := v.auth.Authenticate(r.Context(), form["username"], r.PostFormValue("password"))
	if err != nil {
		v.fail(w, r, err)
		return
	}
	if !ok {
		v.flash(w, r, "danger", service.InvalidCredentialsMessage)
		v.render(w, r, http.StatusOK, "login.html", page{Title: "Log in", Form: form})
		return
	}

	if err := v.sessions.Login(w, r, user.ID); err != nil {
		v.fail(w, r, err)
		return
	}
	v.flash(w, r, "success", fmt.Sprintf("Hello, %s!", user.Username))
	redirect(w, r, "/")
}

func (v *Views) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := v.sessions.Logout(w, r); err != nil {
		v.logger.Error("logging out", slog.String("error", err.Error()))
	}
	v.flash(w, r, "success", "You have successfully logged out.")
	redirect(w, r, "/login")
}

// formValues collects the named form fields as submitted, for
// re-populating a form after a failed submit.
func formValues(r *http.Request, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = r.PostFormValue(k)
	}
	return out
}
