package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/service"
)

type usersPage struct {
	Query string
	Users []model.User
}

type userPage struct {
	Profile      *model.Profile
	Heading      string
	Messages     []model.Message
	Liked        map[string]bool
	IsSelf       bool
	IsFollowing  bool
	IsFollowedBy bool
}

type followPage struct {
	Profile   *model.Profile
	Heading   string
	Users     []model.User
	Following map[string]bool
}

// HandleUserIndex lists users whose username contains ?q=, or everyone.
func (v *Views) HandleUserIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	users, err := v.users.Search(r.Context(), q, 0, 0)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	v.render(w, r, http.StatusOK, "users_index.html", page{
		Title: "Users",
		Data:  usersPage{Query: q, Users: users},
	})
}

// HandleUserShow is the profile page with the user's latest messages.
func (v *Views) HandleUserShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	profile, err := v.users.Profile(ctx, id)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	msgs, err := v.messages.MessagesOf(ctx, id, timelineLimit)
	if err != nil {
		v.fail(w, r, err)
		return
	}

	data := userPage{Profile: profile, Messages: msgs}
	if me := currentUser(r); me != nil {
		data.IsSelf = me.ID == id
		if data.Liked, err = v.messages.LikedSet(ctx, me.ID); err != nil {
			v.fail(w, r, err)
			return
		}
		if data.IsFollowing, err = v.users.IsFollowing(ctx, me.ID, id); err != nil {
			v.fail(w, r, err)
			return
		}
		if data.IsFollowedBy, err = v.users.IsFollowedBy(ctx, me.ID, id); err != nil {
			v.fail(w, r, err)
			return
		}
	}

	v.render(w, r, http.StatusOK, "user_show.html", page{Title: "@" + profile.Username, Data: data})
}

func (v *Views) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	v.renderFollowList(w, r, "Following", v.follows.Following)
}

func (v *Views) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	v.renderFollowList(w, r, "Followers", v.follows.Followers)
}

func (v *Views) renderFollowList(
	w http.ResponseWriter,
	r *http.Request,
	heading string,
	list func(ctx context.Context, userID string) ([]model.User, error),
) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	profile, err := v.users.Profile(ctx, id)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	users, err := list(ctx, id)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	mine, err := v.follows.Following(ctx, callerID(r))
	if err != nil {
		v.fail(w, r, err)
		return
	}
	following := make(map[string]bool, len(mine))
	for _, u := range mine {
		following[u.ID] = true
	}

	v.render(w, r, http.StatusOK, "follow_list.html", page{
		Title: heading,
		Data:  followPage{Profile: profile, Heading: heading, Users: users, Following: following},
	})
}

// HandleLikes lists the messages a user likes, whoever wrote them.
func (v *Views) HandleLikes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	profile, err := v.users.Profile(ctx, id)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	liked, err := v.messages.LikedBy(ctx, id)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	mine, err := v.messages.LikedSet(ctx, callerID(r))
	if err != nil {
		v.fail(w, r, err)
		return
	}

	v.render(w, r, http.StatusOK, "user_show.html", page{
		Title: "Likes",
		Data: userPage{
			Profile:  profile,
			Heading:  "Liked messages",
			Messages: liked,
			Liked:    mine,
			IsSelf:   callerID(r) == id,
		},
	})
}

// HandleFollow adds caller -> {id} and shows the caller's following list.
func (v *Views) HandleFollow(w http.ResponseWriter, r *http.Request) {
	me := callerID(r)
	if err := v.follows.Follow(r.Context(), me, chi.URLParam(r, "id")); err != nil {
		if !v.flashIfValidation(w, r, err) {
			v.fail(w, r, err)
			return
		}
	}
	redirect(w, r, userPath(me)+"/following")
}

func (v *Views) HandleStopFollowing(w http.ResponseWriter, r *http.Request) {
	me := callerID(r)
	if err := v.follows.Unfollow(r.Context(), me, chi.URLParam(r, "id")); err != nil {
		v.fail(w, r, err)
		return
	}
	redirect(w, r, userPath(me)+"/following")
}

func (v *Views) HandleProfileForm(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	v.render(w, r, http.StatusOK, "profile_edit.html", page{
		Title: "Edit profile",
		Form: map[string]string{
			"username":         u.Username,
			"email":            u.Email,
			"image_url":        u.ImageURL,
			"header_image_url": u.HeaderImageURL,
			"bio":              u.Bio,
			"location":         u.Location,
		},
	})
}

// HandleProfile applies the edit form. The current password is required.
func (v *Views) HandleProfile(w http.ResponseWriter, r *http.Request) {
	form := formValues(r, "username", "email", "image_url", "header_image_url", "bio", "location")

	_, err := v.users.UpdateProfile(r.Context(), callerID(r), service.ProfileInput{
		Username:       form["username"],
		Email:          form["email"],
		ImageURL:       form["image_url"],
		HeaderImageURL: form["header_image_url"],
		Bio:            form["bio"],
		Location:       form["location"],
	}, r.PostFormValue("password"))
	if err != nil {
		errs := map[string]string{}
		var appErr *apperror.AppError
		switch {
		case errors.Is(err, apperror.ErrUnauthorized):
			errs["password"] = "Wrong password, please try again."
		case errors.Is(err, apperror.ErrIntegrity):
			errs["username"] = "Username or e-mail already taken"
		case errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr):
			errs[appErr.Field] = appErr.Message
		default:
			v.fail(w, r, err)
			return
		}
		v.render(w, r, http.StatusBadRequest, "profile_edit.html", page{
			Title:  "Edit profile",
			Form:   form,
			Errors: errs,
		})
		return
	}

	redirect(w, r, userPath(callerID(r)))
}

// HandleDeleteUser deletes the caller's own account and signs them out.
func (v *Views) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	me := callerID(r)
	if err := v.users.Delete(r.Context(), me, me); err != nil {
		v.fail(w, r, err)
		return
	}
	if err := v.sessions.Logout(w, r); err != nil {
		v.fail(w, r, err)
		return
	}
	v.flash(w, r, "success", "Your account has been deleted.")
	redirect(w, r, "/signup")
}

// flashIfValidation turns a validation error into a flash and reports
// whether it did.
func (v *Views) flashIfValidation(w http.ResponseWriter, r *http.Request, err error) bool {
	var appErr *apperror.AppError
	if errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr) {
		v.flash(w, r, "danger", appErr.Message)
		return true
	}
	return false
}
