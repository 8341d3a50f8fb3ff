package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
)

type messagePage struct {
	Message  *model.Message
	Liked    bool
	IsAuthor bool
}

func (v *Views) HandleNewMessageForm(w http.ResponseWriter, r *http.Request) {
	v.render(w, r, http.StatusOK, "message_new.html", page{Title: "New message"})
}

// HandleNewMessage posts a message and goes to the author's profile.
func (v *Views) HandleNewMessage(w http.ResponseWriter, r *http.Request) {
	me := callerID(r)
	form := formValues(r, "text")

	if _, err := v.messages.Post(r.Context(), me, form["text"]); err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr) {
			v.render(w, r, http.StatusBadRequest, "message_new.html", page{
				Title:  "New message",
				Form:   form,
				Errors: map[string]string{appErr.Field: appErr.Message},
			})
			return
		}
		v.fail(w, r, err)
		return
	}
	redirect(w, r, userPath(me))
}

func (v *Views) HandleMessageShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msg, err := v.messages.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		v.fail(w, r, err)
		return
	}

	data := messagePage{Message: msg}
	if me := currentUser(r); me != nil {
		data.IsAuthor = me.ID == msg.UserID
		if data.Liked, err = v.messages.IsLiked(ctx, me.ID, msg.ID); err != nil {
			v.fail(w, r, err)
			return
		}
	}
	v.render(w, r, http.StatusOK, "message_show.html", page{Title: "Message", Data: data})
}

// HandleDeleteMessage deletes one of the caller's own messages. Trying to
// delete someone else's gets the unauthorized flash.
func (v *Views) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	me := callerID(r)
	if err := v.messages.Delete(r.Context(), me, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			v.flash(w, r, "danger", auth.UnauthorizedMessage)
			redirect(w, r, "/")
			return
		}
		v.fail(w, r, err)
		return
	}
	redirect(w, r, userPath(me))
}

// HandleToggleLike likes or unlikes a message and returns to the page the
// form was on.
func (v *Views) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	if _, err := v.messages.ToggleLike(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		v.fail(w, r, err)
		return
	}
	redirect(w, r, safeNext(r, "/"))
}
