package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/service"
)

// API serves the JSON interface under /api. Every route except signup and
// login needs an Authorization: Bearer token.
type API struct {
	auth     *service.AuthService
	users    *service.UserService
	follows  *service.FollowService
	messages *service.MessageService
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAPI(svc Services, tokens *auth.TokenService, logger *slog.Logger) *API {
	return &API{
		auth:     svc.Auth,
		users:    svc.Users,
		follows:  svc.Follows,
		messages: svc.Messages,
		tokens:   tokens,
		logger:   logger,
	}
}

func (a *API) Routes(r chi.Router) {
	r.Post("/auth/signup", a.HandleSignup)
	r.Post("/auth/login", a.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(a.tokens))

		r.Get("/me", a.HandleMe)
		r.Patch("/me", a.HandleUpdateMe)
		r.Delete("/me", a.HandleDeleteMe)

		r.Get("/users", a.HandleListUsers)
		r.Get("/users/{id}", a.HandleGetUser)
		r.Get("/users/{id}/followers", a.HandleFollowers)
		r.Get("/users/{id}/following", a.HandleFollowing)
		r.Get("/users/{id}/messages", a.HandleUserMessages)
		r.Get("/users/{id}/likes", a.HandleUserLikes)
		r.Put("/users/{id}/follow", a.HandleFollow)
		r.Delete("/users/{id}/follow", a.HandleUnfollow)

		r.Post("/messages", a.HandlePostMessage)
		r.Get("/messages/{id}", a.HandleGetMessage)
		r.Delete("/messages/{id}", a.HandleDeleteMessage)
		r.Put("/messages/{id}/like", a.HandleLike)
		r.Delete("/messages/{id}/like", a.HandleUnlike)

		r.Get("/timeline", a.HandleTimeline)
	})
}

type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	ImageURL string `json:"imageUrl"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type profileRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	ImageURL        string `json:"imageUrl"`
	HeaderImageURL  string `json:"headerImageUrl"`
	Bio             string `json:"bio"`
	Location        string `json:"location"`
	CurrentPassword string `json:"currentPassword"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type likeResponse struct {
	MessageID string `json:"messageId"`
	Liked     bool   `json:"liked"`
}

type followResponse struct {
	UserID    string `json:"userId"`
	Following bool   `json:"following"`
}

// HandleSignup creates an account and returns it with a token, 201.
func (a *API) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	user, err := a.auth.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	result, err := a.auth.IssueToken(user)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	result, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) HandleMe(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	profile, err := a.users.Profile(r.Context(), me)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateMe edits the caller's profile. currentPassword is required.
func (a *API) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	me, _ := auth.UserIDFromContext(r.Context())
	user, err := a.users.UpdateProfile(r.Context(), me, service.ProfileInput{
		Username:       req.Username,
		Email:          req.Email,
		ImageURL:       req.ImageURL,
		HeaderImageURL: req.HeaderImageURL,
		Bio:            req.Bio,
		Location:       req.Location,
	}, req.CurrentPassword)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	if err := a.users.Delete(r.Context(), me, me); err != nil {
		writeError(w, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListUsers supports ?q= (username substring), ?limit= and ?offset=.
func (a *API) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	users, err := a.users.Search(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilUsers(users))
}

func (a *API) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := a.users.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	users, err := a.follows.Followers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilUsers(users))
}

func (a *API) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	users, err := a.follows.Following(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilUsers(users))
}

func (a *API) HandleUserMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", service.DefaultListLimit)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	msgs, err := a.messages.MessagesOf(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilMessages(msgs))
}

func (a *API) HandleUserLikes(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.messages.LikedBy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilMessages(msgs))
}

func (a *API) HandleFollow(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := a.follows.Follow(r.Context(), me, id); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, followResponse{UserID: id, Following: true})
}

func (a *API) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := a.follows.Unfollow(r.Context(), me, id); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, followResponse{UserID: id, Following: false})
}

func (a *API) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	me, _ := auth.UserIDFromContext(r.Context())
	msg, err := a.messages.Post(r.Context(), me, req.Text)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) HandleGetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := a.messages.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (a *API) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	if err := a.messages.Delete(r.Context(), me, chi.URLParam(r, "id")); err != nil {
		writeError(w, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleLike(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := a.messages.Like(r.Context(), me, id); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{MessageID: id, Liked: true})
}

func (a *API) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := a.messages.Unlike(r.Context(), me, id); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{MessageID: id, Liked: false})
}

func (a *API) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", service.DefaultListLimit)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	me, _ := auth.UserIDFromContext(r.Context())
	msgs, err := a.messages.Timeline(r.Context(), me, limit)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilMessages(msgs))
}

// nonNilUsers makes an empty result encode as [] rather than null.
func nonNilUsers(users []model.User) []model.User {
	if users == nil {
		return []model.User{}
	}
	return users
}

func nonNilMessages(msgs []model.Message) []model.Message {
	if msgs == nil {
		return []model.Message{}
	}
	return msgs
}
