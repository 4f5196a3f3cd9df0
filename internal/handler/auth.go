package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/study-planner/internal/repo"
	"github.com/BuzzLyutic/study-planner/pkg/respond"
)

type signInRequest struct {
	IDToken string `json:"id_token"`
}

type themeRequest struct {
	Dark bool `json:"dark"`
}

// SignIn verifies the token, switches the session and starts the cloud pull
// in the background. The response does not wait for the pull.
func (h *TaskHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	identity, err := h.session.SignIn(r.Context(), req.IDToken)
	if err != nil {
		h.logger.Info("sign-in rejected", zap.Error(err))
		h.handleErrors(w, r, err)
		return
	}

	h.vm.SyncFromCloud()
	respond.JSON(w, r, http.StatusOK, identity)
}

func (h *TaskHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.session.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile := h.session.Profile()
	if profile == nil {
		h.handleErrors(w, r, errNotSignedIn)
		return
	}
	respond.JSON(w, r, http.StatusOK, profile)
}

func (h *TaskHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	dark, err := h.settings.GetBool(r.Context(), repo.KeyDarkTheme, false)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, themeRequest{Dark: dark})
}

func (h *TaskHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.settings.SetBool(r.Context(), repo.KeyDarkTheme, req.Dark); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, req)
}
