package handlers

import (
	"net/http"

	"chatcache/pkg/syncer"
	"chatcache/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterConversations registers the conversation-level HTTP routes to the
// provided router.
func RegisterConversations(r *mux.Router, svc *syncer.Service) {
	r.HandleFunc("/conversations", listConversations(svc)).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/read", markRead(svc)).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/active", setActive(svc)).Methods(http.MethodPut)
	r.HandleFunc("/conversations/{id}/active", clearActive(svc)).Methods(http.MethodDelete)
}

// listConversations handles GET /conversations: all cached conversation
// records with their unread counts.
func listConversations(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs, err := svc.Conversations()
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Conversations interface{} `json:"conversations"`
		}{Conversations: convs})
	}
}

// markRead handles POST /conversations/{id}/read: the local user has read
// everything in the conversation.
func markRead(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := svc.MarkRead(r.Context(), id); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// setActive handles PUT /conversations/{id}/active: the consumer opened this
// conversation, exempting it from unread increments.
func setActive(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.SetActive(mux.Vars(r)["id"])
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"active": svc.Active()})
	}
}

// clearActive handles DELETE /conversations/{id}/active. Clearing is a no-op
// when a different conversation is active.
func clearActive(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.Active() == mux.Vars(r)["id"] {
			svc.SetActive("")
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"active": svc.Active()})
	}
}
