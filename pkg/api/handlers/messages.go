package handlers

import (
	"encoding/json"
	"net/http"

	"chatcache/pkg/models"
	"chatcache/pkg/syncer"
	"chatcache/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterMessages registers the message-level HTTP routes to the provided
// router.
func RegisterMessages(r *mux.Router, svc *syncer.Service) {
	r.HandleFunc("/conversations/{id}/messages", listMessages(svc)).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", sendMessage(svc)).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", deleteMessage(svc)).Methods(http.MethodDelete)
}

// listMessages handles GET /conversations/{id}/messages: cached messages in
// create-time order.
func listMessages(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		msgs, err := svc.Messages(id)
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Conversation string           `json:"conversation"`
			Messages     []models.Message `json:"messages"`
		}{Conversation: id, Messages: msgs})
	}
}

// sendMessage handles POST /conversations/{id}/messages: an optimistic local
// send. The body carries {"content": "..."}.
func sendMessage(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		id, err := svc.Send(r.Context(), mux.Vars(r)["id"], body.Content)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusCreated, map[string]string{"id": id})
	}
}

// deleteMessage handles DELETE /messages/{id}.
func deleteMessage(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteMessage(mux.Vars(r)["id"]); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
