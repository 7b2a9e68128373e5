package handlers

import (
	"net/http"

	"chatcache/pkg/syncer"
	"chatcache/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterSync registers the reconciliation and engine-state routes to the
// provided router.
func RegisterSync(r *mux.Router, svc *syncer.Service) {
	r.HandleFunc("/sync", triggerSync(svc)).Methods(http.MethodPost)
	r.HandleFunc("/revision", revision(svc)).Methods(http.MethodGet)
	r.HandleFunc("/cursors", allCursors(svc)).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/cursors", conversationCursors(svc)).Methods(http.MethodGet)
	r.HandleFunc("/cache", clearCache(svc)).Methods(http.MethodDelete)
}

// triggerSync handles POST /sync: pull-reconcile every cached conversation
// now. A partial failure still reconciles the rest; the error lists what
// failed.
func triggerSync(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.PullAll(r.Context()); err != nil {
			utils.JSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// revision handles GET /revision: the change counter consumers poll to know
// when to re-query.
func revision(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.JSONWrite(w, http.StatusOK, map[string]uint64{"revision": svc.Revision()})
	}
}

// allCursors handles GET /cursors: the full cursor map snapshot.
func allCursors(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Cursors map[string]map[string]int64 `json:"cursors"`
		}{Cursors: svc.Cursors().Snapshot()})
	}
}

// conversationCursors handles GET /conversations/{id}/cursors: every
// member's read cursor in one conversation.
func conversationCursors(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Conversation string           `json:"conversation"`
			Cursors      map[string]int64 `json:"cursors"`
		}{Conversation: id, Cursors: svc.Cursors().Conversation(id)})
	}
}

// clearCache handles DELETE /cache: drop the whole local cache.
func clearCache(svc *syncer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearAll(); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
