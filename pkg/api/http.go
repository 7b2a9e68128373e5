// Package api exposes the local HTTP surface consumers use to read the
// cache and drive the sync engine.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatcache/pkg/api/handlers"
	"chatcache/pkg/syncer"
)

// Handler builds the router over the sync engine:
//   - GET    /v1/conversations                      list cached conversations
//   - GET    /v1/conversations/{id}/messages        cached messages, ordered
//   - POST   /v1/conversations/{id}/messages        optimistic send ({"content": ...})
//   - POST   /v1/conversations/{id}/read            mark read up to now
//   - PUT    /v1/conversations/{id}/active          mark conversation open
//   - DELETE /v1/conversations/{id}/active          mark conversation closed
//   - GET    /v1/conversations/{id}/cursors         member read cursors
//   - DELETE /v1/messages/{id}                      delete a cached message
//   - POST   /v1/sync                               pull-reconcile everything now
//   - GET    /v1/revision                           change counter for pollers
//   - GET    /v1/cursors                            full read-cursor snapshot
//   - DELETE /v1/cache                              drop the local cache
func Handler(svc *syncer.Service) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterConversations(v1, svc)
	handlers.RegisterMessages(v1, svc)
	handlers.RegisterSync(v1, svc)
	return r
}
