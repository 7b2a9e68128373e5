package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"chatcache/pkg/directory"
	"chatcache/pkg/history"
	"chatcache/pkg/models"
	"chatcache/pkg/store"
	"chatcache/pkg/syncer"
)

type stubDirectory struct{}

func (stubDirectory) ListFriends(ctx context.Context, token string) ([]directory.Friend, error) {
	return nil, nil
}
func (stubDirectory) ListGroups(ctx context.Context, token string) ([]directory.Group, error) {
	return nil, nil
}
func (stubDirectory) ResolveFriendshipID(ctx context.Context, token, peer string) (string, error) {
	return "", &directory.ResolutionError{Entry: peer, Reason: "stub"}
}

type stubFetcher struct{}

func (stubFetcher) FetchPage(ctx context.Context, convID string, after int64, limit int) (history.Page, error) {
	return history.Page{}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc, err := syncer.New(st, stubDirectory{}, stubFetcher{}, nil, syncer.Options{Username: "alice"})
	if err != nil {
		t.Fatalf("syncer.New: %v", err)
	}
	srv := httptest.NewServer(Handler(svc))
	t.Cleanup(srv.Close)
	return srv, st
}

func TestConversationEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	client := srv.Client()

	_ = st.SaveConversation(models.Conversation{ID: "c1", Type: models.ConversationPrivate, Name: "bob", Members: []string{"alice", "bob"}, Unread: 2})
	_, _ = st.PutMessageIfAbsent(models.Message{ID: "m2", Conversation: "c1", Sender: "bob", Content: "later", TS: 20})
	_, _ = st.PutMessageIfAbsent(models.Message{ID: "m1", Conversation: "c1", Sender: "bob", Content: "early", TS: 10})

	resp, err := client.Get(srv.URL + "/v1/conversations")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var convList struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&convList); err != nil {
		t.Fatalf("decode conversations: %v", err)
	}
	if len(convList.Conversations) != 1 || convList.Conversations[0].Unread != 2 {
		t.Fatalf("unexpected conversations: %+v", convList.Conversations)
	}

	resp2, err := client.Get(srv.URL + "/v1/conversations/c1/messages")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	defer resp2.Body.Close()
	var msgList struct {
		Conversation string           `json:"conversation"`
		Messages     []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&msgList); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(msgList.Messages) != 2 || msgList.Messages[0].ID != "m1" {
		t.Fatalf("expected ordered messages, got %+v", msgList.Messages)
	}
}

func TestMarkReadEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	client := srv.Client()

	_ = st.SaveConversation(models.Conversation{ID: "c1", Type: models.ConversationPrivate, Unread: 4})

	resp, err := client.Post(srv.URL+"/v1/conversations/c1/read", "application/json", nil)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	c1, err := st.GetConversation("c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if c1.Unread != 0 {
		t.Fatalf("expected unread 0, got %d", c1.Unread)
	}

	// the cursor advance is visible to the cursors endpoint
	resp2, err := client.Get(srv.URL + "/v1/conversations/c1/cursors")
	if err != nil {
		t.Fatalf("cursors: %v", err)
	}
	defer resp2.Body.Close()
	var cur struct {
		Cursors map[string]int64 `json:"cursors"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&cur); err != nil {
		t.Fatalf("decode cursors: %v", err)
	}
	if cur.Cursors["alice"] == 0 {
		t.Fatalf("expected alice's cursor recorded, got %+v", cur.Cursors)
	}

	// and to the full snapshot
	resp3, err := client.Get(srv.URL + "/v1/cursors")
	if err != nil {
		t.Fatalf("cursor snapshot: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp3.StatusCode)
	}
	var snap struct {
		Cursors map[string]map[string]int64 `json:"cursors"`
	}
	if err := json.NewDecoder(resp3.Body).Decode(&snap); err != nil {
		t.Fatalf("decode cursor snapshot: %v", err)
	}
	if snap.Cursors["c1"]["alice"] == 0 {
		t.Fatalf("expected alice's cursor in the snapshot, got %+v", snap.Cursors)
	}
}

func TestSendEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	client := srv.Client()

	_ = st.SaveConversation(models.Conversation{ID: "c1", Type: models.ConversationPrivate})

	body := bytes.NewBufferString(`{"content":"hello"}`)
	resp, err := client.Post(srv.URL+"/v1/conversations/c1/messages", "application/json", body)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected a message id")
	}

	got, err := st.GetMessage(created.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Sender != "alice" || got.Content != "hello" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestActiveEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	client := srv.Client()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/conversations/c1/active", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// clearing a different conversation leaves c1 active
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/v1/conversations/other/active", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("clear other: %v", err)
	}
	var state struct {
		Active string `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if state.Active != "c1" {
		t.Fatalf("expected c1 still active, got %q", state.Active)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/v1/conversations/c1/active", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("clear active: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if state.Active != "" {
		t.Fatalf("expected no active conversation, got %q", state.Active)
	}
}

func TestSyncAndRevisionEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	client := srv.Client()

	_ = st.SaveConversation(models.Conversation{ID: "c1", Type: models.ConversationPrivate})

	resp, err := client.Post(srv.URL+"/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := client.Get(srv.URL + "/v1/revision")
	if err != nil {
		t.Fatalf("revision: %v", err)
	}
	defer resp2.Body.Close()
	var rev struct {
		Revision uint64 `json:"revision"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&rev); err != nil {
		t.Fatalf("decode revision: %v", err)
	}
}

func TestDeleteEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	client := srv.Client()

	_ = st.SaveConversation(models.Conversation{ID: "c1", Type: models.ConversationPrivate})
	_, _ = st.PutMessageIfAbsent(models.Message{ID: "m1", Conversation: "c1", Sender: "bob", TS: 1})

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/messages/m1", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("delete message: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/v1/cache", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("clear cache: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	convs, _ := st.ListConversations()
	if len(convs) != 0 {
		t.Fatalf("expected empty cache, got %+v", convs)
	}
}
