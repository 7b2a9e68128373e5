package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateID(t *testing.T) {
	if err := ValidateID("bob", "f-123"); err != nil {
		t.Fatalf("valid id rejected: %v", err)
	}
	var re *ResolutionError
	if err := ValidateID("bob", ""); !errors.As(err, &re) {
		t.Fatalf("expected ResolutionError for empty id, got %v", err)
	}
	if err := ValidateID("bob", "has space"); !errors.As(err, &re) {
		t.Fatalf("expected ResolutionError for malformed id, got %v", err)
	}
	// colons are the store's key delimiter
	if err := ValidateID("bob", "f:123"); !errors.As(err, &re) {
		t.Fatalf("expected ResolutionError for id with colon, got %v", err)
	}
	if re.Entry != "bob" {
		t.Fatalf("expected entry bob, got %q", re.Entry)
	}
}

func TestPairMembers(t *testing.T) {
	pairs, err := PairMembers("g1", []string{"alice", "bob"}, []int64{10, 20})
	if err != nil {
		t.Fatalf("PairMembers: %v", err)
	}
	if len(pairs) != 2 || pairs[0].Member != "alice" || pairs[0].Cursor != 10 || pairs[1].Cursor != 20 {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}

	var re *ResolutionError
	if _, err := PairMembers("g1", []string{"alice"}, []int64{1, 2}); !errors.As(err, &re) {
		t.Fatalf("expected ResolutionError on misalignment, got %v", err)
	}
}

func TestListGroupsSkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/groups" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		// second group has misaligned arrays and must be skipped
		_, _ = w.Write([]byte(`[
			{"groupId":"g1","groupname":"team","userList":["a","b"],"userCursors":[1,2],"cursor":1},
			{"groupId":"g2","groupname":"bad","userList":["a","b"],"userCursors":[1],"cursor":0},
			{"groupId":"g3","groupname":"ok","userList":["a"],"userCursors":[9],"cursor":9}
		]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	groups, err := c.ListGroups(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 usable groups, got %d", len(groups))
	}
	if groups[0].ID != "g1" || groups[1].ID != "g3" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if groups[0].Members[1].Member != "b" || groups[0].Members[1].Cursor != 2 {
		t.Fatalf("unexpected member pairing: %+v", groups[0].Members)
	}
}

func TestListFriends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"friendshipId":"f1","username":"bob","cursor":5,"friendCursor":3}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	friends, err := c.ListFriends(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListFriends: %v", err)
	}
	if len(friends) != 1 {
		t.Fatalf("expected 1 friend, got %d", len(friends))
	}
	f := friends[0]
	if f.FriendshipID != "f1" || f.Username != "bob" || f.Cursor != 5 || f.FriendCursor != 3 {
		t.Fatalf("unexpected friend: %+v", f)
	}
}

func TestResolveFriendshipID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("peer") != "bob" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"friendshipId":"f-77"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	id, err := c.ResolveFriendshipID(context.Background(), "tok", "bob")
	if err != nil {
		t.Fatalf("ResolveFriendshipID: %v", err)
	}
	if id != "f-77" {
		t.Fatalf("expected f-77, got %q", id)
	}
}
