package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"chatcache/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// HTTPClient talks to the directory service over its JSON HTTP API.
type HTTPClient struct {
	base string
	c    *fasthttp.Client
}

// NewHTTPClient returns a directory client rooted at base.
func NewHTTPClient(base string) *HTTPClient {
	return &HTTPClient{
		base: base,
		c:    &fasthttp.Client{Name: "chatcache-directory"},
	}
}

var _ Client = (*HTTPClient)(nil)

// friendWire and groupWire mirror the directory's JSON responses. Groups
// arrive with index-aligned member/cursor arrays which are paired at this
// boundary.
type friendWire struct {
	FriendshipID string `json:"friendshipId"`
	Username     string `json:"username"`
	Cursor       int64  `json:"cursor"`
	FriendCursor int64  `json:"friendCursor"`
}

type groupWire struct {
	GroupID     string   `json:"groupId"`
	Groupname   string   `json:"groupname"`
	UserList    []string `json:"userList"`
	UserCursors []int64  `json:"userCursors"`
	Cursor      int64    `json:"cursor"`
}

func (h *HTTPClient) get(ctx context.Context, path, token string, args url.Values, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := h.base + path
	if len(args) > 0 {
		uri += "?" + args.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+token)

	deadline := time.Now().Add(defaultTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := h.c.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("directory request %s failed: %w", path, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("directory request %s returned status %d", path, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("directory response %s invalid: %w", path, err)
	}
	return nil
}

// ListFriends returns the caller's friendships with both read cursors.
func (h *HTTPClient) ListFriends(ctx context.Context, token string) ([]Friend, error) {
	var wire []friendWire
	if err := h.get(ctx, "/v1/friends", token, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]Friend, 0, len(wire))
	for _, f := range wire {
		out = append(out, Friend(f))
	}
	return out, nil
}

// ListGroups returns the caller's groups with member cursors paired.
func (h *HTTPClient) ListGroups(ctx context.Context, token string) ([]Group, error) {
	var wire []groupWire
	if err := h.get(ctx, "/v1/groups", token, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]Group, 0, len(wire))
	for _, g := range wire {
		members, err := PairMembers(g.GroupID, g.UserList, g.UserCursors)
		if err != nil {
			// one malformed group must not sink the rest
			logger.Warn("group_skipped", "group", g.GroupID, "error", err)
			continue
		}
		out = append(out, Group{ID: g.GroupID, Name: g.Groupname, Members: members, Cursor: g.Cursor})
	}
	return out, nil
}

// ResolveFriendshipID resolves the stable conversation id for a friendship.
func (h *HTTPClient) ResolveFriendshipID(ctx context.Context, token, peer string) (string, error) {
	var wire struct {
		FriendshipID string `json:"friendshipId"`
	}
	args := url.Values{}
	args.Set("peer", peer)
	if err := h.get(ctx, "/v1/friendship", token, args, &wire); err != nil {
		return "", err
	}
	if err := ValidateID(peer, wire.FriendshipID); err != nil {
		return "", err
	}
	return wire.FriendshipID, nil
}
