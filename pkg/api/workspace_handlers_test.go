package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/cache"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/session"
	"github.com/taskhive/taskhive/pkg/store"
	"github.com/taskhive/taskhive/pkg/workspaces"
)

type stubUsers struct {
	byID map[int64]*store.User
}

func (s *stubUsers) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubUsers) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubUsers) CreateUser(context.Context, *store.User) error { return nil }
func (s *stubUsers) UpdateUser(context.Context, *store.User) error { return nil }

type stubWorkspaces struct{}

func (stubWorkspaces) GetWorkspaceByID(context.Context, int64) (*store.Workspace, error) {
	return nil, store.ErrNotFound
}
func (stubWorkspaces) CreateWorkspace(context.Context, *store.Workspace) error { return nil }
func (stubWorkspaces) UpdateWorkspace(context.Context, *store.Workspace) error {
	return store.ErrNotFound
}
func (stubWorkspaces) SoftDeleteWorkspace(context.Context, int64, time.Time) error {
	return store.ErrNotFound
}

type stubMemberKey struct{ userID, workspaceID int64 }

type stubMembers struct {
	rows map[stubMemberKey]*store.WorkspaceMember
}

func (s *stubMembers) GetMember(_ context.Context, userID, workspaceID int64) (*store.WorkspaceMember, error) {
	m, ok := s.rows[stubMemberKey{userID, workspaceID}]
	if !ok || m.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *stubMembers) ListMembers(context.Context, int64) ([]*store.WorkspaceMember, error) {
	return nil, nil
}

func (s *stubMembers) CreateMember(_ context.Context, m *store.WorkspaceMember) error {
	key := stubMemberKey{m.UserID, m.WorkspaceID}
	if _, ok := s.rows[key]; ok {
		return store.ErrConflict
	}
	cp := *m
	s.rows[key] = &cp
	return nil
}

func (s *stubMembers) UpdateMemberRole(context.Context, int64, int64, authz.WorkspaceRole) error {
	return store.ErrNotFound
}
func (s *stubMembers) SoftDeleteMember(context.Context, int64, int64, time.Time) error {
	return store.ErrNotFound
}
func (s *stubMembers) RestoreMember(context.Context, int64, int64, authz.WorkspaceRole) error {
	return store.ErrNotFound
}

type stubInvitations struct {
	nextID int64
	byID   map[int64]*store.Invitation
}

func (s *stubInvitations) CreateInvitation(_ context.Context, inv *store.Invitation) error {
	s.nextID++
	inv.ID = s.nextID
	cp := *inv
	s.byID[inv.ID] = &cp
	return nil
}

func (s *stubInvitations) GetInvitationByToken(_ context.Context, token string) (*store.Invitation, error) {
	for _, inv := range s.byID {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubInvitations) ListInvitationsByEmail(_ context.Context, email string) ([]*store.Invitation, error) {
	var out []*store.Invitation
	for _, inv := range s.byID {
		if inv.Email == email && inv.AcceptedAt == nil {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubInvitations) MarkInvitationAccepted(_ context.Context, id, userID int64, now time.Time) error {
	inv, ok := s.byID[id]
	if !ok || inv.AcceptedAt != nil {
		return store.ErrNotFound
	}
	inv.AcceptedAt = &now
	inv.AcceptedBy = &userID
	return nil
}

func (s *stubInvitations) DeleteInvitation(_ context.Context, id int64) error {
	if _, ok := s.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *stubInvitations) DeleteExpiredInvitations(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// invitationFixture wires the server to in-memory stores and a real
// invalidation bus over miniredis. User 7 is the invitee.
type invitationFixture struct {
	server  *Server
	tokens  *session.Tokens
	members *stubMembers
	invs    *stubInvitations
	invitee *store.User
}

func newInvitationFixture(t *testing.T) *invitationFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	versions := cache.NewVersionStore(client, "test", nil)
	bus := cache.NewBus(versions, client, nil, nil)

	invitee := &store.User{ID: 7, Email: "worker@example.com", GlobalRole: authz.GlobalRoleNone}
	users := &stubUsers{byID: map[int64]*store.User{invitee.ID: invitee}}
	members := &stubMembers{rows: make(map[stubMemberKey]*store.WorkspaceMember)}
	invs := &stubInvitations{byID: make(map[int64]*store.Invitation)}

	wsSvc, err := workspaces.NewService(stubWorkspaces{}, members, invs, users, bus, nil)
	require.NoError(t, err)
	jwts, err := session.NewTokens([]byte("0123456789abcdef0123456789abcdef"), 15*time.Minute)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	server := NewServer(nil, wsSvc, nil, jwts, nil, logger)
	return &invitationFixture{server: server, tokens: jwts, members: members, invs: invs, invitee: invitee}
}

func (f *invitationFixture) seedInvitation(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, f.invs.CreateInvitation(context.Background(), &store.Invitation{
		WorkspaceID: 10,
		Email:       f.invitee.Email,
		Role:        authz.WorkspaceRoleMember,
		Token:       token,
		InvitedBy:   2,
		ExpiresAt:   time.Now().UTC().Add(24 * time.Hour),
	}))
}

func (f *invitationFixture) authedRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	access, _, err := f.tokens.NewAccessToken(f.invitee)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+access)
	return req
}

func TestListInvitationsIncludesAcceptanceToken(t *testing.T) {
	f := newInvitationFixture(t)
	f.seedInvitation(t, "tok-abc123")

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, f.authedRequest(t, http.MethodGet, "/me/invitations"))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []struct {
		WorkspaceID int64  `json:"workspace_id"`
		Token       string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].WorkspaceID)
	assert.Equal(t, "tok-abc123", got[0].Token, "the invitee needs the token to accept")
}

func TestAcceptInvitationWithListedToken(t *testing.T) {
	f := newInvitationFixture(t)
	f.seedInvitation(t, "tok-abc123")

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, f.authedRequest(t, http.MethodGet, "/me/invitations"))
	require.Equal(t, http.StatusOK, rec.Code)
	var got []struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)

	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, f.authedRequest(t, http.MethodPost, "/me/invitations/"+got[0].Token+"/accept"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	m, err := f.members.GetMember(context.Background(), f.invitee.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, authz.WorkspaceRoleMember, m.Role)

	// The consumed invitation disappears from the pending list.
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, f.authedRequest(t, http.MethodGet, "/me/invitations"))
	require.Equal(t, http.StatusOK, rec.Code)
	var remaining []json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&remaining))
	assert.Empty(t, remaining)
}
