package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/contextkeys"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/store"
	"github.com/taskhive/taskhive/pkg/workspaces"
)

func (s *Server) callerID(r *http.Request) (int64, bool) {
	return contextkeys.UserID(r.Context())
}

// writeWorkspaceError maps workspaces service errors onto HTTP statuses.
func writeWorkspaceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workspaces.ErrForbidden):
		httputil.WriteForbidden(w, "insufficient permissions")
	case errors.Is(err, workspaces.ErrAlreadyMember):
		httputil.WriteConflict(w, "already a member")
	case errors.Is(err, workspaces.ErrNotMember):
		httputil.WriteNotFoundError(w, "not a member")
	case errors.Is(err, workspaces.ErrInvalidRole):
		httputil.WriteBadRequest(w, "invalid role")
	case errors.Is(err, workspaces.ErrInvalidInvitation):
		httputil.WriteNotFoundError(w, "invalid invitation")
	case errors.Is(err, authz.ErrUserNotFound):
		httputil.WriteUnauthorized(w, "authentication required")
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFoundError(w, "not found")
	default:
		httputil.WriteInternalError(w, errors.New("operation failed"))
	}
}

// createWorkspace handles POST /workspaces
func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	workspace, err := s.workspaces.Create(r.Context(), userID, req.Name)
	if err != nil {
		s.logger.WithError(err).Error("workspace creation failed")
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteCreated(w, workspace)
}

// renameWorkspace handles PUT /workspaces/{workspace_id}
func (s *Server) renameWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.callerID(r)
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "workspace_id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	if err := s.workspaces.Rename(r.Context(), userID, workspaceID, req.Name); err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// archiveWorkspace handles DELETE /workspaces/{workspace_id}
func (s *Server) archiveWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.callerID(r)
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "workspace_id")
	if !ok {
		return
	}

	if err := s.workspaces.Archive(r.Context(), userID, workspaceID); err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listMembers handles GET /workspaces/{workspace_id}/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.callerID(r)
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "workspace_id")
	if !ok {
		return
	}

	members, err := s.workspaces.ListMembers(r.Context(), userID, workspaceID)
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// addMember handles POST /workspaces/{workspace_id}/members
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "workspace_id")
	if !ok {
		return
	}

	var req struct {
		UserID int64  `json:"user_id"`
		Role   string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.workspaces.AddMember(r.Context(), actorID, workspaceID, req.UserID, authz.WorkspaceRole(req.Role))
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// changeRole handles PUT /workspaces/{workspace_id}/members/{user_id}
func (s *Server) changeRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "workspace_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.workspaces.ChangeRole(r.Context(), actorID, workspaceID, userID, authz.WorkspaceRole(req.Role))
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeMember handles DELETE /workspaces/{workspace_id}/members/{user_id}
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "workspace_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := s.workspaces.RemoveMember(r.Context(), actorID, workspaceID, userID); err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// invite handles POST /workspaces/{workspace_id}/invitations
func (s *Server) invite(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "workspace_id")
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	inv, err := s.workspaces.Invite(r.Context(), actorID, workspaceID, req.Email, authz.WorkspaceRole(req.Role))
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteCreated(w, inv)
}

// revokeInvitation handles DELETE /workspaces/{workspace_id}/invitations/{token}
func (s *Server) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	token := mux.Vars(r)["token"]
	if token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}

	if err := s.workspaces.RevokeInvitation(r.Context(), actorID, token); err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listInvitations handles GET /me/invitations
func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	invs, err := s.workspaces.ListInvitations(r.Context(), userID)
	if err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteSuccess(w, invs)
}

// acceptInvitation handles POST /me/invitations/{token}/accept
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	token := mux.Vars(r)["token"]
	if token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}

	if err := s.workspaces.AcceptInvitation(r.Context(), userID, token); err != nil {
		writeWorkspaceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
