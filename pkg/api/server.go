package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive/pkg/accounts"
	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/session"
	"github.com/taskhive/taskhive/pkg/workspaces"
)

// Server is the HTTP API server.
type Server struct {
	router     *mux.Router
	accounts   *accounts.Service
	workspaces *workspaces.Service
	sessions   *session.Manager
	tokens     *session.Tokens
	resolver   *authz.Resolver
	logger     *observability.Logger
}

// NewServer creates the API server and mounts all routes.
func NewServer(accountsSvc *accounts.Service, workspacesSvc *workspaces.Service,
	sessions *session.Manager, tokens *session.Tokens, resolver *authz.Resolver,
	logger *observability.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		accounts:   accountsSvc,
		workspaces: workspacesSvc,
		sessions:   sessions,
		tokens:     tokens,
		resolver:   resolver,
		logger:     logger,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(httputil.RecoveryMiddleware, httputil.RequestIDMiddleware)

	// Public auth routes.
	auth := s.router.PathPrefix("/auth").Subrouter()
	auth.Use(httputil.MaxBytesMiddleware(1 << 20))
	auth.HandleFunc("/register", s.register).Methods("POST")
	auth.HandleFunc("/login", s.login).Methods("POST")
	auth.HandleFunc("/refresh", s.refresh).Methods("POST")
	auth.HandleFunc("/google", s.googleSignIn).Methods("POST")
	auth.HandleFunc("/password-reset/request", s.requestPasswordReset).Methods("POST")
	auth.HandleFunc("/password-reset", s.resetPassword).Methods("POST")

	// Authenticated routes.
	authed := s.router.NewRoute().Subrouter()
	authed.Use(middleware.Authenticate(s.tokens))
	authed.HandleFunc("/auth/logout", s.logout).Methods("POST")

	authed.HandleFunc("/workspaces", s.createWorkspace).Methods("POST")
	authed.HandleFunc("/me/invitations", s.listInvitations).Methods("GET")
	authed.HandleFunc("/me/invitations/{token}/accept", s.acceptInvitation).Methods("POST")

	ws := authed.PathPrefix("/workspaces/{workspace_id:[0-9]+}").Subrouter()
	ws.Handle("", s.requirePermission(authz.PermissionEditWorkspace, s.renameWorkspace)).Methods("PUT")
	ws.Handle("", s.requirePermission(authz.PermissionDeleteWorkspace, s.archiveWorkspace)).Methods("DELETE")
	ws.Handle("/members", s.requirePermission(authz.PermissionViewWorkspace, s.listMembers)).Methods("GET")
	ws.HandleFunc("/members", s.addMember).Methods("POST")
	ws.HandleFunc("/members/{user_id:[0-9]+}", s.changeRole).Methods("PUT")
	ws.HandleFunc("/members/{user_id:[0-9]+}", s.removeMember).Methods("DELETE")
	ws.Handle("/invitations", s.requirePermission(authz.PermissionManageInvitations, s.invite)).Methods("POST")
	ws.HandleFunc("/invitations/{token}", s.revokeInvitation).Methods("DELETE")
}

func (s *Server) requirePermission(permission authz.Permission, h http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(s.resolver, permission)(h)
}
