package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	capabilityservice "bastion/contexts/identity-access/capability-service"
	capabilityerrors "bastion/contexts/identity-access/capability-service/domain/errors"
	capabilityhttp "bastion/contexts/identity-access/capability-service/transport/http"
	groupgraphservice "bastion/contexts/identity-access/group-graph-service"
	groupgrapherrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
	groupgraphhttp "bastion/contexts/identity-access/group-graph-service/transport/http"
	instanceservice "bastion/contexts/identity-access/instance-service"
	instanceerrors "bastion/contexts/identity-access/instance-service/domain/errors"
	instancehttp "bastion/contexts/identity-access/instance-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "bastion/internal/platform/httpserver/docs"
)

type Server struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	addr         string
	groups       groupgraphservice.Module
	capabilities capabilityservice.Module
	instances    instanceservice.Module
}

func New(
	groups groupgraphservice.Module,
	capabilities capabilityservice.Module,
	instances instanceservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:          http.NewServeMux(),
		logger:       logger,
		addr:         addr,
		groups:       groups,
		capabilities: capabilities,
		instances:    instances,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/iam/v1/groups", s.handleCreateGroup)
	s.mux.HandleFunc("GET /api/iam/v1/groups", s.handleListGroups)
	s.mux.HandleFunc("GET /api/iam/v1/groups/{group_name}", s.handleGetGroup)
	s.mux.HandleFunc("PATCH /api/iam/v1/groups/{group_name}", s.handleUpdateGroup)
	s.mux.HandleFunc("DELETE /api/iam/v1/groups/{group_name}", s.handleDeleteGroup)
	s.mux.HandleFunc("GET /api/iam/v1/groups/{group_name}/members", s.handleGroupMembers)
	s.mux.HandleFunc("POST /api/iam/v1/groups/{group_name}/members", s.handleAddMember)
	s.mux.HandleFunc("DELETE /api/iam/v1/groups/{group_name}/members/{member_name}", s.handleRemoveMember)
	s.mux.HandleFunc("GET /api/iam/v1/groups/{group_name}/moderators", s.handleGroupModerators)
	s.mux.HandleFunc("POST /api/iam/v1/groups/{group_name}/moderators", s.handleAddModerator)
	s.mux.HandleFunc("DELETE /api/iam/v1/groups/{group_name}/moderators/{moderator_name}", s.handleRemoveModerator)
	s.mux.HandleFunc("GET /api/iam/v1/groups/{group_name}/memberships", s.handleGroupMemberships)
	s.mux.HandleFunc("GET /api/iam/v1/groups/{group_name}/capabilities", s.handleGroupCapabilities)

	s.mux.HandleFunc("POST /api/iam/v1/persons", s.handleRegisterPerson)
	s.mux.HandleFunc("GET /api/iam/v1/persons", s.handleListPersons)
	s.mux.HandleFunc("GET /api/iam/v1/persons/{person_id}", s.handleGetPerson)
	s.mux.HandleFunc("PATCH /api/iam/v1/persons/{person_id}", s.handleUpdatePerson)
	s.mux.HandleFunc("DELETE /api/iam/v1/persons/{person_id}", s.handleDeletePerson)
	s.mux.HandleFunc("GET /api/iam/v1/persons/{person_id}/users", s.handleListPersonUsers)
	s.mux.HandleFunc("GET /api/iam/v1/persons/{person_id}/groups", s.handlePersonGroups)
	s.mux.HandleFunc("GET /api/iam/v1/persons/{person_id}/capabilities", s.handlePersonCapabilities)
	s.mux.HandleFunc("GET /api/iam/v1/persons/{person_id}/access", s.handlePersonAccess)

	s.mux.HandleFunc("POST /api/iam/v1/users", s.handleRegisterUser)
	s.mux.HandleFunc("GET /api/iam/v1/users/{user_name}", s.handleGetUser)
	s.mux.HandleFunc("PATCH /api/iam/v1/users/{user_name}", s.handleUpdateUser)
	s.mux.HandleFunc("DELETE /api/iam/v1/users/{user_name}", s.handleDeleteUser)
	s.mux.HandleFunc("GET /api/iam/v1/users/{user_name}/groups", s.handleUserGroups)
	s.mux.HandleFunc("GET /api/iam/v1/users/{user_name}/capabilities", s.handleUserCapabilities)
	s.mux.HandleFunc("GET /api/iam/v1/users/{user_name}/moderators", s.handleUserModerators)

	s.mux.HandleFunc("PUT /api/iam/v1/capabilities", s.handleSyncCapabilities)
	s.mux.HandleFunc("GET /api/iam/v1/capabilities", s.handleListCapabilities)
	s.mux.HandleFunc("GET /api/iam/v1/capabilities/{capability_name}", s.handleGetCapability)
	s.mux.HandleFunc("DELETE /api/iam/v1/capabilities/{capability_name}", s.handleDeleteCapability)

	s.mux.HandleFunc("POST /api/iam/v1/grants", s.handleCreateGrant)
	s.mux.HandleFunc("GET /api/iam/v1/grants", s.handleListGrants)
	s.mux.HandleFunc("GET /api/iam/v1/grants/{grant_ref}", s.handleGetGrant)
	s.mux.HandleFunc("PATCH /api/iam/v1/grants/{grant_ref}", s.handleUpdateGrant)
	s.mux.HandleFunc("DELETE /api/iam/v1/grants/{grant_ref}", s.handleDeleteGrant)
	s.mux.HandleFunc("PUT /api/iam/v1/grants/{grant_ref}/rank", s.handleSetGrantRank)
	s.mux.HandleFunc("POST /api/iam/v1/grants/{grant_ref}/groups", s.handleAddGrantGroup)
	s.mux.HandleFunc("DELETE /api/iam/v1/grants/{grant_ref}/groups/{group_name}", s.handleRemoveGrantGroup)

	s.mux.HandleFunc("POST /api/iam/v1/instances", s.handleCreateInstance)
	s.mux.HandleFunc("GET /api/iam/v1/instances", s.handleListInstances)
	s.mux.HandleFunc("GET /api/iam/v1/instances/{instance_id}", s.handleGetInstance)
	s.mux.HandleFunc("DELETE /api/iam/v1/instances/{instance_id}", s.handleDeleteInstance)
	s.mux.HandleFunc("POST /api/iam/v1/instances/{instance_id}/redeem", s.handleRedeemInstance)
}

// identity extracts the X-Identity header every mutation must carry.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := strings.TrimSpace(r.Header.Get("X-Identity"))
	if actor == "" {
		writeGroupGraphError(w, http.StatusUnauthorized, "missing_identity", "X-Identity header is required")
		return "", false
	}
	return actor, true
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req groupgraphhttp.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.CreateGroupHandler(r.Context(), actor, req)
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.ListGroupsHandler(r.Context())
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.GetGroupHandler(r.Context(), r.PathValue("group_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req groupgraphhttp.UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.UpdateGroupHandler(r.Context(), actor, r.PathValue("group_name"), req)
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.groups.Handler.DeleteGroupHandler(r.Context(), actor, r.PathValue("group_name")); err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.GroupMembersHandler(r.Context(), r.PathValue("group_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req groupgraphhttp.AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.groups.Handler.AddMemberHandler(r.Context(), actor, r.PathValue("group_name"), req); err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	err := s.groups.Handler.RemoveMemberHandler(r.Context(), actor, r.PathValue("group_name"), r.PathValue("member_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGroupModerators(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.GroupModeratorsHandler(r.Context(), r.PathValue("group_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddModerator(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req groupgraphhttp.AddModeratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.groups.Handler.AddModeratorHandler(r.Context(), actor, r.PathValue("group_name"), req); err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveModerator(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	err := s.groups.Handler.RemoveModeratorHandler(r.Context(), actor, r.PathValue("group_name"), r.PathValue("moderator_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGroupMemberships(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.GroupMembershipsHandler(r.Context(), r.PathValue("group_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGroupCapabilities(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group_name")
	if includeGrants, _ := strconv.ParseBool(r.URL.Query().Get("grants")); includeGrants {
		resp, err := s.capabilities.Handler.GroupAccessHandler(r.Context(), group)
		if err != nil {
			writeCapabilityDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp, err := s.capabilities.Handler.GroupCapabilitiesHandler(r.Context(), group)
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterPerson(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req groupgraphhttp.RegisterPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.RegisterPersonHandler(r.Context(), actor, req)
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.ListPersonsHandler(r.Context())
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.GetPersonHandler(r.Context(), r.PathValue("person_id"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req groupgraphhttp.UpdatePersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.UpdatePersonHandler(r.Context(), actor, r.PathValue("person_id"), req)
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.groups.Handler.DeletePersonHandler(r.Context(), actor, r.PathValue("person_id")); err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPersonUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.ListPersonUsersHandler(r.Context(), r.PathValue("person_id"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePersonGroups(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.PersonGroupsHandler(r.Context(), r.PathValue("person_id"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePersonCapabilities(w http.ResponseWriter, r *http.Request) {
	resp, err := s.capabilities.Handler.PersonCapabilitiesHandler(r.Context(), r.PathValue("person_id"))
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePersonAccess(w http.ResponseWriter, r *http.Request) {
	resp, err := s.capabilities.Handler.PersonAccessHandler(r.Context(), r.PathValue("person_id"))
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req groupgraphhttp.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.RegisterUserHandler(r.Context(), actor, req)
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.GetUserHandler(r.Context(), r.PathValue("user_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req groupgraphhttp.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.groups.Handler.UpdateUserHandler(r.Context(), actor, r.PathValue("user_name"), req)
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.groups.Handler.DeleteUserHandler(r.Context(), actor, r.PathValue("user_name")); err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserGroups(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.UserGroupsHandler(r.Context(), r.PathValue("user_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserCapabilities(w http.ResponseWriter, r *http.Request) {
	resp, err := s.capabilities.Handler.UserCapabilitiesHandler(r.Context(), r.PathValue("user_name"))
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserModerators(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groups.Handler.UserModeratorsHandler(r.Context(), r.PathValue("user_name"))
	if err != nil {
		writeGroupGraphDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSyncCapabilities(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req capabilityhttp.SyncCapabilitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCapabilityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.capabilities.Handler.SyncCapabilitiesHandler(r.Context(), actor, req)
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCapabilities(w http.ResponseWriter, r *http.Request) {
	resp, err := s.capabilities.Handler.ListCapabilitiesHandler(r.Context())
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCapability(w http.ResponseWriter, r *http.Request) {
	resp, err := s.capabilities.Handler.GetCapabilityHandler(r.Context(), r.PathValue("capability_name"))
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCapability(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.capabilities.Handler.DeleteCapabilityHandler(r.Context(), actor, r.PathValue("capability_name")); err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req capabilityhttp.CreateGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCapabilityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.capabilities.Handler.CreateGrantHandler(r.Context(), actor, req)
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.capabilities.Handler.ListGrantsHandler(r.Context(), query.Get("namespace"), query.Get("http_method"))
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	resp, err := s.capabilities.Handler.GetGrantHandler(r.Context(), r.PathValue("grant_ref"))
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req capabilityhttp.UpdateGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCapabilityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.capabilities.Handler.UpdateGrantHandler(r.Context(), actor, r.PathValue("grant_ref"), req)
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.capabilities.Handler.DeleteGrantHandler(r.Context(), actor, r.PathValue("grant_ref")); err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetGrantRank(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req capabilityhttp.SetGrantRankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCapabilityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.capabilities.Handler.SetGrantRankHandler(r.Context(), actor, r.PathValue("grant_ref"), req)
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddGrantGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req capabilityhttp.GrantGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCapabilityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.capabilities.Handler.AddGrantGroupHandler(r.Context(), actor, r.PathValue("grant_ref"), req)
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveGrantGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	resp, err := s.capabilities.Handler.RemoveGrantGroupHandler(r.Context(), actor, r.PathValue("grant_ref"), r.PathValue("group_name"))
	if err != nil {
		writeCapabilityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req instancehttp.CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInstanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.instances.Handler.CreateInstanceHandler(r.Context(), actor, req)
	if err != nil {
		writeInstanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	resp, err := s.instances.Handler.ListInstancesHandler(r.Context(), r.URL.Query().Get("capability_name"))
	if err != nil {
		writeInstanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.instances.Handler.GetInstanceHandler(r.Context(), r.PathValue("instance_id"))
	if err != nil {
		writeInstanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.instances.Handler.DeleteInstanceHandler(r.Context(), actor, r.PathValue("instance_id")); err != nil {
		writeInstanceDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRedeemInstance(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.identity(w, r)
	if !ok {
		return
	}
	resp, err := s.instances.Handler.RedeemInstanceHandler(r.Context(), actor, r.PathValue("instance_id"))
	if err != nil {
		writeInstanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeGroupGraphDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, groupgrapherrors.ErrGroupNotFound),
		errors.Is(err, groupgrapherrors.ErrPersonNotFound),
		errors.Is(err, groupgrapherrors.ErrUserNotFound),
		errors.Is(err, groupgrapherrors.ErrEdgeNotFound):
		writeGroupGraphError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, groupgrapherrors.ErrGroupExists),
		errors.Is(err, groupgrapherrors.ErrUserExists),
		errors.Is(err, groupgrapherrors.ErrDuplicateEdge),
		errors.Is(err, groupgrapherrors.ErrDuplicatePath),
		errors.Is(err, groupgrapherrors.ErrCycleViolation),
		errors.Is(err, groupgrapherrors.ErrInactiveOrExpired),
		errors.Is(err, groupgrapherrors.ErrPrimaryGroupMember),
		errors.Is(err, groupgrapherrors.ErrPrimaryGroupModerated),
		errors.Is(err, groupgrapherrors.ErrPrimaryGroupLifecycle),
		errors.Is(err, groupgrapherrors.ErrWriteConflict):
		writeGroupGraphError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, groupgrapherrors.ErrImmutableField):
		writeGroupGraphError(w, http.StatusUnprocessableEntity, "immutable_field", err.Error())
	case errors.Is(err, groupgrapherrors.ErrInvalidRequest),
		errors.Is(err, groupgrapherrors.ErrExpiryOutOfRange):
		writeGroupGraphError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeGroupGraphError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeCapabilityDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capabilityerrors.ErrCapabilityNotFound),
		errors.Is(err, capabilityerrors.ErrGrantNotFound):
		writeCapabilityError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, capabilityerrors.ErrCapabilityExists),
		errors.Is(err, capabilityerrors.ErrGrantExists),
		errors.Is(err, capabilityerrors.ErrRankInvariant),
		errors.Is(err, capabilityerrors.ErrReferentialIntegrity),
		errors.Is(err, capabilityerrors.ErrWriteConflict):
		writeCapabilityError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, capabilityerrors.ErrUnknownCapability),
		errors.Is(err, capabilityerrors.ErrGroupNotFound):
		writeCapabilityError(w, http.StatusUnprocessableEntity, "unknown_reference", err.Error())
	case errors.Is(err, capabilityerrors.ErrImmutableField):
		writeCapabilityError(w, http.StatusUnprocessableEntity, "immutable_field", err.Error())
	case errors.Is(err, capabilityerrors.ErrInvalidRequest):
		writeCapabilityError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeCapabilityError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeInstanceDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, instanceerrors.ErrInstanceNotFound),
		errors.Is(err, instanceerrors.ErrCapabilityNotFound):
		writeInstanceError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, instanceerrors.ErrInstanceNotYetActive):
		writeInstanceError(w, http.StatusForbidden, "not_yet_active", err.Error())
	case errors.Is(err, instanceerrors.ErrInstanceExpired):
		writeInstanceError(w, http.StatusGone, "expired", err.Error())
	case errors.Is(err, instanceerrors.ErrContentionExceeded):
		writeInstanceError(w, http.StatusConflict, "contention_exceeded", err.Error())
	case errors.Is(err, instanceerrors.ErrInvalidRequest):
		writeInstanceError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeInstanceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGroupGraphError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, groupgraphhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeCapabilityError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, capabilityhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeInstanceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, instancehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
