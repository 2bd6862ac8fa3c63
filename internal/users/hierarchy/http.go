// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hierarchy

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taibuivan/workhub/internal/platform/middleware"
	requestutil "github.com/taibuivan/workhub/internal/platform/request"
	"github.com/taibuivan/workhub/internal/platform/respond"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/platform/validate"
	"github.com/taibuivan/workhub/internal/users/auth"
)

// Handler exposes the hierarchy service over HTTP.
type Handler struct {
	hierarchyService *Service
}

// NewHandler constructs a new hierarchy [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{hierarchyService: service}
}

// Routes returns a [chi.Router] with the hierarchy endpoints, all of which
// require authentication.
//
// # Endpoints
//   - GET    /hierarchy          : Users grouped by role (VIEW_HIERARCHY)
//   - GET    /promotable         : Users the caller outranks
//   - GET    /available-roles    : Roles the caller may assign
//   - GET    /super-admin/verify : SUPER_ADMIN invariant status
//   - POST   /{userID}/promote   : Move a user up
//   - POST   /{userID}/demote    : Move a user down
//   - DELETE /{userID}           : Deactivate a user
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.With(
		middleware.RequirePermission(sec.PermViewHierarchy),
		validate.Query[hierarchyQuery](),
	).Get("/hierarchy", handler.getHierarchy)

	router.Get("/promotable", handler.getPromotable)
	router.Get("/available-roles", handler.getAvailableRoles)
	router.Get("/super-admin/verify", handler.verifySuperAdmins)

	router.With(validate.Body[roleChangeRequest]()).Post("/{userID}/promote", handler.promote)
	router.With(validate.Body[roleChangeRequest]()).Post("/{userID}/demote", handler.demote)
	router.Delete("/{userID}", handler.remove)

	return router
}

// # Request Contracts

type hierarchyQuery struct {
	Department      string
	IncludeInactive bool
}

func (in *hierarchyQuery) ParseQuery(values url.Values, v *validate.Validator) {
	department := strings.TrimSpace(values.Get("department"))
	v.MaxLen("department", department, 100)
	in.Department = cases.Lower(language.Und).String(department)
	in.IncludeInactive = validate.QueryBool(values, "includeInactive", v)
}

type roleChangeRequest struct {
	NewRole string `json:"newRole"`
}

func (in *roleChangeRequest) Validate(v *validate.Validator) {
	v.Role(FieldNewRole, in.NewRole)
}

// role returns the validated role.
func (in *roleChangeRequest) role() sec.Role {
	role, _ := sec.ParseRole(in.NewRole)
	return role
}

// # Read Endpoints

/*
GET /api/v1/users/hierarchy.

Query:
  - department: optional, case-insensitive
  - includeInactive: optional boolean

Response:
  - 200: []Level ordered by rank descending
*/
func (handler *Handler) getHierarchy(writer http.ResponseWriter, request *http.Request) {
	query, _ := validate.Payload[hierarchyQuery](request.Context())

	levels, err := handler.hierarchyService.GetHierarchy(request.Context(), Filter{
		Department:      query.Department,
		IncludeInactive: query.IncludeInactive,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, levels)
}

// GET /api/v1/users/promotable.
func (handler *Handler) getPromotable(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	users, err := handler.hierarchyService.GetPromotableUsers(request.Context(), actorID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, users)
}

// GET /api/v1/users/available-roles.
func (handler *Handler) getAvailableRoles(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	roles, err := handler.hierarchyService.GetAvailableRoles(request.Context(), actorID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, roles)
}

// GET /api/v1/users/super-admin/verify.
func (handler *Handler) verifySuperAdmins(writer http.ResponseWriter, request *http.Request) {
	status, err := handler.hierarchyService.VerifySuperAdminCount(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, status)
}

// # Mutation Endpoints

/*
POST /api/v1/users/{userID}/promote.

Request:
  - Body: roleChangeRequest (newRole)

Response:
  - 200: User: The promoted user
  - 400: Invalid role, or not above the current one
  - 403: INSUFFICIENT_PRIVILEGE
  - 404: Unknown user
*/
func (handler *Handler) promote(writer http.ResponseWriter, request *http.Request) {
	handler.changeRole(writer, request, handler.hierarchyService.PromoteUser)
}

/*
POST /api/v1/users/{userID}/demote.

Response:
  - 200: User: The demoted user
  - 409: LAST_SUPER_ADMIN when no other active SUPER_ADMIN would remain
*/
func (handler *Handler) demote(writer http.ResponseWriter, request *http.Request) {
	handler.changeRole(writer, request, handler.hierarchyService.DemoteUser)
}

func (handler *Handler) changeRole(writer http.ResponseWriter, request *http.Request, apply func(ctx context.Context, input PromotionRequest) (*auth.User, error)) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	targetID, err := requestutil.UUIDParam(request, "userID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	body, _ := validate.Payload[roleChangeRequest](request.Context())

	user, err := apply(request.Context(), PromotionRequest{
		ActorID:      actorID,
		TargetUserID: targetID,
		NewRole:      body.role(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
DELETE /api/v1/users/{userID}.

Response:
  - 204: Removed
  - 403: SELF_OPERATION_FORBIDDEN or INSUFFICIENT_PRIVILEGE
  - 409: LAST_SUPER_ADMIN
*/
func (handler *Handler) remove(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	targetID, err := requestutil.UUIDParam(request, "userID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.hierarchyService.RemoveUser(request.Context(), actorID, targetID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
