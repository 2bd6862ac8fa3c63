// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/workhub/internal/platform/middleware"
	"github.com/taibuivan/workhub/internal/platform/respond"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login    : Authenticates and returns a JWT.
//   - POST /register : Creates a MEMBER account (MANAGE_USERS).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.With(validate.Body[loginRequest]()).Post("/login", handler.login)

	router.With(
		middleware.RequirePermission(sec.PermManageUsers),
		validate.Body[registerRequest](),
	).Post("/register", handler.register)

	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *loginRequest) Validate(v *validate.Validator) {
	v.Required(FieldEmail, in.Email).Email(FieldEmail, in.Email)
	v.Required(FieldPassword, in.Password).MaxLen(FieldPassword, in.Password, 72)
}

type registerRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Department string `json:"department"`
}

func (in *registerRequest) Validate(v *validate.Validator) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)

	v.Required(FieldEmail, in.Email).Email(FieldEmail, in.Email).MaxLen(FieldEmail, in.Email, 254)
	v.Required(FieldName, in.Name).MaxLen(FieldName, in.Name, 100)
	v.MinLen(FieldPassword, in.Password, 8).MaxLen(FieldPassword, in.Password, 72)
	v.MaxLen(FieldDepartment, in.Department, 100)
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
	User        *User  `json:"user"`
}

/*
POST /api/v1/auth/login.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: loginResponse: Bearer token and profile
  - 400: Validation failure
  - 401: Invalid credentials
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	input, _ := validate.Payload[loginRequest](request.Context())

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, loginResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(session.ExpiresIn.Seconds()),
		User:        session.User,
	})
}

/*
POST /api/v1/auth/register.

Request:
  - Body: registerRequest (Email, Name, Password, Department)

Response:
  - 201: User: The created MEMBER account
  - 400: Validation failure
  - 403: Caller lacks MANAGE_USERS
  - 409: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	input, _ := validate.Payload[registerRequest](request.Context())

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:      input.Email,
		Name:       input.Name,
		Password:   input.Password,
		Department: input.Department,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Status(writer, http.StatusCreated, user)
}
