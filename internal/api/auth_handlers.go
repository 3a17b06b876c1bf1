package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/user"
)

func registerHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		created, err := users.Register(r.Context(), user.RegisterInput{
			Name:       req.Name,
			Email:      req.Email,
			Password:   req.Password,
			Role:       user.Role(req.Role),
			Department: req.Department,
		})
		if err != nil {
			handleRegisterError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toUserResponse(created))
	}
}

func loginHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		token, u, err := users.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			handleLoginError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{
			Token: token,
			User:  toUserResponse(u),
		})
	}
}

func handleRegisterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrMissingField),
		errors.Is(err, user.ErrDepartmentRequired),
		errors.Is(err, user.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "invalid_registration", err.Error())
	default:
		log.Printf("register error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "server error")
	}
}

func handleLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrMissingField):
		writeError(w, http.StatusBadRequest, "invalid_login", err.Error())
	case errors.Is(err, user.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	default:
		log.Printf("login error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "server error")
	}
}
