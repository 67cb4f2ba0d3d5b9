package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/robotsunny/private-app-store/internal/auth"
	"github.com/robotsunny/private-app-store/internal/models"
	"github.com/robotsunny/private-app-store/internal/store"
)

type credentialsReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userPayload(u models.User) map[string]any {
	return map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

func Register(users store.UserStore, tokens *auth.TokenService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "Email and password are required")
			return
		}
		if _, exists, err := users.UserByEmail(req.Email); err != nil {
			lg.Errorw("register lookup failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		} else if exists {
			respondError(w, http.StatusBadRequest, "User already exists")
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		u := models.User{
			Name:         strings.TrimSpace(req.Name),
			Email:        req.Email,
			PasswordHash: hash,
			Role:         models.RoleUser,
		}
		if err := users.CreateUser(&u); err != nil {
			lg.Errorw("register create failed", "email", req.Email, "error", err)
			respondError(w, http.StatusBadRequest, "Could not register user")
			return
		}

		tok, err := tokens.Sign(u)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		lg.Infow("user registered", "id", u.ID, "email", u.Email)
		respondJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": "Registered successfully",
			"token":   tok,
			"user":    userPayload(u),
		})
	}
}

func Login(users store.UserStore, tokens *auth.TokenService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		u, ok, err := users.UserByEmail(strings.TrimSpace(req.Email))
		if err != nil {
			lg.Errorw("login lookup failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !ok || auth.CheckPassword(u.PasswordHash, req.Password) != nil {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		tok, err := tokens.Sign(u)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		lg.Infow("login", "id", u.ID, "email", u.Email)
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Login successful",
			"token":   tok,
			"user":    userPayload(u),
		})
	}
}
