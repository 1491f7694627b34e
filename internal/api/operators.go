package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-radio/internal/auth"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// ─── Request/Response Types ────────────────────────────────────────

type createOperatorRequest struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Password    string    `json:"password"`
	Role        auth.Role `json:"role"`
}

type updateOperatorRequest struct {
	DisplayName *string    `json:"display_name,omitempty"`
	Role        *auth.Role `json:"role,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	Password    *string    `json:"password,omitempty"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListOperators returns all operator accounts.
func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	operators, err := s.operators.List(r.Context())
	if err != nil {
		s.logger.Error("list operators failed", "error", err)
		writeInternalError(w, "failed to list operators")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"operators": operators,
		"count":     len(operators),
	})
}

// handleCreateOperator creates a new operator account.
func (s *Server) handleCreateOperator(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" || req.DisplayName == "" {
		writeBadRequest(w, "username, password, and display_name are required")
		return
	}
	if !auth.IsValidUsername(req.Username) {
		writeBadRequest(w, "username must be 1-64 characters: letters, digits, dots, hyphens, underscores")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	if req.Role == "" {
		req.Role = auth.RoleViewer
	}
	if !auth.IsValidRole(req.Role) {
		writeBadRequest(w, "invalid role: must be viewer, operator, or admin")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create operator")
		return
	}

	op := &auth.Operator{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
	}

	if err := s.operators.Create(r.Context(), op); err != nil {
		if errors.Is(err, auth.ErrUsernameExists) {
			writeConflict(w, "username already exists")
			return
		}
		s.logger.Error("create operator failed", "error", err)
		writeInternalError(w, "failed to create operator")
		return
	}

	actor := actorFromContext(r.Context())
	s.logger.Info("operator created", "operator_id", op.ID, "username", op.Username, "role", op.Role, "created_by", actor)
	s.auditSuccess("operator.create", actor, map[string]any{
		"operator_id": op.ID,
		"username":    op.Username,
		"role":        op.Role,
	})

	writeJSON(w, http.StatusCreated, op)
}

// handleGetOperator returns a single operator by ID.
func (s *Server) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	op, err := s.operators.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrOperatorNotFound) {
			writeNotFound(w, "operator not found")
			return
		}
		s.logger.Error("get operator failed", "error", err)
		writeInternalError(w, "failed to get operator")
		return
	}

	writeJSON(w, http.StatusOK, op)
}

// handleUpdateOperator modifies an operator's mutable fields.
func (s *Server) handleUpdateOperator(w http.ResponseWriter, r *http.Request) { //nolint:gocognit,gocyclo // account update: field patching + self-protection guards
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	var req updateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	op, err := s.operators.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrOperatorNotFound) {
			writeNotFound(w, "operator not found")
			return
		}
		s.logger.Error("get operator for update failed", "error", err)
		writeInternalError(w, "failed to update operator")
		return
	}

	// Self-protection: cannot deactivate yourself
	if req.IsActive != nil && !*req.IsActive && id == claims.Subject {
		writeForbidden(w, "cannot deactivate your own account")
		return
	}

	// Self-protection: cannot change your own role
	if req.Role != nil && id == claims.Subject && *req.Role != claims.Role {
		writeForbidden(w, "cannot change your own role")
		return
	}

	if req.Role != nil && !auth.IsValidRole(*req.Role) {
		writeBadRequest(w, "invalid role: must be viewer, operator, or admin")
		return
	}

	// Apply patches
	if req.DisplayName != nil {
		op.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		op.Role = *req.Role
	}
	if req.IsActive != nil {
		op.IsActive = *req.IsActive
	}

	if err := s.operators.Update(r.Context(), op); err != nil {
		s.logger.Error("update operator failed", "error", err)
		writeInternalError(w, "failed to update operator")
		return
	}

	// Password change travels in the same PATCH.
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			writeBadRequest(w, "password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.logger.Error("hash password failed", "error", err)
			writeInternalError(w, "failed to update password")
			return
		}
		if err := s.operators.UpdatePassword(r.Context(), id, hash); err != nil {
			s.logger.Error("update password failed", "error", err)
			writeInternalError(w, "failed to update password")
			return
		}
	}

	s.logger.Info("operator updated", "operator_id", id, "updated_by", claims.Subject)
	s.auditSuccess("operator.update", claims.Subject, map[string]any{
		"operator_id":      id,
		"password_changed": req.Password != nil,
	})

	writeJSON(w, http.StatusOK, op)
}

// handleDeleteOperator removes an operator account.
func (s *Server) handleDeleteOperator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	// Cannot delete yourself
	if id == claims.Subject {
		writeForbidden(w, "cannot delete your own account")
		return
	}

	op, err := s.operators.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrOperatorNotFound) {
			writeNotFound(w, "operator not found")
			return
		}
		s.logger.Error("get operator for delete failed", "error", err)
		writeInternalError(w, "failed to delete operator")
		return
	}

	if err := s.operators.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete operator failed", "error", err)
		writeInternalError(w, "failed to delete operator")
		return
	}

	s.logger.Info("operator deleted", "operator_id", id, "deleted_by", claims.Subject)
	s.auditSuccess("operator.delete", claims.Subject, map[string]any{
		"operator_id": id,
		"username":    op.Username,
	})

	w.WriteHeader(http.StatusNoContent)
}
