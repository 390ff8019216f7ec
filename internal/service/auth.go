package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/wb-go/wbf/ginext"

	"regportal/internal/auth"
	"regportal/internal/dto"
	"regportal/internal/model"
	"regportal/internal/repo"
	"regportal/pkg/validator"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgUnauthorizedAccess = "Unauthorized access"
)

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// compareAgainstNothing spends the same bcrypt work as a real comparison so
// unknown usernames answer as slowly as wrong passwords.
func compareAgainstNothing(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("not-a-real-password")
	})
	_ = auth.CheckPassword(dummyHash, password)
}

func (s *service) Login(ctx *ginext.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.MissingFieldsError(ctx, "Username and password are required")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.MissingFieldsError(ctx, "Username and password are required")
		return
	}

	key := strings.ToLower(req.Username) + "|" + ctx.ClientIP()
	if s.throttle.Locked(key) {
		s.log.Warn().Str("username", req.Username).Str("ip", ctx.ClientIP()).Msg("login throttled")
		dto.ErrorResponse(ctx, http.StatusTooManyRequests, dto.TooManyAttempts, "Too many failed login attempts. Try again later.")
		return
	}

	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, repo.ErrUserNotFound) {
			s.log.Error().Err(err).Msg("failed to look up user")
			dto.InternalServerError(ctx, "")
			return
		}
		compareAgainstNothing(req.Password)
		s.throttle.Fail(key)
		dto.ErrorResponse(ctx, http.StatusUnauthorized, dto.InvalidCredentials, msgInvalidCredentials)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.throttle.Fail(key)
		s.log.Info().Str("username", req.Username).Msg("login rejected")
		dto.ErrorResponse(ctx, http.StatusUnauthorized, dto.InvalidCredentials, msgInvalidCredentials)
		return
	}

	if user.Role != model.RoleAdmin {
		s.log.Warn().Str("username", user.Username).Str("role", user.Role).Msg("non-admin login attempt")
		dto.ErrorResponse(ctx, http.StatusForbidden, dto.Forbidden, msgUnauthorizedAccess)
		return
	}
	s.throttle.Reset(key)

	token, exp, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue token")
		dto.InternalServerError(ctx, "")
		return
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("admin logged in")
	ctx.JSON(http.StatusOK, dto.LoginResponse{
		Message:   "Login successful",
		User:      dto.UserDescriptor{ID: user.ID, Username: user.Username, Role: user.Role},
		Token:     token,
		ExpiresAt: exp,
	})
}

// Me echoes the identity carried by the bearer token.
func (s *service) Me(ctx *ginext.Context) {
	claims, ok := auth.ClaimsFrom(ctx)
	if !ok {
		dto.ErrorResponse(ctx, http.StatusUnauthorized, dto.Unauthenticated, "Authentication required")
		return
	}
	id, err := claims.UserID()
	if err != nil {
		dto.ErrorResponse(ctx, http.StatusUnauthorized, dto.Unauthenticated, "Authentication required")
		return
	}
	ctx.JSON(http.StatusOK, dto.UserDescriptor{ID: id, Username: claims.Username, Role: claims.Role})
}

// BootstrapAdmin creates an admin account unless the username is taken.
func BootstrapAdmin(ctx context.Context, r repo.Repository, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	created, err := r.CreateUserIfMissing(ctx, &model.User{Username: username, PasswordHash: hash, Role: model.RoleAdmin})
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	return created, nil
}
