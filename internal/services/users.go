package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/sheets"
)

const minPasswordLength = 6

// UserService stores portal accounts with bcrypt password hashes.
// It checks credentials only; sessions are the caller's concern.
type UserService struct {
	base
}

type NewUser struct {
	Username    string
	Password    string
	Role        string
	LinkedID    string
	DisplayName string
}

func (s *UserService) Create(ctx context.Context, in NewUser) (core.User, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	if err := required("username", in.Username, "password", in.Password, "role", in.Role); err != nil {
		return core.User{}, err
	}
	if len(in.Password) < minPasswordLength {
		return core.User{}, fmt.Errorf("%w: password must be at least %d characters", core.ErrValidation, minPasswordLength)
	}
	role, err := core.ParseRole(in.Role)
	if err != nil {
		return core.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := core.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         role,
		LinkedID:     in.LinkedID,
		DisplayName:  in.DisplayName,
		CreatedAt:    s.timestamp(),
	}
	row := userSchema.NewRow(map[string]string{
		"Username":     u.Username,
		"PasswordHash": u.PasswordHash,
		"Role":         string(u.Role),
		"LinkedID":     u.LinkedID,
		"DisplayName":  u.DisplayName,
		"CreatedAt":    u.CreatedAt,
	})
	err = s.locker.WithLock(ctx, lock.TableKey(string(sheets.Users)), func() error {
		return s.append(ctx, sheets.Master(sheets.Users), row)
	})
	if errors.Is(err, sheets.ErrDuplicateKey) {
		return core.User{}, fmt.Errorf("%w: username %s is taken", core.ErrValidation, u.Username)
	}
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

// Login verifies credentials and returns the account. Unknown users and wrong
// passwords fail identically.
func (s *UserService) Login(ctx context.Context, username, password string) (core.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if err := required("username", username, "password", password); err != nil {
		return core.User{}, err
	}
	rows, err := s.rows(ctx, sheets.Master(sheets.Users))
	if err != nil {
		return core.User{}, err
	}
	idx := findRow(rows, userSchema, "Username", username)
	if idx < 0 {
		return core.User{}, core.ErrBadLogin
	}
	u := userFromRow(rows[idx])
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.User{}, core.ErrBadLogin
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]core.User, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Users))
	if err != nil {
		return nil, err
	}
	out := make([]core.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, userFromRow(r))
	}
	return out, nil
}

func (s *UserService) Delete(ctx context.Context, username string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if err := required("username", username); err != nil {
		return err
	}
	return s.deleteByKey(ctx, sheets.Users, "user", username)
}
