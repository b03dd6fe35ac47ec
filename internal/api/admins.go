// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package api

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/kmoyo/raceday/internal/models"
	"github.com/kmoyo/raceday/internal/validation"
)

// LoginRequest is the credentials payload for Login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges credentials for a bearer token. It does not store
// the token; the session layer owns persistence.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	req := LoginRequest{Email: email, Password: password}
	if err := validation.ValidateStruct(&req); err != nil {
		return "", &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}

	env, err := c.doEnvelope(ctx, "auth.login", http.MethodPost, "/auth/login", nil, req)
	if err != nil {
		return "", err
	}

	var data models.TokenData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", malformedErr(http.StatusOK, err)
	}
	if data.Token == "" {
		return "", &Error{Kind: KindMalformed, Message: "login response carried no token"}
	}
	return data.Token, nil
}

// Me returns the admin profile for the current token. A KindAuth error
// means the stored token is no longer valid.
func (c *Client) Me(ctx context.Context) (models.AdminUser, error) {
	var admin models.AdminUser
	_, err := c.decodeData(ctx, "auth.me", http.MethodGet, "/auth/me", nil, nil, &admin)
	return admin, err
}

// ListAdmins fetches all admin accounts.
func (c *Client) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	var admins []models.AdminUser
	_, err := c.decodeData(ctx, "auth.admins.list", http.MethodGet, "/auth/admins", nil, nil, &admins)
	return admins, err
}

// AdminRequest carries the writable admin account fields.
type AdminRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin operator viewer"`
}

// CreateAdmin creates a new admin account.
func (c *Client) CreateAdmin(ctx context.Context, req AdminRequest) (models.AdminUser, error) {
	var admin models.AdminUser
	if err := validation.ValidateStruct(&req); err != nil {
		return admin, &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}
	_, err := c.decodeData(ctx, "auth.admins.create", http.MethodPost, "/auth/create-admin", nil, req, &admin)
	return admin, err
}

// UpdateAdmin updates an existing admin account.
func (c *Client) UpdateAdmin(ctx context.Context, id string, req AdminRequest) (models.AdminUser, error) {
	var admin models.AdminUser
	if err := validation.ValidateStruct(&req); err != nil {
		return admin, &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}
	_, err := c.decodeData(ctx, "auth.admins.update", http.MethodPut, "/auth/admins/"+id, nil, req, &admin)
	return admin, err
}

// DeleteAdmin removes an admin account.
func (c *Client) DeleteAdmin(ctx context.Context, id string) error {
	_, err := c.doEnvelope(ctx, "auth.admins.delete", http.MethodDelete, "/auth/admins/"+id, nil, nil)
	return err
}
