// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package models

import "time"

// AdminUser is a staff account on the platform.
type AdminUser struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Key returns the store identity of the admin user.
func (a AdminUser) Key() string { return a.ID }

// MessageTemplate is a reusable email/announcement template.
type MessageTemplate struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Key returns the store identity of the template.
func (t MessageTemplate) Key() string { return t.ID }

// SendEmailRequest is the payload for sending a templated or ad-hoc email
// to a set of recipients.
type SendEmailRequest struct {
	TemplateID string   `json:"templateId,omitempty"`
	Subject    string   `json:"subject" validate:"required_without=TemplateID"`
	Body       string   `json:"body" validate:"required_without=TemplateID"`
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
}

// AnnouncementRequest is the payload for a broadcast announcement.
type AnnouncementRequest struct {
	Title    string `json:"title" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Audience string `json:"audience,omitempty" validate:"omitempty,oneof=all runners admins"`
}
