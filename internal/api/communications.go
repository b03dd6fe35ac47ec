// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package api

import (
	"context"
	"net/http"

	"github.com/kmoyo/raceday/internal/models"
	"github.com/kmoyo/raceday/internal/validation"
)

// ListTemplates fetches all reusable message templates.
func (c *Client) ListTemplates(ctx context.Context) ([]models.MessageTemplate, error) {
	var templates []models.MessageTemplate
	_, err := c.decodeData(ctx, "comms.templates.list", http.MethodGet, "/communications/templates", nil, nil, &templates)
	return templates, err
}

// TemplateRequest carries the writable template fields.
type TemplateRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

// CreateTemplate creates a message template.
func (c *Client) CreateTemplate(ctx context.Context, req TemplateRequest) (models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	if err := validation.ValidateStruct(&req); err != nil {
		return tmpl, &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}
	_, err := c.decodeData(ctx, "comms.templates.create", http.MethodPost, "/communications/templates", nil, req, &tmpl)
	return tmpl, err
}

// UpdateTemplate updates a message template.
func (c *Client) UpdateTemplate(ctx context.Context, id string, req TemplateRequest) (models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	if err := validation.ValidateStruct(&req); err != nil {
		return tmpl, &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}
	_, err := c.decodeData(ctx, "comms.templates.update", http.MethodPut, "/communications/templates/"+id, nil, req, &tmpl)
	return tmpl, err
}

// DeleteTemplate removes a message template.
func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	_, err := c.doEnvelope(ctx, "comms.templates.delete", http.MethodDelete, "/communications/templates/"+id, nil, nil)
	return err
}

// SendEmail sends an ad-hoc or templated email to explicit recipients.
// The payload is validated before the request is made.
func (c *Client) SendEmail(ctx context.Context, req models.SendEmailRequest) error {
	if err := validation.ValidateStruct(&req); err != nil {
		return &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}
	_, err := c.doEnvelope(ctx, "comms.email", http.MethodPost, "/communications/email", nil, req)
	return err
}

// Announce broadcasts an announcement to an audience group.
func (c *Client) Announce(ctx context.Context, req models.AnnouncementRequest) error {
	if err := validation.ValidateStruct(&req); err != nil {
		return &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}
	_, err := c.doEnvelope(ctx, "comms.announce", http.MethodPost, "/communications/announce", nil, req)
	return err
}
