// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/kmoyo/raceday/internal/models"
)

func TestSendEmailWithTemplate(t *testing.T) {
	var gotBody []byte
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/communications/email" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)
		w.Write(envelope(nil, nil))
	}), "jwt")
	defer srv.Close()

	err := client.SendEmail(context.Background(), models.SendEmailRequest{
		TemplateID: "tpl-1",
		Recipients: []string{"asha@example.org", "ben@example.org"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	var sent models.SendEmailRequest
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.TemplateID != "tpl-1" || len(sent.Recipients) != 2 {
		t.Errorf("sent body = %+v", sent)
	}
}

func TestSendEmailValidation(t *testing.T) {
	var hits atomic.Int32
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), "jwt")
	defer srv.Close()

	cases := []struct {
		name string
		req  models.SendEmailRequest
	}{
		{"no recipients", models.SendEmailRequest{TemplateID: "tpl-1"}},
		{"bad recipient address", models.SendEmailRequest{
			TemplateID: "tpl-1",
			Recipients: []string{"not-an-email"},
		}},
		{"no template and no body", models.SendEmailRequest{
			Recipients: []string{"asha@example.org"},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var apiErr *Error
			err := client.SendEmail(context.Background(), tc.req)
			if !errors.As(err, &apiErr) || apiErr.Kind != KindBusiness {
				t.Errorf("SendEmail = %v, want business error", err)
			}
		})
	}
	if hits.Load() != 0 {
		t.Errorf("server hits = %d, want 0 for locally rejected requests", hits.Load())
	}
}

func TestAnnounce(t *testing.T) {
	var gotBody []byte
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/communications/announce" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)
		w.Write(envelope(nil, nil))
	}), "jwt")
	defer srv.Close()

	err := client.Announce(context.Background(), models.AnnouncementRequest{
		Title:    "Course change",
		Message:  "Kilometer 30 rerouted due to flooding",
		Audience: "runners",
	})
	if err != nil {
		t.Fatalf("announce: %v", err)
	}

	var sent models.AnnouncementRequest
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.Audience != "runners" {
		t.Errorf("audience = %q", sent.Audience)
	}

	if err := client.Announce(context.Background(), models.AnnouncementRequest{
		Title:    "x",
		Message:  "y",
		Audience: "everyone",
	}); err == nil {
		t.Error("invalid audience accepted")
	}
}

func TestTemplateCRUDPaths(t *testing.T) {
	var paths []string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/communications/templates":
			if r.Method == http.MethodGet {
				w.Write(envelope([]models.MessageTemplate{{ID: "tpl-1", Name: "Finish line"}}, nil))
				return
			}
			w.Write(envelope(models.MessageTemplate{ID: "tpl-2"}, nil))
		default:
			w.Write(envelope(models.MessageTemplate{ID: "tpl-1"}, nil))
		}
	}), "jwt")
	defer srv.Close()

	templates, err := client.ListTemplates(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(templates) != 1 || templates[0].Name != "Finish line" {
		t.Errorf("templates = %+v", templates)
	}

	req := TemplateRequest{Name: "Finish line", Subject: "Congratulations", Body: "You made it."}
	if _, err := client.CreateTemplate(context.Background(), req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := client.UpdateTemplate(context.Background(), "tpl-1", req); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := client.DeleteTemplate(context.Background(), "tpl-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{
		"GET /communications/templates",
		"POST /communications/templates",
		"PUT /communications/templates/tpl-1",
		"DELETE /communications/templates/tpl-1",
	}
	if len(paths) != len(want) {
		t.Fatalf("requests = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, paths[i], want[i])
		}
	}
}
