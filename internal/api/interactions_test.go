package api

import (
	"net/http"
	"testing"

	"github.com/kalambet/dishcover/internal/storage"
	"github.com/kalambet/dishcover/internal/summary"
)

func TestCreateInteraction_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing place", `{"action":"like"}`, "Place ID and action are required"},
		{"missing action", `{"placeId":"p1"}`, "Place ID and action are required"},
		{"unknown action", `{"placeId":"p1","action":"love"}`, "Invalid action"},
		{"array metadata", `{"placeId":"p1","action":"like","metadata":[1]}`, "metadata must be a JSON object"},
	}
	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/interactions", tt.body, "u1")
			expectStatus(t, rec, http.StatusBadRequest)
			if msg := errorMessage(t, rec); msg != tt.message {
				t.Errorf("message = %q, want %q", msg, tt.message)
			}
		})
	}
}

func TestCreateInteraction_SaveAddsToDefaultListOnce(t *testing.T) {
	env := newTestEnv(t)
	for range 2 {
		rec := env.do(t, http.MethodPost, "/interactions", `{"placeId":"p1","action":"save"}`, "u1")
		expectStatus(t, rec, http.StatusOK)
		if rec.Body.String() != "{\"success\":true}\n" {
			t.Errorf("body = %q", rec.Body.String())
		}
	}

	list, err := env.store.EnsureDefaultList("u1")
	if err != nil {
		t.Fatalf("EnsureDefaultList: %v", err)
	}
	members, err := env.store.ListMembers(list.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 1 || members[0].PlaceID != "p1" {
		t.Errorf("members = %+v, want p1 once", members)
	}

	rows, _ := env.store.RecentInteractions("u1", 10)
	if len(rows) != 2 {
		t.Errorf("interactions = %d, want 2", len(rows))
	}
}

func TestCreateInteraction_SchedulesSummaryRefresh(t *testing.T) {
	env := newTestEnv(t)
	for _, action := range []string{"like", "pass", "open"} {
		expectStatus(t, env.do(t, http.MethodPost, "/interactions", `{"placeId":"p1","action":"`+action+`"}`, "u1"), http.StatusOK)
	}

	pending, err := env.store.HasPendingJob(summary.JobType, `{"user_id":"u1"}`)
	if err != nil {
		t.Fatalf("HasPendingJob: %v", err)
	}
	if !pending {
		t.Error("expected a pending summary refresh")
	}

	job, err := env.store.ClaimNextJob([]string{summary.JobType})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob = %v, %v", job, err)
	}
	if next, _ := env.store.ClaimNextJob([]string{summary.JobType}); next != nil {
		t.Errorf("duplicate refresh job queued: %+v", next)
	}
}

func TestCreateInteraction_OpenDoesNotSchedule(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodPost, "/interactions", `{"placeId":"p1","action":"open","metadata":{"from":"map"}}`, "u1"), http.StatusOK)

	if job, _ := env.store.ClaimNextJob([]string{summary.JobType}); job != nil {
		t.Errorf("unexpected job %+v", job)
	}
	rows, _ := env.store.RecentInteractions("u1", 1)
	if len(rows) != 1 || rows[0].Metadata != `{"from":"map"}` {
		t.Errorf("rows = %+v", rows)
	}
}

func TestListInteractions(t *testing.T) {
	env := newTestEnv(t)
	for _, p := range []string{"p1", "p2", "p3"} {
		if err := env.store.SaveInteraction(storage.Interaction{UserID: "u1", PlaceID: p, Action: "like"}); err != nil {
			t.Fatalf("SaveInteraction: %v", err)
		}
	}
	env.store.SaveInteraction(storage.Interaction{UserID: "u2", PlaceID: "px", Action: "like"})

	rec := env.do(t, http.MethodGet, "/interactions?limit=2", "", "u1")
	expectStatus(t, rec, http.StatusOK)
	var body struct {
		Interactions []interactionView `json:"interactions"`
	}
	decode(t, rec, &body)
	if len(body.Interactions) != 2 {
		t.Fatalf("got %d interactions, want 2", len(body.Interactions))
	}
	if body.Interactions[0].PlaceID != "p3" || body.Interactions[1].PlaceID != "p2" {
		t.Errorf("order = %s, %s; want newest first", body.Interactions[0].PlaceID, body.Interactions[1].PlaceID)
	}
	if string(body.Interactions[0].Metadata) != "{}" {
		t.Errorf("metadata = %s", body.Interactions[0].Metadata)
	}

	rec = env.do(t, http.MethodGet, "/interactions?limit=2&offset=2", "", "u1")
	decode(t, rec, &body)
	if len(body.Interactions) != 1 || body.Interactions[0].PlaceID != "p1" {
		t.Errorf("second page = %+v", body.Interactions)
	}
}
