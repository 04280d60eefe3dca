package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mappingmemory "axis-studio/internal/mapping/infrastructure/memory"
	"axis-studio/internal/profiles/application"
	profiles "axis-studio/internal/profiles/domain"
	"axis-studio/internal/profiles/infrastructure/memory"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	service, err := application.NewService(
		memory.NewRepository(),
		memory.NewSubRepository(),
		mappingmemory.NewOverrideStore(),
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func createProfile(t *testing.T, handler *Handler, name string) profiles.Profile {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles",
		bytes.NewBufferString(`{"name":"`+name+`","device_name":"Gamepad"}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var profile profiles.Profile
	if err := json.NewDecoder(rec.Body).Decode(&profile); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return profile
}

func TestCreateAndGetProfile(t *testing.T) {
	handler := newTestHandler(t)
	profile := createProfile(t, handler, "Racing")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles/"+profile.ID, nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var body struct {
		Profile     profiles.Profile      `json:"profile"`
		SubProfiles []profiles.SubProfile `json:"sub_profiles"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Profile.Name != "Racing" {
		t.Fatalf("name = %q, want Racing", body.Profile.Name)
	}
	if len(body.SubProfiles) != 1 || body.SubProfiles[0].Name != "Default" {
		t.Fatalf("expected one default sub-profile, got %+v", body.SubProfiles)
	}
}

func TestCreateProfileValidation(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles",
		bytes.NewBufferString(`{"name":""}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRenameProfile(t *testing.T) {
	handler := newTestHandler(t)
	profile := createProfile(t, handler, "Racing")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/profiles/"+profile.ID,
		bytes.NewBufferString(`{"name":"Flight"}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("rename status = %d, want 204", rec.Code)
	}
}

func TestGetUnknownProfile(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles/missing", nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSubProfileLifecycle(t *testing.T) {
	handler := newTestHandler(t)
	profile := createProfile(t, handler, "Racing")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles/"+profile.ID+"/subprofiles",
		bytes.NewBufferString(`{"name":"Drift"}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add sub status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var sub profiles.SubProfile
	if err := json.NewDecoder(rec.Body).Decode(&sub); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete,
		"/api/v1/profiles/"+profile.ID+"/subprofiles/"+sub.ID, nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove sub status = %d, want 204", rec.Code)
	}
}

func TestRemoveLastSubProfileConflicts(t *testing.T) {
	handler := newTestHandler(t)
	profile := createProfile(t, handler, "Racing")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles/"+profile.ID, nil)
	handler.ServeHTTP(rec, req)
	var body struct {
		SubProfiles []profiles.SubProfile `json:"sub_profiles"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete,
		"/api/v1/profiles/"+profile.ID+"/subprofiles/"+body.SubProfiles[0].ID, nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestDeleteProfile(t *testing.T) {
	handler := newTestHandler(t)
	profile := createProfile(t, handler, "Racing")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/profiles/"+profile.ID, nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/profiles/"+profile.ID, nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", rec.Code)
	}
}
