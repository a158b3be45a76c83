package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/podforge/api/internal/middleware"
	"github.com/podforge/api/internal/model"
	"github.com/podforge/api/internal/service"
	"github.com/podforge/api/internal/store"
)

const testJWTSecret = "test-secret"

type testApp struct {
	app      *fiber.App
	episodes *store.MemoryEpisodeStore
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	episodes := store.NewMemoryEpisodeStore()
	svc := service.NewEpisodeService(episodes, nil)
	h := NewEpisodeHandler(svc, validator.New())
	auth := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()
	api := app.Group("/api", auth.Authenticate())
	api.Post("/episodes", h.Create)
	api.Get("/episodes/:id", h.Status)
	api.Post("/episodes/:id/decision", h.Decision)

	return &testApp{app: app, episodes: episodes}
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.UserClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, app *fiber.App, method, path, body, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

func validCreateBody() string {
	body, _ := json.Marshal(model.CreateEpisodeRequest{
		PodcastID:      uuid.New().String(),
		Title:          "Episode 42",
		SourceAudioURL: "https://cdn.podforge.io/raw/ep42.wav",
		QualityLabel:   model.QualityClean,
	})
	return string(body)
}

func TestCreateEpisode_Success(t *testing.T) {
	ta := setupApp(t)
	token := signToken(t, "user-1")

	resp := doRequest(t, ta.app, http.MethodPost, "/api/episodes", validCreateBody(), token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	result := parseJSON(t, resp)
	if result["episodeId"] == nil || result["episodeId"] == "" {
		t.Error("expected 'episodeId' in response")
	}
	if result["status"] != "pending" {
		t.Errorf("expected status 'pending', got %v", result["status"])
	}
}

func TestCreateEpisode_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/episodes", validCreateBody(), "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateEpisode_InvalidBody(t *testing.T) {
	ta := setupApp(t)
	token := signToken(t, "user-1")

	// Missing required fields
	resp := doRequest(t, ta.app, http.MethodPost, "/api/episodes", `{"podcastId": "not-a-uuid"}`, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEpisodeStatus_Success(t *testing.T) {
	ta := setupApp(t)
	token := signToken(t, "user-1")

	resp := doRequest(t, ta.app, http.MethodPost, "/api/episodes", validCreateBody(), token)
	created := parseJSON(t, resp)
	episodeID, _ := created["episodeId"].(string)
	if episodeID == "" {
		t.Fatal("create did not return an episode id")
	}

	resp = doRequest(t, ta.app, http.MethodGet, "/api/episodes/"+episodeID, "", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := parseJSON(t, resp)
	if result["episodeId"] != episodeID {
		t.Errorf("expected episode id %s, got %v", episodeID, result["episodeId"])
	}
	if result["status"] != "pending" {
		t.Errorf("expected status 'pending', got %v", result["status"])
	}
}

func TestEpisodeStatus_NotFound(t *testing.T) {
	ta := setupApp(t)
	token := signToken(t, "user-1")

	resp := doRequest(t, ta.app, http.MethodGet, "/api/episodes/"+uuid.New().String(), "", token)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestEpisodeStatus_OtherUsersEpisodeForbidden(t *testing.T) {
	ta := setupApp(t)
	owner := signToken(t, "user-1")
	intruder := signToken(t, "user-2")

	resp := doRequest(t, ta.app, http.MethodPost, "/api/episodes", validCreateBody(), owner)
	created := parseJSON(t, resp)
	episodeID, _ := created["episodeId"].(string)

	resp = doRequest(t, ta.app, http.MethodGet, "/api/episodes/"+episodeID, "", intruder)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestDecision_RejectedWhenNotPaused(t *testing.T) {
	ta := setupApp(t)
	token := signToken(t, "user-1")

	resp := doRequest(t, ta.app, http.MethodPost, "/api/episodes", validCreateBody(), token)
	created := parseJSON(t, resp)
	episodeID, _ := created["episodeId"].(string)

	// Pending, not awaiting a decision.
	resp = doRequest(t, ta.app, http.MethodPost, "/api/episodes/"+episodeID+"/decision", `{"useAdvancedProvider": true}`, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDecision_InvalidToken(t *testing.T) {
	ta := setupApp(t)

	// Token signed with the wrong secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.UserClaims{UserID: "user-1"})
	signed, _ := token.SignedString([]byte("wrong-secret"))

	resp := doRequest(t, ta.app, http.MethodGet, "/api/episodes/"+uuid.New().String(), "", signed)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
