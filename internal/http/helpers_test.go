package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Clark-Hu/media-catalog/internal/auth"
	"github.com/Clark-Hu/media-catalog/internal/blobtoken"
	"github.com/Clark-Hu/media-catalog/internal/cache"
	"github.com/Clark-Hu/media-catalog/internal/cache/lru"
	"github.com/Clark-Hu/media-catalog/internal/catalog"
	"github.com/Clark-Hu/media-catalog/internal/config"
	"github.com/Clark-Hu/media-catalog/internal/rating"
	"github.com/Clark-Hu/media-catalog/internal/repository/memory"
)

func buildTestServer(tb testing.TB) *Server {
	tb.Helper()
	return buildTestServerWithHealth(tb, nil)
}

func buildTestServerWithHealth(tb testing.TB, health HealthChecker) *Server {
	tb.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.New()

	issuer, err := blobtoken.New(blobtoken.Options{
		AccountName: "catalogacct",
		AccountKey:  "Y2F0YWxvZy10ZXN0LWFjY291bnQta2V5LTAwMDAwMA==",
		Container:   "videos",
	})
	if err != nil {
		tb.Fatalf("blob token issuer: %v", err)
	}

	layer := cache.New(lru.New(128, time.Minute), logger)
	svc := catalog.New(catalog.Deps{
		Items:       repo.Items,
		Comments:    repo.Comments,
		Aggregator:  rating.NewAggregator(repo.Items, repo.Ratings, 0, logger),
		Cache:       layer,
		Invalidator: cache.NewInvalidator(layer, 0, 0, logger),
		Tokens:      issuer,
		Logger:      logger,
	}, catalog.Options{})
	authSvc := auth.NewService(repo.Users, auth.NewTokens("test-secret"), logger)

	return New(config.Config{Port: "0"}, svc, authSvc, health, logger)
}

func doRequest(tb testing.TB, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	tb.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			tb.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(tb testing.TB, rec *httptest.ResponseRecorder, dst interface{}) {
	tb.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		tb.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// signup registers a fresh account and returns its token.
func signup(tb testing.TB, srv *Server, username, role string) string {
	tb.Helper()
	rec := doRequest(tb, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter22",
		"role":     role,
	})
	if rec.Code != http.StatusCreated {
		tb.Fatalf("signup %s: status = %d body=%s", username, rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	decodeBody(tb, rec, &resp)
	if resp.Token == "" {
		tb.Fatalf("signup %s: empty token", username)
	}
	return resp.Token
}

func createItem(tb testing.TB, srv *Server, token string, body map[string]string) catalog.CreateResult {
	tb.Helper()
	rec := doRequest(tb, srv, http.MethodPost, "/api/videos", token, body)
	if rec.Code != http.StatusCreated {
		tb.Fatalf("create item: status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res catalog.CreateResult
	decodeBody(tb, rec, &res)
	return res
}
