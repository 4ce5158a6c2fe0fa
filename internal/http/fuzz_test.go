package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func FuzzListItemsQuery(f *testing.F) {
	seeds := []string{
		"search=space&genre=SciFi",
		"search=100%25",
		"genre=%00",
		"search=&genre=",
		"",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	srv := buildTestServer(f)
	f.Fuzz(func(t *testing.T, raw string) {
		req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
		req.URL.RawQuery = raw
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("query %q: status = %d", raw, rec.Code)
		}
	})
}

func FuzzScoreFromBody(f *testing.F) {
	for _, seed := range []float64{1, 2.5, -3, 99, 0} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw float64) {
		score, err := scoreFromBody(raw)
		if err != nil {
			return
		}
		if score < 1 || score > 5 {
			t.Fatalf("scoreFromBody(%v) = %d, outside [1,5]", raw, score)
		}
	})
}
