package httpserver

import (
	"fmt"
	"net/http"
	"testing"
)

func BenchmarkHandleRateItem(b *testing.B) {
	srv := buildTestServer(b)
	owner := signup(b, srv, "bench-owner", "CREATOR")
	created := createItem(b, srv, owner, map[string]string{"title": "Benchmark Video"})

	raters := make([]string, 8)
	for i := range raters {
		raters[i] = signup(b, srv, fmt.Sprintf("bench-%d", i), "CONSUMER")
	}
	path := "/api/videos/" + created.ID + "/rate"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		body := fmt.Sprintf(`{"score":%d}`, i%5+1)
		rec := doRequest(b, srv, http.MethodPost, path, raters[i%len(raters)], body)
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func BenchmarkHandleListItemsCached(b *testing.B) {
	srv := buildTestServer(b)
	owner := signup(b, srv, "bench-owner", "CREATOR")
	for i := 0; i < 50; i++ {
		createItem(b, srv, owner, map[string]string{"title": fmt.Sprintf("Video %d", i), "genre": "Drama"})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := doRequest(b, srv, http.MethodGet, "/api/videos?genre=drama", "", nil)
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}
