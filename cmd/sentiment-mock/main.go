// Command sentiment-mock serves a keyword-scoring stand-in for the text
// analytics endpoint used to annotate comments.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type analyzeRequest struct {
	Text string `json:"text"`
}

type confidences struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

var (
	positiveWords = []string{"love", "loved", "great", "good", "amazing", "excellent", "brilliant", "fun", "beautiful", "best"}
	negativeWords = []string{"hate", "hated", "bad", "awful", "boring", "terrible", "worst", "poor", "ugly", "waste"}
)

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		apiKey  = flag.String("key", "", "required Ocp-Apim-Subscription-Key (empty accepts any)")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	r := chi.NewRouter()
	if *verbose {
		r.Use(middleware.Logger)
	}
	r.Post("/text/analytics/sentiment", func(w http.ResponseWriter, r *http.Request) {
		if *apiKey != "" && r.Header.Get("Ocp-Apim-Subscription-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		var req analyzeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(score(req.Text)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	addr := ":" + *port
	logger.Info("mock sentiment listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// score splits confidence between the classes by keyword hits. Text with no
// hits is fully neutral.
func score(text string) confidences {
	var pos, neg int
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		for _, p := range positiveWords {
			if word == p {
				pos++
			}
		}
		for _, n := range negativeWords {
			if word == n {
				neg++
			}
		}
	}
	hits := pos + neg
	if hits == 0 {
		return confidences{Neutral: 1}
	}
	total := float64(hits + 1)
	return confidences{
		Positive: float64(pos) / total,
		Neutral:  1 / total,
		Negative: float64(neg) / total,
	}
}
