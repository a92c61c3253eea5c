package karma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSourceFetchParsesScore(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 0.73}`))
	}))
	defer srv.Close()

	s, err := NewHTTPSource(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	s.httpClient.Transport = srv.Client().Transport
	score, err := s.Fetch(context.Background(), "agent-a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if score != 0.73 {
		t.Errorf("Fetch() = %v, want 0.73", score)
	}
}

func TestHTTPSourceClassifiesClientErrorsAsPermanent(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := NewHTTPSource(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	s.httpClient.Transport = srv.Client().Transport
	_, err = s.Fetch(context.Background(), "agent-a")
	if err == nil {
		t.Fatal("Fetch() expected error for 404 response")
	}
	if got := s.Classify(err); got != OutcomePermanent {
		t.Errorf("Classify() = %v, want OutcomePermanent", got)
	}
}

func TestHTTPSourceClassifiesServerErrorsAsTransient(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewHTTPSource(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	s.httpClient.Transport = srv.Client().Transport
	_, err = s.Fetch(context.Background(), "agent-a")
	if err == nil {
		t.Fatal("Fetch() expected error for 500 response")
	}
	if got := s.Classify(err); got != OutcomeTransient {
		t.Errorf("Classify() = %v, want OutcomeTransient", got)
	}
}
