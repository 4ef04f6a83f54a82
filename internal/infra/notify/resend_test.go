package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hiddystays/internal/app/policies"
)

func TestResendSend(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer re_key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer srv.Close()

	r := NewResend("re_key", "HiddyStays <bookings@hiddystays.com>")
	r.Endpoint = srv.URL
	if err := r.Send(context.Background(), policies.Email{To: "ana@example.com", Subject: "Confirmed", Text: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got.To) != 1 || got.To[0] != "ana@example.com" || got.Subject != "Confirmed" {
		t.Fatalf("unexpected request %+v", got)
	}

	r.APIKey = "wrong"
	if err := r.Send(context.Background(), policies.Email{To: "ana@example.com"}); err == nil {
		t.Fatal("expected error on 401")
	}
}
