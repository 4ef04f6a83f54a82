package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hiddystays/internal/app/policies"
)

// Supabase resolves bearer tokens against the Supabase Auth user endpoint.
type Supabase struct {
	URL     string
	AnonKey string
	HTTP    *http.Client
}

func NewSupabase(url, anonKey string) *Supabase {
	return &Supabase{URL: strings.TrimRight(url, "/"), AnonKey: anonKey, HTTP: &http.Client{Timeout: 5 * time.Second}}
}

type supabaseUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

func (s *Supabase) Resolve(ctx context.Context, token string) (policies.Principal, error) {
	if token == "" {
		return policies.Principal{}, policies.ErrInvalidToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/auth/v1/user", nil)
	if err != nil {
		return policies.Principal{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", s.AnonKey)
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return policies.Principal{}, fmt.Errorf("auth: supabase: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return policies.Principal{}, policies.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return policies.Principal{}, fmt.Errorf("auth: supabase status %d: %s", resp.StatusCode, body)
	}
	var u supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return policies.Principal{}, fmt.Errorf("auth: decode user: %w", err)
	}
	if u.ID == "" {
		return policies.Principal{}, policies.ErrInvalidToken
	}
	return policies.Principal{
		ID:    u.ID,
		Email: u.Email,
		Name:  stringField(u.UserMetadata, "full_name", "name"),
		Roles: roles(u.AppMetadata),
	}, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func roles(m map[string]any) []string {
	out := []string{"guest"}
	switch v := m["roles"].(type) {
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok && s != "guest" {
				out = append(out, s)
			}
		}
	}
	if s, ok := m["role"].(string); ok && s == "host" {
		out = append(out, "host")
	}
	return out
}
