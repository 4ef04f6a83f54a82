package auth

import (
	"context"
	"strings"

	"hiddystays/internal/app/policies"
)

// Static accepts development tokens of the form "<id>" or
// "<id>:<role>[,<role>]", e.g. "host-1:host". Never enable in production.
type Static struct{}

func (Static) Resolve(ctx context.Context, token string) (policies.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return policies.Principal{}, policies.ErrInvalidToken
	}
	id, rawRoles, _ := strings.Cut(token, ":")
	p := policies.Principal{ID: id, Email: id + "@example.test", Name: id, Roles: []string{"guest"}}
	for _, r := range strings.Split(rawRoles, ",") {
		if r = strings.TrimSpace(r); r != "" && r != "guest" {
			p.Roles = append(p.Roles, r)
		}
	}
	return p, nil
}
