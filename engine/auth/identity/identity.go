// Package identity reads the caller's tenant and tier from the bearer token.
//
// Signatures are verified upstream by the identity layer; this package only
// decodes claims and never authenticates.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	HeaderAuthorization = "Authorization"
	bearerPrefix        = "bearer "
	anonymousPrefix     = "anonymous:"
)

var (
	ErrMissingToken   = errors.New("identity: missing bearer token")
	ErrMalformedToken = errors.New("identity: malformed bearer token")
)

// tenantClaims lists the claims that may carry the tenant, in priority order.
var tenantClaims = []string{"sub", "user_id", "tenant_id"}

type Identity struct {
	TenantID  string `json:"tenant_id"`
	Tier      string `json:"tier,omitempty"`
	Anonymous bool   `json:"anonymous"`
	ClientIP  string `json:"client_ip,omitempty"`
}

// Anonymous returns the identity used for callers without a usable token.
// The empty tier resolves to the most restrictive configured tier.
func Anonymous(clientIP string) *Identity {
	return &Identity{TenantID: anonymousPrefix + clientIP, Anonymous: true, ClientIP: clientIP}
}

// ParseBearer decodes the claims of an `Authorization: Bearer <jwt>` value.
func ParseBearer(header string) (*Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingToken
	}
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, fmt.Errorf("%w: not a bearer credential", ErrMalformedToken)
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var tenant string
	for _, name := range tenantClaims {
		if tenant = claimString(claims, name); tenant != "" {
			break
		}
	}
	if tenant == "" {
		return nil, fmt.Errorf("%w: no tenant claim", ErrMalformedToken)
	}
	return &Identity{TenantID: tenant, Tier: strings.ToLower(claimString(claims, "tier"))}, nil
}

func claimString(claims jwt.MapClaims, name string) string {
	switch v := claims[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// FromRequest extracts the identity of r. When the token is missing or
// unparsable it returns the anonymous identity for clientIP together with
// the parse error, so callers can downgrade instead of rejecting.
func FromRequest(r *http.Request, clientIP string) (*Identity, error) {
	id, err := ParseBearer(r.Header.Get(HeaderAuthorization))
	if err != nil {
		return Anonymous(clientIP), err
	}
	id.ClientIP = clientIP
	return id, nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
