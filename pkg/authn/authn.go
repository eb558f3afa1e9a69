package authn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves an Authorization header to a party id.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (string, error)
}

// PGAuthenticator looks bearer tokens up by hash in party_credentials.
type PGAuthenticator struct {
	DB *pgxpool.Pool
}

func (a PGAuthenticator) Authenticate(ctx context.Context, authorization string) (string, error) {
	token, ok := parseBearerToken(authorization)
	if !ok {
		return "", ErrUnauthorized
	}
	var partyID string
	err := a.DB.QueryRow(ctx, `
SELECT party_id
FROM party_credentials
WHERE token_hash=$1
  AND revoked_at IS NULL
`, hashToken(token)).Scan(&partyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	return partyID, nil
}

// IssueToken registers token for partyID. Only the hash is stored.
func IssueToken(ctx context.Context, db *pgxpool.Pool, partyID, token string) error {
	if strings.TrimSpace(partyID) == "" || strings.TrimSpace(token) == "" {
		return fmt.Errorf("party id and token are required")
	}
	_, err := db.Exec(ctx, `
INSERT INTO party_credentials(token_hash,party_id)
VALUES($1,$2)
ON CONFLICT (token_hash) DO UPDATE SET party_id=EXCLUDED.party_id, revoked_at=NULL
`, hashToken(token), partyID)
	return err
}

// StaticAuthenticator serves a fixed token table, used with the memory store.
type StaticAuthenticator struct {
	byHash map[string]string
}

func NewStaticAuthenticator(tokens map[string]string) *StaticAuthenticator {
	s := &StaticAuthenticator{byHash: make(map[string]string, len(tokens))}
	for token, party := range tokens {
		s.byHash[hashToken(token)] = party
	}
	return s
}

// ParseStaticTokens reads "token:party,token:party".
func ParseStaticTokens(spec string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		token, party, ok := strings.Cut(part, ":")
		token, party = strings.TrimSpace(token), strings.TrimSpace(party)
		if !ok || token == "" || party == "" {
			return nil, fmt.Errorf("invalid token entry %q", part)
		}
		out[token] = party
	}
	return out, nil
}

func (s *StaticAuthenticator) Authenticate(_ context.Context, authorization string) (string, error) {
	token, ok := parseBearerToken(authorization)
	if !ok {
		return "", ErrUnauthorized
	}
	party, ok := s.byHash[hashToken(token)]
	if !ok {
		return "", ErrUnauthorized
	}
	return party, nil
}

func parseBearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
