package idempotency

import "context"

// Scope identifies whose key it is. Keys from different parties never
// collide.
type Scope struct {
	PartyID        string
	IdempotencyKey string
}

type Store interface {
	GetIdempotencyRecord(ctx context.Context, partyID, idempotencyKey, endpoint string) (int, map[string]any, bool, error)
	SaveIdempotencyRecord(ctx context.Context, partyID, idempotencyKey, endpoint string, responseStatus int, responseBody map[string]any) error
}

// Replay returns the stored response for scope on endpoint, if any.
func Replay(ctx context.Context, st Store, scope Scope, endpoint string) (int, map[string]any, bool, error) {
	if scope.IdempotencyKey == "" {
		return 0, nil, false, nil
	}
	status, body, found, err := st.GetIdempotencyRecord(ctx, scope.PartyID, scope.IdempotencyKey, endpoint)
	if err != nil {
		return 0, nil, false, err
	}
	if !found {
		return 0, nil, false, nil
	}
	return status, body, true, nil
}

// Save remembers a successful response. The first response wins.
func Save(ctx context.Context, st Store, scope Scope, endpoint string, status int, response map[string]any) error {
	if scope.IdempotencyKey == "" {
		return nil
	}
	return st.SaveIdempotencyRecord(ctx, scope.PartyID, scope.IdempotencyKey, endpoint, status, response)
}
