package kvstore

import "context"

// TokenSource reads an auth token from a Store on every call, so the token
// seen by a request is whatever is live at dispatch time.
type TokenSource struct {
	Store *Store
	Key   string
}

// Token returns the stored token, or "" when it is absent or expired.
func (t TokenSource) Token(ctx context.Context) (string, error) {
	v, err := t.Store.Read(ctx, t.Key)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
