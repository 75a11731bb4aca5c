package api

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDFromCredential reads the user id from the credential's claims
// without verifying the signature; the server remains the authority. The
// result is for display only: requests for the caller's own records send
// OwnProfileID.
func UserIDFromCredential(cred string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(cred, claims); err != nil {
		return "", fmt.Errorf("credential is not a JWT: %w", err)
	}
	for _, key := range []string{"sub", "userId", "id", "user_id"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return fmt.Sprintf("%.0f", v), nil
		}
	}
	return "", errors.New("credential carries no user id claim")
}
