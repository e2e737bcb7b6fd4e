package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/cortexai/cortexbi/internal/models"
)

var publicPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

// Auth requires one of apiKeys on every non-public path. The key is read
// from headerName, then an "Authorization: Bearer" header, then the api_key
// cookie. Keys are compared as SHA-256 digests in constant time.
func Auth(apiKeys []string, headerName string) func(http.Handler) http.Handler {
	var digests [][sha256.Size]byte
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := presentedKey(r, headerName)
			if key == "" {
				models.WriteError(w, http.StatusUnauthorized, "API key required")
				return
			}
			sum := sha256.Sum256([]byte(key))
			if !knownKey(digests, sum) {
				Logger(r).Warn().
					Str("api_key_hash", hex.EncodeToString(sum[:8])).
					Msg("rejected api key")
				models.WriteError(w, http.StatusForbidden, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func presentedKey(r *http.Request, headerName string) string {
	if key := r.Header.Get(headerName); key != "" {
		return key
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie("api_key"); err == nil {
		return c.Value
	}
	return ""
}

// knownKey checks every digest so timing does not reveal which one matched.
func knownKey(digests [][sha256.Size]byte, sum [sha256.Size]byte) bool {
	found := 0
	for _, d := range digests {
		found |= subtle.ConstantTimeCompare(d[:], sum[:])
	}
	return found == 1
}
