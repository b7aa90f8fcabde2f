// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultExcludedPaths skip authentication.
var DefaultExcludedPaths = []string{"/health", "/metrics"}

// Middleware rejects requests without a valid bearer token with 401 and
// stores the claims of accepted ones. Requests for excluded paths pass
// through untouched.
func Middleware(v TokenValidator, excluded []string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(excluded))
	for _, p := range excluded {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, err := bearerToken(r)
			if err == nil {
				var claims *Claims
				if claims, err = v.ValidateToken(r.Context(), token); err == nil {
					next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
					return
				}
			}

			slog.Debug("Request rejected", "path", r.URL.Path, "error", err)
			unauthorized(w, err)
		})
	}
}

// RequireRole lets only callers with one of roles through. It must run
// after Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				unauthorized(w, ErrMissingToken)
				return
			}
			if !claims.HasAnyRole(roles...) {
				writeError(w, http.StatusForbidden, "forbidden: insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.New("invalid Authorization format, expected: Bearer <token>")
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="contractagent"`)
	writeError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
