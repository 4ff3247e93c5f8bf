package http

import (
	"net/http"

	"github.com/spendlyzer/auth/pkg/authsdk"
	"github.com/spendlyzer/auth/pkg/httpx"
	"github.com/spendlyzer/auth/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
