// Package token verifica los bearer tokens emitidos por el issuer de QAAQ.
// Solo verificación: la emisión vive en otro servicio.
package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken cubre malformado, firma inválida o claims ilegibles.
	ErrInvalidToken = errors.New("invalid_jwt")
	// ErrExpired indica exp vencido (fuera de la tolerancia).
	ErrExpired = errors.New("expired")
	// ErrNotBefore indica nbf en el futuro (fuera de la tolerancia).
	ErrNotBefore = errors.New("not_before")
	// ErrInvalidIssuer indica iss distinto del esperado.
	ErrInvalidIssuer = errors.New("invalid_issuer")
	// ErrUnknownKID indica que el kid del header no está en el keyset.
	ErrUnknownKID = errors.New("unknown_kid")
)

// Verifier valida firma EdDSA contra un keyset estático (kid → pública).
type Verifier struct {
	keys map[string]ed25519.PublicKey
	iss  string
}

// NewVerifier arma un verifier desde claves en base64 estándar (config).
func NewVerifier(issuer string, keysB64 map[string]string) (*Verifier, error) {
	keys := make(map[string]ed25519.PublicKey, len(keysB64))
	for kid, b64 := range keysB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("public key %q: inválida", kid)
		}
		keys[kid] = ed25519.PublicKey(raw)
	}
	return &Verifier{keys: keys, iss: issuer}, nil
}

// NewVerifierFromKeys arma un verifier con claves ya decodificadas (tests, wiring).
func NewVerifierFromKeys(issuer string, keys map[string]ed25519.PublicKey) *Verifier {
	return &Verifier{keys: keys, iss: issuer}
}

// Verify valida firma (EdDSA), chequea iss (si el verifier tiene uno) y valida
// exp/nbf con una tolerancia de 30s. Devuelve las claims como map[string]any.
// Cualquier fallo es un error local del método de autenticación: el caller
// debe degradarlo a "este método no resolvió", nunca propagarlo al request.
func (v *Verifier) Verify(raw string) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			// sin kid: probar con la única clave si hay exactamente una
			if len(v.keys) == 1 {
				for _, pub := range v.keys {
					return pub, nil
				}
			}
			return nil, ErrUnknownKID
		}
		pub, ok := v.keys[kid]
		if !ok {
			return nil, ErrUnknownKID
		}
		return pub, nil
	}

	tok, err := jwtv5.Parse(raw, keyfunc,
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		// exp/nbf los validamos a mano abajo para aplicar tolerancia propia
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if v.iss != "" {
		if iss, _ := claims["iss"].(string); iss != v.iss {
			return nil, ErrInvalidIssuer
		}
	}

	now := time.Now()
	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(now.Add(-30 * time.Second)) {
			return nil, ErrExpired
		}
	}
	if nbff, ok := claims["nbf"].(float64); ok {
		if time.Unix(int64(nbff), 0).After(now.Add(30 * time.Second)) {
			return nil, ErrNotBefore
		}
	}

	out := make(map[string]any, len(claims))
	for k, val := range claims {
		out[k] = val
	}
	return out, nil
}

// Subject extrae el claim sub como string (vacío si no está).
func Subject(claims map[string]any) string {
	s, _ := claims["sub"].(string)
	return s
}
