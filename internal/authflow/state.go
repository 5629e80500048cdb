// Package authflow orquesta, por request, el orden en que se consultan
// cache / token / sesión federada / sesión legacy.
package authflow

// Identifier es la unión etiquetada de identificadores ambientales que un
// request puede traer. Reemplaza el "probar este campo, después aquel" del
// stack viejo: una sola función de extracción exhaustiva produce estas
// variantes y nada más las produce.
type Identifier interface{ isIdentifier() }

// BearerToken es el token crudo del header Authorization.
type BearerToken string

// FederatedSessionID es el valor de la cookie de sesión federada.
type FederatedSessionID string

// LegacySessionID es el valor de la cookie del stack viejo (connect.sid).
type LegacySessionID string

func (BearerToken) isIdentifier()        {}
func (FederatedSessionID) isIdentifier() {}
func (LegacySessionID) isIdentifier()    {}

// State es el estado ambiental de un request, ya separado por variante.
// Ninguno de estos valores está verificado todavía.
type State struct {
	Bearer       BearerToken
	FederatedSID FederatedSessionID
	LegacySID    LegacySessionID
}

// Collect arma el State desde las variantes extraídas. Exhaustivo: una
// variante nueva que no se contemple acá es error de compilación en el
// switch, no un campo silenciosamente ignorado.
func Collect(ids ...Identifier) State {
	var st State
	for _, id := range ids {
		switch v := id.(type) {
		case BearerToken:
			st.Bearer = v
		case FederatedSessionID:
			st.FederatedSID = v
		case LegacySessionID:
			st.LegacySID = v
		}
	}
	return st
}

// CacheKey es la clave estable de esta combinación de identificadores para
// el Auth Cache. Prioriza la sesión federada, después la legacy, después el
// token. Vacía si no hay nada que cachear.
func (s State) CacheKey() string {
	switch {
	case s.FederatedSID != "":
		return "fed:" + string(s.FederatedSID)
	case s.LegacySID != "":
		return "leg:" + string(s.LegacySID)
	case s.Bearer != "":
		return "tok:" + string(s.Bearer)
	}
	return ""
}

// Empty indica que el request no trajo ningún identificador ambiental.
func (s State) Empty() bool {
	return s.Bearer == "" && s.FederatedSID == "" && s.LegacySID == ""
}
