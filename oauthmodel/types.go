package oauthmodel

// CodeMethodType represents the PKCE challenge method.
type CodeMethodType string

// CodeMethodTypeS256 is the only challenge method the broker sends:
// code_challenge = BASE64URL(SHA256(code_verifier)).
const CodeMethodTypeS256 CodeMethodType = "S256"

// Query and form parameter names read or written by the broker outside of
// the token request, which x/oauth2 encodes.
const (
	ParamScope               = "scope"
	ParamState               = "state"
	ParamCode                = "code"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
	ParamError               = "error"
	ParamErrorDescription    = "error_description"
	ParamLoginChallenge      = "login_challenge"
	ParamConsentChallenge    = "consent_challenge"
)
