package oauthmodel

import (
	"fmt"
	"net/url"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
)

// CallbackParams is what the authorization server appends to the redirect URI.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackParamsFromValues reads the callback parameters from a query string
// or a form_post body.
func CallbackParamsFromValues(v url.Values) CallbackParams {
	return CallbackParams{
		Code:             v.Get(ParamCode),
		State:            v.Get(ParamState),
		Error:            v.Get(ParamError),
		ErrorDescription: v.Get(ParamErrorDescription),
	}
}

// AuthorizationError is an error response returned by the authorization
// server through the browser redirect. Code and Description are surfaced
// unmodified.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("authorization failed: %s", e.Code)
	}
	return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
}

func (e *AuthorizationError) Unwrap() error {
	return brokererrors.ErrAuthorizationDenied
}
