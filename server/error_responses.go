package server

import (
	"html/template"
	"net/http"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/oauthmodel"
	"github.com/rs/zerolog/log"
)

// ErrorPageData contains data for rendering the error page
type ErrorPageData struct {
	Status      int
	Title       string
	Message     string
	Code        string // authorization server error code, if any
	Description string
}

type errorRenderer struct {
	tmpl *template.Template
}

func newErrorRenderer() (*errorRenderer, error) {
	tmpl, err := ParseTemplate("error.html")
	if err != nil {
		return nil, err
	}
	return &errorRenderer{tmpl: tmpl}, nil
}

// errorPage maps a flow error to its status and user facing text.
func errorPage(err error) ErrorPageData {
	var authErr *oauthmodel.AuthorizationError
	if brokererrors.As(err, &authErr) {
		return ErrorPageData{
			Status:      http.StatusBadRequest,
			Title:       "Authorization Error",
			Message:     "The authorization server did not grant access.",
			Code:        authErr.Code,
			Description: authErr.Description,
		}
	}

	switch {
	case brokererrors.Is(err, brokererrors.ErrStateMismatch):
		return ErrorPageData{Status: http.StatusBadRequest, Title: "Security Error", Message: "Invalid state parameter"}
	case brokererrors.Is(err, brokererrors.ErrSessionExpiredOrMissing):
		return ErrorPageData{Status: http.StatusBadRequest, Title: "Session Error", Message: "OAuth session not found. Please try again."}
	case brokererrors.Is(err, brokererrors.ErrMissingChallenge):
		return ErrorPageData{Status: http.StatusBadRequest, Title: "Bad Request", Message: err.Error()}
	case brokererrors.Is(err, brokererrors.ErrTokenExchangeFailed):
		return upstreamPage(err, "Token Retrieval Error")
	case brokererrors.Is(err, brokererrors.ErrLoginAcceptFailed):
		return upstreamPage(err, "Login Error")
	case brokererrors.Is(err, brokererrors.ErrConsentBrokerageFailed):
		return upstreamPage(err, "Consent Error")
	}
	return ErrorPageData{Status: http.StatusInternalServerError, Title: "Error", Message: "Something went wrong. Please try again."}
}

func upstreamPage(err error, title string) ErrorPageData {
	page := ErrorPageData{Status: http.StatusBadGateway, Title: title, Message: "Upstream request failed"}
	if brokererrors.Is(err, brokererrors.ErrUpstreamTimeout) {
		page.Status = http.StatusGatewayTimeout
	}
	var upErr *brokererrors.UpstreamError
	if brokererrors.As(err, &upErr) {
		page.Message = upErr.Message()
	}
	return page
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if brokererrors.Is(err, brokererrors.ErrRequestAborted) {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("Request aborted by client")
		return
	}

	page := errorPage(err)
	if page.Status >= http.StatusInternalServerError {
		log.Err(err).Str("path", r.URL.Path).Int("status", page.Status).Msg("Request failed")
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(page.Status)
	if s.errorPage == nil {
		_, _ = w.Write([]byte(template.HTMLEscapeString(page.Message)))
		return
	}
	if err := s.errorPage.tmpl.Execute(w, page); err != nil {
		log.Err(err).Msg("Failed to render error template")
	}
}
