package handlers

import (
	"net/http"

	"github.com/example/cloud-tracker/utils"
)

// ServiceBanner is returned by the public pages
type ServiceBanner struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Message string `json:"message"`
}

// PublicHandler serves the exempt, unauthenticated pages
type PublicHandler struct {
	version string
}

// NewPublicHandler creates a new PublicHandler
func NewPublicHandler(version string) *PublicHandler {
	return &PublicHandler{version: version}
}

// HandleIndex handles GET /, /index.html and /welcome.html
func (h *PublicHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, ServiceBanner{
		Service: "cloud-tracker",
		Version: h.version,
		Message: "Sign in at /signin or create an account at /signup",
	})
}

// HandleError handles GET /error
func (h *PublicHandler) HandleError(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteInternalServerError(w, "")
}

// HandleNotFound answers unknown routes and /webjars/*
func (h *PublicHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteNotFound(w, "")
}

// HandleMethodNotAllowed answers known routes called with the wrong method
func (h *PublicHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
}
