package problems

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
)

// Problem type slugs surfaced by the seed service.
const (
	MissingConfiguration  = "missing-configuration"
	OrganizationNotFound  = "organization-not-found"
	RemoteOperationFailed = "remote-operation-failed"
	RunInProgress         = "run-in-progress"
	BadRequest            = "bad-request"
	Unauthorized          = "unauthorized"
)

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/problems)
// 2. MIDDLEWARE_BASE_URL + "/problems" (if set)
// 3. https://example.com/problems (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("MIDDLEWARE_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Step   string `json:"step,omitempty"`
}

// Write encodes p as application/problem+json.
func Write(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
