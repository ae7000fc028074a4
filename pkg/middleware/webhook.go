package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"

	"headstart/pkg/problems"
)

// HashHeader carries the base64 HMAC-SHA256 of the request body the platform signs webhooks with.
const HashHeader = "X-oc-hash"

// maxWebhookBody bounds how much of a webhook body is read for verification.
const maxWebhookBody = 1 << 20

// Sign returns the header value the platform would send for body.
func Sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// WebhookAuth rejects requests whose X-oc-hash does not match the body signed with key.
// The body is restored for the next handler.
func WebhookAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				problems.Write(w, problems.Problem{
					Type:   problems.Type(problems.MissingConfiguration),
					Title:  "Missing configuration",
					Status: http.StatusInternalServerError,
					Detail: "missing required app setting ORDERCLOUD_WEBHOOK_HASH_KEY",
				})
				return
			}
			sent := r.Header.Get(HashHeader)
			if sent == "" {
				unauthorized(w, "missing "+HashHeader+" header")
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				unauthorized(w, "unreadable body")
				return
			}
			_ = r.Body.Close()
			if !hmac.Equal([]byte(sent), []byte(Sign(key, body))) {
				unauthorized(w, "webhook signature mismatch")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	problems.Write(w, problems.Problem{
		Type:   problems.Type(problems.Unauthorized),
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Detail: detail,
	})
}
