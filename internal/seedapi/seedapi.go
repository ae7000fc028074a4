// Package seedapi exposes environment provisioning over HTTP.
package seedapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"headstart/internal/ledger"
	"headstart/internal/orchestrator"
	"headstart/pkg/middleware"
	"headstart/pkg/openapi"
	"headstart/pkg/problems"
)

// Provisioner is the orchestrator surface the HTTP layer drives.
type Provisioner interface {
	Seed(ctx context.Context, seed orchestrator.EnvironmentSeed) (orchestrator.SeedResponse, error)
	PostStagingRestore(ctx context.Context) error
	PurgeMessageSenders(ctx context.Context) error
}

const maxSeedBody = 4 << 20

type API struct {
	prov    Provisioner
	runs    ledger.Store
	hashKey string
	log     *zap.SugaredLogger
	spec    *openapi.Registry
}

// New builds the API. hashKey signs the webhook-style maintenance routes.
func New(prov Provisioner, runs ledger.Store, hashKey string, log *zap.SugaredLogger) *API {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &API{prov: prov, runs: runs, hashKey: hashKey, log: log, spec: registry()}
}

// Routes mounts the provisioning endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/.well-known/openapi.json", a.spec.ServeHandler("headstart-seed-service", "1.0.0"))
	r.Route("/v1/seed", func(sr chi.Router) {
		sr.Post("/", a.seed)
		sr.Group(func(pr chi.Router) {
			pr.Use(middleware.WebhookAuth(a.hashKey))
			pr.Get("/runs", a.listRuns)
			pr.Post("/staging-restore", a.stagingRestore)
			pr.Delete("/message-senders", a.deleteMessageSenders)
		})
	})
}

func (a *API) seed(w http.ResponseWriter, r *http.Request) {
	var seed orchestrator.EnvironmentSeed
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSeedBody))
	if err := dec.Decode(&seed); err != nil {
		problems.Write(w, problems.Problem{
			Type:   problems.Type(problems.BadRequest),
			Title:  "Invalid environment seed",
			Status: http.StatusBadRequest,
			Detail: "body is not a valid environment seed document: " + err.Error(),
		})
		return
	}
	resp, err := a.prov.Seed(r.Context(), seed)
	if err != nil {
		a.fail(w, r, "seed", err)
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

func (a *API) stagingRestore(w http.ResponseWriter, r *http.Request) {
	if err := a.prov.PostStagingRestore(r.Context()); err != nil {
		a.fail(w, r, "staging-restore", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteMessageSenders(w http.ResponseWriter, r *http.Request) {
	if err := a.prov.PurgeMessageSenders(r.Context()); err != nil {
		a.fail(w, r, "delete-message-senders", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			problems.Write(w, problems.Problem{
				Type:   problems.Type(problems.BadRequest),
				Title:  "Invalid limit",
				Status: http.StatusBadRequest,
				Detail: "limit must be an integer between 1 and 500",
			})
			return
		}
		limit = n
	}
	runs, err := a.runs.List(r.Context(), r.URL.Query().Get("org"), limit)
	if err != nil {
		a.log.Errorw("list runs", "err", err, "request_id", middleware.RequestIDFrom(r.Context()))
		problems.Write(w, problems.Problem{
			Type:   problems.Type("internal-error"),
			Title:  "Run ledger unavailable",
			Status: http.StatusInternalServerError,
		})
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	writeJSON(w, map[string]any{"runs": runs}, http.StatusOK)
}

// fail maps an orchestrator error onto a problem document.
func (a *API) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	p := problemFor(err)
	a.log.Errorw(op+" failed", "err", err, "status", p.Status, "request_id", middleware.RequestIDFrom(r.Context()))
	problems.Write(w, p)
}

func problemFor(err error) problems.Problem {
	var (
		notFound *orchestrator.OrganizationNotFoundError
		remote   *orchestrator.RemoteOperationError
	)
	switch {
	case errors.Is(err, orchestrator.ErrConfiguration):
		return problems.Problem{Type: problems.Type(problems.MissingConfiguration), Title: "Missing configuration", Status: http.StatusInternalServerError, Detail: err.Error()}
	case errors.Is(err, orchestrator.ErrInvalidSeed):
		return problems.Problem{Type: problems.Type(problems.BadRequest), Title: "Invalid environment seed", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.Is(err, ledger.ErrLocked):
		return problems.Problem{Type: problems.Type(problems.RunInProgress), Title: "Run in progress", Status: http.StatusConflict, Detail: err.Error()}
	case errors.As(err, &notFound):
		return problems.Problem{Type: problems.Type(problems.OrganizationNotFound), Title: "Organization not found", Status: http.StatusNotFound, Detail: notFound.Error()}
	case errors.As(err, &remote):
		return problems.Problem{Type: problems.Type(problems.RemoteOperationFailed), Title: "Remote operation failed", Status: http.StatusBadGateway, Detail: remote.Error(), Step: remote.Step}
	}
	return problems.Problem{Type: problems.Type("internal-error"), Title: "Internal error", Status: http.StatusInternalServerError, Detail: err.Error()}
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
