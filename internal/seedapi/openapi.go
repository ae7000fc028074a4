package seedapi

import "headstart/pkg/openapi"

func registry() *openapi.Registry {
	reg := openapi.NewRegistry()
	errs := func(codes ...string) map[string]any {
		out := map[string]any{}
		for _, c := range codes {
			out[c] = openapi.Problem("see problem type")
		}
		return out
	}
	seedResp := errs("400", "404", "409", "500", "502")
	seedResp["200"] = map[string]any{"description": "client ids and secrets to configure the applications with"}
	reg.Register(openapi.Operation{
		Method:  "POST",
		Path:    "/v1/seed",
		Summary: "Provision a seller organization",
		Tags:    []string{"seed"},
		RequestBody: openapi.JSONBody(map[string]any{
			"type":     "object",
			"required": []string{"PortalUsername", "PortalPassword", "SellerOrgID", "InitialAdminUsername", "InitialAdminPassword"},
			"properties": map[string]any{
				"PortalUsername":       map[string]any{"type": "string"},
				"PortalPassword":       map[string]any{"type": "string"},
				"SellerOrgID":          map[string]any{"type": "string"},
				"InitialAdminUsername": map[string]any{"type": "string"},
				"InitialAdminPassword": map[string]any{"type": "string"},
				"Buyers":               map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
				"Suppliers":            map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
			},
		}),
		Responses: seedResp,
	})

	restoreResp := errs("401", "409", "500", "502")
	restoreResp["204"] = map[string]any{"description": "integration events rebuilt"}
	reg.Register(openapi.Operation{
		Method:      "POST",
		Path:        "/v1/seed/staging-restore",
		Summary:     "Rebuild wiring after a staging restore",
		Description: "Deletes every integration event, recreates checkout events and switches supplier notifications off.",
		Tags:        []string{"maintenance"},
		Signed:      true,
		Responses:   restoreResp,
	})

	purgeResp := errs("401", "409", "500", "502")
	purgeResp["204"] = map[string]any{"description": "message senders deleted"}
	reg.Register(openapi.Operation{
		Method:    "DELETE",
		Path:      "/v1/seed/message-senders",
		Summary:   "Delete all message senders",
		Tags:      []string{"maintenance"},
		Signed:    true,
		Responses: purgeResp,
	})

	reg.Register(openapi.Operation{
		Method:  "GET",
		Path:    "/v1/seed/runs",
		Summary: "List recent provisioning runs",
		Tags:    []string{"seed"},
		Signed:  true,
		Responses: map[string]any{
			"200": map[string]any{"description": "runs, newest first"},
			"400": openapi.Problem("invalid limit"),
			"401": openapi.Problem("missing or invalid signature"),
		},
	})
	return reg
}
