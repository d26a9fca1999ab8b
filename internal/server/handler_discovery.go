package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "slaq API",
		Version:     "v1",
		Description: "SLA-aware task scheduler and admission controller for multi-tenant pipeline work",
		Endpoints: []endpointInfo{
			{"/api/v1/tasks", []string{"GET", "POST"}, "List tasks / enqueue a new task (subject to admission control)"},
			{"/api/v1/tasks/next", []string{"POST"}, "Claim the most urgent eligible task; 204 when nothing is claimable"},
			{"/api/v1/tasks/{id}", []string{"GET"}, "Single task detail"},
			{"/api/v1/tasks/{id}/succeed", []string{"POST"}, "Report successful completion of a running task"},
			{"/api/v1/tasks/{id}/fail", []string{"POST"}, "Report execution failure; the scheduler decides retry or terminal failure"},
			{"/api/v1/tasks/{id}/block", []string{"POST"}, "Park a task on an external dependency"},
			{"/api/v1/tasks/{id}/unblock", []string{"POST"}, "Return a blocked task to the queue"},
			{"/api/v1/stats", []string{"GET"}, "Queue depth by status, optionally per tenant (?tenant_id=)"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
		},
	})
}
