package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	capabilityservice "bastion/contexts/identity-access/capability-service"
	capabilityerrors "bastion/contexts/identity-access/capability-service/domain/errors"
	groupgraphservice "bastion/contexts/identity-access/group-graph-service"
	groupgrapherrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
	instanceservice "bastion/contexts/identity-access/instance-service"
)

func newTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	groups := groupgraphservice.NewInMemoryModule(logger)
	capabilities := capabilityservice.NewInMemoryModule(groups.Service, logger)
	instances := instanceservice.NewInMemoryModule(capabilities.Service, logger)
	return New(groups, capabilities, instances, logger, ":0")
}

func doJSON(t *testing.T, server *Server, method, target, identity string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != "" {
		req.Header.Set("X-Identity", identity)
	}
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func TestMutationsRequireIdentity(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPost, "/api/iam/v1/groups", "", []byte(`{"group_name":"ops"}`))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without X-Identity, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestWriteConflictsMapToConflictStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	writeGroupGraphDomainError(rr, groupgrapherrors.ErrWriteConflict)
	if rr.Code != http.StatusConflict {
		t.Fatalf("group graph write conflict: expected 409, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	writeCapabilityDomainError(rr, capabilityerrors.ErrWriteConflict)
	if rr.Code != http.StatusConflict {
		t.Fatalf("capability write conflict: expected 409, got %d", rr.Code)
	}
}

func TestGroupLifecycleOverHTTP(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPost, "/api/iam/v1/groups", "admin", []byte(`{"group_name":"platform"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/groups", "admin", []byte(`{"group_name":"platform"}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate group: expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/groups", "admin", []byte(`{"group_name":"oncall"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create second group: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/groups/platform/members", "admin", []byte(`{"member":"oncall"}`))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("add member: expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/groups/oncall/members", "admin", []byte(`{"member":"platform"}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("cycle edge: expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/iam/v1/groups/platform/members", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("members report: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server, http.MethodGet, "/api/iam/v1/groups/missing", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing group: expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCapabilityCatalogAndGrantFlow(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPost, "/api/iam/v1/groups", "admin", []byte(`{"group_name":"engineering"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	sync := []byte(`{"capabilities":[{"name":"deploy","required_groups":["engineering"],"lifetime_seconds":3600}]}`)
	rr = doJSON(t, server, http.MethodPut, "/api/iam/v1/capabilities", "admin", sync)
	if rr.Code != http.StatusOK {
		t.Fatalf("sync catalog: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var stats struct {
		Created int `json:"created"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode sync response: %v", err)
	}
	if stats.Created != 1 {
		t.Fatalf("expected 1 created capability, got %d", stats.Created)
	}

	grant := []byte(`{"name":"deploy-window","names_allowed":["deploy"],"namespace":"ci","http_method":"POST"}`)
	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/grants", "admin", grant)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create grant: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created struct {
		Rank int `json:"rank"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode grant response: %v", err)
	}
	if created.Rank != 1 {
		t.Fatalf("expected first grant at rank 1, got %d", created.Rank)
	}

	gapped := []byte(`{"name":"deploy-gap","names_allowed":["deploy"],"namespace":"ci","http_method":"POST","rank":5}`)
	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/grants", "admin", gapped)
	if rr.Code != http.StatusConflict {
		t.Fatalf("gapped rank: expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	unknown := []byte(`{"name":"ghost","names_allowed":["no-such-capability"],"namespace":"ci","http_method":"POST"}`)
	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/grants", "admin", unknown)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown capability reference: expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestInstanceRedemptionOverHTTP(t *testing.T) {
	server := newTestServer()

	sync := []byte(`{"capabilities":[{"name":"export","lifetime_seconds":3600}]}`)
	rr := doJSON(t, server, http.MethodPut, "/api/iam/v1/capabilities", "admin", sync)
	if rr.Code != http.StatusOK {
		t.Fatalf("sync catalog: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/instances", "admin", []byte(`{"capability_name":"export","usages_remaining":1}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create instance: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var instance struct {
		InstanceID string `json:"instance_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &instance); err != nil {
		t.Fatalf("decode instance response: %v", err)
	}

	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/instances/"+instance.InstanceID+"/redeem", "kor1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("redeem: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/instances/"+instance.InstanceID+"/redeem", "kor1", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("redeem consumed instance: expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, "/api/iam/v1/instances", "admin", []byte(`{"capability_name":"missing"}`))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("instance of unknown capability: expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}
