package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"analyst-backend/application/agents"
	"analyst-backend/application/services"
	"analyst-backend/domain/core/entities"
	"analyst-backend/infrastructure/persistence/memory"
	"analyst-backend/interfaces/http/rest"
	"analyst-backend/interfaces/http/rest/handlers"
	"analyst-backend/interfaces/http/rest/middleware"
	"analyst-backend/tests/mocks"
)

type echoCapability struct{}

func (echoCapability) Name() string { return "echo" }

func (echoCapability) Execute(ctx context.Context, input agents.Input) (agents.Output, error) {
	return agents.Output{Content: "done", Confidence: 0.5}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	agentRepo := memory.NewAgentRepository()
	execRepo := memory.NewExecutionRepository()
	sourceRepo := memory.NewDataSourceRepository()
	memoRepo := memory.NewMemoRepository()
	publisher := &mocks.EventRecorder{}

	orchestrator := services.NewOrchestrator(
		map[entities.AgentType]agents.CapabilityAgent{
			entities.AgentTypeDeepResearch: echoCapability{},
		},
		agentRepo, execRepo, sourceRepo, publisher, mocks.NopMetrics{}, logger)
	t.Cleanup(orchestrator.Drain)

	registry := services.NewRegistry(agentRepo, execRepo, logger)
	sources := services.NewDataSourceService(sourceRepo, publisher, logger)
	synthesizer := services.NewMemoSynthesizer(
		memoRepo, sourceRepo, &mocks.TextCompletion{}, publisher, mocks.NopMetrics{}, logger)

	return rest.NewRouter(rest.Handlers{
		Agents:      handlers.NewAgentHandler(registry, orchestrator),
		Executions:  handlers.NewExecutionHandler(orchestrator),
		DataSources: handlers.NewDataSourceHandler(sources),
		Memos:       handlers.NewMemoHandler(synthesizer),
		Health:      handlers.NewHealthHandler("test"),
	}, logger)
}

func doRequest(t *testing.T, router http.Handler, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set(middleware.OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status"`)
}

func TestRouter_APIRequiresIdentity(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/agents", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

func TestRouter_AgentRegistrationAndListing(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/agents", "user-1",
		`{"name":"competitor tracker","type":"DEEP_RESEARCH"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	// The owner sees their agent; another caller does not.
	list := doRequest(t, router, http.MethodGet, "/api/agents", "user-1", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), created.ID)

	other := doRequest(t, router, http.MethodGet, "/api/agents", "user-2", "")
	require.Equal(t, http.StatusOK, other.Code)
	assert.NotContains(t, other.Body.String(), created.ID)
}

func TestRouter_TriggerValidatesUntypedInput(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/agents", "user-1",
		`{"name":"tracker","type":"DEEP_RESEARCH"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Unknown fields in the untyped payload are rejected at the edge.
	bad := doRequest(t, router, http.MethodPost, "/api/agents/"+created.ID+"/trigger", "user-1",
		`{"input":{"query":"x","surprise":true}}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	good := doRequest(t, router, http.MethodPost, "/api/agents/"+created.ID+"/trigger", "user-1",
		`{"input":{"query":"market size"}}`)
	require.Equal(t, http.StatusAccepted, good.Code)

	var accepted struct {
		ExecutionID string `json:"executionId"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(good.Body.Bytes(), &accepted))
	assert.NotEmpty(t, accepted.ExecutionID)
	assert.Equal(t, string(entities.ExecutionStatusPending), accepted.Status)
}

func TestRouter_MalformedAgentIDIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/agents/not-a-uuid", "user-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_MemoGenerateRequiresSources(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/memos/generate", "user-1",
		`{"companyName":"Acme","dataSourceIds":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_DataSourceIngestion(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/datasources", "user-1",
		`{"type":"TEXT_INPUT","name":"pitch notes","content":"strong founding team","select":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "COMPLETED")
}
