package broker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Hazard-House/openclaw/internal/broker"
	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *broker.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return broker.NewClient("test-key", srv.URL)
}

func TestClient_Initiate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/connectedAccounts", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "GMAIL", body["appName"])
		assert.Equal(t, "u1", body["entityId"])
		assert.Equal(t, "https://app.example/cb", body["redirectUri"])

		w.Write([]byte(`{"connectedAccountId":"acc-1","redirectUrl":"https://auth.example/x","connectionStatus":"INITIATED"}`))
	})

	res, err := c.Initiate(context.Background(), models.ConnectionRequest{
		EntityID:    "u1",
		AppName:     "GMAIL",
		RedirectURI: "https://app.example/cb",
	})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", res.ConnectedAccountID)
	assert.Equal(t, "https://auth.example/x", res.RedirectURL)
}

func TestClient_InitiateWithoutRedirect(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"connectedAccountId":"acc-2","redirectUrl":null}`))
	})

	res, err := c.Initiate(context.Background(), models.ConnectionRequest{EntityID: "u1", AppName: "GITHUB"})
	require.NoError(t, err)
	assert.Equal(t, "acc-2", res.ConnectedAccountID)
	assert.Equal(t, "", res.RedirectURL)
}

func TestClient_InitiateMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"redirectUrl":"https://auth.example"}`))
	})

	_, err := c.Initiate(context.Background(), models.ConnectionRequest{EntityID: "u1", AppName: "GITHUB"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing connectedAccountId")
}

func TestClient_GetPassesStatusThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/connectedAccounts/acc-1", r.URL.Path)
		w.Write([]byte(`{"id":"acc-1","appName":"gmail","status":"EXPIRED","createdAt":"2026-01-02T03:04:05Z","updatedAt":42}`))
	})

	acc, err := c.Get(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, "gmail", acc.AppName)
	assert.Equal(t, models.AccountStatusExpired, acc.Status)
	require.NotNil(t, acc.CreatedAt)
	assert.Equal(t, 2026, acc.CreatedAt.Year())
	assert.Nil(t, acc.UpdatedAt, "wrong-typed timestamp maps to absent")
}

func TestClient_GetUnknownStatusPassesThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"acc-2","appName":"gmail","status":"PENDING_REVIEW"}`))
	})

	acc, err := c.Get(context.Background(), "acc-2")
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatus("PENDING_REVIEW"), acc.Status)
	assert.False(t, acc.Status.Known())
}

func TestClient_GetWrongTypedFieldsDefault(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"acc-9","appName":7,"status":["ACTIVE"],"toolkit":{"slug":"slack"}}`))
	})

	acc, err := c.Get(context.Background(), "acc-9")
	require.NoError(t, err)
	assert.Equal(t, "slack", acc.AppName)
	assert.Equal(t, models.AccountStatus(""), acc.Status)
}

func TestClient_ErrorCarriesBrokerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Connected account not found"}`))
	})

	err := c.Delete(context.Background(), "gone")
	require.Error(t, err)

	var apiErr *broker.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Connected account not found", err.Error())
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Get(context.Background(), "acc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_ListForEntity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", r.URL.Query().Get("user_uuids"))
		w.Write([]byte(`{"items":[{"id":"a","appName":"gmail","status":"ACTIVE"},{"id":"b","appUniqueId":"github","status":"INITIATED"}]}`))
	})

	accounts, err := c.ListForEntity(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "github", accounts[1].AppName)
	assert.Equal(t, models.AccountStatusInitiated, accounts[1].Status)
}

func TestClient_ListForEntityBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	accounts, err := c.ListForEntity(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestClient_Execute(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/actions/GMAIL_SEND_EMAIL/execute", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["entityId"])
		assert.Equal(t, map[string]any{}, body["input"])
		assert.NotContains(t, body, "connectedAccountId")

		w.Write([]byte(`{"successful":true,"data":{"id":"m1"}}`))
	})

	res, err := c.Execute(context.Background(), models.ExecuteRequest{EntityID: "u1", ActionName: "GMAIL_SEND_EMAIL"})
	require.NoError(t, err)
	assert.Equal(t, true, res["successful"])
}
