package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/service"
)

func TestUserHandler_Me(t *testing.T) {
	api := newTestAPI(t)
	alice := api.user("alice", true)

	hasStatus(t, api.do(http.MethodGet, "/api/me", nil, nil), http.StatusUnauthorized)

	rr := api.do(http.MethodGet, "/api/me", nil, alice)
	hasStatus(t, rr, http.StatusOK)
	me := decode[model.User](t, rr)
	assert.Equal(t, alice.ID, me.ID)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.True(t, me.IsPro)
}

func TestUserHandler_PublicProfileHidesBilling(t *testing.T) {
	api := newTestAPI(t)
	alice := api.user("alice", true)

	rr := api.do(http.MethodGet, "/api/users/"+alice.ID, nil, nil)
	hasStatus(t, rr, http.StatusOK)
	got := decode[model.User](t, rr)
	assert.Equal(t, "alice", got.Name)
	assert.Empty(t, got.CustomerID)
	assert.Empty(t, got.OrderID)
	assert.NotContains(t, rr.Body.String(), "email")

	hasStatus(t, api.do(http.MethodGet, "/api/users/nobody", nil, nil), http.StatusNotFound)
}

func TestUserHandler_ExecutionsPaging(t *testing.T) {
	api := newTestAPI(t)
	alice := api.user("alice", false)

	for range 3 {
		hasStatus(t, api.do(http.MethodPost, "/api/execute", map[string]any{"code": "1"}, alice), http.StatusOK)
	}

	rr := api.do(http.MethodGet, "/api/users/"+alice.ID+"/executions?limit=2", nil, nil)
	hasStatus(t, rr, http.StatusOK)
	assert.Len(t, decode[[]model.CodeExecution](t, rr), 2)

	rr = api.do(http.MethodGet, "/api/users/"+alice.ID+"/executions?limit=2&offset=2", nil, nil)
	hasStatus(t, rr, http.StatusOK)
	assert.Len(t, decode[[]model.CodeExecution](t, rr), 1)

	hasStatus(t, api.do(http.MethodGet, "/api/users/"+alice.ID+"/executions?offset=-1", nil, nil), http.StatusBadRequest)
}

func TestNewsletterHandler(t *testing.T) {
	api := newTestAPI(t)
	body := map[string]any{"email": "Reader@Example.com"}

	rr := api.do(http.MethodPost, "/api/newsletter/subscribe", body, nil)
	hasStatus(t, rr, http.StatusCreated)
	res := decode[service.SubscribeResult](t, rr)
	assert.Equal(t, "reader@example.com", res.Subscriber.Email)
	assert.False(t, res.Reactivated)

	rr = api.do(http.MethodPost, "/api/newsletter/subscribe", body, nil)
	hasStatus(t, rr, http.StatusConflict)
	assert.Equal(t, "Email already subscribed", errorKind(t, rr).Message)

	hasStatus(t, api.do(http.MethodPost, "/api/newsletter/unsubscribe", body, nil), http.StatusOK)

	rr = api.do(http.MethodPost, "/api/newsletter/subscribe", body, nil)
	hasStatus(t, rr, http.StatusOK)
	assert.True(t, decode[service.SubscribeResult](t, rr).Reactivated)

	rr = api.do(http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": "not-an-email"}, nil)
	hasStatus(t, rr, http.StatusBadRequest)
	assert.Equal(t, "Invalid email format", errorKind(t, rr).Message)

	hasStatus(t, api.do(http.MethodPost, "/api/newsletter/unsubscribe", map[string]any{"email": "ghost@example.com"}, nil), http.StatusNotFound)
}
