package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/playmatatu/poolsim/internal/session"
	"github.com/playmatatu/poolsim/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createResponse struct {
	Session     session.Info `json:"session"`
	AccessToken string       `json:"access_token"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment:        "development",
		TableWidth:         800,
		TableHeight:        400,
		BallRadius:         10,
		Restitution:        1.0,
		MaxBalls:           8,
		FrameRate:          60,
		MaxFrameDeltaMs:    50,
		JWTSecret:          "routes-secret",
		SessionTokenTTLMin: 5,
	}
	manager := session.NewManager(nil, nil, cfg)
	hub := ws.NewHub(manager, cfg)
	manager.SetBroadcaster(hub)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	router := gin.New()
	SetupRoutes(router, nil, cfg, manager, hub)
	return router
}

func doJSON(router *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, router *gin.Engine, body interface{}) createResponse {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/api/v1/sessions", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp createResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp
}

func TestHealth(t *testing.T) {
	router := setupRouter(t)
	w := doJSON(router, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCreateDefaultSessionAndQueryBalls(t *testing.T) {
	router := setupRouter(t)
	created := createSession(t, router, nil)
	token := created.Session.Token

	w := doJSON(router, http.MethodGet, "/api/v1/sessions/"+token+"/balls", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+token+"/balls/0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ball struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Radius float64 `json:"radius"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ball))
	assert.Equal(t, 400.0, ball.X)
	assert.Equal(t, 200.0, ball.Y)
	assert.Equal(t, 10.0, ball.Radius)

	for _, index := range []string{"1", "-1"} {
		w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+token+"/balls/"+index, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "index %s", index)
	}
	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+token+"/balls/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSessionValidation(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/sessions", "", map[string]interface{}{"width": -5, "height": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/sessions", "", map[string]interface{}{
		"balls": []map[string]float64{{"x": 1, "y": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTickRequiresAuthAndValidatesDt(t *testing.T) {
	router := setupRouter(t)
	created := createSession(t, router, map[string]interface{}{
		"balls": []map[string]float64{{"x": 400, "y": 200, "vx": 100}},
	})
	path := "/api/v1/sessions/" + created.Session.Token + "/tick"

	w := doJSON(router, http.MethodPost, path, "", map[string]float64{"dt": 0.1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, path, created.AccessToken, map[string]float64{"dt": -0.1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, path, created.AccessToken, map[string]float64{"dt": 0.1})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		State struct {
			Tick  uint64 `json:"tick"`
			Balls []struct {
				X float64 `json:"x"`
			} `json:"balls"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.State.Tick)
	assert.InDelta(t, 410.0, resp.State.Balls[0].X, 1e-9)
}

func TestStartStopAndDelete(t *testing.T) {
	router := setupRouter(t)
	created := createSession(t, router, nil)
	base := "/api/v1/sessions/" + created.Session.Token

	w := doJSON(router, http.MethodPost, base+"/stop", created.AccessToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, base+"/start", created.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(router, http.MethodPost, base+"/start", created.AccessToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, base+"/stop", created.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, base, created.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesNeedDatabase(t *testing.T) {
	router := setupRouter(t)
	w := doJSON(router, http.MethodGet, "/api/v1/admin/runs", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
