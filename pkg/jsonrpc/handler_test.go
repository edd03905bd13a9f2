package jsonrpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okx/aa-settlement/pkg/errors"
)

type mockAPI struct{}

func (mockAPI) Eth_chainId() (string, error) {
	return "0x1", nil
}

func (mockAPI) Eth_echo(msg string) (string, error) {
	return msg, nil
}

func (mockAPI) Admin_toggle(on bool) (bool, error) {
	return on, nil
}

func (mockAPI) Eth_fail() (string, error) {
	return "", errors.NewRPCError(errors.REJECTED_BY_ENGINE, "rejected", "details")
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/", Controller(mockAPI{}))
	return r
}

func post(t *testing.T, r *gin.Engine, body map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func request(method string, params ...any) map[string]any {
	if params == nil {
		params = []any{}
	}
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      float64(1),
		"method":  method,
		"params":  params,
	}
}

func TestControllerDispatchesMethod(t *testing.T) {
	r := newTestRouter()

	resp := post(t, r, request("eth_chainId"))
	assert.Equal(t, "0x1", resp["result"])
	assert.Nil(t, resp["error"])
}

func TestControllerSpreadsParams(t *testing.T) {
	r := newTestRouter()

	resp := post(t, r, request("eth_echo", "hello"))
	assert.Equal(t, "hello", resp["result"])
}

func TestControllerConvertsBoolParams(t *testing.T) {
	r := newTestRouter()

	resp := post(t, r, request("admin_toggle", true))
	assert.Equal(t, true, resp["result"])
}

func TestControllerMethodNotFound(t *testing.T) {
	r := newTestRouter()

	resp := post(t, r, request("eth_nope"))
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(errors.METHOD_NOT_FOUND), errObj["code"])
}

func TestControllerInvalidParamCount(t *testing.T) {
	r := newTestRouter()

	resp := post(t, r, request("eth_echo"))
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(errors.INVALID_PARAMS), errObj["code"])
}

func TestControllerInvalidParamType(t *testing.T) {
	r := newTestRouter()

	resp := post(t, r, request("eth_echo", 42))
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(errors.INVALID_PARAMS), errObj["code"])
}

func TestControllerSurfacesRPCErrors(t *testing.T) {
	r := newTestRouter()

	resp := post(t, r, request("eth_fail"))
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(errors.REJECTED_BY_ENGINE), errObj["code"])
	assert.Equal(t, "rejected", errObj["message"])
	assert.Equal(t, "details", errObj["data"])
}

func TestControllerRejectsWrongVersion(t *testing.T) {
	r := newTestRouter()

	body := request("eth_chainId")
	body["jsonrpc"] = "1.0"
	resp := post(t, r, body)
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(errors.INVALID_REQUEST), errObj["code"])
}

func TestControllerRejectsMissingID(t *testing.T) {
	r := newTestRouter()

	body := request("eth_chainId")
	delete(body, "id")
	resp := post(t, r, body)
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(errors.INVALID_REQUEST), errObj["code"])
}
