// Package jsonrpc implements Gin middleware for handling JSON-RPC requests
// via HTTP.
package jsonrpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/okx/aa-settlement/pkg/errors"
)

func jsonrpcError(c *gin.Context, code int, message string, data any, id *float64) {
	c.JSON(http.StatusOK, gin.H{
		"jsonrpc": "2.0",
		"error": gin.H{
			"code":    code,
			"message": message,
			"data":    data,
		},
		"id": id,
	})
	c.Abort()
}

// Controller returns a Gin middleware that handles incoming JSON-RPC requests.
// It maps the RPC method name to struct methods on the given api: a request
// with the method field set to "namespace_methodName" calls
// api.Namespace_methodName with the params spread as arguments.
//
// If the request is valid it will also set the data on the Gin context with
// the key "json-rpc-request".
func Controller(api any) gin.HandlerFunc {
	titleCaser := cases.Title(language.Und, cases.NoLower)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			jsonrpcError(c, errors.PARSE, "Parse error", "POST method excepted", nil)
			return
		}
		if c.Request.Body == nil {
			jsonrpcError(c, errors.PARSE, "Parse error", "No POST data", nil)
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			jsonrpcError(c, errors.PARSE, "Parse error", "Error while reading request body", nil)
			return
		}

		data := make(map[string]any)
		if err := json.Unmarshal(body, &data); err != nil {
			jsonrpcError(c, errors.PARSE, "Parse error", "Error parsing json request", nil)
			return
		}

		id, ok := data["id"].(float64)
		if !ok {
			jsonrpcError(c, errors.INVALID_REQUEST, "Invalid Request", "No or invalid 'id' in request", nil)
			return
		}
		if data["jsonrpc"] != "2.0" {
			jsonrpcError(c, errors.INVALID_REQUEST, "Invalid Request", "Version of jsonrpc is not 2.0", &id)
			return
		}
		method, ok := data["method"].(string)
		if !ok {
			jsonrpcError(c, errors.INVALID_REQUEST, "Invalid Request", "No or invalid 'method' in request", &id)
			return
		}
		params, ok := data["params"].([]any)
		if !ok {
			jsonrpcError(c, errors.INVALID_PARAMS, "Invalid params", "No or invalid 'params' in request", &id)
			return
		}

		call := reflect.ValueOf(api).MethodByName(titleCaser.String(method))
		if !call.IsValid() {
			jsonrpcError(c, errors.METHOD_NOT_FOUND, "Method not found", "Method not found", &id)
			return
		}
		if call.Type().NumIn() != len(params) {
			jsonrpcError(c, errors.INVALID_PARAMS, "Invalid params", "Invalid number of params", &id)
			return
		}

		args := make([]reflect.Value, len(params))
		for i, arg := range params {
			v, err := convertParam(call.Type().In(i), arg)
			if err != nil {
				jsonrpcError(
					c,
					errors.INVALID_PARAMS,
					"Invalid params",
					fmt.Sprintf("Param [%d] can't be converted to %v", i, call.Type().In(i).String()),
					&id,
				)
				return
			}
			args[i] = v
		}

		c.Set("json-rpc-request", data)
		result := call.Call(args)
		if err, ok := result[len(result)-1].Interface().(error); ok && err != nil {
			if rpcErr, ok := err.(*errors.RPCError); ok {
				jsonrpcError(c, rpcErr.Code(), rpcErr.Error(), rpcErr.Data(), &id)
			} else {
				jsonrpcError(c, errors.INTERNAL, err.Error(), err.Error(), &id)
			}
			return
		}

		var payload any
		if len(result) > 1 {
			payload = result[0].Interface()
		}
		c.JSON(http.StatusOK, gin.H{
			"result":  payload,
			"jsonrpc": "2.0",
			"id":      id,
		})
	}
}

// convertParam converts one decoded JSON param into the type the API method
// expects. JSON numbers arrive as float64 and are narrowed here.
func convertParam(t reflect.Type, arg any) (reflect.Value, error) {
	badParam := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", arg, t.String())
	}

	switch t.Kind() {
	case reflect.Interface:
		return reflect.ValueOf(arg), nil

	case reflect.String:
		val, ok := arg.(string)
		if !ok {
			return badParam()
		}
		return reflect.ValueOf(val), nil

	case reflect.Bool:
		val, ok := arg.(bool)
		if !ok {
			return badParam()
		}
		return reflect.ValueOf(val), nil

	case reflect.Map:
		val, ok := arg.(map[string]any)
		if !ok {
			return badParam()
		}
		return reflect.ValueOf(val), nil

	case reflect.Slice:
		val, ok := arg.([]any)
		if !ok {
			return badParam()
		}
		return reflect.ValueOf(val), nil

	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fval, ok := arg.(float64)
		if !ok {
			return badParam()
		}
		out := reflect.New(t).Elem()
		switch t.Kind() {
		case reflect.Float32, reflect.Float64:
			out.SetFloat(fval)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out.SetUint(uint64(fval))
		default:
			out.SetInt(int64(fval))
		}
		return out, nil

	default:
		return badParam()
	}
}
