package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wxpipe/wxpipe/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(nil, config.GatewayConfig{
		BaseURL:   srv.URL,
		AccountID: "wxid_self",
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestCallPostsJSONBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"Success": true})
	})

	resp, err := client.Call(context.Background(), OpUserInfo, map[string]any{"Towxids": "wxid_x"})
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/Friend/GetContractDetail" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["Towxids"] != "wxid_x" {
		t.Fatalf("body = %v", gotBody)
	}
	if resp["Success"] != true {
		t.Fatalf("resp = %v", resp)
	}
}

func TestCallUnknownOperation(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request sent for unknown operation")
	})

	_, err := client.Call(context.Background(), "no_such_op", nil)
	if err == nil {
		t.Fatal("unknown operation accepted")
	}
	if !strings.Contains(err.Error(), OpUserInfo) {
		t.Fatalf("error does not list valid operations: %v", err)
	}
}

func TestCallSurfacesHTTPFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Call(context.Background(), OpSendText, nil)
	if err == nil {
		t.Fatal("non-200 response not surfaced")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error = %v", err)
	}
}

func TestSendTextBody(t *testing.T) {
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"Success": true})
	})

	if err := client.SendText(context.Background(), "wxid_to", "hello"); err != nil {
		t.Fatal(err)
	}
	if gotBody["ToWxid"] != "wxid_to" || gotBody["Content"] != "hello" || gotBody["Wxid"] != "wxid_self" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(nil, config.GatewayConfig{}); err == nil {
		t.Fatal("missing base url accepted")
	}
}
