package proxy

import (
	"net/http"
	"testing"
)

func TestNewHTTPClientDirect(t *testing.T) {
	c, err := NewHTTPClient("")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.Transport != nil || c.Timeout != requestTimeout {
		t.Fatalf("expected plain client, got %+v", c)
	}
}

func TestNewHTTPClientSocks(t *testing.T) {
	c, err := NewHTTPClient("127.0.0.1:1080")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok || tr.DialContext == nil || tr.Proxy != nil {
		t.Fatalf("expected socks transport, got %#v", c.Transport)
	}
}
