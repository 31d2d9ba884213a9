package httpc

import (
	"net/http"
	"testing"
)

func TestNewClient(t *testing.T) {
	c := NewClient(0)
	if c.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatal("expected *http.Transport")
	}
	if tr.IdleConnTimeout != DefaultIdleConnTimeout {
		t.Errorf("unexpected idle timeout %v", tr.IdleConnTimeout)
	}
	if NewClient(DefaultConnectTimeout).Timeout != DefaultConnectTimeout {
		t.Error("explicit timeout not applied")
	}
}
