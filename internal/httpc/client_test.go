package httpc

import (
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	c := NewClient(5 * time.Second)
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", c.Timeout)
	}
	if c.Transport == nil {
		t.Error("Transport should be set")
	}

	if d := NewClient(0).Timeout; d != DefaultTimeout {
		t.Errorf("zero timeout = %v, want %v", d, DefaultTimeout)
	}
}
