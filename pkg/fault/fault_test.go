package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{ProviderUnavailable, "provider_unavailable"},
		{MalformedArguments, "malformed_arguments"},
		{UnknownTool, "unknown_tool"},
		{DataSourceUnavailable, "data_source_unavailable"},
		{RenderFailure, "render_failure"},
		{KindUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestScoped(t *testing.T) {
	if ProviderUnavailable.Scoped() {
		t.Error("ProviderUnavailable should abort the turn")
	}
	for _, k := range []Kind{MalformedArguments, UnknownTool, DataSourceUnavailable} {
		if !k.Scoped() {
			t.Errorf("%s should be scoped to its invocation", k)
		}
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("turn: %w", New(ProviderUnavailable, "resolver.resolve", base))

	if got := KindOf(err); got != ProviderUnavailable {
		t.Errorf("KindOf = %s, want provider_unavailable", got)
	}
	if !Is(err, ProviderUnavailable) {
		t.Error("Is should match through fmt wrapping")
	}
	if !errors.Is(err, base) {
		t.Error("errors.Is should reach the cause")
	}
	if KindOf(base) != KindUnknown {
		t.Error("plain errors have no kind")
	}
	if Is(nil, ProviderUnavailable) {
		t.Error("nil is never classified")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Newf(MalformedArguments, "resolver.validate", "missing %s", "symbol").ForCall("showStockPrice", "call_1")

	want := "resolver.validate: malformed_arguments (showStockPrice): missing symbol"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if Message(err) != "missing symbol" {
		t.Errorf("Message() = %q", Message(err))
	}
	if err.CallID != "call_1" {
		t.Errorf("CallID = %q", err.CallID)
	}
}
