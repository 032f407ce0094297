package builtin_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"fontpipe/provider"
	"fontpipe/provider/builtin"
)

func TestDefaultSpecs(t *testing.T) {
	reg := provider.NewRegistry(nil)
	if err := builtin.Factories().Build(reg, builtin.DefaultSpecs()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []string{"google", "googleicons", "bunny", "fontshare", "fontsource", "local"}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Errorf("providers mismatch (-want +got):\n%s", diff)
	}
}

func TestAdobeNeedsKit(t *testing.T) {
	reg := provider.NewRegistry(nil)
	if err := builtin.Factories().Build(reg, []provider.Spec{{Name: "adobe"}}); err == nil {
		t.Error("expected error for adobe without kit id")
	}
	if err := builtin.Factories().Build(reg, []provider.Spec{{Name: "adobe", Params: provider.Params{"id": "abc"}}}); err != nil {
		t.Errorf("Build() error = %v", err)
	}
}
