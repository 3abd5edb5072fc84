package providerfactory

import (
	"reflect"
	"testing"

	"mercator-hq/saturn/pkg/config"
)

func TestNewManagerFromConfig(t *testing.T) {
	manager, err := NewManagerFromConfig(map[string]config.ProviderConfig{
		"stub-b":   {Type: "stub", Priority: 2},
		"stub-a":   {Type: "stub", Priority: 1, Capabilities: []string{"chat", "embeddings"}},
		"disabled": {Type: "stub", Disabled: true},
	})
	if err != nil {
		t.Fatalf("NewManagerFromConfig() error = %v", err)
	}
	defer manager.Close()

	if got := manager.ProviderNames(); !reflect.DeepEqual(got, []string{"stub-a", "stub-b"}) {
		t.Errorf("ProviderNames() = %v", got)
	}

	entries := manager.Entries()
	if len(entries) != 2 || entries[0].Descriptor.Priority != 1 {
		t.Fatalf("Entries() = %+v", entries)
	}
	if entries[0].Provider.Name() != "stub-a" {
		t.Errorf("provider name = %q", entries[0].Provider.Name())
	}
	if descs := manager.Descriptors(); len(descs) != 2 || descs[1].Name != "stub-b" {
		t.Errorf("Descriptors() = %+v", descs)
	}
}

func TestNewManagerFromConfig_InvalidProvider(t *testing.T) {
	_, err := NewManagerFromConfig(map[string]config.ProviderConfig{
		"ok":     {Type: "stub"},
		"broken": {Type: "bedrock"},
	})
	if err == nil {
		t.Fatal("expected error for unsupported provider type")
	}
}

func TestManager_AddRemoveProvider(t *testing.T) {
	manager := NewManager()
	defer manager.Close()

	if err := manager.AddProvider("local", config.ProviderConfig{Type: "stub"}); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}
	if err := manager.AddProvider("local", config.ProviderConfig{Type: "stub", Priority: 9}); err != nil {
		t.Fatalf("replacing AddProvider() error = %v", err)
	}
	if manager.ProviderCount() != 1 {
		t.Errorf("ProviderCount() = %d, want 1", manager.ProviderCount())
	}
	if manager.Entries()[0].Descriptor.Priority != 9 {
		t.Error("replacement should carry the new descriptor")
	}

	if _, err := manager.GetProvider("local"); err != nil {
		t.Errorf("GetProvider() error = %v", err)
	}
	if err := manager.RemoveProvider("local"); err != nil {
		t.Errorf("RemoveProvider() error = %v", err)
	}
	if _, err := manager.GetProvider("local"); err == nil {
		t.Error("GetProvider() after remove should fail")
	}
	if err := manager.RemoveProvider("local"); err == nil {
		t.Error("removing a missing provider should fail")
	}
}

func TestManager_GetHealthSummary(t *testing.T) {
	manager, err := NewManagerFromConfig(map[string]config.ProviderConfig{
		"local":  {Type: "stub"},
		"remote": {Type: "generic", BaseURL: "http://127.0.0.1:1/v1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Close()

	summary := manager.GetHealthSummary()
	if summary.Total != 2 || summary.Healthy != 2 || summary.Unhealthy != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if _, ok := summary.Details["remote"]; !ok {
		t.Error("summary should include every provider")
	}
}
