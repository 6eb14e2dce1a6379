package providerfactory

import (
	"testing"

	testhelpers "mercator-hq/darwin/internal/providers"
	"mercator-hq/darwin/pkg/providers"
)

func TestManager_LoadFromConfig(t *testing.T) {
	m := NewManager()
	defer m.Close()

	err := m.LoadFromConfig([]providers.ProviderConfig{
		{Name: "bedrock", Type: "generic", BaseURL: "http://localhost:8080"},
		{Name: "openai", Type: "openai", APIKey: "k"},
		{Name: "broken", Type: "openai"},
	})
	if err == nil {
		t.Fatal("expected error for the broken provider")
	}
	if got := m.ProviderCount(); got != 2 {
		t.Errorf("ProviderCount() = %d, want 2", got)
	}
	names := m.GetProviderNames()
	if len(names) != 2 || names[0] != "bedrock" || names[1] != "openai" {
		t.Errorf("GetProviderNames() = %v", names)
	}
}

func TestManager_GetProvider(t *testing.T) {
	m := NewManager()
	defer m.Close()

	fake := testhelpers.NewFakeProvider("fake", testhelpers.Text("hi"))
	m.Register(fake)

	got, err := m.GetProvider("fake")
	if err != nil {
		t.Fatalf("GetProvider() error: %v", err)
	}
	if got != fake {
		t.Error("GetProvider() returned a different provider")
	}
	if _, err := m.GetProvider("missing"); err == nil {
		t.Error("expected error for missing provider")
	}
}

func TestManager_RegisterReplaces(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.Register(testhelpers.NewFakeProvider("p", testhelpers.Text("a")))
	second := testhelpers.NewFakeProvider("p", testhelpers.Text("b"))
	m.Register(second)

	if m.ProviderCount() != 1 {
		t.Errorf("ProviderCount() = %d, want 1", m.ProviderCount())
	}
	got, _ := m.GetProvider("p")
	if got != second {
		t.Error("expected the replacement provider")
	}
}

func TestManager_RemoveProvider(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.Register(testhelpers.NewFakeProvider("p", testhelpers.Text("a")))
	if err := m.RemoveProvider("p"); err != nil {
		t.Fatalf("RemoveProvider() error: %v", err)
	}
	if err := m.RemoveProvider("p"); err == nil {
		t.Error("expected error removing a missing provider")
	}
}

func TestManager_Health(t *testing.T) {
	m := NewManager()
	defer m.Close()

	up := testhelpers.NewFakeProvider("up", testhelpers.Text("a"))
	down := testhelpers.NewFakeProvider("down", testhelpers.Text("a"))
	down.SetHealthy(false)
	m.Register(up)
	m.Register(down)

	healthy := m.GetHealthyProviders()
	if len(healthy) != 1 || healthy["up"] == nil {
		t.Errorf("GetHealthyProviders() = %v", healthy)
	}

	summary := m.GetHealthSummary()
	if summary.Total != 2 || summary.Healthy != 1 || summary.Unhealthy != 1 {
		t.Errorf("summary = %+v", summary)
	}
}
