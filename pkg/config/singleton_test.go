package config

import (
	"sync"
	"testing"
)

func reset() {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = nil
	listeners = nil
	initOnce = sync.Once{}
}

func TestInitialize(t *testing.T) {
	reset()
	t.Cleanup(reset)

	path := writeConfig(t, "server:\n  listen_address: 127.0.0.1:1111\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if got := MustGetConfig().Server.ListenAddress; got != "127.0.0.1:1111" {
		t.Errorf("ListenAddress = %q", got)
	}

	// Second call is a no-op.
	other := writeConfig(t, "server:\n  listen_address: 127.0.0.1:2222\n")
	if err := Initialize(other); err != nil {
		t.Fatalf("second Initialize() error: %v", err)
	}
	if got := GetConfig().Server.ListenAddress; got != "127.0.0.1:1111" {
		t.Errorf("second Initialize should be ignored, got %q", got)
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	reset()
	t.Cleanup(reset)

	defer func() {
		if recover() == nil {
			t.Error("expected panic before Initialize")
		}
	}()
	MustGetConfig()
}

func TestReloadConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	SetConfig(Default())

	var notified *Config
	OnReload(func(c *Config) { notified = c })

	path := writeConfig(t, "evolution:\n  max_retries: 4\n")
	if err := ReloadConfig(path); err != nil {
		t.Fatalf("ReloadConfig() error: %v", err)
	}
	if GetConfig().Evolution.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d, want 4", GetConfig().Evolution.MaxRetries)
	}
	if notified != GetConfig() {
		t.Error("listener was not called with the new configuration")
	}

	bad := writeConfig(t, "store:\n  backend: nope\n")
	if err := ReloadConfig(bad); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig().Evolution.MaxRetries != 4 {
		t.Error("failed reload must keep the previous configuration")
	}
}
