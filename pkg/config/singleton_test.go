package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestInitialize(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	path := writeConfig(t, minimalYAML)
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
	}
}

func TestInitialize_MultipleCallsIgnored(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	first := writeConfig(t, minimalYAML)
	second := writeConfig(t, minimalYAML+"\nserver:\n  listen_address: \"0.0.0.0:9999\"\n")

	if err := Initialize(first); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	if err := Initialize(second); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if got := GetConfig().Server.ListenAddress; got != DefaultListenAddress {
		t.Errorf("second Initialize should be ignored, listen address = %q", got)
	}
}

func TestInitialize_FailureCanRetry(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	bad := writeConfig(t, "policy:\n  mode: loud\n")
	if err := Initialize(bad); err == nil {
		t.Fatal("expected error for invalid config")
	}
	if GetConfig() != nil {
		t.Fatal("config should stay nil after a failed Initialize")
	}
	if err := Initialize(writeConfig(t, minimalYAML)); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestReloadConfig_ValidationFailureKeepsPrevious(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	path := writeConfig(t, minimalYAML)
	if err := Initialize(path); err != nil {
		t.Fatal(err)
	}
	before := GetConfig()

	if err := os.WriteFile(path, []byte("budget:\n  backend: etcd\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ReloadConfig(path); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig() != before {
		t.Error("failed reload must keep the previous configuration")
	}
}

func TestMustGetConfig(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	defer func() {
		if recover() == nil {
			t.Error("expected panic when config is not initialized")
		}
	}()
	MustGetConfig()
}

func TestSetConfig(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	cfg := NewDefault()
	SetConfig(cfg)
	if MustGetConfig() != cfg {
		t.Error("MustGetConfig should return the config passed to SetConfig")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	path := writeConfig(t, minimalYAML)
	if err := Initialize(path); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w.OnReload(func(previous, current *Config) {
		if previous == current {
			t.Error("callback should receive distinct configurations")
		}
		select {
		case reloaded <- current:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	updated := minimalYAML + "\npolicy:\n  mode: observe\n"
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Policy.Mode != "observe" {
			t.Errorf("reloaded policy mode = %q, want observe", cfg.Policy.Mode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}
