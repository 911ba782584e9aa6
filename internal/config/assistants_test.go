package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeAssistants(t *testing.T, dir string) string {
	t.Helper()
	profiles := map[string]Profile{
		"jarvis": {Name: "Jarvis", Acronym: "JARVIS", Descr: "a helpful assistant", WakeWord: "hey jarvis"},
		"friday": {Name: "Friday", Acronym: "FRIDAY", Descr: "a second assistant", WakeWord: "hey friday"},
	}
	data, err := json.MarshalIndent(profiles, "", "    ")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "assistants.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func registryConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		VADThreshold:   300,
		Assistant:      "jarvis",
		AssistantsFile: writeAssistants(t, dir),
		SettingsFile:   filepath.Join(dir, "settings.json"),
	}
}

func TestLoadRegistryDefaults(t *testing.T) {
	cfg := registryConfig(t)
	r, err := LoadRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}

	key, profile := r.Active()
	if key != "jarvis" || profile.Name != "Jarvis" {
		t.Errorf("active = %q/%q, want jarvis/Jarvis", key, profile.Name)
	}
	if r.VADThreshold() != 300 {
		t.Errorf("threshold = %d, want 300", r.VADThreshold())
	}
	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "friday" || keys[1] != "jarvis" {
		t.Errorf("keys = %v, want sorted [friday jarvis]", keys)
	}
}

func TestLoadRegistryUnknownActive(t *testing.T) {
	cfg := registryConfig(t)
	cfg.Assistant = "cortana"

	if _, err := LoadRegistry(cfg); err == nil {
		t.Error("expected an error for an unknown default assistant")
	}
}

func TestSettingsOverlayPersistsAcrossLoads(t *testing.T) {
	cfg := registryConfig(t)
	r, err := LoadRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.SetActive("friday"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetVADThreshold(450); err != nil {
		t.Fatal(err)
	}

	// A second load from the same files must see the persisted overlay.
	r2, err := LoadRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}
	key, _ := r2.Active()
	if key != "friday" {
		t.Errorf("active after reload = %q, want friday", key)
	}
	if r2.VADThreshold() != 450 {
		t.Errorf("threshold after reload = %d, want 450", r2.VADThreshold())
	}
}

func TestSetActiveRejectsUnknownKey(t *testing.T) {
	r, err := LoadRegistry(registryConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetActive("cortana"); err == nil {
		t.Error("expected an error for an unknown assistant key")
	}
}

func TestSetVADThresholdRejectsNonPositive(t *testing.T) {
	r, err := LoadRegistry(registryConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetVADThreshold(0); err == nil {
		t.Error("expected an error for a zero threshold")
	}
	if r.VADThreshold() != 300 {
		t.Errorf("threshold changed to %d after rejected update", r.VADThreshold())
	}
}

func TestResolveByName(t *testing.T) {
	r, err := LoadRegistry(registryConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	key, profile, found := r.ResolveByName("switch assistant to Friday please")
	if !found || key != "friday" || profile.Name != "Friday" {
		t.Errorf("resolved %q/%q found=%v, want friday/Friday true", key, profile.Name, found)
	}

	if _, _, found := r.ResolveByName("switch assistant to cortana"); found {
		t.Error("resolved an assistant that does not exist")
	}
}
