package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Profile describes one assistant persona: its wake word, voice and the
// substitutions applied to the backend system prompt.
type Profile struct {
	Name              string `json:"name"`
	Acronym           string `json:"acronym"`
	Descr             string `json:"descr"`
	Gender            string `json:"gender"`
	WakeWord          string `json:"wake_word"`
	ElevenLabsVoiceID string `json:"elevenlabs_voice_id"`
	Accent            string `json:"accent"`
}

// Registry holds the assistant profiles and the mutable runtime settings
// (active assistant, VAD threshold). It replaces the original's module-level
// globals with one struct passed to constructors.
type Registry struct {
	mu           sync.RWMutex
	profiles     map[string]Profile
	active       string
	vadThreshold int
	settingsPath string
}

// settings is the persisted overlay for runtime-mutable values.
type settings struct {
	Assistant    string `json:"assistant"`
	VADThreshold int    `json:"vad_threshold"`
}

// LoadRegistry reads the assistant profiles file and applies any persisted
// settings overlay on top of the configured defaults.
func LoadRegistry(cfg *Config) (*Registry, error) {
	data, err := os.ReadFile(cfg.AssistantsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read assistants file: %w", err)
	}

	var profiles map[string]Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse assistants file: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("assistants file %s defines no profiles", cfg.AssistantsFile)
	}

	r := &Registry{
		profiles:     profiles,
		active:       cfg.Assistant,
		vadThreshold: cfg.VADThreshold,
		settingsPath: cfg.SettingsFile,
	}

	if overlay, err := os.ReadFile(cfg.SettingsFile); err == nil {
		var s settings
		if err := json.Unmarshal(overlay, &s); err == nil {
			if s.Assistant != "" {
				r.active = s.Assistant
			}
			if s.VADThreshold > 0 {
				r.vadThreshold = s.VADThreshold
			}
		}
	}

	if _, ok := r.profiles[r.active]; !ok {
		return nil, fmt.Errorf("assistant %q not found in %s", r.active, cfg.AssistantsFile)
	}

	return r, nil
}

// Active returns the key and profile of the currently selected assistant.
func (r *Registry) Active() (string, Profile) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, r.profiles[r.active]
}

// Keys returns the profile keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the profile for a key.
func (r *Registry) Lookup(key string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[key]
	return p, ok
}

// ResolveByName finds the profile whose display name appears in the given
// transcript, case-insensitively. Used by the switch-assistant command.
func (r *Registry) ResolveByName(transcript string) (string, Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lower := strings.ToLower(transcript)
	for _, key := range r.keysLocked() {
		p := r.profiles[key]
		if p.Name != "" && strings.Contains(lower, strings.ToLower(p.Name)) {
			return key, p, true
		}
	}
	return "", Profile{}, false
}

func (r *Registry) keysLocked() []string {
	keys := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VADThreshold returns the current VAD threshold.
func (r *Registry) VADThreshold() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vadThreshold
}

// SetVADThreshold updates the threshold and persists the settings overlay.
func (r *Registry) SetVADThreshold(threshold int) error {
	if threshold <= 0 {
		return fmt.Errorf("vad threshold must be positive, got %d", threshold)
	}
	r.mu.Lock()
	r.vadThreshold = threshold
	r.mu.Unlock()
	return r.save()
}

// SetActive switches the selected assistant and persists the settings overlay.
func (r *Registry) SetActive(key string) error {
	r.mu.Lock()
	if _, ok := r.profiles[key]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown assistant %q", key)
	}
	r.active = key
	r.mu.Unlock()
	return r.save()
}

func (r *Registry) save() error {
	r.mu.RLock()
	s := settings{Assistant: r.active, VADThreshold: r.vadThreshold}
	path := r.settingsPath
	r.mu.RUnlock()

	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
