package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// settingsDir is the directory holding settings.json at each layer.
const settingsDir = ".termchat"

// Settings are the user-tunable chat options. Later layers override earlier
// ones field by field.
type Settings struct {
	// Title is the frame title.
	Title string
	// Model is the configured model alias or provider model name.
	Model string
	// StaleAfterMS is the streaming staleness threshold in milliseconds.
	StaleAfterMS int
	// BlinkMS is the cursor blink period in milliseconds.
	BlinkMS int
	// Markdown toggles markdown formatting of replies; nil leaves the default.
	Markdown *bool
	// Colors maps colour slots (border, user, bot_text, ...) to colour values.
	Colors map[string]string
	// Raw retains the merged JSON map.
	Raw map[string]any
}

// StaleAfter returns the staleness threshold, or zero when unset.
func (s *Settings) StaleAfter() time.Duration {
	return time.Duration(s.StaleAfterMS) * time.Millisecond
}

// BlinkInterval returns the blink period, or zero when unset.
func (s *Settings) BlinkInterval() time.Duration {
	return time.Duration(s.BlinkMS) * time.Millisecond
}

// LoadSettings loads settings from user/project/local sources and merges
// them, then applies extraSettings (inline JSON or a file path) on top.
func LoadSettings(cwd string, sources []string, extraSettings string) (*Settings, error) {
	sourceSet := normalizeSources(sources)
	paths, err := settingsPaths(cwd)
	if err != nil {
		return nil, err
	}

	var merged *Settings
	for _, item := range paths {
		if len(sourceSet) > 0 && !sourceSet[item.Source] {
			continue
		}
		settings, err := loadSettingsFromFile(item.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%s settings: %w", item.Source, err)
		}
		merged = mergeSettings(merged, settings)
	}

	if extraSettings != "" {
		override, err := loadSettingsFlag(extraSettings)
		if err != nil {
			return nil, err
		}
		merged = mergeSettings(merged, override)
	}

	if merged == nil {
		return &Settings{Colors: map[string]string{}, Raw: map[string]any{}}, nil
	}
	return merged, nil
}

type settingsSource struct {
	Source string
	Path   string
}

// settingsPaths resolves user, project, and local settings files.
func settingsPaths(cwd string) ([]settingsSource, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	projectRoot := findProjectRoot(cwd)

	return []settingsSource{
		{Source: "user", Path: filepath.Join(home, settingsDir, "settings.json")},
		{Source: "project", Path: filepath.Join(projectRoot, settingsDir, "settings.json")},
		{Source: "local", Path: filepath.Join(cwd, settingsDir, "settings.json")},
	}, nil
}

// normalizeSources returns a set of allowed sources, or nil if unrestricted.
func normalizeSources(sources []string) map[string]bool {
	if len(sources) == 0 {
		return nil
	}
	set := make(map[string]bool)
	for _, entry := range sources {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		set[strings.ToLower(entry)] = true
	}
	return set
}

// loadSettingsFromFile reads settings JSON from disk.
func loadSettingsFromFile(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSettings(raw)
}

// loadSettingsFlag resolves a settings override from a path or inline JSON.
func loadSettingsFlag(value string) (*Settings, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return parseSettings([]byte(trimmed))
	}
	settings, err := loadSettingsFromFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return settings, nil
}

// parseSettings parses settings JSON. Unknown keys are kept in Raw.
func parseSettings(raw []byte) (*Settings, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	settings := &Settings{
		Raw:    data,
		Colors: map[string]string{},
	}
	if title, ok := data["title"].(string); ok {
		settings.Title = title
	}
	if model, ok := data["model"].(string); ok {
		settings.Model = model
	}
	if staleAfter, ok := data["stale_after_ms"].(float64); ok && staleAfter > 0 {
		settings.StaleAfterMS = int(staleAfter)
	}
	if blink, ok := data["blink_ms"].(float64); ok && blink > 0 {
		settings.BlinkMS = int(blink)
	}
	if markdown, ok := data["markdown"].(bool); ok {
		settings.Markdown = &markdown
	}
	if colors, ok := data["colors"].(map[string]any); ok {
		for key, value := range colors {
			switch typed := value.(type) {
			case string:
				settings.Colors[key] = typed
			case float64:
				settings.Colors[key] = fmt.Sprintf("%d", int(typed))
			}
		}
	}
	return settings, nil
}

// mergeSettings applies overlay values on top of the base settings.
func mergeSettings(base *Settings, overlay *Settings) *Settings {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}

	merged := &Settings{
		Title:        base.Title,
		Model:        base.Model,
		StaleAfterMS: base.StaleAfterMS,
		BlinkMS:      base.BlinkMS,
		Markdown:     base.Markdown,
		Colors:       map[string]string{},
		Raw:          map[string]any{},
	}

	for key, value := range base.Raw {
		merged.Raw[key] = value
	}
	for key, value := range overlay.Raw {
		merged.Raw[key] = value
	}

	if overlay.Title != "" {
		merged.Title = overlay.Title
	}
	if overlay.Model != "" {
		merged.Model = overlay.Model
	}
	if overlay.StaleAfterMS > 0 {
		merged.StaleAfterMS = overlay.StaleAfterMS
	}
	if overlay.BlinkMS > 0 {
		merged.BlinkMS = overlay.BlinkMS
	}
	if overlay.Markdown != nil {
		merged.Markdown = overlay.Markdown
	}

	for key, value := range base.Colors {
		merged.Colors[key] = value
	}
	for key, value := range overlay.Colors {
		merged.Colors[key] = value
	}
	return merged
}

// findProjectRoot locates the nearest parent directory containing .git.
func findProjectRoot(cwd string) string {
	current := filepath.Clean(cwd)
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			// No repository root: the working directory doubles as the project.
			return cwd
		}
		current = parent
	}
}
