package camera

// Preset names for the capture sizes the range fit has been done at.
const (
	PresetDefault = "default"
	PresetLow     = "low"
	Preset720p    = "720p"
)

// Pixel widths scale with resolution, so the distance constant must be
// refit for any preset other than default.
var presets = []struct {
	name          string
	width, height int
}{
	{PresetDefault, 640, 480},
	{PresetLow, 320, 240}, // slow hosts
	{Preset720p, 1280, 720},
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.name
	}
	return names
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	for _, p := range presets {
		if p.name == name {
			cfg := DefaultConfig()
			cfg.Width, cfg.Height = p.width, p.height
			return &cfg
		}
	}
	return nil
}
