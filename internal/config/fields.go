package config

import "errors"

// Persisted field keys
const (
	KeyTransientToggle     = "transient_toggle_key"
	KeyTransientSeconds    = "transient_interval_sec"
	KeyTransientMillis     = "transient_interval_ms"
	KeyTransientConfidence = "transient_confidence"
	KeyTransientTemplate   = "transient_template"
	KeyTransientLifetime   = "transient_lifetime"

	KeyStationaryToggle     = "stationary_toggle_key"
	KeyStationarySeconds    = "stationary_interval_sec"
	KeyStationaryMillis     = "stationary_interval_ms"
	KeyStationaryConfidence = "stationary_confidence"
	KeyStationaryTemplate   = "stationary_template"
	KeyStationaryLifetime   = "stationary_lifetime"
)

// Field binds a persisted key to its location inside a Record.
type Field struct {
	Key string

	// Ptr returns a pointer to the field within r, suitable for decoding into.
	Ptr func(r *Record) any

	valid func(r Record) bool
	reset func(r *Record)
}

// Fields returns the persisted schema in a stable order
func Fields() []Field {
	var fields []Field
	for _, m := range Modes() {
		fields = append(fields, modeFields(m)...)
	}
	return fields
}

func modeFields(m Mode) []Field {
	prefix := m.String() + "_"
	settings := func(r *Record) *ModeSettings {
		if m == Stationary {
			return &r.Config.Stationary
		}
		return &r.Config.Transient
	}
	def := DefaultModeSettings(m)

	return []Field{
		{
			Key:   prefix + "toggle_key",
			Ptr:   func(r *Record) any { return &settings(r).ToggleKey },
			valid: func(r Record) bool { _, err := ParseToggleKey(settings(&r).ToggleKey); return err == nil },
			reset: func(r *Record) { settings(r).ToggleKey = def.ToggleKey },
		},
		{
			Key:   prefix + "interval_sec",
			Ptr:   func(r *Record) any { return &settings(r).IntervalSeconds },
			valid: func(r Record) bool { return validate.Var(settings(&r).IntervalSeconds, "gte=0,lte=1800") == nil },
			reset: func(r *Record) { settings(r).IntervalSeconds = def.IntervalSeconds },
		},
		{
			Key:   prefix + "interval_ms",
			Ptr:   func(r *Record) any { return &settings(r).IntervalMillis },
			valid: func(r Record) bool { return validate.Var(settings(&r).IntervalMillis, "gte=0,lte=999") == nil },
			reset: func(r *Record) { settings(r).IntervalMillis = def.IntervalMillis },
		},
		{
			Key:   prefix + "confidence",
			Ptr:   func(r *Record) any { return &settings(r).Confidence },
			valid: func(r Record) bool { return validate.Var(settings(&r).Confidence, "gte=0,lte=1") == nil },
			reset: func(r *Record) { settings(r).Confidence = def.Confidence },
		},
		{
			Key:   prefix + "template",
			Ptr:   func(r *Record) any { return &settings(r).Template },
			valid: func(r Record) bool { return settings(&r).Template != "" },
			reset: func(r *Record) { settings(r).Template = def.Template },
		},
		{
			Key: prefix + "lifetime",
			Ptr: func(r *Record) any {
				if m == Stationary {
					return &r.StationaryLifetime
				}
				return &r.TransientLifetime
			},
			valid: func(Record) bool { return true },
			reset: func(r *Record) {
				if m == Stationary {
					r.StationaryLifetime = 0
				} else {
					r.TransientLifetime = 0
				}
			},
		},
	}
}

// Normalize resets every out-of-range field to its default and returns the keys
// that were reset. Toggle keys are canonicalized to lower case.
func (r *Record) Normalize() []string {
	var reset []string
	for _, f := range Fields() {
		if !f.valid(*r) {
			f.reset(r)
			reset = append(reset, f.Key)
		}
	}
	r.Config.Transient.ToggleKey = canonicalKey(r.Config.Transient.ToggleKey)
	r.Config.Stationary.ToggleKey = canonicalKey(r.Config.Stationary.ToggleKey)
	return reset
}

// Values flattens r into key/value pairs using the persisted keys
func (r Record) Values() map[string]any {
	out := make(map[string]any, len(Fields()))
	for _, f := range Fields() {
		out[f.Key] = deref(f.Ptr(&r))
	}
	return out
}

func deref(p any) any {
	switch v := p.(type) {
	case *string:
		return *v
	case *int:
		return *v
	case *float64:
		return *v
	case *uint64:
		return *v
	default:
		return nil
	}
}

// ErrCorrupt marks a saved record that could not be read at all
var ErrCorrupt = errors.New("corrupt settings")
