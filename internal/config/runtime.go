package config

import (
	"fmt"
	"maps"
)

// SessionGate is the runtime switch for session enforcement.
type SessionGate interface {
	Required() bool
	SetRequired(bool)
}

// BaseProvider is the twin's own runtime config (latency, fail rate,
// verbose, webhook URL).
type BaseProvider interface {
	GetConfig() map[string]any
	UpdateConfig(updates map[string]any) error
}

// Runtime extends the twin's runtime config with require_session. It
// implements admin.ConfigProvider.
type Runtime struct {
	Base BaseProvider
	Gate SessionGate
}

// GetConfig returns the merged settings.
func (r Runtime) GetConfig() map[string]any {
	out := maps.Clone(r.Base.GetConfig())
	if out == nil {
		out = map[string]any{}
	}
	if r.Gate != nil {
		out["require_session"] = r.Gate.Required()
	}
	return out
}

// UpdateConfig validates every key before applying any of them.
func (r Runtime) UpdateConfig(updates map[string]any) error {
	rest := maps.Clone(updates)
	var session *bool
	if v, ok := rest["require_session"]; ok {
		if r.Gate == nil {
			return fmt.Errorf("require_session is not supported")
		}
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("require_session must be a boolean")
		}
		session = &b
		delete(rest, "require_session")
	}
	if len(rest) > 0 {
		if err := r.Base.UpdateConfig(rest); err != nil {
			return err
		}
	}
	if session != nil {
		r.Gate.SetRequired(*session)
	}
	return nil
}
