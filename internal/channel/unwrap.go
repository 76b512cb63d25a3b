package channel

import (
	"github.com/luciancaetano/webchannel/internal/protocol"
)

// unwrap replaces object references in v with proxies, creating proxies for
// identities seen for the first time. Containers are copied, never modified.
// c.mu must be held.
func (c *Channel) unwrap(v any) any {
	switch value := v.(type) {
	case []any:
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = c.unwrap(elem)
		}
		return out

	case map[string]any:
		id, isRef := protocol.ObjectRefID(value)
		if !isRef {
			out := make(map[string]any, len(value))
			for k, elem := range value {
				out[k] = c.unwrap(elem)
			}
			return out
		}

		if obj, ok := c.objects.get(id); ok {
			return obj
		}

		data, ok := value["data"]
		if !ok || data == nil {
			c.violation("missing_manifest").Err(ErrMissingManifest).Str("object", id).Msg("cannot unwrap object")
			return nil
		}
		manifest, err := protocol.ParseManifest(data)
		if err != nil {
			c.violation("invalid_manifest").Err(err).Str("object", id).Msg("cannot unwrap object")
			return nil
		}
		obj, err := c.instantiate(id, manifest)
		if err != nil {
			c.violation("instantiate").Err(err).Str("object", id).Msg("cannot unwrap object")
			return nil
		}
		obj.unwrapProperties()
		return obj

	default:
		return v
	}
}

// wrap prepares v for sending: live proxies become {"id": identity}. A proxy
// that is no longer registered passes through unchanged. c.mu must be held.
func (c *Channel) wrap(v any) any {
	switch value := v.(type) {
	case *Object:
		if value != nil && c.objects.registered(value) {
			return map[string]any{"id": value.id}
		}
		return value

	case []*Object:
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = c.wrap(elem)
		}
		return out

	case []any:
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = c.wrap(elem)
		}
		return out

	case map[string]any:
		out := make(map[string]any, len(value))
		for k, elem := range value {
			out[k] = c.wrap(elem)
		}
		return out

	default:
		return v
	}
}
