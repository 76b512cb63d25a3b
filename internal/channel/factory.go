package channel

import "github.com/luciancaetano/webchannel/internal/protocol"

// instantiate builds the proxy for id from m and registers it. The proxy is
// registered before anything else so that references back to id resolve to it.
// Property values are cached raw; callers unwrap them once every object of the
// batch exists. c.mu must be held.
func (c *Channel) instantiate(id string, m *protocol.Manifest) (*Object, error) {
	obj := newObject(c, id)
	if err := c.objects.add(obj); err != nil {
		return nil, err
	}

	for _, method := range m.Methods {
		if _, seen := obj.methods[method.Name]; !seen {
			obj.methodOrder = append(obj.methodOrder, method.Name)
		}
		obj.methods[method.Name] = method.Index
	}

	for _, prop := range m.Properties {
		if _, seen := obj.properties[prop.Name]; !seen {
			obj.propertyOrder = append(obj.propertyOrder, prop.Name)
		}
		obj.properties[prop.Name] = prop.Index
		obj.cache[prop.Index] = prop.Value
		if prop.Notify != nil {
			obj.addSignal(prop.Notify.Name, prop.Notify.Index, true)
		}
	}

	for _, signal := range m.Signals {
		obj.addSignal(signal.Name, signal.Index, false)
	}

	for name, values := range m.Enums {
		obj.enums[name] = copyEnum(values)
	}

	c.logger.Debug().
		Str("object", id).
		Int("methods", len(m.Methods)).
		Int("properties", len(m.Properties)).
		Int("signals", len(m.Signals)).
		Msg("object registered")
	return obj, nil
}
