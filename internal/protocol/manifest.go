package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/luciancaetano/webchannel"
)

// Method is one invocable member of a remote object.
type Method struct {
	Name  string
	Index int
}

// Signal is one signal of a remote object.
type Signal struct {
	Name  string
	Index int
}

// Property is one property of a remote object together with its value at the
// time the manifest was produced. Value is raw: object references inside it
// have not been resolved.
type Property struct {
	Index  int
	Name   string
	Notify *Signal
	Value  any
}

// Manifest describes the members of one remote object.
type Manifest struct {
	Methods    []Method
	Properties []Property
	Signals    []Signal
	Enums      map[string]map[string]int
}

// ParseManifest reads a manifest from its decoded JSON form:
//
//	{
//	  "methods":    [[name, index], ...],
//	  "properties": [[index, name, notify, value], ...],
//	  "signals":    [[name, index], ...],
//	  "enums":      {enumName: {key: value}}
//	}
//
// notify is null, [] or [name, index]; a name of 1 means the remote side elided
// it and it is rebuilt as <property>Changed.
func ParseManifest(v any) (*Manifest, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, manifestErr("manifest is %T, not an object", v)
	}

	m := &Manifest{Enums: map[string]map[string]int{}}

	methods, err := list(obj, "methods")
	if err != nil {
		return nil, err
	}
	for i, entry := range methods {
		name, index, err := namedIndex(entry)
		if err != nil {
			return nil, manifestErr("methods[%d]: %v", i, err)
		}
		m.Methods = append(m.Methods, Method{Name: name, Index: index})
	}

	properties, err := list(obj, "properties")
	if err != nil {
		return nil, err
	}
	for i, entry := range properties {
		prop, err := parseProperty(entry)
		if err != nil {
			return nil, manifestErr("properties[%d]: %v", i, err)
		}
		m.Properties = append(m.Properties, prop)
	}

	signals, err := list(obj, "signals")
	if err != nil {
		return nil, err
	}
	for i, entry := range signals {
		name, index, err := namedIndex(entry)
		if err != nil {
			return nil, manifestErr("signals[%d]: %v", i, err)
		}
		m.Signals = append(m.Signals, Signal{Name: name, Index: index})
	}

	if rawEnums, ok := obj["enums"]; ok && rawEnums != nil {
		enums, ok := rawEnums.(map[string]any)
		if !ok {
			return nil, manifestErr("enums is %T, not an object", rawEnums)
		}
		for enumName, rawValues := range enums {
			values, ok := rawValues.(map[string]any)
			if !ok {
				return nil, manifestErr("enum %q is %T, not an object", enumName, rawValues)
			}
			table := make(map[string]int, len(values))
			for key, rawValue := range values {
				n, ok := ToInt(rawValue)
				if !ok {
					return nil, manifestErr("enum %s.%s: %v is not an integer", enumName, key, rawValue)
				}
				table[key] = n
			}
			m.Enums[enumName] = table
		}
	}

	return m, nil
}

func parseProperty(entry any) (Property, error) {
	tuple, ok := entry.([]any)
	if !ok || len(tuple) < 4 {
		return Property{}, fmt.Errorf("expected [index, name, notify, value], got %v", entry)
	}
	index, ok := ToInt(tuple[0])
	if !ok {
		return Property{}, fmt.Errorf("index %v is not an integer", tuple[0])
	}
	name, ok := tuple[1].(string)
	if !ok || name == "" {
		return Property{}, fmt.Errorf("name %v is not a string", tuple[1])
	}

	prop := Property{Index: index, Name: name, Value: tuple[3]}

	if notify, ok := tuple[2].([]any); ok && len(notify) > 0 {
		if len(notify) < 2 {
			return Property{}, fmt.Errorf("notify signal %v is incomplete", notify)
		}
		sigIndex, ok := ToInt(notify[1])
		if !ok {
			return Property{}, fmt.Errorf("notify signal index %v is not an integer", notify[1])
		}
		sigName, isName := notify[0].(string)
		if !isName {
			if n, ok := ToInt(notify[0]); !ok || n != 1 {
				return Property{}, fmt.Errorf("notify signal name %v is invalid", notify[0])
			}
			sigName = name + webchannel.NotifySuffix
		}
		prop.Notify = &Signal{Name: sigName, Index: sigIndex}
	} else if tuple[2] != nil && !ok {
		return Property{}, fmt.Errorf("notify signal %v is not a list", tuple[2])
	}

	return prop, nil
}

func list(obj map[string]any, key string) ([]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	out, ok := v.([]any)
	if !ok {
		return nil, manifestErr("%s is %T, not a list", key, v)
	}
	return out, nil
}

func namedIndex(entry any) (string, int, error) {
	tuple, ok := entry.([]any)
	if !ok || len(tuple) < 2 {
		return "", 0, fmt.Errorf("expected [name, index], got %v", entry)
	}
	name, ok := tuple[0].(string)
	if !ok || name == "" {
		return "", 0, fmt.Errorf("name %v is not a string", tuple[0])
	}
	index, ok := ToInt(tuple[1])
	if !ok {
		return "", 0, fmt.Errorf("index %v is not an integer", tuple[1])
	}
	return name, index, nil
}

func manifestErr(format string, args ...any) error {
	return fmt.Errorf("%s: %s", webchannel.ErrInvalidManifest, fmt.Sprintf(format, args...))
}

// ToInt converts a decoded JSON number (or a decimal string key) to int.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// ObjectRefID reports whether v is an object reference, returning its identity.
// A reference carries a truthy reference marker and a string "id".
func ObjectRefID(v map[string]any) (string, bool) {
	marker, ok := v[webchannel.ObjectMarker]
	if !ok {
		return "", false
	}
	if b, isBool := marker.(bool); isBool && !b {
		return "", false
	}
	id, ok := v["id"].(string)
	if !ok {
		return "", false
	}
	return id, true
}
