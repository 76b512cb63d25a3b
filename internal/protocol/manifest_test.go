package protocol

import (
	"encoding/json"
	"testing"
)

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture %s: %v", s, err)
	}
	return v
}

// TestParseManifest tests a manifest using every member kind
func TestParseManifest(t *testing.T) {
	t.Parallel()

	v := decodeJSON(t, `{
		"methods": [["deleteLater", 3], ["send", 7]],
		"properties": [
			[0, "objectName", [1, 2], "chat"],
			[1, "userList", ["usersChanged", 8], ["a", "b"]],
			[2, "plain", null, 5],
			[3, "empty", [], {"__QObject*__": true, "id": "other"}]
		],
		"signals": [["destroyed", 0], ["newMessage", 9]],
		"enums": {"Mode": {"Idle": 0, "Busy": 1}}
	}`)

	m, err := ParseManifest(v)
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	if len(m.Methods) != 2 || m.Methods[1] != (Method{Name: "send", Index: 7}) {
		t.Errorf("Methods = %+v", m.Methods)
	}
	if len(m.Signals) != 2 || m.Signals[0] != (Signal{Name: "destroyed", Index: 0}) {
		t.Errorf("Signals = %+v", m.Signals)
	}
	if len(m.Properties) != 4 {
		t.Fatalf("got %d properties, want 4", len(m.Properties))
	}

	elided := m.Properties[0]
	if elided.Notify == nil || elided.Notify.Name != "objectNameChanged" || elided.Notify.Index != 2 {
		t.Errorf("elided notify = %+v, want objectNameChanged/2", elided.Notify)
	}
	if elided.Value != "chat" {
		t.Errorf("objectName value = %v, want chat", elided.Value)
	}

	named := m.Properties[1]
	if named.Notify == nil || named.Notify.Name != "usersChanged" || named.Notify.Index != 8 {
		t.Errorf("named notify = %+v, want usersChanged/8", named.Notify)
	}

	if m.Properties[2].Notify != nil || m.Properties[3].Notify != nil {
		t.Error("properties without notify signal should have nil Notify")
	}
	if _, isMap := m.Properties[3].Value.(map[string]any); !isMap {
		t.Errorf("raw property value should stay unresolved, got %T", m.Properties[3].Value)
	}

	if m.Enums["Mode"]["Busy"] != 1 {
		t.Errorf("Enums = %+v", m.Enums)
	}
}

// TestParseManifestEmpty tests the minimal manifest of the handshake scenario
func TestParseManifestEmpty(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest(decodeJSON(t, `{"methods":[],"properties":[],"signals":[]}`))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if len(m.Methods)+len(m.Properties)+len(m.Signals) != 0 {
		t.Errorf("expected empty manifest, got %+v", m)
	}
	if m.Enums == nil {
		t.Error("Enums should be an empty map, not nil")
	}
}

// TestParseManifestInvalid tests rejection of malformed manifests
func TestParseManifestInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not an object", `[1]`},
		{"methods not a list", `{"methods": {}}`},
		{"method without index", `{"methods": [["a"]]}`},
		{"method index not integer", `{"methods": [["a", 1.5]]}`},
		{"property too short", `{"properties": [[0, "a", null]]}`},
		{"property name missing", `{"properties": [[0, 3, null, 1]]}`},
		{"notify name invalid", `{"properties": [[0, "a", [2, 1], 1]]}`},
		{"notify not a list", `{"properties": [[0, "a", 7, 1]]}`},
		{"signal name empty", `{"signals": [["", 1]]}`},
		{"enum values not object", `{"enums": {"E": [1]}}`},
		{"enum value not integer", `{"enums": {"E": {"A": "x"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseManifest(decodeJSON(t, tt.data)); err == nil {
				t.Errorf("ParseManifest(%s) expected error", tt.data)
			}
		})
	}
}

// TestObjectRefID tests reference marker detection
func TestObjectRefID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		wantID string
		wantOK bool
	}{
		{"reference", `{"__QObject*__": true, "id": "a"}`, "a", true},
		{"reference with data", `{"__QObject*__": true, "id": "a", "data": {}}`, "a", true},
		{"marker false", `{"__QObject*__": false, "id": "a"}`, "", false},
		{"no marker", `{"id": "a"}`, "", false},
		{"no id", `{"__QObject*__": true}`, "", false},
		{"numeric id", `{"__QObject*__": true, "id": 1}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, ok := ObjectRefID(decodeJSON(t, tt.data).(map[string]any))
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("ObjectRefID() = (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

// TestToInt tests numeric conversions
func TestToInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     any
		want   int
		wantOK bool
	}{
		{float64(3), 3, true},
		{float64(3.5), 0, false},
		{json.Number("12"), 12, true},
		{"7", 7, true},
		{"seven", 0, false},
		{5, 5, true},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := ToInt(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ToInt(%#v) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
