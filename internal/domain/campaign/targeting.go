package campaign

import (
	"encoding/json"
	"strings"
)

// DeviceAll matches every device type
const DeviceAll = "all"

// Targeting holds a campaign's eligibility rules. Campaigns are stored with
// free-form JSON targeting blobs; ParseTargeting validates the shape on read
// so the filter and scorer can pattern-match safely. A zero Targeting matches
// every request (broad targeting).
type Targeting struct {
	// Device restricts to one device type; empty or "all" matches everything.
	Device string `json:"device,omitempty"`

	// States is a comma-separated list of region codes; empty matches
	// everything.
	States string `json:"states,omitempty"`

	// Questions maps question identifier to the set of accepted answers.
	Questions map[string][]string `json:"questions,omitempty"`

	// DayParting maps lowercase weekday name to the allowed hours of day
	// (0-23). A weekday with no entry is unrestricted.
	DayParting map[string][]int `json:"day_parting,omitempty"`
}

// IsEmpty reports whether no targeting rules are set
func (t Targeting) IsEmpty() bool {
	return (t.Device == "" || t.Device == DeviceAll) &&
		t.States == "" &&
		len(t.Questions) == 0 &&
		len(t.DayParting) == 0
}

// StateList returns the targeted region codes with whitespace trimmed.
// Empty entries are dropped.
func (t Targeting) StateList() []string {
	if t.States == "" {
		return nil
	}
	parts := strings.Split(t.States, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseTargeting decodes a stored targeting blob. Any shape mismatch in a
// field means the corresponding rule does not apply; it never returns an
// error for malformed data, only for input that is not a JSON object at all.
func ParseTargeting(raw []byte) Targeting {
	var t Targeting
	if len(raw) == 0 {
		return t
	}

	// Decode field by field so that one malformed rule cannot invalidate
	// the rest of the blob.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Targeting{}
	}

	if v, ok := fields["device"]; ok {
		var device string
		if json.Unmarshal(v, &device) == nil {
			t.Device = strings.ToLower(strings.TrimSpace(device))
		}
	}
	if v, ok := fields["states"]; ok {
		var states string
		if json.Unmarshal(v, &states) == nil {
			t.States = states
		}
	}
	if v, ok := fields["questions"]; ok {
		questions := make(map[string][]string)
		if json.Unmarshal(v, &questions) == nil && len(questions) > 0 {
			t.Questions = questions
		}
	}
	if v, ok := fields["day_parting"]; ok {
		parting := make(map[string][]int)
		if json.Unmarshal(v, &parting) == nil && len(parting) > 0 {
			t.DayParting = make(map[string][]int, len(parting))
			for day, hours := range parting {
				t.DayParting[strings.ToLower(day)] = hours
			}
		}
	}

	return t
}

// MarshalBlob encodes the targeting rules for storage
func (t Targeting) MarshalBlob() ([]byte, error) {
	return json.Marshal(t)
}
