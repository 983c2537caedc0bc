package automation

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestOutletSpecExpand(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{"5", []int{5}, false},
		{"1,3,5", []int{1, 3, 5}, false},
		{"1-4", []int{1, 2, 3, 4}, false},
		{"1-3,8,10", []int{1, 2, 3, 8, 10}, false},
		{"3,1-2,3", []int{1, 2, 3}, false}, // duplicates collapse
		{"0", nil, true},
		{"11", nil, true}, // past outlet count
		{"4-2", nil, true},
		{"", nil, true},
		{"a", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := OutletSpec(tt.spec).Expand(10)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expand(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expand(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestOutletSpecJSON(t *testing.T) {
	// The HTTP body may carry the outlet as a number or a string.
	var r Rule
	if err := json.Unmarshal([]byte(`{"name":"n","outlet":5,"action":"off"}`), &r); err != nil {
		t.Fatalf("numeric outlet: %v", err)
	}
	if r.Outlet != "5" {
		t.Errorf("numeric outlet = %q", r.Outlet)
	}

	if err := json.Unmarshal([]byte(`{"name":"n","outlet":"1-4","action":"off"}`), &r); err != nil {
		t.Fatalf("string outlet: %v", err)
	}
	if r.Outlet != "1-4" {
		t.Errorf("string outlet = %q", r.Outlet)
	}

	if err := json.Unmarshal([]byte(`{"outlet":true}`), &r); err == nil {
		t.Error("bool outlet accepted")
	}
}
