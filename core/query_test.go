package core

import (
	"errors"
	"testing"
)

func TestParseTaskType(t *testing.T) {
	tests := []struct {
		in      string
		want    TaskType
		wantErr bool
	}{
		{in: "Filtering", want: TaskFiltering},
		{in: "attribute_retrieval", want: TaskAttributeRetrieval},
		{in: "PROXIMITY", want: TaskProximity},
		{in: "visualization", want: TaskVisualization},
		{in: "gossip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTaskType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTaskType) {
					t.Errorf("ParseTaskType() error = %v, want ErrInvalidTaskType", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseTaskType() = %v, %v, want %v", got, err, tt.want)
			}
		})
	}
}

func TestTaskTypes_AllValid(t *testing.T) {
	types := TaskTypes()
	if len(types) != 9 {
		t.Fatalf("TaskTypes() len = %d, want 9", len(types))
	}
	for _, tt := range types {
		if !tt.Valid() {
			t.Errorf("%v is not valid", tt)
		}
		text, err := tt.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText() error = %v", err)
		}
		var back TaskType
		if err := back.UnmarshalText(text); err != nil || back != tt {
			t.Errorf("UnmarshalText(%s) = %v, %v", text, back, err)
		}
	}
	if TaskType(0).Valid() {
		t.Errorf("zero task type should be invalid")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		got  Value
		op   Operator
		want Value
		ok   bool
	}{
		{"gt true", Number(45), OpGt, Number(40), true},
		{"gt boundary", Number(40), OpGt, Number(40), false},
		{"ge boundary", Number(40), OpGe, Number(40), true},
		{"lt", Number(80), OpLt, Number(100), true},
		{"le", Number(100), OpLe, Number(100), true},
		{"ne numeric", Number(1), OpNe, Number(2), true},
		{"eq fold", Text("high"), OpEq, Text("High"), true},
		{"ne fold", Text("Low"), OpNe, Text("High"), true},
		{"contains", Text("Silty Clay"), OpContains, Text("clay"), true},
		{"contains miss", Text("Sand"), OpContains, Text("clay"), false},
		{"bool eq", Flag(true), OpEq, Flag(true), true},
		{"bool gt unsupported", Flag(true), OpGt, Flag(false), false},
		{"kind mismatch", Number(1), OpEq, Text("1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.got, tt.op, tt.want); got != tt.ok {
				t.Errorf("Compare() = %v, want %v", got, tt.ok)
			}
		})
	}
}

func TestScope_Matches(t *testing.T) {
	v := &Voxel{
		ID: "v_M3_00001",
		Attributes: map[string]Value{
			FieldMassID:        Text("M3"),
			FieldTopSurface:    Text("S2"),
			FieldBottomSurface: Text("S3"),
		},
	}

	tests := []struct {
		name  string
		scope Scope
		want  bool
	}{
		{"empty", Scope{}, true},
		{"layer hit", Scope{Layers: []string{"m3"}}, true},
		{"layer miss", Scope{Layers: []string{"M1", "M2"}}, false},
		{"bottom surface", Scope{Surfaces: []string{"S3"}}, true},
		{"layer and surface miss", Scope{Layers: []string{"M3"}, Surfaces: []string{"S5"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.Matches(v); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstraintSpec_Split(t *testing.T) {
	spec := ConstraintSpec{
		Constraints: []Constraint{
			{Field: FieldMoisture, Op: OpGt, Value: Number(40)},
			{Op: OpWithinHops, Reference: "v_M1_00001", Hops: 2},
		},
	}
	if len(spec.AttributeConstraints()) != 1 || len(spec.HopConstraints()) != 1 {
		t.Errorf("split = %d attribute, %d hop", len(spec.AttributeConstraints()), len(spec.HopConstraints()))
	}
	if spec.IsEmpty() {
		t.Errorf("IsEmpty() = true")
	}
	if !(ConstraintSpec{}).IsEmpty() {
		t.Errorf("zero spec should be empty")
	}
}
