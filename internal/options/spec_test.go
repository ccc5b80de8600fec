package options

import (
	"strings"
	"testing"
)

func TestSpec_Validate(t *testing.T) {
	min, max := 1, 10
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{"string", String(), ""},
		{"int unbounded", Int(), ""},
		{"int bounded", IntRange(1, 2000), ""},
		{"int min only", IntMin(0), ""},
		{"bool", Bool(), ""},
		{"url", URL(), ""},
		{"color", Color(), ""},
		{"enum", Enum("a", "b"), ""},
		{"list of enum", List(Enum("a", "b")), ""},
		{"nested list", List(List(Int())), ""},

		{"unknown kind", Spec{Kind: Kind(99)}, "unknown type kind"},
		{"string with params", Spec{Kind: KindString, Allowed: []string{"x"}}, "does not accept parameters"},
		{"bool with bounds", Spec{Kind: KindBool, Min: &min}, "does not accept parameters"},
		{"int min above max", IntRange(10, 1), "min 10 > max 1"},
		{"int with enum params", Spec{Kind: KindInt, Allowed: []string{"x"}}, "only min/max"},
		{"empty enum", Enum(), "at least one allowed value"},
		{"enum with empty member", Enum("a", ""), "non-empty strings"},
		{"enum with bounds", Spec{Kind: KindEnum, Allowed: []string{"a"}, Max: &max}, "only a member set"},
		{"list without elem", Spec{Kind: KindList}, "requires an element spec"},
		{"list with bad elem", List(Enum()), "invalid list element spec"},
		{"list with bounds", Spec{Kind: KindList, Elem: &Spec{Kind: KindString}, Min: &min}, "only an element spec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindString, "string"},
		{KindInt, "int"},
		{KindBool, "bool"},
		{KindURL, "url"},
		{KindColor, "color"},
		{KindEnum, "enum"},
		{KindList, "list"},
		{Kind(42), "kind(42)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
