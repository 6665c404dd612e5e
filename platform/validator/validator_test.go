package validator

import "testing"

func TestCustomTags(t *testing.T) {
	v := New()

	cases := []struct {
		value string
		tag   string
		ok    bool
	}{
		{"12345678910", "fnr", true},
		{"1234567891", "fnr", false},
		{"1234567891a", "fnr", false},
		{"1234", "enhet", true},
		{"12a4", "enhet", false},
		{"", "enhet", false},
	}

	for _, tc := range cases {
		err := v.Var(tc.value, tc.tag)
		if (err == nil) != tc.ok {
			t.Fatalf("Var(%q, %q) err=%v, want ok=%v", tc.value, tc.tag, err, tc.ok)
		}
	}
}
