package orgcode_test

import (
	"testing"

	"github.com/lodgehub/lodgehub/business/types/orgcode"
)

func Test_Parse(t *testing.T) {
	valid := []string{"acme", "paris-01", "front_desk", "h0tel-x", "ab"}
	for _, value := range valid {
		code, err := orgcode.Parse(value)
		if err != nil {
			t.Errorf("parsing %q: %s", value, err)
			continue
		}
		if code.String() != value {
			t.Errorf("got %q, want %q", code.String(), value)
		}
	}

	invalid := []string{
		"",
		"a",
		"UPPER",
		"-leading",
		"_leading",
		"has space",
		"has/slash",
		"waaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaay-too-long",
	}
	for _, value := range invalid {
		if _, err := orgcode.Parse(value); err == nil {
			t.Errorf("parsing %q: expected an error", value)
		}
	}
}
