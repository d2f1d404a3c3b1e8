package sandbox

import (
	"sort"
	"testing"
)

func TestEnvFromInputs_FormatsAsAxonInputPrefix(t *testing.T) {
	env := envFromInputs(map[string]string{"text": "hello", "format": "md"})
	sort.Strings(env)
	want := []string{"AXON_INPUT_format=md", "AXON_INPUT_text=hello"}
	if len(env) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), env)
	}
	for i := range want {
		if env[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], env[i])
		}
	}
}

func TestEnvFromInputs_EmptyInputsProducesEmptySlice(t *testing.T) {
	env := envFromInputs(nil)
	if len(env) != 0 {
		t.Errorf("expected no env entries, got %v", env)
	}
}
