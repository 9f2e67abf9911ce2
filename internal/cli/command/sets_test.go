package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

func TestCLI_Sets(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "sadd", "segment", "u1", "u2", "u3")
	env.mustRun(t, "srem", "segment", "u1", "absent-member")

	out := env.mustRun(t, "-o", "json", "sismember", "segment", "u2")
	if !strings.Contains(out, `"is_member": true`) {
		t.Errorf("sismember u2 = %q", out)
	}
	out = env.mustRun(t, "-o", "json", "sismember", "segment", "u1")
	if !strings.Contains(out, `"is_member": false`) {
		t.Errorf("sismember u1 = %q", out)
	}

	out = env.mustRun(t, "-o", "yaml", "smembers", "segment")
	if !strings.Contains(out, "- u2") || !strings.Contains(out, "- u3") || strings.Contains(out, "u1") {
		t.Errorf("smembers = %q", out)
	}

	out = env.mustRun(t, "smembers", "nothing")
	if strings.TrimSpace(out) != "MEMBER" {
		t.Errorf("smembers of absent key = %q, want header only", out)
	}
}

func TestCLI_SetsTypeMismatch(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "set", "k", "scalar")

	for _, args := range [][]string{
		{"sadd", "k", "x"},
		{"srem", "k", "x"},
		{"smembers", "k"},
		{"sismember", "k", "x"},
	} {
		if _, err := env.run(t, args...); !errors.Is(err, domain.ErrInvalidValue) {
			t.Errorf("%s on scalar = %v, want ErrInvalidValue", args[0], err)
		}
	}

	if _, err := env.run(t, "sadd", "k"); err == nil {
		t.Error("sadd without members should fail")
	}
}
