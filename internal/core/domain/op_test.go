package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseOp(t *testing.T) {
	for _, op := range Ops() {
		got, err := ParseOp(string(op))
		if err != nil {
			t.Errorf("ParseOp(%q) error = %v", op, err)
		}
		if got != op {
			t.Errorf("ParseOp(%q) = %q", op, got)
		}
	}

	for _, bad := range []string{"", "GET", "flush", "set/../get"} {
		if _, err := ParseOp(bad); !errors.Is(err, ErrUnknownOperation) {
			t.Errorf("ParseOp(%q) error = %v, want ErrUnknownOperation", bad, err)
		}
	}
}

func TestOp_Class(t *testing.T) {
	tests := []struct {
		op        Op
		class     Class
		exclusive bool
	}{
		{OpGet, ClassRead, false},
		{OpGetKeysByPrefix, ClassRead, false},
		{OpGetMany, ClassRead, false},
		{OpSetContains, ClassRead, false},
		{OpSetMembers, ClassRead, false},
		{OpSet, ClassWrite, true},
		{OpDelete, ClassWrite, true},
		{OpGetAndSet, ClassReadWrite, true},
		{OpIncrement, ClassReadWrite, true},
		{OpDecrement, ClassReadWrite, true},
		{OpSetAdd, ClassReadWrite, true},
		{OpSetRemove, ClassReadWrite, true},
		{OpClearAll, ClassAdmin, true},
		{OpQueuePush, ClassNoop, false},
		{OpQueuePop, ClassNoop, false},
		{OpQueueCount, ClassNoop, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			if got := tt.op.Class(); got != tt.class {
				t.Errorf("Class() = %s, want %s", got, tt.class)
			}
			if got := tt.op.Class().Exclusive(); got != tt.exclusive {
				t.Errorf("Exclusive() = %v, want %v", got, tt.exclusive)
			}
		})
	}

	if len(tests) != len(Ops()) {
		t.Errorf("table covers %d ops, vocabulary has %d", len(tests), len(Ops()))
	}
}

func TestOp_IsAdmin(t *testing.T) {
	for _, op := range Ops() {
		if op.IsAdmin() != (op == OpClearAll) {
			t.Errorf("%s.IsAdmin() = %v", op, op.IsAdmin())
		}
	}
}

func TestValidateInstanceName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"tenant-1", false},
		{"sdk:key_abc.prod", false},
		{"", true},
		{strings.Repeat("a", MaxInstanceNameLength), false},
		{strings.Repeat("a", MaxInstanceNameLength+1), true},
		{"has space", true},
		{"slash/name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInstanceName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInstanceName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInstanceName) {
				t.Errorf("error = %v, want ErrInvalidInstanceName", err)
			}
		})
	}
}

func TestInstanceIDFromName(t *testing.T) {
	a := InstanceIDFromName("tenant-a")
	if len(a) != 32 {
		t.Errorf("ID length = %d, want 32", len(a))
	}
	if a != InstanceIDFromName("tenant-a") {
		t.Error("ID must be deterministic")
	}
	if a == InstanceIDFromName("tenant-b") {
		t.Error("different names should map to different IDs")
	}
}

func TestNewRequestID(t *testing.T) {
	id1 := NewRequestID()
	id2 := NewRequestID()

	if !strings.HasPrefix(id1, RequestIDPrefix) {
		t.Errorf("NewRequestID() = %q, want prefix %q", id1, RequestIDPrefix)
	}
	if id1 == id2 {
		t.Error("request IDs should be unique")
	}
	if strings.ToLower(id1) != id1 {
		t.Errorf("request ID should be lowercase, got %q", id1)
	}
}
