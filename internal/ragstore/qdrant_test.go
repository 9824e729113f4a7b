package ragstore

import "testing"

func TestBuildFilterEmpty(t *testing.T) {
	if f := buildFilter(nil); f != nil {
		t.Fatalf("expected nil filter for no conditions, got %+v", f)
	}
}

func TestBuildFilterEQString(t *testing.T) {
	f := buildFilter([]VectorFilter{{Key: "tenant_id", Op: FilterEQ, Value: "acme"}})
	if f == nil || len(f.Must) != 1 {
		t.Fatalf("expected one must condition, got %+v", f)
	}
}

func TestBuildFilterRange(t *testing.T) {
	f := buildFilter([]VectorFilter{
		{Key: "created_at_ts", Op: FilterGTE, Value: int64(1000)},
		{Key: "created_at_ts", Op: FilterLTE, Value: int64(2000)},
	})
	if f == nil || len(f.Must) != 2 {
		t.Fatalf("expected two must conditions, got %+v", f)
	}
}

func TestBuildFilterIN(t *testing.T) {
	f := buildFilter([]VectorFilter{{Key: "document_type", Op: FilterIN, Value: []any{"email", "attachment"}}})
	if f == nil || len(f.Must) != 1 {
		t.Fatalf("expected one must condition for IN filter, got %+v", f)
	}
}

func TestPointUUIDDeterministic(t *testing.T) {
	a := pointUUID("chunk-123")
	b := pointUUID("chunk-123")
	if a != b {
		t.Fatalf("expected deterministic UUID for the same id, got %s vs %s", a, b)
	}
	if pointUUID("chunk-123") == pointUUID("chunk-456") {
		t.Fatalf("expected different ids to map to different UUIDs")
	}
}

func TestPointUUIDPassesThroughValidUUID(t *testing.T) {
	valid := "123e4567-e89b-12d3-a456-426614174000"
	if pointUUID(valid) != valid {
		t.Fatalf("expected a valid UUID to pass through unchanged")
	}
}
