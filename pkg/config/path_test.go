package config

import "testing"

func TestPathExtendCopies(t *testing.T) {
	base := Path{NewKey("t1")}
	extended := base.Extend(NewKey("Worker"))

	if len(base) != 1 {
		t.Fatalf("expected base unchanged, got %v", base)
	}
	if len(extended) != 2 {
		t.Fatalf("expected extended length 2, got %v", extended)
	}

	// Appending to the extension must never write through to a sibling.
	sibling := base.Extend(NewKey("Helper"))
	if extended[1] != NewKey("Worker") || sibling[1] != NewKey("Helper") {
		t.Fatalf("extensions interfered: %v vs %v", extended, sibling)
	}
}

func TestPathExtendIdempotentOnLast(t *testing.T) {
	path := Path{NewKey("t1"), NewKey("Worker")}
	same := path.Extend(NewKey("Worker"))

	if len(same) != 2 {
		t.Fatalf("expected unchanged path, got %v", same)
	}
}

func TestPathRootAndLast(t *testing.T) {
	path := Path{NewKey("t1"), NewKey("Worker"), InstanceKey("Worker", "a")}

	if path.Root() != NewKey("t1") {
		t.Fatalf("expected root t1, got %v", path.Root())
	}
	if path.Last() != InstanceKey("Worker", "a") {
		t.Fatalf("expected last Worker:a, got %v", path.Last())
	}
}

func TestKeyString(t *testing.T) {
	cases := []struct {
		key  Key
		want string
	}{
		{NewKey("Worker"), "Worker"},
		{InstanceKey("Worker", "a"), "Worker:a"},
		{NewKey("mypkg.Worker"), "Worker"},
		{InstanceKey("mypkg.Worker", "a"), "Worker:a"},
	}

	for _, c := range cases {
		if got := c.key.String(); got != c.want {
			t.Fatalf("expected %s, got %s", c.want, got)
		}
	}
}
