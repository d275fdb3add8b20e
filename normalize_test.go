package fetchkit

import "testing"

func TestNormalize(t *testing.T) {
	users := []testUser{{ID: 2, Name: "B"}, {ID: 1, Name: "A"}, {ID: 2, Name: "B2"}}
	n := Normalize(users, func(u testUser) int { return u.ID })

	if len(n.IDs) != 2 || n.IDs[0] != 2 || n.IDs[1] != 1 {
		t.Errorf("Expected IDs [2 1], got %v", n.IDs)
	}
	if n.Entities[2].Name != "B2" {
		t.Errorf("Expected a repeated id to keep the last item, got %+v", n.Entities[2])
	}

	out := n.Denormalize()
	if len(out) != 2 || out[0].Name != "B2" || out[1].Name != "A" {
		t.Errorf("unexpected denormalized list %+v", out)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	n := Normalize([]testUser(nil), func(u testUser) int { return u.ID })
	if len(n.IDs) != 0 || len(n.Entities) != 0 || len(n.Denormalize()) != 0 {
		t.Errorf("Expected an empty result, got %+v", n)
	}
}
