package history

import "testing"

func TestNameSetKeepsFirstSpelling(t *testing.T) {
	s := newNameSet("Asthma", "asthma", "ASTHMA")
	got := s.Values()
	if len(got) != 1 || got[0] != "Asthma" {
		t.Fatalf("expected [Asthma], got %v", got)
	}
}

func TestNameSetIgnoresEmptyNames(t *testing.T) {
	s := newNameSet("", "  ", "Flu")
	if got := s.Values(); len(got) != 1 || got[0] != "Flu" {
		t.Fatalf("expected [Flu], got %v", got)
	}
}

func TestNameSetRemoveIsCaseInsensitive(t *testing.T) {
	s := newNameSet("Diabetes", "Anemia")
	s.Remove("DIABETES")
	if s.Contains("diabetes") {
		t.Error("expected diabetes to be removed")
	}
	if got := s.Values(); len(got) != 1 || got[0] != "Anemia" {
		t.Fatalf("expected [Anemia], got %v", got)
	}
}

func TestNameSetPreservesInsertionOrder(t *testing.T) {
	s := newNameSet("b", "a")
	s.Add("c")
	got := s.Values()
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNameSetValuesNeverNil(t *testing.T) {
	if newNameSet().Values() == nil {
		t.Error("expected non-nil slice for empty set")
	}
}
