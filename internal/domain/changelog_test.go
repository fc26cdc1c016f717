package domain

import "testing"

func TestChangeLog(t *testing.T) {
	log := ChangeLog{Dataset: "nb", Kind: KindElement, Change: ChangeModified, NIDs: []NID{"bbbb", "aaaa"}}

	if got := log.Name(); got != "nb_element_modified.log" {
		t.Errorf("Name() = %q", got)
	}
	want := "Records listed by nid:\naaaa\nbbbb\n"
	if got := log.Body(); got != want {
		t.Errorf("Body() = %q, want %q", got, want)
	}

	log.NIDs = nil
	if got := log.Body(); got != "No records.\n" {
		t.Errorf("Body() = %q, want %q", got, "No records.\n")
	}
}

func TestChangeLogNameMatchesEffect(t *testing.T) {
	for _, e := range AllEffects {
		found := false
		for _, b := range ChangeBuckets {
			if e.ChangeLogName() == b {
				found = true
			}
		}
		if !found {
			t.Errorf("effect %s maps to unknown bucket %q", e, e.ChangeLogName())
		}
	}
}
