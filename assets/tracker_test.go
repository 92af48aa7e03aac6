package assets

import "testing"

func TestAssignDedupesByURL(t *testing.T) {
	tr := New()
	a := tr.Assign("https://x.test/a.png", nil, "", false)
	b := tr.Assign("https://x.test/a.png", nil, "", false)
	if a.Id != b.Id {
		t.Fatalf("expected same id, got %d and %d", a.Id, b.Id)
	}
	if tr.Count() != 1 {
		t.Errorf("count = %d, want 1", tr.Count())
	}
}

func TestAssignAllocatesMonotonicIds(t *testing.T) {
	tr := New()
	a := tr.Assign("https://x.test/a.png", nil, "", false)
	b := tr.Assign("https://x.test/b.png", nil, "", false)
	if a.Id != 1 || b.Id != 2 {
		t.Errorf("got ids %d, %d, want 1, 2", a.Id, b.Id)
	}
}

func TestTakeDrainsOnlyOnce(t *testing.T) {
	tr := New()
	tr.Assign("https://x.test/a.png", nil, "", false)
	first := tr.Take()
	if len(first) != 1 {
		t.Fatalf("first take = %d, want 1", len(first))
	}
	second := tr.Take()
	if len(second) != 0 {
		t.Fatalf("second take = %d, want 0", len(second))
	}
}

func TestAssignWithPreSuppliedDataSkipsFetch(t *testing.T) {
	tr := New()
	p := tr.Assign("https://x.test/style.css", []byte("body{}"), "text/css", true)
	if !p.HasData || string(p.Data) != "body{}" {
		t.Fatalf("expected pre-supplied data, got %+v", p)
	}
	if !p.HasMime || p.Mime != "text/css" {
		t.Fatalf("expected mime text/css, got %+v", p)
	}
}

func TestResolveRecordsFetchOutcome(t *testing.T) {
	tr := New()
	p := tr.Assign("https://x.test/a.png", nil, "", false)
	tr.Resolve(p.Id, nil, FetchErrorNetwork, "")
	got, _ := tr.Get("https://x.test/a.png")
	if got.Error != FetchErrorNetwork {
		t.Errorf("error = %v, want FetchErrorNetwork", got.Error)
	}
	if !got.HasData || got.Data != nil {
		t.Errorf("expected empty-but-present data on failure, got %+v", got)
	}
}
