package genome

import "testing"

func lineageFixture() []*Version {
	v1 := "VERSION#2025-01-01T00:00:00.000000Z"
	v2 := "VERSION#2025-01-02T00:00:00.000000Z"
	return []*Version{
		{SortKey: v1, EntityType: EntityGenome, Metadata: Metadata{VersionHash: "h1", DeploymentState: StateActive}},
		{SortKey: ChallengerKey(v1, 1), EntityType: EntityChallenger, Metadata: Metadata{VersionHash: "c1", ParentHash: "h1", DeploymentState: StateDraft}},
		{SortKey: ChallengerKey(v1, 2), EntityType: EntityChallenger, Metadata: Metadata{VersionHash: "c2", ParentHash: "h1", DeploymentState: StateDraft}},
		// Promoted from challenger 2: same content hash as c2.
		{SortKey: v2, EntityType: EntityGenome, Metadata: Metadata{VersionHash: "c2", ParentHash: "h1", DeploymentState: StateActive}},
		{SortKey: ChatKey(v1, "conv"), EntityType: EntityChat},
		nil,
	}
}

func TestNewLineage_SkipsNonVersions(t *testing.T) {
	l := NewLineage(lineageFixture())
	if l.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", l.Len())
	}
	nodes := l.Nodes()
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].SortKey > nodes[i].SortKey {
			t.Errorf("nodes not sorted: %s before %s", nodes[i-1].SortKey, nodes[i].SortKey)
		}
	}
}

func TestLineage_Parent(t *testing.T) {
	items := lineageFixture()
	l := NewLineage(items)

	p, ok := l.Parent(items[1].SortKey)
	if !ok || p.SortKey != items[0].SortKey {
		t.Errorf("challenger parent = %v, want %s", p, items[0].SortKey)
	}

	p, ok = l.Parent(items[3].SortKey)
	if !ok || p.SortKey != items[0].SortKey {
		t.Errorf("promoted version parent = %v, want %s", p, items[0].SortKey)
	}

	if _, ok := l.Parent(items[0].SortKey); ok {
		t.Error("root version should have no parent")
	}
}

func TestLineage_Children(t *testing.T) {
	items := lineageFixture()
	l := NewLineage(items)

	children := l.Children(items[0].SortKey)
	if len(children) != 3 {
		t.Fatalf("Children() returned %d nodes, want 3", len(children))
	}
	if children[0].Kind != KindVersion && children[0].Kind != KindChallenger {
		t.Errorf("unexpected child kind %v", children[0].Kind)
	}
}

func TestLineage_Ancestry(t *testing.T) {
	items := lineageFixture()
	l := NewLineage(items)

	chain := l.Ancestry(items[3].SortKey)
	if len(chain) != 1 || chain[0].SortKey != items[0].SortKey {
		t.Errorf("Ancestry() = %v", chain)
	}
}

func TestLineage_AncestryStopsOnCycle(t *testing.T) {
	l := NewLineage([]*Version{
		{SortKey: "VERSION#a", Metadata: Metadata{VersionHash: "x", ParentHash: "y"}},
		{SortKey: "VERSION#b", Metadata: Metadata{VersionHash: "y", ParentHash: "x"}},
	})
	chain := l.Ancestry("VERSION#a")
	if len(chain) != 1 {
		t.Errorf("Ancestry() length = %d, want 1", len(chain))
	}
}

func TestLineage_Verify(t *testing.T) {
	items := lineageFixture()
	if err := NewLineage(items).Verify(); err != nil {
		t.Fatalf("Verify() error: %v", err)
	}

	items[2].Metadata.ParentHash = "other"
	if err := NewLineage(items).Verify(); err == nil {
		t.Error("expected mismatched parent_hash to fail verification")
	}

	orphan := []*Version{{SortKey: ChallengerKey("VERSION#missing", 1), Metadata: Metadata{ParentHash: "z"}}}
	if err := NewLineage(orphan).Verify(); err == nil {
		t.Error("expected missing parent version to fail verification")
	}
}
