package assoc

import "testing"

func buildTree() (root, child, grandchild *Association) {
	root = New(1, "root", 0)
	child = New(2, "physics", 0)
	grandchild = New(3, "physics", 42)
	child.SetParent(root)
	grandchild.SetParent(child)
	return
}

func TestChainOrder(t *testing.T) {
	root, child, grandchild := buildTree()
	chain := grandchild.Chain()
	if len(chain) != 3 || chain[0] != grandchild || chain[1] != child || chain[2] != root {
		t.Fatalf("unexpected chain: %+v", chain)
	}
}

func TestBeginPropagatesToRoot(t *testing.T) {
	root, child, grandchild := buildTree()
	grandchild.Begin([3]uint64{4, 1024, 2}, 4*30*60)

	if grandchild.Usage.GrpUsedTRES[0] != 4 {
		t.Errorf("leaf cpu usage = %d, want 4", grandchild.Usage.GrpUsedTRES[0])
	}
	if child.Usage.GrpUsedTRES[0] != 4 || root.Usage.GrpUsedTRES[0] != 4 {
		t.Error("Begin did not propagate cpu usage to ancestors")
	}
	if root.Usage.GrpUsedJobs != 1 {
		t.Errorf("root grp_used_jobs = %d, want 1", root.Usage.GrpUsedJobs)
	}
	if root.Usage.GrpUsedTRESRunMins[0] != 4*30*60 {
		t.Errorf("root cpu-run-secs reservation = %d, want %d", root.Usage.GrpUsedTRESRunMins[0], 4*30*60)
	}
}

func TestFiniSymmetricUpChain(t *testing.T) {
	root, _, grandchild := buildTree()
	grandchild.Begin([3]uint64{4, 1024, 2}, 4*30*60)
	grandchild.Fini([3]uint64{4, 1024, 2}, 4*30*60, 3600)

	if root.Usage.GrpUsedTRES[0] != 0 || root.Usage.GrpUsedJobs != 0 {
		t.Errorf("Fini did not fully reverse Begin at root: %+v", root.Usage)
	}
	if root.Usage.GrpUsedTRESRunMins[0] != 0 {
		t.Errorf("cpu-run-secs reservation not reversed at root: %d", root.Usage.GrpUsedTRESRunMins[0])
	}
	if root.Usage.GrpUsedWallSecs != 3600 {
		t.Errorf("wall accrual at root = %d, want 3600", root.Usage.GrpUsedWallSecs)
	}
	if root.Usage.UsageRawSecs != 4*3600 {
		t.Errorf("usage_raw accrual at root = %v, want %v", root.Usage.UsageRawSecs, float64(4*3600))
	}
}

func TestAlterAdjustsCPURunSecsUpChainByExactDelta(t *testing.T) {
	root, _, grandchild := buildTree()
	grandchild.Begin([3]uint64{4, 1024, 1}, 4*30*60)

	grandchild.AdjustCPURunSecs(4*60*60 - 4*30*60)
	if root.Usage.GrpUsedTRESRunMins[0] != 4*60*60 {
		t.Errorf("root cpu-run-secs after alter = %d, want %d", root.Usage.GrpUsedTRESRunMins[0], 4*60*60)
	}
}

func TestUnderflowClampsAcrossChain(t *testing.T) {
	_, _, grandchild := buildTree()
	grandchild.RemoveSubmit() // never submitted
	if grandchild.Usage.GrpUsedSubmitJobs != 0 {
		t.Errorf("expected clamp to zero, got %d", grandchild.Usage.GrpUsedSubmitJobs)
	}
}
