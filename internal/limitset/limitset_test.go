package limitset

import "testing"

func TestNewIsAllUnset(t *testing.T) {
	ls := New()
	if ls != (LimitSet{}) {
		t.Errorf("New() should leave every mark Unset, got %+v", ls)
	}
}

func TestIsAdminSet(t *testing.T) {
	if IsAdminSet(PolicySet) {
		t.Error("PolicySet must not report as admin-set")
	}
	if !IsAdminSet(AdminSet) {
		t.Error("AdminSet must report as admin-set")
	}
}
