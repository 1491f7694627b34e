package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name string
		role Role
		perm Permission
		want bool
	}{
		{"viewer reads state", RoleViewer, PermStateRead, true},
		{"viewer cannot control", RoleViewer, PermControl, false},
		{"viewer cannot manage operators", RoleViewer, PermOperatorManage, false},
		{"operator controls RF", RoleOperator, PermControl, true},
		{"operator manages channels", RoleOperator, PermChannelManage, true},
		{"operator executes programs", RoleOperator, PermProgramExecute, true},
		{"operator cannot manage programs", RoleOperator, PermProgramManage, false},
		{"operator cannot manage operators", RoleOperator, PermOperatorManage, false},
		{"admin does everything", RoleAdmin, PermSystemAdmin, true},
		{"admin manages operators", RoleAdmin, PermOperatorManage, true},
		{"unknown role has nothing", Role("ghost"), PermStateRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestCanControl(t *testing.T) {
	if CanControl(RoleViewer) {
		t.Error("viewer should not control RF")
	}
	if !CanControl(RoleOperator) {
		t.Error("operator should control RF")
	}
	if !CanControl(RoleAdmin) {
		t.Error("admin should control RF")
	}
}

func TestCanManage(t *testing.T) {
	if CanManage(RoleViewer) || CanManage(RoleOperator) {
		t.Error("only admin should manage")
	}
	if !CanManage(RoleAdmin) {
		t.Error("admin should manage")
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleOperator)
	if len(perms) == 0 {
		t.Fatal("operator should have permissions")
	}

	// Returned slice must be a copy.
	perms[0] = Permission("mutated")
	if PermissionsForRole(RoleOperator)[0] == Permission("mutated") {
		t.Error("PermissionsForRole should return a copy")
	}

	if PermissionsForRole(Role("ghost")) != nil {
		t.Error("unknown role should return nil")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%s) = false, want true", r)
		}
	}
	if IsValidRole(Role("owner")) {
		t.Error("owner is not a valid role in this system")
	}
}
