// Package access maps roles to the capabilities and navigation entries they
// unlock. Both the HTTP guards and the dashboard menu read from here.
package access

import "github.com/pqrs_dashboard/backend/internal/models"

type Capability string

const (
	ViewDashboard  Capability = "dashboard:view"
	FilePQR        Capability = "pqr:file"
	ManagePQR      Capability = "pqr:manage"
	ManageAreas    Capability = "areas:manage"
	ManageUsers    Capability = "users:manage"
	ManageEntities Capability = "entities:manage"
	SwitchEntity   Capability = "entities:switch"
)

var byRole = map[models.Role][]Capability{
	models.RoleSuperAdmin: {ViewDashboard, FilePQR, ManagePQR, ManageAreas, ManageUsers, ManageEntities, SwitchEntity},
	models.RoleAdmin:      {ViewDashboard, FilePQR, ManagePQR, ManageAreas, ManageUsers},
	models.RoleEmployee:   {ViewDashboard, FilePQR, ManagePQR},
	models.RoleClient:     {FilePQR},
}

// Capabilities returns the ordered capability set of a role. Unknown roles
// get none.
func Capabilities(role models.Role) []Capability {
	caps := byRole[role]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

func Has(role models.Role, c Capability) bool {
	for _, v := range byRole[role] {
		if v == c {
			return true
		}
	}
	return false
}

type MenuItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

var menu = []struct {
	item MenuItem
	need Capability
}{
	{MenuItem{Key: "dashboard", Label: "Dashboard", Path: "/dashboard"}, ViewDashboard},
	{MenuItem{Key: "areas", Label: "Áreas", Path: "/area"}, ManageAreas},
	{MenuItem{Key: "users", Label: "Usuarios", Path: "/users"}, ManageUsers},
	{MenuItem{Key: "entities", Label: "Entidades", Path: "/entities"}, ManageEntities},
}

func Menu(role models.Role) []MenuItem {
	out := []MenuItem{}
	for _, m := range menu {
		if Has(role, m.need) {
			out = append(out, m.item)
		}
	}
	return out
}
