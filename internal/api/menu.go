package api

import (
	"sort"
	"strings"
)

// Menu is one navigation entry. MetaRoles is a comma-separated role list;
// empty means visible to every role.
type Menu struct {
	ID        int    `json:"id"`
	ParentID  int    `json:"parent_id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Path      string `json:"path"`
	Component string `json:"component"`
	Redirect  string `json:"redirect"`
	MetaTitle string `json:"meta_title"`
	MetaRoles string `json:"meta_roles"`
	Version   int    `json:"version"`
	Children  []Menu `json:"children,omitempty"`
}

// Roles returns the parsed MetaRoles.
func (m Menu) Roles() []string {
	var roles []string
	for _, r := range strings.Split(m.MetaRoles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// Allows reports whether role may see m.
func (m Menu) Allows(role string) bool {
	roles := m.Roles()
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// FilterMenus keeps the menus role may see, descending into children.
// A hidden parent hides its whole subtree. The input is not modified.
func FilterMenus(menus []Menu, role string) []Menu {
	var out []Menu
	for _, m := range menus {
		if !m.Allows(role) {
			continue
		}
		if len(m.Children) > 0 {
			m.Children = FilterMenus(m.Children, role)
		}
		out = append(out, m)
	}
	return out
}

// Tree nests a flat menu list by ParentID. Entries whose parent is absent
// become roots and entries caught in a parent cycle are dropped. Siblings
// keep ascending ID order.
func Tree(flat []Menu) []Menu {
	byParent := make(map[int][]Menu)
	ids := make(map[int]bool, len(flat))
	for _, m := range flat {
		ids[m.ID] = true
	}
	var roots []Menu
	for _, m := range flat {
		if m.ParentID != 0 && ids[m.ParentID] && m.ParentID != m.ID {
			byParent[m.ParentID] = append(byParent[m.ParentID], m)
			continue
		}
		roots = append(roots, m)
	}

	var attach func(nodes []Menu, seen map[int]bool) []Menu
	attach = func(nodes []Menu, seen map[int]bool) []Menu {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
		for i := range nodes {
			if seen[nodes[i].ID] {
				continue
			}
			seen[nodes[i].ID] = true
			if kids := byParent[nodes[i].ID]; len(kids) > 0 {
				nodes[i].Children = attach(append([]Menu(nil), kids...), seen)
			}
		}
		return nodes
	}
	return attach(roots, make(map[int]bool))
}
