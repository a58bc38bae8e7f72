package services

import "github.com/apache/bigtop-manager-sub000/internal/domain"

// DiffConfigs returns the property-level changes of current against snapshot.
//
// A property is kept when it is marked add or delete, or when its value
// differs from the snapshot property with the same name (a property absent
// from the snapshot counts as changed). A property identical to its snapshot
// counterpart, action included, is never a change, so diffing a snapshot
// against itself is empty. Unnamed properties, sections with no snapshot
// counterpart and sections without changes are dropped. Output follows the
// input order of current.
func DiffConfigs(current, snapshot []domain.ConfigSection) []domain.ConfigSection {
	baseline := make(map[string]domain.ConfigSection, len(snapshot))
	for _, sec := range snapshot {
		if _, seen := baseline[sec.Name]; !seen {
			baseline[sec.Name] = sec
		}
	}

	var out []domain.ConfigSection
	for _, sec := range current {
		base, ok := baseline[sec.Name]
		if !ok {
			continue
		}

		props := make(map[string]domain.Property, len(base.Properties))
		for _, p := range base.Properties {
			if _, seen := props[p.Name]; !seen {
				props[p.Name] = p
			}
		}

		var changed []domain.Property
		for _, p := range sec.Properties {
			if p.Name == "" {
				continue
			}
			if propertyChanged(p, props) {
				changed = append(changed, p)
			}
		}

		if len(changed) > 0 {
			out = append(out, domain.ConfigSection{Name: sec.Name, Properties: changed})
		}
	}
	return out
}

func propertyChanged(p domain.Property, baseline map[string]domain.Property) bool {
	old, ok := baseline[p.Name]
	if !ok || old.Value != p.Value {
		return true
	}
	switch p.Action {
	case domain.PropertyActionAdd, domain.PropertyActionDelete:
		return old.Action != p.Action
	}
	return false
}
