package accounts

import "strings"

// Roles are persisted as one comma-separated column; role names never
// contain commas.
func encodeRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func decodeRoles(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}
