package tables

import "github.com/JonMunkholm/stockroom/internal/core"

// Badge colors shown next to enumerated values.
const (
	ColorGreen  = "green"
	ColorBlue   = "blue"
	ColorYellow = "yellow"
	ColorOrange = "orange"
	ColorRed    = "red"
	ColorGray   = "gray"
)

// colorFor returns a derived-field function that looks up the canonical
// value in colors. Unknown values get fallback.
func colorFor(colors map[string]string, fallback string) func(string) string {
	return func(v string) string {
		if c, ok := colors[v]; ok {
			return c
		}
		return fallback
	}
}

// custodianField is shared by every schema: the user id of the person
// responsible for the record. An empty value means the importing actor.
func custodianField() core.FieldSpec {
	return core.FieldSpec{
		Name:    "custodian_id",
		Label:   "Custodian",
		Aliases: []string{"custodian", "owner", "owner_id", "assigned_to"},
	}
}
