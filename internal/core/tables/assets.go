package tables

import "github.com/JonMunkholm/stockroom/internal/core"

// AssetStatuses are the canonical asset status values.
var AssetStatuses = []string{"ready", "deployed", "pending", "maintenance", "broken", "lost", "archived"}

// AssetStatusColors maps each status to its badge color.
var AssetStatusColors = map[string]string{
	"ready":       ColorGreen,
	"deployed":    ColorBlue,
	"pending":     ColorYellow,
	"maintenance": ColorOrange,
	"broken":      ColorRed,
	"lost":        ColorGray,
	"archived":    ColorGray,
}

func init() {
	registerAssets()
}

func registerAssets() {
	core.Register(core.Schema{
		Key:        "assets",
		Label:      "Assets",
		NameField:  "name",
		TagField:   "asset_tag",
		OwnerField: "custodian_id",
		Fields: []core.FieldSpec{
			{Name: "name", Label: "Name", Aliases: []string{"asset_name", "title"}, Type: core.FieldString, Required: true},
			{Name: "asset_tag", Label: "Asset tag", Aliases: []string{"tag", "asset_id", "asset_number"}, Type: core.FieldString},
			{Name: "category", Label: "Category", Aliases: []string{"type", "asset_type"}, Type: core.FieldString},
			{Name: "status", Label: "Status", Aliases: []string{"state", "asset_status"}, Type: core.FieldEnum, Default: "ready", EnumValues: AssetStatuses},
			{Name: "serial_number", Label: "Serial number", Aliases: []string{"serial", "serial_no"}, Type: core.FieldString},
			{Name: "quantity", Label: "Quantity", Aliases: []string{"qty", "count"}, Type: core.FieldInteger, Default: "1"},
			{Name: "purchase_cost", Label: "Purchase cost", Aliases: []string{"cost", "price"}, Type: core.FieldDecimal},
			{Name: "purchase_date", Label: "Purchase date", Aliases: []string{"purchased", "purchased_on"}, Type: core.FieldDate},
			{Name: "location", Label: "Location", Aliases: []string{"site"}, Type: core.FieldString},
			custodianField(),
			{Name: "notes", Label: "Notes", Aliases: []string{"note", "comments"}, Type: core.FieldString, KeepWhitespace: true},
		},
		Derived: []core.DerivedField{
			{Name: "status_color", From: "status", Compute: colorFor(AssetStatusColors, ColorGray)},
		},
	})
}
