package tables

import "github.com/JonMunkholm/stockroom/internal/core"

var (
	// WarehouseUnits are the canonical stock keeping units.
	WarehouseUnits = []string{"each", "box", "pallet", "kg", "litre"}

	// ItemConditions are the canonical item condition values.
	ItemConditions = []string{"new", "used", "refurbished", "damaged"}
)

// ItemConditionColors maps each condition to its badge color.
var ItemConditionColors = map[string]string{
	"new":         ColorGreen,
	"used":        ColorBlue,
	"refurbished": ColorYellow,
	"damaged":     ColorRed,
}

func init() {
	registerWarehouseItems()
}

func registerWarehouseItems() {
	core.Register(core.Schema{
		Key:        "warehouse_items",
		Label:      "Warehouse items",
		NameField:  "name",
		TagField:   "sku",
		OwnerField: "custodian_id",
		Fields: []core.FieldSpec{
			{Name: "name", Label: "Name", Aliases: []string{"item", "item_name", "description"}, Type: core.FieldString, Required: true},
			{Name: "sku", Label: "SKU", Aliases: []string{"item_code", "part_number"}, Type: core.FieldString},
			{Name: "unit", Label: "Unit", Aliases: []string{"uom", "unit_of_measure"}, Type: core.FieldEnum, Default: "each", EnumValues: WarehouseUnits},
			{Name: "quantity", Label: "Quantity", Aliases: []string{"qty", "on_hand"}, Type: core.FieldInteger, Default: "0"},
			{Name: "reorder_level", Label: "Reorder level", Aliases: []string{"reorder_point", "min_qty"}, Type: core.FieldInteger, Default: "0"},
			{Name: "unit_cost", Label: "Unit cost", Aliases: []string{"cost", "price"}, Type: core.FieldDecimal},
			{Name: "condition", Label: "Condition", Aliases: []string{"state"}, Type: core.FieldEnum, Default: "new", EnumValues: ItemConditions},
			{Name: "location", Label: "Location", Aliases: []string{"bin", "shelf"}, Type: core.FieldString},
			custodianField(),
		},
		Derived: []core.DerivedField{
			{Name: "condition_color", From: "condition", Compute: colorFor(ItemConditionColors, ColorGray)},
		},
	})
}
