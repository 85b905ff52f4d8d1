package models

// Catalogue entries the plant works with. Requests may use free text as
// well; these lists only mark which values are already known.
var (
	KnownProductTypes = []string{
		"DUAL GLASS G12R",
		"DUAL GLASS M10",
		"M10 TOPCON",
		"G12R TOPCON",
		"G12 TOPCON",
		"M10 PERC TRANSPARENT",
	}

	KnownMaterialCategories = []string{
		"Cell",
		"Encapsulant",
		"Glass",
		"Junction Box",
		"Backsheet",
		"Flux",
		"Sealant",
		"Connector",
	}

	KnownTestingLaboratories = []string{
		"TUV Rheinland",
		"UL India",
		"URS",
		"PVEL Lab",
		"HPHY6",
	}

	KnownProductionLines = []string{
		"PEPPL (P2)",
		"PEIPL (P4)",
		"PEGEPL (P5)",
		"PEGEPL (P6)",
	}
)

// Unknown returns the values that are not part of known.
func Unknown(values, known []string) []string {
	set := make(map[string]struct{}, len(known))
	for _, k := range known {
		set[k] = struct{}{}
	}
	var out []string
	for _, v := range values {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
