package normalize

import "strings"

// Essential bill categories counted by the bills-included clause.
const (
	BillElectricity = "electricity"
	BillGas         = "gas"
	BillWater       = "water"
	BillInternet    = "internet"
)

// billAliases maps whole-word aliases to their category, in lookup order.
var billAliases = []struct {
	alias    string
	category string
}{
	{"electricity", BillElectricity},
	{"electric", BillElectricity},
	{"energy", BillElectricity},
	{"gas", BillGas},
	{"water", BillWater},
	{"internet", BillInternet},
	{"wifi", BillInternet},
	{"wi fi", BillInternet},
	{"broadband", BillInternet},
}

// BillCategories returns every essential category named in a bill label,
// so "gas and electric" yields both gas and electricity. Aliases match
// whole words only.
func BillCategories(label string) []string {
	k := Key(label)
	if k == "" {
		return nil
	}
	padded := " " + k + " "

	var out []string
	seen := make(map[string]struct{}, 4)
	for _, a := range billAliases {
		if _, ok := seen[a.category]; ok {
			continue
		}
		if strings.Contains(padded, " "+a.alias+" ") {
			seen[a.category] = struct{}{}
			out = append(out, a.category)
		}
	}
	return out
}

// EssentialBills counts distinct essential categories among the labels.
func EssentialBills(labels []string) int {
	seen := make(map[string]struct{}, 4)
	for _, l := range labels {
		for _, c := range BillCategories(l) {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}
