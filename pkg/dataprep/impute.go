package dataprep

// MissingCategory is the category a blank categorical cell is imputed to.
const MissingCategory = "None"

// IsMissing reports whether a cell counts as missing.
func IsMissing(v string) bool {
	return v == "" || v == "NA" || v == "NaN"
}

// ImputeConstant replaces missing values with a fixed constant, in place.
func ImputeConstant(col []string, constant string) []string {
	for i, v := range col {
		if IsMissing(v) {
			col[i] = constant
		}
	}
	return col
}

// ImputeValue returns constant when v is missing and v otherwise.
func ImputeValue(v, constant string) string {
	if IsMissing(v) {
		return constant
	}
	return v
}
