package zipcode

import "sort"

// Mapping maps a ZIP code to the set of county labels it spans.
type Mapping map[string]map[string]struct{}

// Add records label for zip.
func (m Mapping) Add(zip, label string) {
	set, ok := m[zip]
	if !ok {
		set = make(map[string]struct{})
		m[zip] = set
	}
	set[label] = struct{}{}
}

// Has reports whether zip has at least one label.
func (m Mapping) Has(zip string) bool {
	return len(m[zip]) > 0
}

// Labels returns the labels for zip in lexicographic order.
func (m Mapping) Labels(zip string) []string {
	set := m[zip]
	if len(set) == 0 {
		return nil
	}
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Missing returns the ZIPs in zips with no labels in m, in input order.
// Duplicates in zips are preserved.
func (m Mapping) Missing(zips []string) []string {
	var missing []string
	for _, z := range zips {
		if !m.Has(z) {
			missing = append(missing, z)
		}
	}
	return missing
}

// Merge returns a new mapping holding every primary entry plus the secondary
// entries for ZIPs primary does not resolve. A secondary value never
// replaces a primary one. Neither input is modified.
func Merge(primary, secondary Mapping) Mapping {
	out := make(Mapping, len(primary)+len(secondary))
	for zip, set := range primary {
		for label := range set {
			out.Add(zip, label)
		}
	}
	for zip, set := range secondary {
		if primary.Has(zip) {
			continue
		}
		for label := range set {
			out.Add(zip, label)
		}
	}
	return out
}
