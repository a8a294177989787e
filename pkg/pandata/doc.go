// Package pandata wraps an array of JSON objects loaded from a file and
// offers equality lookups, removal, sorting and iteration keyed by
// top-level field names.
//
// Typical use:
//
//	items, err := pandata.New().LoadJSON("items.json")
//	if err != nil {
//		return err
//	}
//	byName := items.DelegateGetFirstByKey("name")
//	item := byName.Get("Item 1")
//
// Field values are compared with StrictEqual, so the string "1" never
// matches the number 1. Numeric probes of any Go kind are accepted.
package pandata
