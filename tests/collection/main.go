//go:build gofuzz
// +build gofuzz

package fuzz

import "github.com/fontkit/font"

// Fuzz is a fuzz test.
func Fuzz(data []byte) int {
	sfnts, err := font.ParseCollection(data)
	if err != nil {
		return 0
	}
	builder := font.NewCollectionBuilder(font.CollectionOptions{Format: font.CollectionOTC})
	for _, sfnt := range sfnts {
		builder.Add(sfnt)
	}
	_, _ = builder.Build()
	return 1
}
