//go:build gofuzz
// +build gofuzz

package fuzz

import "github.com/fontkit/font"

// Fuzz is a fuzz test.
func Fuzz(data []byte) int {
	sfnt, err := font.ParseSFNT(data, 0)
	if err != nil || !sfnt.IsVariable() {
		return 0
	}
	instancer, err := font.NewInstancer(sfnt, font.DefaultDeltaOptions())
	if err != nil {
		return 0
	}
	_, _ = instancer.Instance(nil, font.DefaultInstanceOptions())
	return 1
}
