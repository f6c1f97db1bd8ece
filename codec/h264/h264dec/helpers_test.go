package h264dec

import "testing"

func TestIsInList(t *testing.T) {
	list := []int{100, 110, 122, 244}
	if !isInList(list, 110) {
		t.Error("isInList should find 110 in the list")
	}
	if isInList(list, 66) {
		t.Error("isInList should not find 66 in the list")
	}
}
