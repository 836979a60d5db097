package motion

import (
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	r1 := NewRect(0, 0, 10, 10)
	r2 := NewRect(5, 5, 10, 10)
	correctAnswer := 25.0 / 175.0
	answer := IoU(r1, r2)
	if math.Abs(answer-correctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correctAnswer)
	}
	if iou := IoU(r1, NewRect(20, 20, 5, 5)); iou != 0 {
		t.Errorf("Disjoint boxes should have zero IoU, got %v", iou)
	}
	if iou := IoU(r1, r1); math.Abs(iou-1) > eps {
		t.Errorf("Box with itself should have IoU 1, got %v", iou)
	}
}

func TestUniqueName(t *testing.T) {
	cases := []struct {
		name     string
		existing []string
		expected string
	}{
		{"knee", nil, "knee"},
		{"knee", []string{"knee"}, "knee2"},
		{"knee", []string{"knee", "knee2"}, "knee3"},
		{"marker9", []string{"marker9"}, "marker10"},
		{"", nil, "1"},
		{"", []string{"1", "2"}, "3"},
		{"7", []string{"7"}, "8"},
	}
	for _, c := range cases {
		answer := UniqueName(c.name, c.existing)
		if answer != c.expected {
			t.Errorf("UniqueName(%q, %v): got %q, expected %q", c.name, c.existing, answer, c.expected)
		}
	}
}
