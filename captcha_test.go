package gzhmu

import (
	"fmt"
	"image"
	"image/color"
	"testing"
)

// renderCaptcha draws an arithmetic expression the way the SSO captcha
// lays it out: left digit, operator, right digit shifted by the class
// gap, dark glyphs on a white background.
func renderCaptcha(t *testing.T, left int, sign string, right int) image.Image {
	t.Helper()
	set := templates()

	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}

	paint := func(tpl glyphTemplate, shift int) {
		for _, p := range tpl.pixels {
			img.Set(p.col+shift, p.row, color.Black)
		}
	}

	if left > 0 {
		paint(set.digits[left-1], 0)
	}
	if sign != "" {
		found := false
		for _, tpl := range set.signs {
			if tpl.name == sign {
				paint(tpl, 0)
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("unknown sign template %q", sign)
		}
	}
	if right > 0 {
		paint(set.digits[right-1], set.gap)
	}
	return img
}

func TestRecognize(t *testing.T) {
	tests := []struct {
		left  int
		sign  string
		right int
		want  int
	}{
		{3, "multiply", 4, 12},
		{7, "add", 8, 15},
		{9, "minus", 5, 4},
		{1, "minus", 6, -5},
		{9, "multiply", 9, 81},
	}
	for _, tt := range tests {
		img := renderCaptcha(t, tt.left, tt.sign, tt.right)
		if got := Recognize(img); got != tt.want {
			t.Errorf("Recognize(%d %s %d) = %d, want %d", tt.left, tt.sign, tt.right, got, tt.want)
		}
	}
}

func TestRecognizeAllDigits(t *testing.T) {
	for left := 1; left <= 9; left++ {
		for right := 1; right <= 9; right++ {
			img := renderCaptcha(t, left, "add", right)
			if got := Recognize(img); got != left+right {
				t.Errorf("Recognize(%d add %d) = %d, want %d", left, right, got, left+right)
			}
		}
	}
}

func TestRecognizeNoSign(t *testing.T) {
	img := renderCaptcha(t, 2, "", 5)
	if got := Recognize(img); got != 0 {
		t.Errorf("Recognize without operator = %d, want 0", got)
	}
}

func TestRecognizeBlank(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	if got := Recognize(img); got != 0 {
		t.Errorf("Recognize on blank image = %d, want 0", got)
	}
}

func TestTemplateAsset(t *testing.T) {
	set := templates()
	if len(set.digits) != 9 {
		t.Fatalf("Expected 9 digit templates, got %d", len(set.digits))
	}
	if set.gap <= 0 {
		t.Errorf("Expected positive operand gap, got %d", set.gap)
	}
	names := make(map[string]bool)
	for _, tpl := range set.signs {
		names[tpl.name] = true
	}
	for _, want := range []string{"add", "minus", "multiply"} {
		if !names[want] {
			t.Errorf("Missing sign template %q", want)
		}
	}
}

func ExampleRecognize() {
	set := templates()
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	for _, p := range set.digits[1].pixels {
		img.Set(p.col, p.row, color.Black)
	}
	for _, tpl := range set.signs {
		if tpl.name == "multiply" {
			for _, p := range tpl.pixels {
				img.Set(p.col, p.row, color.Black)
			}
		}
	}
	for _, p := range set.digits[3].pixels {
		img.Set(p.col+set.gap, p.row, color.Black)
	}
	fmt.Println(Recognize(img))
	// Output: 8
}
