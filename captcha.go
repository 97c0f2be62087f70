package gzhmu

import (
	_ "embed"
	"image"
	"sync"

	"gopkg.in/yaml.v3"
)

// The SSO login captcha renders a fixed-layout arithmetic expression
// ("<digit><operator><digit> = ?"). Recognition is template matching
// against prerecorded glyph masks: a template pixel passes when the sum
// of its RGB channels is below 765 (darker than pure white).

//go:embed templates.yaml
var glyphAssetData []byte

const darkThreshold = 765

type glyphSpec struct {
	Name   string   `yaml:"name"`
	Origin [2]int   `yaml:"origin"`
	Mask   []string `yaml:"mask"`
}

type glyphAsset struct {
	Version     int         `yaml:"version"`
	Gap         int         `yaml:"gap"`
	LeftOperand []glyphSpec `yaml:"left_operand"`
	Sign        []glyphSpec `yaml:"sign"`
}

type glyphPixel struct {
	row, col int
}

// glyphTemplate holds the absolute pixel coordinates that must be dark
// for the glyph to match.
type glyphTemplate struct {
	name   string
	pixels []glyphPixel
}

func (s glyphSpec) compile() glyphTemplate {
	tpl := glyphTemplate{name: s.Name}
	for r, row := range s.Mask {
		for c, ch := range row {
			if ch == '#' {
				tpl.pixels = append(tpl.pixels, glyphPixel{s.Origin[0] + r, s.Origin[1] + c})
			}
		}
	}
	return tpl
}

type glyphSet struct {
	gap    int
	digits []glyphTemplate
	signs  []glyphTemplate
}

var (
	glyphsOnce sync.Once
	glyphs     *glyphSet
)

// templates parses the embedded asset once. The asset is fixed and
// versioned; a malformed asset is a build defect, not a runtime
// condition.
func templates() *glyphSet {
	glyphsOnce.Do(func() {
		var asset glyphAsset
		if err := yaml.Unmarshal(glyphAssetData, &asset); err != nil {
			panic("gzhmu: malformed captcha template asset: " + err.Error())
		}
		set := &glyphSet{gap: asset.Gap}
		for _, spec := range asset.LeftOperand {
			set.digits = append(set.digits, spec.compile())
		}
		for _, spec := range asset.Sign {
			set.signs = append(set.signs, spec.compile())
		}
		glyphs = set
	})
	return glyphs
}

func isDark(img image.Image, row, col int) bool {
	bounds := img.Bounds()
	x, y := bounds.Min.X+col, bounds.Min.Y+row
	if x < bounds.Min.X || y < bounds.Min.Y || x >= bounds.Max.X || y >= bounds.Max.Y {
		return false
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return int(r>>8)+int(g>>8)+int(b>>8) < darkThreshold
}

// matchClass scans the templates in asset order and returns the index
// of the best match, or -1 when nothing matched at all. The first
// template reaching a perfect rate wins immediately; otherwise the
// highest rate wins with ties broken by scan order. Template order is
// preserved from the asset and matters.
func matchClass(img image.Image, set []glyphTemplate, shift int) int {
	best := -1
	maxRate := 0.0
	for i, tpl := range set {
		score := 0
		for _, p := range tpl.pixels {
			if isDark(img, p.row, p.col+shift) {
				score++
			}
		}
		rate := float64(score) / float64(len(tpl.pixels))
		if rate > maxRate {
			best = i
			if rate == 1 {
				break
			}
			maxRate = rate
		}
	}
	return best
}

// Recognize decodes a rendered arithmetic captcha into its numeric
// answer. It never fails: a wrong recognition simply causes the login
// submission to be rejected, which the caller treats as retryable.
func Recognize(img image.Image) int {
	set := templates()

	left := matchClass(img, set.digits, 0) + 1
	signIdx := matchClass(img, set.signs, 0)
	right := matchClass(img, set.digits, set.gap) + 1

	sign := ""
	if signIdx >= 0 {
		sign = set.signs[signIdx].name
	}

	switch sign {
	case "add":
		return left + right
	case "minus":
		return left - right
	case "multiply":
		return left * right
	default:
		return 0
	}
}
