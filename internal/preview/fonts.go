package preview

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontCache holds parsed vector fonts. Parsed fonts are safe to share across
// goroutines; faces are not, so each render builds its own faceSet.
type FontCache struct {
	regular *opentype.Font
	bold    *opentype.Font
	err     error
}

// NewFontCache parses the embedded Go fonts once.
func NewFontCache() *FontCache {
	fc := &FontCache{}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		fc.err = fmt.Errorf("parse regular font: %w", err)
		return fc
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		fc.err = fmt.Errorf("parse bold font: %w", err)
		return fc
	}
	fc.regular = regular
	fc.bold = bold
	return fc
}

// Err reports why vector fonts are unavailable, or nil.
func (fc *FontCache) Err() error {
	if fc == nil {
		return fmt.Errorf("font cache not configured")
	}
	return fc.err
}

// Probe reports vector text availability for the startup capability set.
func (fc *FontCache) Probe() (bool, string) {
	if err := fc.Err(); err != nil {
		return false, err.Error()
	}
	return true, ""
}

type faceKey struct {
	sizePt float64
	bold   bool
}

// faceSet caches faces for a single render. Not safe for concurrent use.
type faceSet struct {
	fonts *FontCache
	dpi   float64
	faces map[faceKey]font.Face
}

func newFaceSet(fonts *FontCache, dpi float64) *faceSet {
	return &faceSet{fonts: fonts, dpi: dpi, faces: make(map[faceKey]font.Face)}
}

// face returns a face for the size in points, falling back to the fixed
// bitmap face when vector fonts are unavailable.
func (fs *faceSet) face(sizePt float64, bold bool) font.Face {
	key := faceKey{sizePt: sizePt, bold: bold}
	if f, ok := fs.faces[key]; ok {
		return f
	}
	var f font.Face = basicfont.Face7x13
	if fs.fonts != nil && fs.fonts.err == nil {
		src := fs.fonts.regular
		if bold {
			src = fs.fonts.bold
		}
		vf, err := opentype.NewFace(src, &opentype.FaceOptions{
			Size:    sizePt,
			DPI:     fs.dpi,
			Hinting: font.HintingFull,
		})
		if err == nil {
			f = vf
		}
	}
	fs.faces[key] = f
	return f
}

func (fs *faceSet) close() {
	for _, f := range fs.faces {
		_ = f.Close()
	}
}
