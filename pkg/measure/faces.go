package measure

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/go-drift/tether/pkg/graphics"
)

// FaceSource returns the font face used to measure text in f.
type FaceSource interface {
	Face(f graphics.Font) (font.Face, error)
}

type faceKey struct {
	bold   bool
	italic bool
	size   float64
}

// GoFonts serves faces of the bundled Go font family at any size. Weights of
// medium and above use the bold face. Faces are cached per size and style.
type GoFonts struct {
	once  sync.Once
	err   error
	fonts map[[2]bool]*opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

func (g *GoFonts) parse() {
	sources := map[[2]bool][]byte{
		{false, false}: goregular.TTF,
		{true, false}:  gobold.TTF,
		{false, true}:  goitalic.TTF,
		{true, true}:   gobolditalic.TTF,
	}
	g.fonts = make(map[[2]bool]*opentype.Font, len(sources))
	for k, ttf := range sources {
		f, err := opentype.Parse(ttf)
		if err != nil {
			g.err = fmt.Errorf("measure: failed to parse font: %w", err)
			return
		}
		g.fonts[k] = f
	}
}

// Face implements FaceSource.
func (g *GoFonts) Face(f graphics.Font) (font.Face, error) {
	g.once.Do(g.parse)
	if g.err != nil {
		return nil, g.err
	}
	key := faceKey{
		bold:   f.Weight >= graphics.FontWeightMedium,
		italic: f.Style == graphics.FontStyleItalic,
		size:   f.Size,
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if face, ok := g.faces[key]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(g.fonts[[2]bool{key.bold, key.italic}], &opentype.FaceOptions{
		Size:    f.Size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("measure: failed to create face: %w", err)
	}
	if g.faces == nil {
		g.faces = make(map[faceKey]font.Face)
	}
	g.faces[key] = face
	return face, nil
}

// Basic serves the fixed 7x13 bitmap face for every font. Every glyph
// advances 7 pixels and a line is 13 pixels high, which keeps measurements
// predictable.
type Basic struct{}

// Face implements FaceSource.
func (Basic) Face(graphics.Font) (font.Face, error) {
	return basicfont.Face7x13, nil
}
