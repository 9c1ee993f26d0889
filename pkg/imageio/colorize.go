package imageio

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"

	"slicestack/internal/models"
)

// Colormap maps intensity 0 to From and 255 to To, blending in L*a*b*
type Colormap struct {
	From colorful.Color
	To   colorful.Color
}

// ParseColormap builds a Colormap from two hex colors such as "#000000" and "#ffcc00"
func ParseColormap(from, to string) (Colormap, error) {
	f, err := colorful.Hex(from)
	if err != nil {
		return Colormap{}, fmt.Errorf("invalid colormap start %q: %w", from, err)
	}
	t, err := colorful.Hex(to)
	if err != nil {
		return Colormap{}, fmt.Errorf("invalid colormap end %q: %w", to, err)
	}
	return Colormap{From: f, To: t}, nil
}

// Colorize renders the first channel of img through cm into a new 3-channel image
func Colorize(img *models.Image, cm Colormap) *models.Image {
	var lut [256][3]byte
	for i := range lut {
		c := cm.From.BlendLab(cm.To, float64(i)/255).Clamped()
		lut[i][0], lut[i][1], lut[i][2] = c.RGB255()
	}

	out := models.NewImage(img.Width, img.Height, 3)
	for p, j := 0, 0; p < len(img.Pix); p, j = p+img.Channels, j+3 {
		rgb := lut[img.Pix[p]]
		out.Pix[j], out.Pix[j+1], out.Pix[j+2] = rgb[0], rgb[1], rgb[2]
	}
	return out
}
