package maskproc

// BlendMode selects how mask pixels combine with asset pixels.
type BlendMode string

const (
	BlendOverlay  BlendMode = "overlay"
	BlendMultiply BlendMode = "multiply"
	BlendScreen   BlendMode = "screen"
)

// ParseBlendMode maps a configuration string to a BlendMode.
func ParseBlendMode(value string) (BlendMode, bool) {
	switch BlendMode(value) {
	case BlendOverlay, BlendMultiply, BlendScreen:
		return BlendMode(value), true
	default:
		return "", false
	}
}

// blendChannel combines one normalized color channel pair. The effective
// alpha passed in already folds the mask pixel's own alpha with the
// configured opacity.
func blendChannel(mode BlendMode, asset, mask, alpha float64) float64 {
	var combined float64
	switch mode {
	case BlendMultiply:
		combined = asset * mask
	case BlendScreen:
		combined = 1 - (1-asset)*(1-mask)
	default: // overlay: straight alpha composite of the mask over the asset
		combined = mask
	}
	return asset*(1-alpha) + combined*alpha
}
