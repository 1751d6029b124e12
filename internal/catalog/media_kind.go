package catalog

// MediaKind enumerates the artwork/text categories the scraper understands.
// The set is closed: unknown kinds reported by the API are ignored rather
// than treated as errors.
type MediaKind string

const (
	MediaBox2D      MediaKind = "box-2D"
	MediaBox3D      MediaKind = "box-3D"
	MediaMixRBV1    MediaKind = "mixrbv1"
	MediaMixRBV2    MediaKind = "mixrbv2"
	MediaScreenshot MediaKind = "screenshot"
	MediaMarquee    MediaKind = "marquee"
	MediaSynopsis   MediaKind = "synopsis-text"
)

var allMediaKinds = []MediaKind{
	MediaBox2D,
	MediaBox3D,
	MediaMixRBV1,
	MediaMixRBV2,
	MediaScreenshot,
	MediaMarquee,
	MediaSynopsis,
}

// ParseMediaKind maps a string to a known MediaKind.
func ParseMediaKind(value string) (MediaKind, bool) {
	for _, kind := range allMediaKinds {
		if string(kind) == value {
			return kind, true
		}
	}
	return "", false
}

// MediaKinds returns the closed set of known kinds.
func MediaKinds() []MediaKind {
	return append([]MediaKind(nil), allMediaKinds...)
}

// IsText reports whether the kind stores text rather than a raster image.
func (k MediaKind) IsText() bool {
	return k == MediaSynopsis
}

// Maskable reports whether an overlay mask may be composited onto this kind.
func (k MediaKind) Maskable() bool {
	return !k.IsText()
}

// Ext returns the file extension cached assets of this kind use.
func (k MediaKind) Ext() string {
	if k.IsText() {
		return ".txt"
	}
	return ".png"
}

func (k MediaKind) String() string { return string(k) }
