package maskproc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"sync"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"artie/internal/faults"
	"artie/internal/logging"
)

// Settings describes one mask application. Values come from validated
// configuration; Opacity is in [0,1] and Mode is a known blend mode.
type Settings struct {
	MaskPath string
	Opacity  float64
	Mode     BlendMode
}

type loadedMask struct {
	img         image.Image
	fingerprint string
}

// Processor applies overlay masks. Masks are decoded once at Preload and
// reused across every asset; Apply itself holds no mutable state.
type Processor struct {
	logger *slog.Logger

	mu    sync.RWMutex
	masks map[string]loadedMask
}

// NewProcessor builds an empty Processor.
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{
		logger: logging.NewComponentLogger(logger, "maskproc"),
		masks:  make(map[string]loadedMask),
	}
}

// Preload decodes and fingerprints every mask path. Any failure is a
// configuration error: jobs must not start against a broken mask setup.
func (p *Processor) Preload(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := p.loadMask(path); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint returns the stable identity of (mask bytes, opacity, mode).
// It changes whenever the mask file or its settings change, so previously
// composited cache entries miss automatically.
func (p *Processor) Fingerprint(settings Settings) (string, error) {
	mask, err := p.mask(settings.MaskPath)
	if err != nil {
		return "", err
	}
	hasher := sha256.New()
	hasher.Write([]byte(mask.fingerprint))
	fmt.Fprintf(hasher, "|%.4f|%s", settings.Opacity, settings.Mode)
	return hex.EncodeToString(hasher.Sum(nil))[:16], nil
}

// Apply composites the configured mask onto the asset and returns PNG bytes.
// Deterministic: repeated calls with identical inputs yield identical output.
func (p *Processor) Apply(assetBytes []byte, settings Settings) ([]byte, error) {
	mask, err := p.mask(settings.MaskPath)
	if err != nil {
		return nil, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(assetBytes))
	if err != nil {
		return nil, faults.Wrap(faults.ErrCorruption, "maskproc", "apply", "decode asset", err)
	}

	base := toNRGBA(decoded)
	composite(base, mask.img, settings)

	var out bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&out, base); err != nil {
		return nil, faults.Wrap(faults.ErrIO, "maskproc", "apply", "encode composite", err)
	}
	return out.Bytes(), nil
}

func (p *Processor) mask(path string) (loadedMask, error) {
	p.mu.RLock()
	mask, ok := p.masks[path]
	p.mu.RUnlock()
	if ok {
		return mask, nil
	}
	if err := p.loadMask(path); err != nil {
		return loadedMask{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.masks[path], nil
}

func (p *Processor) loadMask(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return faults.Wrap(faults.ErrConfiguration, "maskproc", "load mask", path, err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return faults.Wrap(faults.ErrConfiguration, "maskproc", "load mask", "decode "+path, err)
	}
	sum := sha256.Sum256(data)

	p.mu.Lock()
	p.masks[path] = loadedMask{img: decoded, fingerprint: hex.EncodeToString(sum[:])}
	p.mu.Unlock()

	bounds := decoded.Bounds()
	p.logger.Debug("mask loaded",
		logging.String(logging.FieldEventType, "mask_loaded"),
		logging.String("path", path),
		logging.Int("width", bounds.Dx()),
		logging.Int("height", bounds.Dy()))
	return nil
}

// composite blends mask over base in place. The mask is centered on the
// asset: a smaller mask covers the middle, a larger one is center-cropped;
// both fall out of the same offset arithmetic. The canvas is NRGBA so the
// straight values blendChannel produces are stored as-is; writing them into
// a premultiplied buffer would corrupt any partially transparent pixel.
func composite(base *image.NRGBA, mask image.Image, settings Settings) {
	assetBounds := base.Bounds()
	maskBounds := mask.Bounds()
	offsetX := assetBounds.Min.X + (assetBounds.Dx()-maskBounds.Dx())/2 - maskBounds.Min.X
	offsetY := assetBounds.Min.Y + (assetBounds.Dy()-maskBounds.Dy())/2 - maskBounds.Min.Y

	for my := maskBounds.Min.Y; my < maskBounds.Max.Y; my++ {
		ay := my + offsetY
		if ay < assetBounds.Min.Y || ay >= assetBounds.Max.Y {
			continue
		}
		for mx := maskBounds.Min.X; mx < maskBounds.Max.X; mx++ {
			ax := mx + offsetX
			if ax < assetBounds.Min.X || ax >= assetBounds.Max.X {
				continue
			}
			mr, mg, mb, ma := mask.At(mx, my).RGBA()
			if ma == 0 {
				continue
			}
			alpha := (float64(ma) / 0xffff) * settings.Opacity
			if alpha <= 0 {
				continue
			}
			px := base.NRGBAAt(ax, ay)

			// Mask color channels arrive alpha-premultiplied; unpremultiply
			// before blending so color math happens on straight values.
			maskR := float64(mr) / float64(ma)
			maskG := float64(mg) / float64(ma)
			maskB := float64(mb) / float64(ma)

			assetR := float64(px.R) / 255
			assetG := float64(px.G) / 255
			assetB := float64(px.B) / 255
			assetA := float64(px.A) / 255

			outR := blendChannel(settings.Mode, assetR, maskR, alpha)
			outG := blendChannel(settings.Mode, assetG, maskG, alpha)
			outB := blendChannel(settings.Mode, assetB, maskB, alpha)
			outA := assetA + alpha*(1-assetA)

			base.SetNRGBA(ax, ay, color.NRGBA{
				R: clamp8(outR * 255),
				G: clamp8(outG * 255),
				B: clamp8(outB * 255),
				A: clamp8(outA * 255),
			})
		}
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	bounds := img.Bounds()
	nrgba := image.NewNRGBA(bounds)
	draw.Draw(nrgba, bounds, img, bounds.Min, draw.Src)
	return nrgba
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
