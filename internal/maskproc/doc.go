// Package maskproc composites configured overlay masks onto downloaded
// artwork.
//
// Apply is a pure function: the same asset bytes and settings always produce
// byte-identical output, which lets the cache key derived composites by a
// fingerprint of the mask file and settings. Masks smaller than the asset are
// centered (not tiled); larger masks are center-cropped. Missing or unreadable
// mask files are configuration errors surfaced at Preload, before any job runs.
package maskproc
