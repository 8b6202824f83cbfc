package vectortile

import "errors"

// Errors returned by this package.
var (
	ErrMalformed          = errors.New("vectortile: malformed tile data")
	ErrUnsupportedVersion = errors.New("vectortile: unsupported layer version")
	ErrGeometry           = errors.New("vectortile: invalid geometry")
	ErrLayerIndex         = errors.New("vectortile: layer index out of range")
	ErrInvalidTile        = errors.New("vectortile: invalid tile coordinates")
	ErrTileNotFound       = errors.New("vectortile: tile not found")
	ErrReadOnly           = errors.New("vectortile: source is read-only")
)
