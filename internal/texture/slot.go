package texture

import (
	"image"

	"github.com/lookaround-map/viewer/pkg/core"
)

// LoadState is the lifecycle of a face texture slot.
//
//	empty -> loading -> loaded <-> upgrading
type LoadState int

const (
	StateEmpty LoadState = iota
	StateLoading
	StateLoaded
	StateUpgrading
)

func (s LoadState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUpgrading:
		return "upgrading"
	default:
		return "unknown"
	}
}

// Slot is the texture state of one face. Source identifies the panorama
// display the slot belongs to and is compared when fetches complete.
type Slot struct {
	Quality core.Quality
	Source  string
	State   LoadState
	Image   image.Image
}
