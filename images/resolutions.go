package images

import (
	"fmt"
	"math"
	"strings"
)

// ResolutionType represents a common name for a camera resolution.
type ResolutionType string

// Supported capture resolutions.
const (
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
)

// Resolution is a named frame size.
type Resolution struct {
	Name ResolutionType `json:"name"`
	// Short is the shorthand accepted in configuration, eg "720p".
	Short string `json:"short"`
	Size  Size   `json:"size"`
}

// GetMegaPixels returns the pixel count in millions, rounded to two decimals.
func (r Resolution) GetMegaPixels() float64 {
	if r.Size.Width <= 0 || r.Size.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Size.Width*r.Size.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Size.Width, r.Size.Height, r.GetMegaPixels())
}

var resolutions = []Resolution{
	{Name: ResolutionTypeNHD, Short: "360p", Size: Size{Width: 640, Height: 360}},
	{Name: ResolutionTypeVGA, Short: "480p", Size: Size{Width: 640, Height: 480}},
	{Name: ResolutionTypeHD720p, Short: "720p", Size: Size{Width: 1280, Height: 720}},
	{Name: ResolutionTypeFHD1080p, Short: "1080p", Size: Size{Width: 1920, Height: 1080}},
	{Name: ResolutionTypeQHD1440p, Short: "1440p", Size: Size{Width: 2560, Height: 1440}},
	{Name: ResolutionType4KUHD, Short: "2160p", Size: Size{Width: 3840, Height: 2160}},
}

// GetResolutionByName looks up a resolution by its full name or shorthand,
// ignoring case.
//
// Arguments:
//   - name: eg "Full HD 1080p" or "1080p".
//
// Returns:
//   - Resolution: The matching resolution.
//   - bool: True if one was found.
func GetResolutionByName(name string) (Resolution, bool) {
	for _, res := range resolutions {
		if strings.EqualFold(name, string(res.Name)) || strings.EqualFold(name, res.Short) {
			return res, true
		}
	}
	return Resolution{}, false
}

// GetHighestResolutionUnderDimensions retrieves the largest resolution that
// fits within width x height.
func GetHighestResolutionUnderDimensions(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool

	for _, res := range resolutions {
		if res.Size.Width <= width && res.Size.Height <= height {
			if !found || res.GetMegaPixels() > highest.GetMegaPixels() {
				highest = res
				found = true
			}
		}
	}
	return highest, found
}
