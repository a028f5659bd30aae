// Package util - replay sources for recorded frame directories.
package util

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/narrator/images"
	"github.com/pkg/errors"
)

// ImageFile represents a recorded frame on disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from a frame-N name.
	Frame int
	// Format is the encoding implied by the extension.
	Format images.ImageFormat
}

// LoadDirectoryImageFiles lists the frame-N.jpg and frame-N.png files of dir
// in frame order. Other entries are skipped.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The frames, sorted by frame number.
// - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read replay directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := filepath.Ext(name)
		format, ok := images.FormatFromExt(ext)
		if !ok {
			continue
		}

		stem := strings.TrimSuffix(name, ext)
		if !strings.HasPrefix(stem, "frame-") {
			continue
		}
		frame, err := strconv.Atoi(strings.TrimPrefix(stem, "frame-"))
		if err != nil {
			continue
		}

		files = append(files, ImageFile{
			Path:   filepath.Join(dir, name),
			Frame:  frame,
			Format: format,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Frame < files[j].Frame
	})

	return files, nil
}

// Decode reads and decodes the frame.
func (f ImageFile) Decode() (image.Image, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frame %s", f.Path)
	}
	img, err := images.DecodeImage(data, f.Format)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode frame %s", f.Path)
	}
	return img, nil
}
