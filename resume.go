package main

import (
	"path/filepath"
	"time"

	"github.com/llehouerou/ptui/internal/logging"
	"github.com/llehouerou/ptui/internal/state"
)

// navDir returns the absolute directory an image belongs to, used as the
// key for remembered navigation.
func navDir(path string) string {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return filepath.Dir(path)
	}
	return dir
}

// resume returns the index of the image last shown in the directory of
// images[0] and whether the slideshow was running. Unknown or vanished
// images resume at 0.
func resume(nav state.Interface, images []string) (int, bool) {
	if nav == nil || len(images) == 0 {
		return 0, false
	}
	dir := navDir(images[0])
	saved, err := nav.GetNavigation(dir)
	if err != nil {
		logging.Warn("resume %s: %v", dir, err)
		return 0, false
	}
	if saved == nil {
		return 0, false
	}
	for i, img := range images {
		if filepath.Base(img) == saved.SelectedName && navDir(img) == dir {
			return i, saved.Slideshow
		}
	}
	return 0, saved.Slideshow
}

// remember records path as the selection of its directory.
func remember(nav state.Interface, path string, playing bool, now time.Time) {
	if nav == nil || path == "" {
		return
	}
	nav.SaveNavigation(state.NavigationState{
		Dir:          navDir(path),
		SelectedName: filepath.Base(path),
		Slideshow:    playing,
		UpdatedAt:    now,
	})
}
