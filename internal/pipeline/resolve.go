package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	apperrors "github.com/mediagrab/backend/internal/errors"
	"github.com/mediagrab/backend/internal/fetch"
)

// Characters that are unsafe in filenames on common filesystems
var unsafeFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

const maxTitleRunes = 150

// sanitizeTitle turns a media title into a safe filename stem. The
// title is NFC-normalized first so visually identical names produce
// the same file.
func sanitizeTitle(title string) string {
	s := norm.NFC.String(title)
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxTitleRunes {
		s = string(r[:maxTitleRunes])
		s = strings.TrimSpace(s)
	}
	if s == "" {
		s = "download"
	}
	return s
}

// resolveArtifact locates the file produced by a completed fetch.
// The fetch result's own paths are trusted first; if none of them
// exist on disk, the job directory is scanned, preferring files with
// the expected extension and falling back to the newest file of any
// kind.
func resolveArtifact(result *fetch.Result, dir, ext string) (string, error) {
	if result != nil {
		for _, p := range result.OutputPaths {
			if fileExists(p) {
				return p, nil
			}
		}
		if result.CombinedPath != "" && fileExists(result.CombinedPath) {
			return result.CombinedPath, nil
		}
		for _, e := range result.Entries {
			if e.Path != "" && fileExists(e.Path) {
				return e.Path, nil
			}
		}
	}

	if p := newestFile(dir, "."+ext); p != "" {
		return p, nil
	}
	if p := newestFile(dir, ""); p != "" {
		return p, nil
	}

	return "", apperrors.FileResolutionFailed("no output file found in job directory")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// newestFile returns the most recently modified regular file in dir
// matching the extension suffix, or "" if none. An empty suffix
// matches everything except tool metadata sidecars.
func newestFile(dir, suffix string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var best string
	var bestMod int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".part") {
			continue
		}
		if suffix != "" && !strings.HasSuffix(strings.ToLower(name), suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best = filepath.Join(dir, name)
			bestMod = mod
		}
	}
	return best
}

// renameArtifact renames the resolved file to a title-derived name in
// the same directory. The resolved file keeps its own extension: a
// merge that fell back to .webm or .mkv must not be relabeled with the
// format's default. fallbackExt is used only when the resolved path
// has no extension at all. Renaming is best effort: on any failure the
// original path is kept.
func renameArtifact(path, title, fallbackExt string) (newPath, newName string) {
	dir := filepath.Dir(path)
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = fallbackExt
	}
	name := sanitizeTitle(title) + "." + ext
	target := filepath.Join(dir, name)
	if target == path {
		return path, name
	}
	if fileExists(target) {
		if err := os.Remove(target); err != nil {
			return path, filepath.Base(path)
		}
	}
	if err := os.Rename(path, target); err != nil {
		return path, filepath.Base(path)
	}
	return target, name
}
