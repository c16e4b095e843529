package source

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultIgnoreDirs are directory names never descended into.
var DefaultIgnoreDirs = []string{".git", ".hg", ".svn", "node_modules", "bower_components", "vendor"}

// binaryExtensions are media, archive and executable formats that never hold indexable text.
var binaryExtensions = map[string]bool{
	".gif": true, ".jpg": true, ".jpeg": true, ".png": true, ".tiff": true, ".tif": true,
	".ico": true, ".svg": true, ".bmp": true, ".webp": true, ".heif": true, ".heic": true,
	".mpeg": true, ".mp4": true, ".webm": true, ".mov": true, ".mkv": true, ".avi": true,
	".wmv": true, ".mp3": true, ".wav": true, ".ogg": true, ".midi": true, ".mid": true,
	".amr": true, ".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".xz": true, ".bz2": true, ".iso": true, ".dmg": true, ".bin": true, ".exe": true,
	".apk": true, ".torrent": true,
}

// junkFiles match operating system and editor clutter.
var junkFiles = []*regexp.Regexp{
	regexp.MustCompile(`^npm-debug\.log$`),
	regexp.MustCompile(`^\..*\.swp$`),
	regexp.MustCompile(`^\.DS_Store$`),
	regexp.MustCompile(`^\.AppleDouble$`),
	regexp.MustCompile(`^\.LSOverride$`),
	regexp.MustCompile(`^Icon\r$`),
	regexp.MustCompile(`^\._.*`),
	regexp.MustCompile(`^\.Spotlight-V100$`),
	regexp.MustCompile(`\.Trashes`),
	regexp.MustCompile(`^__MACOSX$`),
	regexp.MustCompile(`~$`),
	regexp.MustCompile(`^Thumbs\.db$`),
	regexp.MustCompile(`^ehthumbs\.db$`),
	regexp.MustCompile(`^[Dd]esktop\.ini$`),
	regexp.MustCompile(`@eaDir$`),
}

// IsJunk reports whether the file name is operating system or editor clutter.
func IsJunk(name string) bool {
	for _, re := range junkFiles {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// IsBinaryExtension reports whether ext (with or without the dot) is a media, archive or executable format.
func IsBinaryExtension(ext string) bool {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return binaryExtensions[ext]
}

// ignoredDir reports whether any component of path is an ignored directory name.
func (s *FileSource) ignoredDir(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if s.ignoreDirs[part] {
			return true
		}
	}
	return false
}

// excluded reports whether path is, or is inside, one of the excluded paths.
func (s *FileSource) excluded(path string) bool {
	for _, ex := range s.exclude {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// SkipDir reports whether the directory at path is never descended into.
func (s *FileSource) SkipDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return s.excluded(abs) || s.ignoreDirs[filepath.Base(abs)]
}

// Ignored reports whether the file at path is skipped by name, extension or location.
func (s *FileSource) Ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if s.excluded(abs) || s.ignoredDir(filepath.Dir(abs)) {
		return true
	}
	name := filepath.Base(abs)
	if IsJunk(name) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if IsBinaryExtension(ext) {
		return true
	}
	return len(s.extensions) > 0 && !s.extensions[strings.TrimPrefix(ext, ".")]
}
