package models

import "strings"

// Category groups files by extension for the sidebar filters.
type Category string

const (
	CategoryImages    Category = "images"
	CategoryVideos    Category = "videos"
	CategoryMusic     Category = "music"
	CategoryDocuments Category = "documents"
	CategoryOthers    Category = "others"
)

var categoryExtensions = map[Category][]string{
	CategoryVideos:    {"mp4", "avi", "mov", "wmv", "flv", "mkv", "webm", "3gp", "mpeg", "mpg"},
	CategoryImages:    {"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp", "tiff", "ico"},
	CategoryMusic:     {"mp3", "wav", "ogg", "flac", "aac", "m4a", "wma", "aiff", "alac"},
	CategoryDocuments: {"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "csv", "rtf", "odt", "ods", "odp", "md", "markdown"},
}

var categoryLabels = map[Category]string{
	CategoryImages:    "Images",
	CategoryVideos:    "Videos",
	CategoryMusic:     "Music",
	CategoryDocuments: "Documents",
	CategoryOthers:    "Others",
}

// ParseCategory returns the category named s.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(s))
	_, ok := categoryLabels[c]
	return c, ok
}

// Label returns the display name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return "Files"
}

// Matches reports whether e belongs to the category. Folders never match.
func (c Category) Matches(e FileEntry) bool {
	if e.IsFolder() {
		return false
	}
	if c == CategoryOthers {
		for cat := range categoryExtensions {
			if hasExtension(e.Name, categoryExtensions[cat]) {
				return false
			}
		}
		return true
	}
	return hasExtension(e.Name, categoryExtensions[c])
}

func hasExtension(name string, exts []string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return false
	}
	ext := strings.ToLower(name[i+1:])
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
