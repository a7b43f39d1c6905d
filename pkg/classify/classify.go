// Package classify buckets a filename into one of four media categories by
// its extension, the same four categories (pictures, videos, music,
// documents) the original client used to decide which local folders to
// auto-scan. Extensions are packed into a uint32 key with a base-38
// character code and the table is kept sorted by key for binary search,
// rather than doing string comparisons against 166 entries per lookup.
package classify

import (
	"sort"
	"strings"

	"github.com/nimbusfs/synccore/pkg/metrics"
)

// Category is one of the four media buckets, or Unknown for anything not in
// the table.
type Category uint8

const (
	Unknown Category = iota
	Pictures
	Videos
	Music
	Documents
)

func (c Category) String() string {
	switch c {
	case Pictures:
		return "pictures"
	case Videos:
		return "videos"
	case Music:
		return "music files"
	case Documents:
		return "documents"
	default:
		return "unknown"
	}
}

type entry struct {
	ext string
	cat Category
}

// table lists every recognized extension and its category. Order does not
// matter here; the packed, sorted index below is what lookups actually use.
var table = []entry{
	{"au", Music}, {"dl", Videos}, {"dv", Videos}, {"gl", Videos},
	{"qt", Videos}, {"ra", Music}, {"rm", Music}, {"ts", Videos},
	{"wm", Videos}, {"3gp", Videos}, {"abw", Documents}, {"aif", Music},
	{"amr", Music}, {"ape", Music}, {"art", Pictures}, {"asc", Documents},
	{"asf", Videos}, {"asx", Videos}, {"avi", Videos}, {"awb", Music},
	{"axa", Music}, {"axv", Videos}, {"bmp", Pictures}, {"brf", Documents},
	{"caf", Music}, {"cdr", Pictures}, {"cdt", Pictures}, {"cpt", Pictures},
	{"cr2", Pictures}, {"crw", Pictures}, {"csd", Music}, {"dif", Videos},
	{"djv", Pictures}, {"doc", Documents}, {"dot", Documents}, {"erf", Pictures},
	{"fli", Videos}, {"flv", Videos}, {"gif", Pictures}, {"gsm", Music},
	{"ico", Pictures}, {"ief", Pictures}, {"jng", Pictures}, {"jpe", Pictures},
	{"jpg", Pictures}, {"kar", Music}, {"kpr", Documents}, {"kpt", Documents},
	{"ksp", Documents}, {"kwd", Documents}, {"kwt", Documents}, {"lsf", Videos},
	{"lsx", Videos}, {"m3u", Music}, {"m4a", Music}, {"mdb", Documents},
	{"mid", Music}, {"mkv", Videos}, {"mng", Videos}, {"mov", Videos},
	{"mp2", Music}, {"mp3", Music}, {"mp4", Videos}, {"mpe", Videos},
	{"mpg", Videos}, {"mpv", Videos}, {"mts", Videos}, {"mxu", Videos},
	{"nef", Pictures}, {"odb", Documents}, {"odc", Documents}, {"odi", Pictures},
	{"odm", Documents}, {"odp", Documents}, {"ods", Documents}, {"odt", Documents},
	{"oga", Music}, {"ogg", Music}, {"ogv", Videos}, {"orc", Music},
	{"orf", Pictures}, {"oth", Documents}, {"otp", Documents}, {"ots", Documents},
	{"ott", Documents}, {"pat", Pictures}, {"pbm", Pictures}, {"pcx", Pictures},
	{"pdf", Documents}, {"pgm", Pictures}, {"pls", Music}, {"png", Pictures},
	{"pnm", Pictures}, {"pot", Documents}, {"ppm", Pictures}, {"pps", Documents},
	{"ppt", Documents}, {"psd", Pictures}, {"ram", Music}, {"ras", Pictures},
	{"rgb", Pictures}, {"rtf", Documents}, {"sco", Music}, {"sd2", Music},
	{"sdw", Documents}, {"sgl", Documents}, {"sid", Music}, {"snd", Music},
	{"spx", Music}, {"srt", Documents}, {"stw", Documents}, {"svg", Pictures},
	{"sxg", Documents}, {"sxw", Documents}, {"tif", Pictures}, {"tsa", Videos},
	{"tsv", Videos}, {"txt", Documents}, {"wav", Music}, {"wax", Music},
	{"wma", Music}, {"wmv", Videos}, {"wmx", Videos}, {"wvx", Videos},
	{"xbm", Pictures}, {"xlb", Documents}, {"xls", Documents}, {"xlt", Documents},
	{"xpm", Pictures}, {"xwd", Pictures}, {"aifc", Music}, {"aiff", Music},
	{"chrt", Documents}, {"djvu", Pictures}, {"docm", Documents}, {"docx", Documents},
	{"dotm", Documents}, {"dotx", Documents}, {"flac", Music}, {"jpeg", Pictures},
	{"m2ts", Videos}, {"midi", Music}, {"mpeg", Videos}, {"mpga", Music},
	{"potm", Documents}, {"potx", Documents}, {"ppam", Documents}, {"ppsm", Documents},
	{"ppsx", Documents}, {"pptm", Documents}, {"pptx", Documents}, {"sldm", Documents},
	{"sldx", Documents}, {"svgz", Pictures}, {"text", Documents}, {"tiff", Pictures},
	{"wbmp", Pictures}, {"webm", Videos}, {"xlam", Documents}, {"xlsb", Documents},
	{"xlsm", Documents}, {"xlsx", Documents}, {"xltm", Documents}, {"xltx", Documents},
	{"movie", Videos}, {"mpega", Music},
}

// packedBase is the number of distinct character codes packed per position:
// 26 lowercase letters + 10 digits + 2 reserved codes for '.' and '_'.
const packedBase = 38

func charCode(c byte) uint32 {
	switch {
	case c >= 'a' && c <= 'z':
		return uint32(c-'a') + 1
	case c >= '0' && c <= '9':
		return uint32(c-'0') + 27
	case c == '.':
		return 37
	default:
		return 38 // '_' and anything else unused by the table
	}
}

// pack folds an extension into a single uint32 key, most significant
// character first, so that lexicographic and numeric order agree for
// same-length extensions.
func pack(ext string) uint32 {
	var key uint32
	for i := 0; i < len(ext); i++ {
		key = key*packedBase + charCode(ext[i])
	}
	return key
}

type keyedEntry struct {
	key uint32
	cat Category
}

var sortedKeys []keyedEntry

func init() {
	sortedKeys = make([]keyedEntry, len(table))
	for i, e := range table {
		sortedKeys[i] = keyedEntry{key: pack(e.ext), cat: e.cat}
	}
	sort.Slice(sortedKeys, func(i, j int) bool { return sortedKeys[i].key < sortedKeys[j].key })
}

// Classify returns the media category for filename based on its extension,
// or Unknown if the extension is not recognized or filename has none.
func Classify(filename string) Category {
	cat := classify(filename)
	metrics.FilesClassifiedTotal.WithLabelValues(cat.String()).Inc()
	return cat
}

func classify(filename string) Category {
	ext := extensionOf(filename)
	if ext == "" {
		return Unknown
	}
	key := pack(ext)
	n := len(sortedKeys)
	i := sort.Search(n, func(i int) bool { return sortedKeys[i].key >= key })
	if i < n && sortedKeys[i].key == key {
		return sortedKeys[i].cat
	}
	return Unknown
}

func extensionOf(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// TypeName returns the display name of a category, matching the original
// client's "pictures"/"videos"/"music files"/"documents" labels.
func TypeName(c Category) string { return c.String() }
