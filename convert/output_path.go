package convert

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"sbc/config"
	"sbc/shamela"
	"sbc/state"
)

// Common noise prefix on shamela book titles, stripped for file names.
const bookTitlePrefix = "كتاب "

const maxFileNameRunes = 120

// buildOutputPath returns the output file path based on book metadata and
// configuration. It uses either the default naming scheme or a user-defined
// template, cleans up the path and transliterates it if requested.
func buildOutputPath(meta *shamela.BookMeta, dst string, format config.OutputFmt, env *state.LocalEnv) string {
	if env.Cfg.Document.OutputNameTemplate == "" {
		return filepath.Join(dst, buildDefaultFileName(meta, format, env))
	}

	expandedName, err := expandTemplate(meta, config.OutputNameTemplateFieldName, env.Cfg.Document.OutputNameTemplate, format)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return filepath.Join(dst, buildDefaultFileName(meta, format, env))
	}
	return assemblePathWithSubdirs(dst, filepath.FromSlash(expandedName), format, env)
}

// buildDefaultFileName derives "<title> - <publisher>" with the generic book
// prefix dropped.
func buildDefaultFileName(meta *shamela.BookMeta, format config.OutputFmt, env *state.LocalEnv) string {
	name := strings.TrimSpace(strings.TrimPrefix(meta.Title, bookTitlePrefix))
	if name == "" {
		name = meta.Title
	}
	if meta.Publisher != "" {
		name += " - " + meta.Publisher
	}
	if r := []rune(name); len(r) > maxFileNameRunes {
		name = strings.TrimSpace(string(r[:maxFileNameRunes]))
	}
	return cleanPathSegment(name, env) + format.Ext()
}

// assemblePathWithSubdirs takes an expanded template name (which may contain
// path separators for subdirectories) and assembles it into a full output
// path, cleaning and transliterating segments as needed.
func assemblePathWithSubdirs(outDir, expandedName string, format config.OutputFmt, env *state.LocalEnv) string {
	pathSegments := splitAndCleanPath(expandedName)
	if len(pathSegments) == 0 {
		return outDir
	}

	fileName := cleanPathSegment(pathSegments[len(pathSegments)-1], env) + format.Ext()
	dirParts := make([]string, 0, len(pathSegments)+1)
	dirParts = append(dirParts, outDir)

	for _, segment := range pathSegments[:len(pathSegments)-1] {
		dirParts = append(dirParts, cleanPathSegment(segment, env))
	}

	dirParts = append(dirParts, fileName)
	return filepath.Join(dirParts...)
}

func splitAndCleanPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); tail != ""; head, tail = filepath.Split(head) {
		segments = slices.Insert(segments, 0, tail)
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
		path = head
	}

	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Document.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
