package preview

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var reIllegalFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
var reCollapseSpaces = regexp.MustCompile(`\s+`)

// ErrEmptySanitizedName is returned by Sanitize when a name consists
// entirely of characters illegal on common filesystems (or whitespace),
// leaving nothing to build a filename from (spec.md's filename-sanitizer
// boundary behavior: "empty result is rejected").
var ErrEmptySanitizedName = errors.New("sanitized name is empty")

// Sanitize implements spec §4.3 step 7: strip characters illegal on common
// filesystems and collapse runs of whitespace.
func Sanitize(name string) (string, error) {
	stripped := reIllegalFilenameChars.ReplaceAllString(name, "")
	clean := strings.TrimSpace(reCollapseSpaces.ReplaceAllString(stripped, " "))
	if clean == "" {
		return "", ErrEmptySanitizedName
	}
	return clean, nil
}

// TVMainFilename builds the "<Show>/Season NN/<Show> - SNNENN - <Title>.mkv"
// path spec §4.3 step 7 names for a main TV title.
func TVMainFilename(show string, seasonNumber, episodeNumber int, episodeTitle string) (name, path string, err error) {
	show, err = Sanitize(show)
	if err != nil {
		return "", "", fmt.Errorf("sanitize show name: %w", err)
	}
	episodeTitle, err = Sanitize(episodeTitle)
	if err != nil {
		return "", "", fmt.Errorf("sanitize episode title: %w", err)
	}
	seasonDir := fmt.Sprintf("Season %02d", seasonNumber)
	code := fmt.Sprintf("S%02dE%02d", seasonNumber, episodeNumber)

	name = fmt.Sprintf("%s - %s - %s.mkv", show, code, episodeTitle)
	path = fmt.Sprintf("%s/%s/%s", show, seasonDir, name)
	return name, path, nil
}

// TVExtraFilename builds "<Show>/Season NN/Extras/<ExtraName>.mkv".
func TVExtraFilename(show string, seasonNumber int, extraName string) (name, path string, err error) {
	show, err = Sanitize(show)
	if err != nil {
		return "", "", fmt.Errorf("sanitize show name: %w", err)
	}
	extraName, err = Sanitize(extraName)
	if err != nil {
		return "", "", fmt.Errorf("sanitize extra name: %w", err)
	}
	seasonDir := fmt.Sprintf("Season %02d", seasonNumber)

	name = fmt.Sprintf("%s.mkv", extraName)
	path = fmt.Sprintf("%s/%s/Extras/%s", show, seasonDir, name)
	return name, path, nil
}

// MovieMainFilename builds "<Title> (YYYY)/<Title> (YYYY).mkv", with the
// year omitted entirely when unknown.
func MovieMainFilename(title string, year *int) (name, path string, err error) {
	title, err = Sanitize(title)
	if err != nil {
		return "", "", fmt.Errorf("sanitize movie title: %w", err)
	}
	folder := movieFolderName(title, year)

	name = folder + ".mkv"
	path = fmt.Sprintf("%s/%s", folder, name)
	return name, path, nil
}

// MovieExtraFilename builds "<Title> (YYYY)/Extras/<ExtraName>.mkv".
func MovieExtraFilename(title string, year *int, extraName string) (name, path string, err error) {
	title, err = Sanitize(title)
	if err != nil {
		return "", "", fmt.Errorf("sanitize movie title: %w", err)
	}
	extraName, err = Sanitize(extraName)
	if err != nil {
		return "", "", fmt.Errorf("sanitize extra name: %w", err)
	}
	folder := movieFolderName(title, year)

	name = extraName + ".mkv"
	path = fmt.Sprintf("%s/Extras/%s", folder, name)
	return name, path, nil
}

func movieFolderName(title string, year *int) string {
	if year == nil {
		return title
	}
	return fmt.Sprintf("%s (%d)", title, *year)
}
