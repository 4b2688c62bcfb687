package fat12

import (
	"fmt"
	"strings"

	"github.com/rzos/fat12fs/errors"
)

const shortNameLength = 11

// Characters that can't appear in a short name, in addition to control
// characters and anything outside of ASCII.
const forbiddenNameChars = "\"*+,./:;<=>?[\\]|"

// padShortName truncates or space-pads `name` to exactly 11 bytes.
func padShortName(name string) string {
	if len(name) > shortNameLength {
		return name[:shortNameLength]
	}
	return name + strings.Repeat(" ", shortNameLength-len(name))
}

// HasTextExtension returns true if `name` ends in ".txt" (in any case), or if
// it's an 11-character short name whose extension field is "TXT".
func HasTextExtension(name string) bool {
	if len(name) == shortNameLength && strings.EqualFold(name[8:], "TXT") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), ".txt")
}

func checkNamePart(name, part string, allowSpaces bool) error {
	for _, char := range part {
		if char == ' ' && allowSpaces {
			continue
		}
		if char <= ' ' || char > '~' || strings.ContainsRune(forbiddenNameChars, char) {
			return errors.ErrInvalidName.WithMessage(
				fmt.Sprintf("%q contains invalid character %q", name, char),
			)
		}
	}
	return nil
}

// FormatShortName converts a file name into the 11-byte, space-padded,
// upper-case form used on disk. "hello.txt" becomes "HELLO   TXT".
//
// An 11-character name without a dot is assumed to already be in this form
// and is only upper-cased. Otherwise the name is split at its last dot; the
// base name is truncated to 8 characters and the extension to 3.
func FormatShortName(name string) (string, error) {
	if len(name) == shortNameLength && !strings.Contains(name, ".") {
		if name[0] == ' ' {
			return "", errors.ErrInvalidName.WithMessage(
				fmt.Sprintf("%q has an empty base name", name),
			)
		}
		err := checkNamePart(name, name, true)
		if err != nil {
			return "", err
		}
		return strings.ToUpper(name), nil
	}

	base := name
	extension := ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		base = name[:dot]
		extension = name[dot+1:]
	}

	if base == "" {
		return "", errors.ErrInvalidName.WithMessage(
			fmt.Sprintf("%q has an empty base name", name),
		)
	}

	err := checkNamePart(name, base, false)
	if err != nil {
		return "", err
	}
	err = checkNamePart(name, extension, false)
	if err != nil {
		return "", err
	}

	if len(base) > 8 {
		base = base[:8]
	}
	if len(extension) > 3 {
		extension = extension[:3]
	}

	formatted := fmt.Sprintf("%-8s%-3s", base, extension)
	return strings.ToUpper(formatted), nil
}

// DisplayName converts an 11-byte short name into its human-readable form.
// "HELLO   TXT" becomes "HELLO.TXT" and "README     " becomes "README".
func DisplayName(shortName string) string {
	shortName = padShortName(shortName)
	base := strings.TrimRight(shortName[:8], " ")
	extension := strings.TrimRight(shortName[8:], " ")
	if extension == "" {
		return base
	}
	return base + "." + extension
}
