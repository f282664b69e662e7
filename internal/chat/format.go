package chat

import (
	"fmt"
	"regexp"
	"strings"
)

// IRC control codes.
const (
	codeBold  = "\x02"
	codeColor = "\x03"
	codeReset = "\x0f"
)

// mIRC color numbers.
const (
	White  = 0
	Black  = 1
	Blue   = 2
	Green  = 3
	Red    = 4
	Brown  = 5
	Purple = 6
	Orange = 7
	Yellow = 8
	Lime   = 9
	Teal   = 10
	Cyan   = 11
	Royal  = 12
	Pink   = 13
	Grey   = 14
	Silver = 15
)

// Bold wraps s in bold codes.
func Bold(s string) string {
	return codeBold + s + codeBold
}

// Colorize wraps s in a foreground color.
func Colorize(s string, color int) string {
	return fmt.Sprintf("%s%02d%s%s", codeColor, color, s, codeColor)
}

var colorRe = regexp.MustCompile("\x03(\\d{1,2}(,\\d{1,2})?)?")

// StripCodes removes all IRC formatting codes.
func StripCodes(s string) string {
	s = colorRe.ReplaceAllString(s, "")
	return strings.NewReplacer(codeBold, "", codeReset, "", "\x1d", "", "\x1f", "").Replace(s)
}

// ToMarkdown converts bold codes to the given markdown marker ("**" for
// Discord, "*" for Slack) and drops the rest.
func ToMarkdown(s, marker string) string {
	s = colorRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, codeBold, marker)
	return strings.NewReplacer(codeReset, "", "\x1d", "", "\x1f", "").Replace(s)
}
