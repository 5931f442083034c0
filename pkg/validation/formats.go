package validation

import (
	"regexp"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Only the shape is checked: month 01-12 and day 01-31, so 2024-02-30 passes.
var (
	datePattern     = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
	dateTimePattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])[Tt ]([01]\d|2[0-3]):[0-5]\d(:[0-5]\d(\.\d+)?)?([Zz]|[+-]([01]\d|2[0-3]):?[0-5]\d)?$`)
)

var registerFormatsOnce sync.Once

type patternFormat struct {
	pattern *regexp.Regexp
}

func (f patternFormat) IsFormat(input interface{}) bool {
	str, ok := input.(string)
	if !ok {
		return true
	}
	return f.pattern.MatchString(str)
}

// registerFormats swaps the library's calendar-aware date checkers for the
// ISO-8601 shape checks forms expect.
func registerFormats() {
	registerFormatsOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("date", patternFormat{pattern: datePattern})
		gojsonschema.FormatCheckers.Add("date-time", patternFormat{pattern: dateTimePattern})
	})
}
