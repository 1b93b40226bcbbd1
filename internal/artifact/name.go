// Package artifact handles the files the dashboard exports: finding the
// newest download, renaming it by window and variable span, and merging the
// renamed exports column-wise into one table.
package artifact

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// invalid replaces characters that common filesystems reject in names.
var invalid = strings.NewReplacer(
	"<", "-", ">", "-", ":", "-", `"`, "-",
	"/", "-", `\`, "-", "|", "-", "?", "-", "*", "-",
)

// Sanitize replaces < > : " / \ | ? * with a hyphen.
func Sanitize(s string) string {
	return invalid.Replace(s)
}

// Name builds the file name of a per-batch export:
//
//	<startDate> <startTime> To <endDate> <endTime> For <first>To<last>Vars.<ext>
//
// first and last are the 1-based inclusive variable ordinals.
func Name(startDate, startTime, endDate, endTime string, first, last int, ext string) string {
	return Sanitize(fmt.Sprintf("%s %s To %s %s For %dTo%dVars.%s",
		startDate, startTime, endDate, endTime, first, last, strings.TrimPrefix(ext, ".")))
}

// CombinedName builds the file name of the merged export.
func CombinedName(startDate, startTime, endDate, endTime, ext string) string {
	return Sanitize(fmt.Sprintf("%s %s To %s %s For AllVars.%s",
		startDate, startTime, endDate, endTime, strings.TrimPrefix(ext, ".")))
}

// ParsedName is the information encoded in a per-batch export name.
type ParsedName struct {
	StartDate string
	StartTime string
	EndDate   string
	EndTime   string
	First     int
	Last      int
	Ext       string
}

var namePattern = regexp.MustCompile(`^(\S+) (\S+) To (\S+) (\S+) For (\d+)To(\d+)Vars\.(\w+)$`)

// ParseName extracts the tokens of a name produced by Name. Combined files
// and unrelated files do not parse.
func ParseName(name string) (ParsedName, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, false
	}
	first, err := strconv.Atoi(m[5])
	if err != nil {
		return ParsedName{}, false
	}
	last, err := strconv.Atoi(m[6])
	if err != nil {
		return ParsedName{}, false
	}
	return ParsedName{
		StartDate: m[1],
		StartTime: m[2],
		EndDate:   m[3],
		EndTime:   m[4],
		First:     first,
		Last:      last,
		Ext:       m[7],
	}, true
}
