// Package nameparse maps remote CDAS2 names to calendar dates and canonical
// local archive names.
//
// The remote layout is two levels deep: date directories named
// <prefix>.YYYYMMDD, each holding hourly analysis files named
// <prefix>.tHHz.sanl. Locally each file becomes
// sig.anl.YYYYMMDDHH.ieee inside a yyyymmm month directory.
package nameparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/underwoo/ncep-reanal/internal/domain"
)

// Parser derives dates and output names from remote entry names.
// All patterns are anchored; partial matches never count.
type Parser struct {
	prefix  string
	dirPat  *regexp.Regexp
	filePat *regexp.Regexp
}

// New creates a Parser for the given remote name prefix (e.g. "cdas2").
func New(prefix string) *Parser {
	quoted := regexp.QuoteMeta(prefix)
	return &Parser{
		prefix:  prefix,
		dirPat:  regexp.MustCompile(`^` + quoted + `\.(\d{8})$`),
		filePat: regexp.MustCompile(`^` + quoted + `\.t(\d{2})z\.sanl$`),
	}
}

// ParseDirDate extracts the calendar date from a date-directory name.
// The name must be exactly <prefix>.YYYYMMDD and the digits must form a
// real calendar date; anything else yields ok=false. Never an error:
// invalid entries are expected in listings and are skipped by the caller.
func (p *Parser) ParseDirDate(name string) (time.Time, bool) {
	m := p.dirPat.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	date, err := time.Parse("20060102", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// LocalFileName derives the canonical archive name for a remote hourly file.
// The remote name must be exactly <prefix>.tHHz.sanl with a two-digit hour
// code; the hour is not range-checked beyond that. A name that does not
// match returns domain.ErrBadName rather than a malformed output name.
func (p *Parser) LocalFileName(date time.Time, remoteName string) (string, error) {
	m := p.filePat.FindStringSubmatch(remoteName)
	if m == nil {
		return "", fmt.Errorf("%w: %q does not match %s.tHHz.sanl", domain.ErrBadName, remoteName, p.prefix)
	}
	return fmt.Sprintf("sig.anl.%s%s.ieee", date.Format("20060102"), m[1]), nil
}

// OutputSubdir returns the month-partitioned directory name for a date,
// e.g. 2023-01-15 -> "2023jan". Go's month abbreviations are ASCII and
// locale-independent.
func (p *Parser) OutputSubdir(date time.Time) string {
	return strings.ToLower(date.Format("2006Jan"))
}
