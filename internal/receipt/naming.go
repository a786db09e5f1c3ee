package receipt

import (
	"regexp"
	"strconv"
	"time"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// Upload prefixes.
const (
	AssignmentsPrefix   = "assignments/"
	RegistrationsPrefix = "registrations/"
)

// Slug replaces every non-alphanumeric character with "-".
func Slug(s string) string { return nonAlnum.ReplaceAllString(s, "-") }

// AssignmentFileName names the receipt of a manual assignment.
func AssignmentFileName(committee string, at time.Time) string {
	return AssignmentsPrefix + Slug(committee) + "-" + strconv.FormatInt(at.UnixMilli(), 10) + ".pdf"
}

// RegistrationFileName names the receipt of a registration.
func RegistrationFileName(reg string, at time.Time) string {
	if reg == "" {
		reg = strconv.FormatInt(at.UnixMilli(), 10)
	}
	return RegistrationsPrefix + "registration-" + Slug(reg) + ".pdf"
}
