package scorer

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var reEmail = regexp.MustCompile(`[\w.%+-]+@[\w.-]+\.[A-Za-z]{2,}`)

const maxPhones = 10

// ExtractEmails returns unique addresses in first-seen order, skipping
// image file names such as logo@2x.png.
func ExtractEmails(html string) []string {
	seen := make(map[string]struct{})
	emails := []string{}
	for _, m := range reEmail.FindAllString(html, -1) {
		if isImageName(m) {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		emails = append(emails, m)
	}
	return emails
}

func isImageName(s string) bool {
	lower := strings.ToLower(s)
	for _, ext := range keywords.ImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ExtractPhones validates phone-like strings against the numbering plan of
// region and returns them in E.164 form, first-seen order.
func ExtractPhones(html, region string) []string {
	seen := make(map[string]struct{})
	phones := []string{}
	for _, candidate := range rePhone.FindAllString(html, -1) {
		num, err := phonenumbers.Parse(candidate, region)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			continue
		}
		e164 := phonenumbers.Format(num, phonenumbers.E164)
		if _, ok := seen[e164]; ok {
			continue
		}
		seen[e164] = struct{}{}
		phones = append(phones, e164)
		if len(phones) == maxPhones {
			break
		}
	}
	return phones
}
