package checkout

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hanko-field/storefront/internal/domain"
)

const zipLength = 5

var (
	phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}$`)
)

// Field error messages shown next to the offending input.
const (
	MsgNameRequired    = "Name is required"
	MsgPhoneInvalid    = "Please enter a valid phone number"
	MsgAddressRequired = "Address is required"
	MsgCityRequired    = "City is required"
	MsgZipInvalid      = "Please enter a valid 5-digit ZIP code"
)

// Validate checks every required field and returns the failures. State is optional and never checked.
func Validate(form domain.CheckoutForm) domain.FieldErrors {
	errs := domain.FieldErrors{}
	if strings.TrimSpace(form.Name) == "" {
		errs[domain.FieldName] = MsgNameRequired
	}
	if !phonePattern.MatchString(form.Phone) {
		errs[domain.FieldPhone] = MsgPhoneInvalid
	}
	if strings.TrimSpace(form.Address) == "" {
		errs[domain.FieldAddress] = MsgAddressRequired
	}
	if strings.TrimSpace(form.City) == "" {
		errs[domain.FieldCity] = MsgCityRequired
	}
	if !zipPattern.MatchString(form.Zip) {
		errs[domain.FieldZip] = MsgZipInvalid
	}
	return errs
}

// SanitizeZip strips non-digits and keeps at most five of them.
func SanitizeZip(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(r)
		if b.Len() == zipLength {
			break
		}
	}
	return b.String()
}
