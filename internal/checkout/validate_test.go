package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanko-field/storefront/internal/domain"
)

func TestSanitizeZip(t *testing.T) {
	cases := map[string]string{
		"12a3b45678": "12345",
		"":           "",
		"abc":        "",
		"9 8-7":      "987",
		"١٢٣٤٥":      "",
		"123456":     "12345",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeZip(in), "input %q", in)
	}
}

func TestValidatePhone(t *testing.T) {
	base := domain.CheckoutForm{Name: "A", Address: "B", City: "C", Zip: "12345"}
	valid := []string{"555-123-4567", "+1 555 123 4567", "5551234567", "          "}
	invalid := []string{"555", "555-123-456a", "++5551234567", ""}

	for _, phone := range valid {
		form := base
		form.Phone = phone
		require.Empty(t, Validate(form), "phone %q should pass", phone)
	}
	for _, phone := range invalid {
		form := base
		form.Phone = phone
		require.Equal(t, domain.FieldErrors{domain.FieldPhone: MsgPhoneInvalid}, Validate(form), "phone %q should fail", phone)
	}
}

func TestValidateZipAndOptionalState(t *testing.T) {
	form := domain.CheckoutForm{Name: "A", Phone: "5551234567", Address: "B", City: "C", Zip: "1234"}
	require.Equal(t, domain.FieldErrors{domain.FieldZip: MsgZipInvalid}, Validate(form))

	form.Zip = "12345"
	form.State = ""
	require.Empty(t, Validate(form))
}
