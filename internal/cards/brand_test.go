package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		number string
		want   Brand
	}{
		{name: "visa", number: "4111111111111111", want: BrandVisa},
		{name: "visa formatted", number: "4111 1111 1111 1111", want: BrandVisa},
		{name: "mastercard 5x", number: "5500000000000000", want: BrandMastercard},
		{name: "mastercard 2x", number: "2221000000000009", want: BrandMastercard},
		{name: "amex 34", number: "340000000000000", want: BrandAmex},
		{name: "amex 37", number: "378282246310005", want: BrandAmex},
		{name: "elo six digit", number: "6363680000000000", want: BrandElo},
		{name: "elo 6063", number: "6063000000000000", want: BrandElo},
		{name: "elo 5067", number: "5067000000000000", want: BrandElo},
		{name: "elo prefix shadowed by visa", number: "4389350000000000", want: BrandVisa},
		{name: "unknown", number: "9999999999999999", want: BrandUnknown},
		{name: "mastercard range edge", number: "5600000000000000", want: BrandUnknown},
		{name: "empty", number: "", want: BrandUnknown},
		{name: "no digits", number: "abcd", want: BrandUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.number))
		})
	}
}

func TestCVVLengthFollowsBrand(t *testing.T) {
	assert.Equal(t, 4, CVVLength(Classify("340000000000000")))
	assert.Equal(t, "CID", CVVLabel(BrandAmex))
	for _, brand := range []Brand{BrandVisa, BrandMastercard, BrandElo, BrandUnknown} {
		assert.Equal(t, 3, CVVLength(brand), string(brand))
		assert.Equal(t, "CVV", CVVLabel(brand), string(brand))
	}
}

func TestBrandValid(t *testing.T) {
	assert.True(t, BrandElo.Valid())
	assert.False(t, Brand("diners").Valid())
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "4111111111111111", Digits("4111 1111-1111 1111"))
	assert.Equal(t, "", Digits("abc ٣"))
}
