package pix

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFieldOrder(t *testing.T) {
	merchant := MerchantProfile{
		PixKey:      "teste@exemplo.com",
		DisplayName: "Loja Teste",
		City:        "Sao Paulo",
	}
	payment := PaymentRequest{
		Amount:        decimal.RequireFromString("25.50"),
		TransactionID: "abc123",
	}
	payload, err := Encode(merchant, payment)
	require.NoError(t, err)

	markers := []string{
		"000201",
		"0014br.gov.bcb.pix",
		"0117teste@exemplo.com",
		"52040000",
		"5303986",
		"540525.50",
		"5802BR",
		"5909LOJATESTE",
		"6008SAOPAULO",
		"62100506abc123",
		"6304",
	}
	pos := 0
	for _, marker := range markers {
		idx := strings.Index(payload[pos:], marker)
		require.GreaterOrEqual(t, idx, 0, "missing %q after offset %d in %q", marker, pos, payload)
		pos += idx + len(marker)
	}
	assert.Len(t, payload, pos+4, "payload must end with the 4 hex checksum digits")
	assert.Equal(t, "00020126390014br.gov.bcb.pix0117teste@exemplo.com520400005303986540525.505802BR5909LOJATESTE6008SAOPAULO62100506abc1236304A853", payload)
}

func TestEncodeChecksumRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		merchant MerchantProfile
		payment  PaymentRequest
	}{
		{
			name:     "email key",
			merchant: MerchantProfile{PixKey: "dono@restaurante.com.br", DisplayName: "Cantina da Nona", City: "Belo Horizonte"},
			payment:  PaymentRequest{Amount: decimal.RequireFromString("89.90"), TransactionID: "PED1042"},
		},
		{
			name:     "cpf key no txid",
			merchant: MerchantProfile{PixKey: "12345678901", DisplayName: "Açaí do Zé", City: "Belém"},
			payment:  PaymentRequest{Amount: decimal.RequireFromString("0.01")},
		},
		{
			name:     "zero amount omits tag 54",
			merchant: MerchantProfile{PixKey: "a1b2c3d4e5f6", DisplayName: "Quiosque", City: "Rio"},
			payment:  PaymentRequest{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := Encode(tc.merchant, tc.payment)
			require.NoError(t, err)
			assert.True(t, Verify(payload), "checksum round trip failed for %q", payload)

			again, err := Encode(tc.merchant, tc.payment)
			require.NoError(t, err)
			assert.Equal(t, payload, again, "encoding must be deterministic")
		})
	}
}

func TestEncodeOmitsAmountWhenZero(t *testing.T) {
	payload, err := Encode(
		MerchantProfile{PixKey: "chave@pix.com", DisplayName: "Bar", City: "Recife"},
		PaymentRequest{},
	)
	require.NoError(t, err)
	assert.NotContains(t, payload, "5404", "tag 54 must be absent for zero amount")
}

func TestEncodeMissingKey(t *testing.T) {
	_, err := Encode(MerchantProfile{PixKey: "  !!??  ", DisplayName: "Loja", City: "Natal"}, PaymentRequest{})
	require.ErrorIs(t, err, ErrMissingMerchantKey)
}

func TestEncodeRejectsOversizedKey(t *testing.T) {
	// A key past the EMV subfield cap would need a 3-digit TLV length and
	// silently corrupt the stream; it must be refused instead.
	_, err := Encode(
		MerchantProfile{PixKey: strings.Repeat("a", 80), DisplayName: "Loja", City: "Natal"},
		PaymentRequest{},
	)
	require.ErrorIs(t, err, ErrMerchantKeyTooLong)
}

func TestEncodeEmptyTransactionIDDefaults(t *testing.T) {
	payload, err := Encode(
		MerchantProfile{PixKey: "chave@pix.com", DisplayName: "Loja", City: "Natal"},
		PaymentRequest{Amount: decimal.RequireFromString("10.00")},
	)
	require.NoError(t, err)
	assert.Contains(t, payload, "62070503***")
}

func TestSanitizeTextTruncatesAfterStripping(t *testing.T) {
	// 30 accented characters: truncation must land at character 25 of the
	// sanitized string, not the raw one.
	raw := strings.Repeat("é", 30)
	got := SanitizeText(raw, 25)
	assert.Equal(t, strings.Repeat("E", 25), got)

	assert.Equal(t, "SAOPAULO", SanitizeText("São Paulo", 15))
	assert.Equal(t, "LOJATESTE", SanitizeText("Loja Teste", 25))
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "teste@exemplo.com", SanitizeKey(" teste@exemplo.com "))
	assert.Equal(t, "5511987654321", SanitizeKey("+55 (11) 98765-4321"))
	assert.Equal(t, "", SanitizeKey("###"))
}

func TestChecksumKnownVariant(t *testing.T) {
	// CRC16/CCITT-FALSE check value for "123456789" is 0x29B1.
	assert.Equal(t, uint16(0x29B1), Checksum("123456789"))
}
