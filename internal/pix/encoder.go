// Package pix builds BR Code payment payloads (the EMV-MPM derived string
// rendered as the "PIX copia e cola" text and as QR codes by storefronts).
package pix

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// ErrMissingMerchantKey is returned when the merchant PIX key is empty after
// sanitization. Callers should hide the PIX payment option instead of
// rendering an unpayable code.
var ErrMissingMerchantKey = errors.New("pix: merchant key missing")

// ErrMerchantKeyTooLong is returned when the sanitized key exceeds the EMV
// field limit. Truncating would route the payment to a key that does not
// exist, so the payload is refused instead.
var ErrMerchantKeyTooLong = errors.New("pix: merchant key too long")

const (
	maxNameLen = 25
	maxCityLen = 15
	maxTxidLen = 25
	// maxKeyLen is the EMV cap on the key subfield. Every TLV length is
	// rendered with two digits, so nothing above 99 can be emitted anyway.
	maxKeyLen = 77

	// defaultTxid is the BR Code convention for "no reference".
	defaultTxid = "***"

	gui = "br.gov.bcb.pix"
)

// MerchantProfile identifies the payment recipient. Values come from the
// establishment configuration and are never mutated here.
type MerchantProfile struct {
	PixKey      string
	DisplayName string
	City        string
}

// PaymentRequest is a one-shot value consumed to produce a single payload.
type PaymentRequest struct {
	Amount        decimal.Decimal
	TransactionID string
}

// Encode produces a static BR Code payload for the merchant and payment.
// The output is a deterministic, pure function of its inputs: TLV fields in
// the order mandated by the EMV-MPM layout, terminated by a CRC16/CCITT-FALSE
// checksum over everything up to and including the "6304" marker.
func Encode(merchant MerchantProfile, payment PaymentRequest) (string, error) {
	key := SanitizeKey(merchant.PixKey)
	if key == "" {
		return "", ErrMissingMerchantKey
	}
	if len(key) > maxKeyLen {
		return "", ErrMerchantKeyTooLong
	}
	name := SanitizeText(merchant.DisplayName, maxNameLen)
	city := SanitizeText(merchant.City, maxCityLen)
	txid := sanitizeTxid(payment.TransactionID)

	var b strings.Builder
	b.WriteString(field("00", "01"))
	b.WriteString(field("26", field("00", gui)+field("01", key)))
	b.WriteString(field("52", "0000"))
	b.WriteString(field("53", "986"))
	if payment.Amount.IsPositive() {
		b.WriteString(field("54", payment.Amount.StringFixed(2)))
	}
	b.WriteString(field("58", "BR"))
	b.WriteString(field("59", name))
	b.WriteString(field("60", city))
	b.WriteString(field("62", field("05", txid)))
	b.WriteString("6304")

	payload := b.String()
	return payload + fmt.Sprintf("%04X", Checksum(payload)), nil
}

// Checksum computes the CRC16/CCITT-FALSE checksum over the payload bytes:
// init 0xFFFF, polynomial 0x1021, no reflection, no final xor.
func Checksum(payload string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(payload); i++ {
		crc ^= uint16(payload[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Verify reports whether the payload's trailing 4 hex digits match the
// checksum recomputed over the rest of the string.
func Verify(payload string) bool {
	if len(payload) < 4 {
		return false
	}
	body := payload[:len(payload)-4]
	return fmt.Sprintf("%04X", Checksum(body)) == payload[len(payload)-4:]
}

// SanitizeKey strips everything outside [a-zA-Z0-9@.] from the merchant key.
// It does not validate the key structurally (CPF/CNPJ/email/phone/UUID);
// that is left to the payment network.
func SanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '@', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeText normalizes a free-text field for payload embedding: Unicode
// decompose, strip combining marks, uppercase, strip outside [A-Z0-9], then
// truncate. Truncation is last on purpose so the limit applies to the
// sanitized length, not the raw one.
func SanitizeText(value string, maxLen int) string {
	decomposed := norm.NFD.String(value)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToUpper(r)
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

func sanitizeTxid(txid string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(txid) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxTxidLen {
		out = out[:maxTxidLen]
	}
	if out == "" {
		return defaultTxid
	}
	return out
}

// field renders one TLV entry: two-digit tag, two-digit zero-padded byte
// length, then the value. Sanitized values are ASCII so byte length equals
// character length.
func field(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}
