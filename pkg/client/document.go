package client

import (
	"errors"
	"strings"
)

type DocumentType string

const (
	DocumentCPF  DocumentType = "CPF"
	DocumentCNPJ DocumentType = "CNPJ"
)

var ErrInvalidDocument = errors.New("invalid document")

// Document is a validated Brazilian tax identifier, either an 11 digit CPF
// or a 14 digit CNPJ. Number holds digits only.
type Document struct {
	Number string
	Type   DocumentType
}

// ParseDocument strips non-digit characters and validates the result by
// length and check digits.
func ParseDocument(value string) (Document, error) {
	var sb strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := sb.String()

	switch len(digits) {
	case 11:
		if !validCPF(digits) {
			return Document{}, ErrInvalidDocument
		}
		return Document{Number: digits, Type: DocumentCPF}, nil
	case 14:
		if !validCNPJ(digits) {
			return Document{}, ErrInvalidDocument
		}
		return Document{Number: digits, Type: DocumentCNPJ}, nil
	default:
		return Document{}, ErrInvalidDocument
	}
}

func validCPF(cpf string) bool {
	if allSameDigit(cpf) {
		return false
	}

	weights1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	weights2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}

	first := checkDigit(cpf[:9], weights1)
	second := checkDigit(cpf[:9]+string(rune('0'+first)), weights2)

	return int(cpf[9]-'0') == first && int(cpf[10]-'0') == second
}

// CNPJ check digits are not verified, only the trivially invalid repeated
// digit forms are rejected.
func validCNPJ(cnpj string) bool {
	return !allSameDigit(cnpj)
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
