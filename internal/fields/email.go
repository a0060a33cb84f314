package fields

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

const (
	minTLDLength         = 2
	maxTLDLength         = 4
	suggestionSimilarity = 0.85
)

// BlockedEmailDomains lists misspellings of common providers that are rejected outright.
var BlockedEmailDomains = map[string]struct{}{
	"gmial.com":    {},
	"gmai.com":     {},
	"gmal.com":     {},
	"gnail.com":    {},
	"gmail.co":     {},
	"gmail.con":    {},
	"gmail.com.br": {},
	"hotmial.com":  {},
	"hotmai.com":   {},
	"hotmal.com":   {},
	"hotmail.co":   {},
	"hotmail.con":  {},
	"yahooo.com":   {},
	"yaho.com":     {},
	"outlok.com":   {},
	"outloo.com":   {},
	"iclod.com":    {},
}

// KnownEmailProviders are the domains SuggestEmailDomain proposes.
var KnownEmailProviders = []string{
	"gmail.com",
	"hotmail.com",
	"outlook.com",
	"yahoo.com",
	"yahoo.com.br",
	"icloud.com",
	"live.com",
	"uol.com.br",
	"bol.com.br",
	"terra.com.br",
}

// ValidateEmail accepts local@domain.tld shapes with a 2 to 4 character TLD outside the typo list.
func ValidateEmail(value string) Result {
	value = strings.TrimSpace(value)
	if value == "" {
		return Fail(ReasonRequired)
	}
	_, domain, ok := splitEmail(value)
	if !ok {
		return Fail(ReasonInvalidFormat)
	}

	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 {
		return Fail(ReasonInvalidTLD)
	}
	for _, label := range strings.Split(domain[:dot], ".") {
		if label == "" {
			return Fail(ReasonInvalidFormat)
		}
	}
	tld := domain[dot+1:]
	if len(tld) < minTLDLength || len(tld) > maxTLDLength || !isLetters(tld) {
		return Fail(ReasonInvalidTLD)
	}
	if _, blocked := BlockedEmailDomains[domain]; blocked {
		return Fail(ReasonBlockedDomain)
	}
	return Valid
}

// EmailDomain returns the lowercased domain part of an address, or "" if there is none.
func EmailDomain(value string) string {
	_, domain, ok := splitEmail(strings.TrimSpace(value))
	if !ok {
		return ""
	}
	return domain
}

// SuggestEmailDomain returns the known provider closest to domain, or "" when domain is already
// known or nothing is similar enough.
func SuggestEmailDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}
	best := ""
	var bestScore float32
	for _, known := range KnownEmailProviders {
		if known == domain {
			return ""
		}
		score, err := edlib.StringsSimilarity(domain, known, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = known, score
		}
	}
	if bestScore < suggestionSimilarity {
		return ""
	}
	return best
}

func splitEmail(value string) (string, string, bool) {
	at := strings.IndexByte(value, '@')
	if at <= 0 || at != strings.LastIndexByte(value, '@') || at == len(value)-1 {
		return "", "", false
	}
	if strings.ContainsAny(value, " \t\r\n") {
		return "", "", false
	}
	return value[:at], strings.ToLower(value[at+1:]), true
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
