package payment

import "regexp"

// Transaction-id extraction and paid-status detection are best-effort
// heuristics against an opaque PIX payload and a free-form status string.
// Both are kept behind small functions so they can be replaced wholesale
// once the backend returns an explicit correlation identifier.

var (
	// (i) explicit txid parameter embedded in the payload
	txidParam = regexp.MustCompile(`txid=([A-Za-z0-9]+)`)

	// (ii) first contiguous alphanumeric run of length >= 25 (EMV merchant
	// account information carries the PSP transaction id this way)
	longAlnumRun = regexp.MustCompile(`[A-Za-z0-9]{25,}`)

	// (iii) first 32-character hex-looking run
	hex32Run = regexp.MustCompile(`[a-fA-F0-9]{32}`)

	// Paid statuses across backend generations: English and Portuguese
	// spellings, with and without accents and gender suffixes. Anything
	// else, including "pending" and "failed", is not a confirmation.
	paidStatus = regexp.MustCompile(`(?i)^\s*(conclu[ií]d[ao]|liquidad[ao]|aprovad[ao]|pag[ao]|approved|completed|paid)\s*$`)
)

// ExtractTxID pulls a transaction identifier out of the opaque payment
// payload. Heuristics apply in order, first match wins; the empty string
// means no identifier could be recovered and manual verification degrades
// to a no-op.
func ExtractTxID(payload string) string {
	if m := txidParam.FindStringSubmatch(payload); m != nil {
		return m[1]
	}
	if m := longAlnumRun.FindString(payload); m != "" {
		return m
	}
	if m := hex32Run.FindString(payload); m != "" {
		return m
	}
	return ""
}

// IsPaidStatus reports whether a backend status string confirms payment
func IsPaidStatus(status string) bool {
	return paidStatus.MatchString(status)
}
