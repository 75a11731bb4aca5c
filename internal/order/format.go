package order

import "strings"

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCardNumber groups digits in fours, e.g. "4242 4242 4242 4242",
// truncated to 19 characters.
func FormatCardNumber(s string) string {
	d := digits(s)
	var b strings.Builder
	for i, r := range d {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > 19 {
		out = out[:19]
	}
	return out
}

// FormatExpiry renders up to four digits as MM/YY. Fewer than two digits
// are returned as typed.
func FormatExpiry(s string) string {
	d := digits(s)
	if len(d) < 2 {
		return d
	}
	if len(d) > 4 {
		d = d[:4]
	}
	return d[:2] + "/" + d[2:]
}

// ClampCVV keeps at most three digits.
func ClampCVV(s string) string {
	d := digits(s)
	if len(d) > 3 {
		d = d[:3]
	}
	return d
}
