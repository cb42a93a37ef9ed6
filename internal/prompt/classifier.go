package prompt

// Shape checks for prompts that are easier to express by position than by
// regular expression.

// IsNumeric reports whether s is a line-number continuation prompt: five
// characters, a right-aligned line number in the first three, then a space,
// '*' or 'i' marker and a final space. A digit followed by a space in the
// leading pair is not a right-aligned number.
func IsNumeric(s string) bool {
	if len(s) != 5 {
		return false
	}
	if s[4] != ' ' {
		return false
	}
	if s[3] != ' ' && s[3] != '*' && s[3] != 'i' {
		return false
	}
	if !isDigit(s[2]) {
		return false
	}
	if !isDigitOrSpace(s[0]) || !isDigitOrSpace(s[1]) {
		return false
	}
	if isDigit(s[0]) && s[1] == ' ' {
		return false
	}
	return true
}

// IsTimePrefix reports whether s starts with "HH:MM:SS ".
func IsTimePrefix(s string) bool {
	if len(s) < 9 {
		return false
	}
	return isDigit(s[0]) && isDigit(s[1]) && s[2] == ':' &&
		isDigit(s[3]) && isDigit(s[4]) && s[5] == ':' &&
		isDigit(s[6]) && isDigit(s[7]) && s[8] == ' '
}

// IsContinuation reports whether s is a numeric continuation prompt, with or
// without a "set time on" clock prefix.
func IsContinuation(s string) bool {
	switch len(s) {
	case 5:
		return IsNumeric(s)
	case 14:
		return IsTimePrefix(s) && IsNumeric(s[9:])
	}
	return false
}

func isTimed(tail, prompt string) bool {
	return len(tail) == 9+len(prompt) && IsTimePrefix(tail) && tail[9:] == prompt
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isDigitOrSpace(c byte) bool { return c == ' ' || isDigit(c) }
