package telegram

import "regexp"

// Runs of currency and symbol characters typical of promo spam.
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[@&₽)$€£¥₹]{3,}`),
	regexp.MustCompile(`[₽₴₸₹₺]{2,}`),
	regexp.MustCompile(`[@#$%^&*]{5,}`),
}

func isSpam(text string) bool {
	if text == "" {
		return false
	}
	for _, re := range spamPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
