package models

import "strings"

const TelegramRecipientPrefix = "telegram:"

// Message is a rendered notification ready for a transport.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	Headers  map[string]string
}

// IsTelegramRecipient reports whether to addresses a telegram chat rather
// than a mailbox.
func IsTelegramRecipient(to string) bool {
	return strings.HasPrefix(to, TelegramRecipientPrefix)
}
