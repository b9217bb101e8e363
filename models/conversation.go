package models

import (
	"net/url"
	"sort"
)

// ConversationKey is the derived identity of a one-to-one conversation. It is
// a grouping handle only: no row is ever stored for a conversation itself.
type ConversationKey string

// DeriveConversationKey canonicalizes an unordered identity pair into a key.
// Each identity is URL-escaped before joining so an identity containing the
// separator cannot collide with a different pair.
func DeriveConversationKey(a, b string) ConversationKey {
	pair := []string{url.QueryEscape(a), url.QueryEscape(b)}
	sort.Strings(pair)
	return ConversationKey(pair[0] + "|" + pair[1])
}

func (k ConversationKey) String() string {
	return string(k)
}
