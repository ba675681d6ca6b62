// Copyright (c) 2025 BVK Chaitanya

package gobs

// KeyValue is the backup/restore framing for raw database items.
type KeyValue struct {
	Key   string
	Value []byte
}

type TelegramState struct {
	UserChatIDMap map[string]int64
}
