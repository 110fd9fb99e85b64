package core

import "regexp"

// DefaultKeyPrefix namespaces store keys and the update channel.
const DefaultKeyPrefix = "wirechat"

const maxRoomIDLen = 64

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

// ValidateRoomID accepts non-empty ids of URL-unreserved characters.
func ValidateRoomID(id string) error {
	if id == "" || len(id) > maxRoomIDLen || !roomIDPattern.MatchString(id) {
		return ErrInvalidRoomID
	}
	return nil
}

// RoomKey is the store key holding the history of room id.
func RoomKey(prefix, id string) string {
	return prefix + ":room:" + id + ":messages"
}

// UpdatesChannel is the pub/sub channel that carries room ids with new messages.
func UpdatesChannel(prefix string) string {
	return prefix + ":room-updates"
}
