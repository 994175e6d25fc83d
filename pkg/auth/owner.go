package auth

import (
	"strconv"
	"strings"
)

const (
	userOwnerPrefix   = "user:"
	deviceOwnerPrefix = "device:"
)

// UserOwner is the owner key for a signed-in user.
func UserOwner(userID int64) string {
	return userOwnerPrefix + strconv.FormatInt(userID, 10)
}

// DeviceOwner is the owner key for an anonymous device. Blank ids yield "".
func DeviceOwner(deviceID string) string {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ""
	}
	return deviceOwnerPrefix + deviceID
}

// UserIDFromOwner extracts the user id from a user owner key.
func UserIDFromOwner(owner string) (int64, bool) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(owner), userOwnerPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
