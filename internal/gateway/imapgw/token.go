package imapgw

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// Page tokens encode how many messages from the newest end of the
// mailbox earlier pages have already consumed. They are opaque to
// callers, which lets the store treat IMAP paging exactly like the
// backend's token paging.

func encodeToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("decoding page token: %w", err)
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	return offset, nil
}
