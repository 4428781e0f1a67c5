package services

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"messaging-service/internal/repositories"
)

var errBadCursor = errors.New("malformed cursor")

// Cursors are opaque to callers: base64url over "createdAt|id" with the
// timestamp in RFC3339Nano. The pair matches the keyset the message page query
// orders by.
func encodeCursor(pos repositories.PagePosition) string {
	raw := pos.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.Itoa(pos.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (*repositories.PagePosition, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, errBadCursor
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, errBadCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, errBadCursor
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return nil, errBadCursor
	}

	return &repositories.PagePosition{CreatedAt: createdAt, ID: id}, nil
}
