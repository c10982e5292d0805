// Package telegram verifies the signed hand-off payload (initData) a
// Telegram WebApp passes to its embedded page. Verification is a pure
// function of the payload, the bot token and the clock; no storage is
// consulted.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

type initDataUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
}

// Verify checks the keyed signature and freshness of initData and returns
// the embedded identity. Signature scheme per the Telegram WebApp spec:
// secret = HMAC-SHA256(key="WebAppData", message=botToken), expected
// hash = hex(HMAC-SHA256(secret, dataCheckString)) where the data check
// string is every field except "hash", sorted by key, joined by newlines.
func Verify(initData, botToken string, now time.Time, maxAge time.Duration) (model.Identity, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return model.Identity{}, model.ErrInvalidSignature
	}

	receivedHash := values.Get("hash")
	if receivedHash == "" {
		return model.Identity{}, model.ErrInvalidSignature
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	dataCheckString := strings.Join(pairs, "\n")

	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	expected := hex.EncodeToString(hmacSHA256(secret, []byte(dataCheckString)))
	if !hmac.Equal([]byte(expected), []byte(receivedHash)) {
		return model.Identity{}, model.ErrInvalidSignature
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return model.Identity{}, model.ErrInvalidSignature
	}
	if maxAge > 0 && now.Sub(time.Unix(authDate, 0)) > maxAge {
		return model.Identity{}, model.ErrExpired
	}

	var user initDataUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return model.Identity{}, model.ErrInvalidSignature
	}
	if user.ID == 0 {
		return model.Identity{}, model.ErrInvalidSignature
	}

	return model.Identity{
		TelegramID: user.ID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Username:   user.Username,
		PhotoURL:   user.PhotoURL,
	}, nil
}

func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
