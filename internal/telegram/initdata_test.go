package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

const testBotToken = "12345:test-bot-token"

func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+fields[key])
	}
	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secretMac.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	query := url.Values{}
	for key, value := range fields {
		query.Set(key, value)
	}
	query.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return query.Encode()
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	initData := signInitData(t, testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(now.Add(-time.Minute).Unix(), 10),
		"query_id":  "AAE1",
		"user":      `{"id":777000,"first_name":"Aziz","last_name":"Karimov","username":"azizk","photo_url":"https://t.me/i/userpic/a.jpg"}`,
	})

	identity, err := Verify(initData, testBotToken, now, 24*time.Hour)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if identity.TelegramID != 777000 {
		t.Fatalf("unexpected telegram id %d", identity.TelegramID)
	}
	if identity.FullName() != "Aziz Karimov" {
		t.Fatalf("unexpected full name %q", identity.FullName())
	}
	if identity.Username != "azizk" {
		t.Fatalf("unexpected username %q", identity.Username)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	initData := signInitData(t, testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(now.Unix(), 10),
		"user":      `{"id":777000,"first_name":"Aziz"}`,
	})
	tampered := strings.Replace(initData, "777000", "777001", 1)

	if _, err := Verify(tampered, testBotToken, now, 24*time.Hour); err != model.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongBotToken(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	initData := signInitData(t, "999:other-token", map[string]string{
		"auth_date": strconv.FormatInt(now.Unix(), 10),
		"user":      `{"id":777000,"first_name":"Aziz"}`,
	})

	if _, err := Verify(initData, testBotToken, now, 24*time.Hour); err != model.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsStalePayload(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	initData := signInitData(t, testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(now.Add(-25*time.Hour).Unix(), 10),
		"user":      `{"id":777000,"first_name":"Aziz"}`,
	})

	if _, err := Verify(initData, testBotToken, now, 24*time.Hour); err != model.ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsMissingHash(t *testing.T) {
	if _, err := Verify("auth_date=1&user=%7B%22id%22%3A1%7D", testBotToken, time.Now(), time.Hour); err != model.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
