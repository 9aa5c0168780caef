package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryvault/memory-vault/internal/model"
)

const iosExport = "[14/02/2024, 09:15:02] Family: \u200eMessages and calls are end-to-end encrypted.\n" +
	"[14/02/2024, 09:15:30] Ann: Good morning \u2600\ufe0f\n" +
	"[14/02/2024, 09:16:00] Bob: Morning!\n" +
	"How did it go?\n" +
	"[14/02/2024, 10:00:00] Ann: \u200e<attached: 00000012-PHOTO-2024-02-14.jpg>\n" +
	"[15/02/2024, 21:30:45] Cid: This message was deleted\n"

func TestParse_IOSBracketFormat(t *testing.T) {
	chat, err := New(Options{}).Parse(strings.NewReader(iosExport), "WhatsApp Chat - Family.txt")
	require.NoError(t, err)

	assert.Equal(t, "Family", chat.Name)
	assert.Equal(t, []string{"Ann", "Bob", "Cid"}, chat.Participants)
	assert.True(t, chat.IsGroup)
	require.Len(t, chat.Messages, 4)
	assert.Equal(t, 4, chat.MessageCount)

	first := chat.Messages[0]
	assert.Equal(t, "msg_1", first.ID)
	assert.Equal(t, time.Date(2024, time.February, 14, 9, 15, 30, 0, time.UTC), first.Timestamp)
	assert.Equal(t, 1, first.EmojiCount)

	assert.Equal(t, "Morning!\nHow did it go?", chat.Messages[1].Content)

	photo := chat.Messages[2]
	assert.True(t, photo.IsMedia)
	assert.Equal(t, model.MessageImage, photo.Type)

	assert.True(t, chat.Messages[3].IsDeleted)
	assert.True(t, chat.StartDate.Equal(first.Timestamp))
	assert.True(t, chat.EndDate.Equal(chat.Messages[3].Timestamp))
}

func TestParse_AndroidTwelveHourFormat(t *testing.T) {
	export := "1/2/24, 9:05 PM - Ann created group \"Trip\"\n" +
		"1/2/24, 9:06 PM - Ann: Tickets booked \U0001F389\U0001F389\n" +
		"1/2/24, 12:10 AM - Bob: <Media omitted>\n"
	chat, err := New(Options{}).Parse(strings.NewReader(export), "WhatsApp Chat with Trip.txt")
	require.NoError(t, err)

	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "Trip", chat.Name)
	assert.False(t, chat.IsGroup)
	assert.Equal(t, time.Date(2024, time.February, 1, 21, 6, 0, 0, time.UTC), chat.Messages[0].Timestamp)
	assert.Equal(t, 2, chat.Messages[0].EmojiCount)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 10, 0, 0, time.UTC), chat.Messages[1].Timestamp)
	assert.True(t, chat.Messages[1].IsMedia)
}

func TestParse_KeepSystem(t *testing.T) {
	export := "01/03/2024, 10:00 - Ann added Bob\n" +
		"01/03/2024, 10:01 - Bob: hi\n"
	chat, err := New(Options{KeepSystem: true}).Parse(strings.NewReader(export), "x.txt")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, model.MessageSystem, chat.Messages[0].Type)
	assert.Empty(t, chat.Messages[0].Sender)
	assert.Equal(t, []string{"Bob"}, chat.Participants)
}

func TestParse_DateOrder(t *testing.T) {
	line := "03/04/2024, 10:00 - Ann: hi\n"

	dmy, err := New(Options{}).Parse(strings.NewReader(line), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, time.April, dmy.Messages[0].Timestamp.Month())

	mdy, err := New(Options{DateOrder: MonthFirst}).Parse(strings.NewReader(line), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, time.March, mdy.Messages[0].Timestamp.Month())

	// the second field cannot be a month, so it must be the day
	swapped, err := New(Options{}).Parse(strings.NewReader("12/25/2023, 08:00 - Ann: xmas\n"), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.December, 25, 8, 0, 0, 0, time.UTC), swapped.Messages[0].Timestamp)

	order, err := ParseDateOrder("mdy")
	require.NoError(t, err)
	assert.Equal(t, MonthFirst, order)
	_, err = ParseDateOrder("YMD")
	assert.Error(t, err)
}

func TestParse_ForwardedMarker(t *testing.T) {
	export := "05/05/2024, 11:00 - Ann: Forwarded\nBig news everyone\n"
	chat, err := New(Options{}).Parse(strings.NewReader(export), "a.txt")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 1)
	assert.True(t, chat.Messages[0].IsForwarded)
	assert.Equal(t, "Big news everyone", chat.Messages[0].Content)
}

func TestParse_InvalidDateIsContinuation(t *testing.T) {
	export := "01/01/2024, 10:00 - Ann: first\n" +
		"31/02/2024, 10:00 - Ann: not a real day\n"
	chat, err := New(Options{}).Parse(strings.NewReader(export), "a.txt")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 1)
	assert.Contains(t, chat.Messages[0].Content, "not a real day")
}

func TestParse_NoMessagesIsValidationError(t *testing.T) {
	_, err := New(Options{}).Parse(strings.NewReader("just some notes\nnothing else\n"), "notes.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestParseBytes_Zip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	photo, err := zw.Create("IMG-0001.jpg")
	require.NoError(t, err)
	_, _ = photo.Write([]byte{0xff, 0xd8})
	txt, err := zw.Create("_chat.txt")
	require.NoError(t, err)
	_, _ = txt.Write([]byte("[01/06/2024, 08:00:00] Ann: hello\n[01/06/2024, 08:01:00] Me: hey\n"))
	require.NoError(t, zw.Close())

	chat, err := New(Options{}).ParseBytes("WhatsApp Chat - Ann.zip", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Ann", chat.Name)
	assert.Len(t, chat.Messages, 2)
}

func TestParseBytes_ZipWithoutChat(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("photo.jpg")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = New(Options{}).ParseBytes("export.zip", buf.Bytes())
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = New(Options{}).ParseBytes("broken.zip", []byte("not a zip"))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestChatNameFromFile(t *testing.T) {
	cases := map[string]string{
		"WhatsApp Chat with Ann.txt":         "Ann",
		"/tmp/WhatsApp Chat - Book Club.zip": "Book Club",
		"family.txt":                         "family",
		"_chat.txt":                          DefaultChatName,
	}
	for in, want := range cases {
		assert.Equal(t, want, ChatNameFromFile(in), in)
	}
}

func TestCountEmoji(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"no emoji here", 0},
		{"\U0001F600", 1},
		// skin tone modifier joins the cluster
		{"\U0001F44D\U0001F3FD", 1},
		// ZWJ family sequence
		{"\U0001F468\u200d\U0001F469\u200d\U0001F467", 1},
		// a flag is two regional indicators
		{"\U0001F1EE\U0001F1F9 pizza \U0001F355", 2},
		{"\u2764\ufe0f\u2764\ufe0f", 2},
		{"1\ufe0f\u20e3 first", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CountEmoji(tc.in), tc.in)
	}
}
