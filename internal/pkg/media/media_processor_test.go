package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yadisk_bot/internal/pkg/apperr"
	"yadisk_bot/internal/pkg/cloud/cloud_service"
)

type fakeFiles struct {
	paths map[string]string
	calls int
}

func (f *fakeFiles) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	f.calls++
	filePath, ok := f.paths[config.FileID]
	if !ok {
		return tgbotapi.File{}, errors.New("file not found")
	}
	return tgbotapi.File{FileID: config.FileID, FilePath: filePath}, nil
}

type fakeCloud struct {
	sourceURL, targetName string
}

func (c *fakeCloud) TransferFile(_ context.Context, _, sourceURL, targetName string) (*cloud_service.Resource, error) {
	c.sourceURL, c.targetName = sourceURL, targetName
	return &cloud_service.Resource{Path: "app:/x/" + targetName, Name: targetName}, nil
}

func TestFromMessage_PicksLargestPhoto(t *testing.T) {
	msg := &tgbotapi.Message{
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", FileUniqueID: "s", FileSize: 100},
			{FileID: "large", FileUniqueID: "abc", FileSize: 3000},
			{FileID: "medium", FileUniqueID: "m", FileSize: 1000},
		},
	}

	requests := FromMessage(msg)
	require.Len(t, requests, 1)
	assert.Equal(t, TransferRequest{
		FileID:   "large",
		FileName: "abc",
		FileSize: 3000,
		MimeType: "image/jpeg",
		Prefix:   "abc",
		Kind:     KindPhoto,
	}, requests[0])
}

func TestFromMessage_Attachments(t *testing.T) {
	msg := &tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "d", FileName: "report.pdf", MimeType: "application/pdf", FileSize: 10},
		Video:    &tgbotapi.Video{FileID: "v", FileName: "clip.mp4", MimeType: "video/mp4", FileSize: 20},
		Audio:    &tgbotapi.Audio{FileID: "a", MimeType: "audio/mpeg", FileSize: 30},
	}

	requests := FromMessage(msg)
	require.Len(t, requests, 3)
	assert.Equal(t, KindDocument, requests[0].Kind)
	assert.Equal(t, "report.pdf", requests[0].FileName)
	assert.Equal(t, KindVideo, requests[1].Kind)
	assert.Equal(t, KindAudio, requests[2].Kind)
	assert.Equal(t, int64(30), requests[2].FileSize)
}

func TestFromMessage_TextOnly(t *testing.T) {
	assert.Empty(t, FromMessage(&tgbotapi.Message{Text: "hello"}))
}

func TestTargetName(t *testing.T) {
	photo := TransferRequest{FileName: "abc", Prefix: "abc", Kind: KindPhoto}
	assert.Equal(t, "abc_photo.jpg", TargetName(photo, "photo.jpg"))

	doc := TransferRequest{FileName: "report.pdf", Kind: KindDocument}
	assert.Equal(t, "report.pdf", TargetName(doc, "file_7.pdf"))

	unnamed := TransferRequest{Kind: KindAudio}
	assert.Equal(t, "file_9.mp3", TargetName(unnamed, "file_9.mp3"))
}

func TestResolvedName(t *testing.T) {
	assert.Equal(t, "file_1.jpg", ResolvedName("photos/file_1.jpg", "image/jpeg"))
	assert.Equal(t, "doc.pdf", ResolvedName("doc.pdf", ""))

	generated := ResolvedName("", "application/pdf")
	assert.True(t, strings.HasSuffix(generated, ".pdf"))
	assert.Len(t, generated, 36+len(".pdf"))

	assert.Len(t, ResolvedName("", "application/x-unknown-thing"), 36)
}

func TestCheckSize(t *testing.T) {
	limit := DefaultMaxFileSize
	assert.Equal(t, int64(20971520), limit)

	assert.NoError(t, CheckSize(TransferRequest{FileSize: 20971520}, limit))

	err := CheckSize(TransferRequest{FileName: "big.iso", FileSize: 20971521}, limit)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSizeLimit)
	assert.ErrorContains(t, err, "big.iso")
}

func TestPrepare_OversizedMakesNoCalls(t *testing.T) {
	files := &fakeFiles{}
	mp := NewMediaProcessor(files, &fakeCloud{}, "TOKEN", 0)

	_, err := mp.Prepare(TransferRequest{FileID: "x", FileName: "big.iso", FileSize: 20971521})
	assert.ErrorIs(t, err, apperr.ErrSizeLimit)
	assert.Equal(t, 0, files.calls)
}

func TestPrepareAndTransfer(t *testing.T) {
	files := &fakeFiles{paths: map[string]string{"large": "photos/photo.jpg"}}
	cloud := &fakeCloud{}
	mp := NewMediaProcessor(files, cloud, "TOKEN", 0)

	prepared, err := mp.Prepare(TransferRequest{FileID: "large", FileName: "abc", Prefix: "abc", FileSize: 20971520, Kind: KindPhoto})
	require.NoError(t, err)
	assert.Equal(t, "https://api.telegram.org/file/botTOKEN/photos/photo.jpg", prepared.SourceURL)
	assert.Equal(t, "abc_photo.jpg", prepared.TargetName)

	resource, err := mp.Transfer(context.Background(), "access", prepared)
	require.NoError(t, err)
	assert.Equal(t, "abc_photo.jpg", resource.Name)
	assert.Equal(t, prepared.SourceURL, cloud.sourceURL)
}

func TestPrepare_GetFileError(t *testing.T) {
	mp := NewMediaProcessor(&fakeFiles{}, &fakeCloud{}, "TOKEN", 0)

	_, err := mp.Prepare(TransferRequest{FileID: "missing", FileSize: 1})
	assert.ErrorIs(t, err, apperr.ErrTransfer)
}
