package media

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"yadisk_bot/internal/pkg/apperr"
	"yadisk_bot/internal/pkg/cloud/cloud_service"
)

// Лимит Bot API на скачивание файла
const DefaultMaxFileSize int64 = 20 * 1024 * 1024

const (
	KindPhoto    = "photo"
	KindDocument = "document"
	KindVideo    = "video"
	KindAudio    = "audio"
)

// TransferRequest - вложение из сообщения, которое нужно переложить на Диск
type TransferRequest struct {
	FileID   string
	FileName string
	FileSize int64
	MimeType string
	Prefix   string
	Kind     string
}

// FromMessage собирает вложения сообщения: самое большое фото, затем документ, видео и аудио.
func FromMessage(msg *tgbotapi.Message) []TransferRequest {
	var requests []TransferRequest

	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, photo := range msg.Photo[1:] {
			if photo.FileSize > largest.FileSize {
				largest = photo
			}
		}
		requests = append(requests, TransferRequest{
			FileID:   largest.FileID,
			FileName: largest.FileUniqueID,
			FileSize: int64(largest.FileSize),
			MimeType: "image/jpeg",
			Prefix:   largest.FileUniqueID,
			Kind:     KindPhoto,
		})
	}

	if doc := msg.Document; doc != nil {
		requests = append(requests, TransferRequest{
			FileID: doc.FileID, FileName: doc.FileName, FileSize: int64(doc.FileSize), MimeType: doc.MimeType, Kind: KindDocument,
		})
	}
	if video := msg.Video; video != nil {
		requests = append(requests, TransferRequest{
			FileID: video.FileID, FileName: video.FileName, FileSize: int64(video.FileSize), MimeType: video.MimeType, Kind: KindVideo,
		})
	}
	if audio := msg.Audio; audio != nil {
		requests = append(requests, TransferRequest{
			FileID: audio.FileID, FileName: audio.FileName, FileSize: int64(audio.FileSize), MimeType: audio.MimeType, Kind: KindAudio,
		})
	}

	return requests
}

// CheckSize отклоняет файлы, которые Bot API не отдаст.
func CheckSize(req TransferRequest, limit int64) error {
	if req.FileSize > limit {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", apperr.ErrSizeLimit, DisplayName(req), req.FileSize, limit)
	}
	return nil
}

// ResolvedName - последний сегмент пути файла в хранилище Telegram.
// Если пути нет, имя генерируется по MIME-типу.
func ResolvedName(filePath, mimeType string) string {
	if name := path.Base(strings.TrimSpace(filePath)); name != "" && name != "." && name != "/" {
		return name
	}
	return uuid.NewString() + extension(mimeType)
}

// TargetName - имя файла на Диске.
func TargetName(req TransferRequest, resolvedName string) string {
	if req.Prefix != "" {
		return req.Prefix + "_" + resolvedName
	}
	if req.FileName != "" {
		return req.FileName
	}
	return resolvedName
}

// DisplayName - как файл называется в сообщениях пользователю до того, как известно имя на Диске.
func DisplayName(req TransferRequest) string {
	if req.FileName != "" {
		return req.FileName
	}
	return req.Kind
}

var preferredExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"video/mp4":       ".mp4",
	"audio/mpeg":      ".mp3",
	"application/pdf": ".pdf",
}

func extension(mimeType string) string {
	if ext, ok := preferredExtensions[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// FileGetter - часть Bot API, через которую получают путь файла.
type FileGetter interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Transferer - часть конвейера загрузки, которая нужна процессору.
type Transferer interface {
	TransferFile(ctx context.Context, accessToken, sourceURL, targetName string) (*cloud_service.Resource, error)
}

// MediaProcessor превращает вложение Telegram в загрузку на Диск.
type MediaProcessor struct {
	files       FileGetter
	cloud       Transferer
	botToken    string
	maxFileSize int64
}

// Prepared - вложение, для которого известны адрес скачивания и имя на Диске
type Prepared struct {
	Request    TransferRequest
	SourceURL  string
	TargetName string
}

func NewMediaProcessor(files FileGetter, cloud Transferer, botToken string, maxFileSize int64) *MediaProcessor {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &MediaProcessor{files: files, cloud: cloud, botToken: botToken, maxFileSize: maxFileSize}
}

func (mp *MediaProcessor) MaxFileSize() int64 {
	return mp.maxFileSize
}

// Prepare проверяет размер и запрашивает у Telegram путь файла.
func (mp *MediaProcessor) Prepare(req TransferRequest) (*Prepared, error) {
	if err := CheckSize(req, mp.maxFileSize); err != nil {
		return nil, err
	}

	file, err := mp.files.GetFile(tgbotapi.FileConfig{FileID: req.FileID})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get file from Telegram: %v", apperr.ErrTransfer, err)
	}

	return &Prepared{
		Request:    req,
		SourceURL:  file.Link(mp.botToken),
		TargetName: TargetName(req, ResolvedName(file.FilePath, req.MimeType)),
	}, nil
}

// Transfer загружает подготовленный файл на Диск пользователя.
func (mp *MediaProcessor) Transfer(ctx context.Context, accessToken string, p *Prepared) (*cloud_service.Resource, error) {
	return mp.cloud.TransferFile(ctx, accessToken, p.SourceURL, p.TargetName)
}
