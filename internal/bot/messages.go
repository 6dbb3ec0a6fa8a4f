package bot

// Тексты сообщений пользователю
const (
	msgStart = "👋 Привет! Я сохраняю файлы из чата на ваш Яндекс Диск, в папку текущего дня.\n\n" +
		"1. Отправьте /auth и откройте ссылку\n" +
		"2. Пришлите сюда код подтверждения\n" +
		"3. Присылайте фото, документы, видео и аудио"
	msgAuthRequest   = "Для подключения Яндекс Диск нужно отправить в чат код подтверждения"
	msgAuthButton    = "Получить код подтверждения"
	msgConnectPrompt = "Подключите Яндекс Диск командой /auth, либо пришлите код подтверждения"
	msgConnected     = "✅ Яндекс Диск подключен"
	msgFreshCode     = "❌ Код не подошел. Получите новый код командой /auth и пришлите его"
	msgFailure       = "❌ Что-то пошло не так, попробуйте позже"
	msgAdminsOnly    = "⛔ Команда доступна только администраторам"
	msgNoUsers       = "Пользователей пока нет"

	msgTooManyMessages = "⏳ Слишком много сообщений, подождите немного и повторите"

	msgTooLarge       = "Файл %s больше %d мегабайт, бот не может получать такие файлы"
	msgUploading      = "Загружаю файл %s"
	msgUploaded       = "Файл %s загружен"
	msgUploadedLink   = "Файл %s загружен\n%s"
	msgUploadFailed   = "❌ Не удалось загрузить файл %s"
	msgUploadTimedOut = "⏳ Не дождался окончания загрузки файла %s, проверьте Диск позже"
)
