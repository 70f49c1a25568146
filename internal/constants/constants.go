package constants

// Папки (статусы) клиентов CRM
// CRM client folders (statuses)
const (
	STATUS_NEW  = "new"
	STATUS_WORK = "work"
	STATUS_PAY  = "pay"
	STATUS_DONE = "done"
)

// Статусы заявок бота приёма заявок
const (
	ORDER_STATUS_NEW     = "new"
	ORDER_STATUS_REPLIED = "replied"
	ORDER_STATUS_ALL     = "all"
)

// Типы чатов Telegram
const (
	CHAT_TYPE_PRIVATE    = "private"
	CHAT_TYPE_GROUP      = "group"
	CHAT_TYPE_SUPERGROUP = "supergroup"
)

// Лимиты Telegram Bot API
const (
	// Длина текста sendMessage.
	MESSAGE_TEXT_LIMIT = 4096
	// Подпись к фото ограничена 1024 символами; оставляем запас под HTML-разметку.
	PHOTO_CAPTION_SAFE_LIMIT = 1000
	// Файлы меньше этого размера считаем повреждёнными (заявки на ретушь).
	MIN_PHOTO_BYTES = 100
	// Сколько заявок отдаёт GET /telegram-orders.
	ORDERS_PAGE_LIMIT = 100
	// Сколько последних сообщений каждого клиента отдаёт CRM-панель и выгрузка.
	THREAD_MESSAGES_LIMIT = 200
)

// Ключ старта, который кладём в ссылку на бота с сайта.
const BOT_START_PAYLOAD = "site"

// StatusDisplayMap - подписи папок для списков и клавиатуры.
var StatusDisplayMap = map[string]string{
	STATUS_NEW:  "🟢 НОВЫЕ заявки",
	STATUS_WORK: "🟡 В РАБОТЕ",
	STATUS_PAY:  "🔵 НА ОПЛАТЕ",
	STATUS_DONE: "🟣 ГОТОВО",
}

// StatusBulletMap - маркер строки клиента в списке папки.
var StatusBulletMap = map[string]string{
	STATUS_NEW:  "🔹",
	STATUS_WORK: "🟡",
	STATUS_PAY:  "🔵",
	STATUS_DONE: "🟣",
}

// StatusMovedMap - ответ после переноса клиента в папку.
var StatusMovedMap = map[string]string{
	STATUS_WORK: "Перенесено в 🟡 В РАБОТЕ",
	STATUS_PAY:  "Перенесено в 🔵 НА ОПЛАТЕ",
	STATUS_DONE: "Перенесено в 🟣 ГОТОВО",
}

// FolderButtonMap - надписи кнопок reply-клавиатуры, по которым открывается папка.
var FolderButtonMap = map[string]string{
	"🟢 Новые":     STATUS_NEW,
	"🟡 В работе":  STATUS_WORK,
	"🔵 На оплате": STATUS_PAY,
	"🟣 Готово":    STATUS_DONE,
}

// FolderButtonOrder - порядок кнопок на клавиатуре.
var FolderButtonOrder = []string{"🟢 Новые", "🟡 В работе", "🔵 На оплате", "🟣 Готово"}

// IsClientStatus проверяет, что строка является известной папкой.
func IsClientStatus(status string) bool {
	_, ok := StatusDisplayMap[status]
	return ok
}
