package formatters

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"granit/internal/constants"
	"granit/internal/models"
	"granit/internal/utils"
)

const (
	// ClientPhotoCaption - подпись фото, отправленного отдельно от длинного текста.
	ClientPhotoCaption = "📸 Фото от клиента"
	noUsername         = "нет username"
)

// clientIDMarker ловит "ID: 123" (и "ID: <code>123</code>") из пересланного сообщения
// и "(ID: 123)" из списков папок.
var clientIDMarker = regexp.MustCompile(`ID:(?:\s|</?b>|<code>)*(\d{3,})`)

// usernameMarker ловит первый @username в тексте.
var usernameMarker = regexp.MustCompile(`@([A-Za-z0-9_]{4,32})`)

// FormatClientForward собирает HTML-сообщение для группы менеджеров.
// Метка ID нужна, чтобы по Reply найти клиента.
func FormatClientForward(ci models.ClientIdentity, text string) string {
	name := ci.FullName()
	if name == "" {
		name = "Без имени"
	}

	var b strings.Builder
	b.WriteString("📩 <b>Новое сообщение от клиента</b>\n\n")
	b.WriteString(fmt.Sprintf("👤 <b>Имя:</b> %s\n", utils.EscapeTelegramHTML(name)))
	b.WriteString(fmt.Sprintf("🆔 <b>ID:</b> <code>%d</code>\n", ci.TelegramID))
	b.WriteString(fmt.Sprintf("📱 <b>Username:</b> %s", utils.EscapeTelegramHTML(utils.FormatUsername(ci.Username, noUsername))))
	if text != "" {
		b.WriteString("\n\n💬 <b>Сообщение:</b>\n")
		b.WriteString(utils.EscapeTelegramHTML(text))
	}
	b.WriteString("\n\n<i>Чтобы ответить клиенту, используйте Reply на это сообщение</i>")
	return b.String()
}

// FormatClientForwardParts делит пересылку на сообщения не длиннее лимита Telegram.
// Короткий текст уходит одним сообщением FormatClientForward. Длинный: сначала карточка
// клиента, затем части текста, каждая со своей меткой ID.
func FormatClientForwardParts(ci models.ClientIdentity, text string) []string {
	full := FormatClientForward(ci, text)
	if telegramLen(full) <= constants.MESSAGE_TEXT_LIMIT {
		return []string{full}
	}

	chunks := splitEscaped(text, constants.MESSAGE_TEXT_LIMIT-telegramLen(forwardPartHeader(ci.TelegramID, 99, 99)))
	parts := make([]string, 0, len(chunks)+1)
	parts = append(parts, FormatClientForward(ci, ""))
	for i, chunk := range chunks {
		parts = append(parts, forwardPartHeader(ci.TelegramID, i+1, len(chunks))+chunk)
	}
	return parts
}

func forwardPartHeader(telegramID int64, n, total int) string {
	return fmt.Sprintf("💬 <b>Сообщение, часть %d/%d</b> (ID: <code>%d</code>)\n", n, total, telegramID)
}

// telegramLen считает длину так, как её меряет Telegram: в UTF-16 (эмодзи - две единицы).
// Разметка тоже учитывается, поэтому оценка с запасом.
func telegramLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// splitEscaped режет текст по символам так, чтобы каждая часть после HTML-экранирования
// помещалась в limit. Сущности вроде &amp; не разрываются. Разрез переносится на последний
// перевод строки или пробел, если он есть во второй половине части.
func splitEscaped(text string, limit int) []string {
	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		size, cut, lastSpace := 0, 0, -1
		for cut < len(runes) {
			w := telegramLen(utils.EscapeTelegramHTML(string(runes[cut])))
			if size+w > limit {
				break
			}
			size += w
			if runes[cut] == '\n' || runes[cut] == ' ' {
				lastSpace = cut
			}
			cut++
		}
		if cut < len(runes) && lastSpace >= cut/2 {
			cut = lastSpace + 1
		}
		parts = append(parts, utils.EscapeTelegramHTML(string(runes[:cut])))
		runes = runes[cut:]
	}
	return parts
}

// FormatClientPhotoCaption - короткая подпись фото, когда текст ушёл отдельным сообщением.
// ID остаётся в подписи, чтобы на фото тоже можно было ответить.
func FormatClientPhotoCaption(telegramID int64) string {
	return fmt.Sprintf("%s\n🆔 ID: <code>%d</code>", ClientPhotoCaption, telegramID)
}

// FormatWelcome - приветствие при первом обращении клиента (HTML).
func FormatWelcome(firstName string) string {
	name := strings.TrimSpace(firstName)
	greeting := "Привет! 👋"
	if name != "" {
		greeting = fmt.Sprintf("Привет, %s! 👋", utils.EscapeTelegramHTML(name))
	}
	return greeting + "\n\n" +
		"Благодарим за обращение. Наш менеджер скоро ответит на ваш вопрос.\n\n" +
		"Вы можете отправлять текст и фото - мы всё получим!"
}

// ExtractClientIDs возвращает все различные Telegram id из меток "ID: N" в порядке появления.
func ExtractClientIDs(text string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, m := range clientIDMarker.FindAllStringSubmatch(text, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ExtractClientID достаёт Telegram id клиента из текста сообщения, на которое ответил менеджер.
// Если в тексте несколько разных id (список папки), клиент не определён.
func ExtractClientID(text string) (int64, bool) {
	ids := ExtractClientIDs(text)
	if len(ids) != 1 {
		return 0, false
	}
	return ids[0], true
}

// ExtractUsernames возвращает различные @username (без учёта регистра) в порядке появления.
func ExtractUsernames(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range usernameMarker.FindAllStringSubmatch(text, -1) {
		key := strings.ToLower(m[1])
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, m[1])
	}
	return names
}

// ExtractUsername достаёт @username, только если он в тексте один.
func ExtractUsername(text string) (string, bool) {
	names := ExtractUsernames(text)
	if len(names) != 1 {
		return "", false
	}
	return names[0], true
}

// FormatFolderMenu - ответ на /start и /help администратора.
func FormatFolderMenu() string {
	return "📁 Папки заявок:\n" +
		"🟢 Новые — /list_new\n" +
		"🟡 В работе — /list_work\n" +
		"🔵 Оплата — /list_pay\n" +
		"🟣 Готово — /list_done\n\n" +
		"Перенос клиента: /work ID, /pay ID, /done ID"
}

// FormatFolderList - список клиентов папки.
func FormatFolderList(status string, clients []models.Client) string {
	title := constants.StatusDisplayMap[status]
	if len(clients) == 0 {
		return title + ": пусто"
	}
	bullet := constants.StatusBulletMap[status]

	var b strings.Builder
	b.WriteString(title + ":\n\n")
	for _, c := range clients {
		username := c.Username
		if username == "" {
			username = "нет"
		}
		b.WriteString(fmt.Sprintf("%s %s — @%s (ID: %d)\n", bullet, c.FullName, username, c.TelegramID))
	}
	return b.String()
}

// FormatMoveUsage - подсказка для команды переноса без ID.
func FormatMoveUsage(command string) string {
	return fmt.Sprintf("Укажите ID клиента: /%s 123456789", command)
}

// FormatClientNotFound - ответ, если клиента с таким ID нет в CRM.
func FormatClientNotFound(telegramID int64) string {
	return fmt.Sprintf("Клиент с ID %d не найден", telegramID)
}

// FormatSiteOrder - HTML-сводка заказа из корзины для группы менеджеров.
func FormatSiteOrder(order models.SiteOrder) string {
	lines := []string{
		"🛒 <b>Новый заказ с сайта</b>",
		"",
		fmt.Sprintf("👤 <b>Имя:</b> %s", utils.EscapeTelegramHTML(order.Name)),
		fmt.Sprintf("📱 <b>Телефон:</b> %s", utils.EscapeTelegramHTML(order.Phone)),
		"",
		"<b>📦 Заказанные товары:</b>",
	}
	for _, item := range order.Items {
		name := item.Name
		if name == "" {
			name = "Без названия"
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		lines = append(lines, fmt.Sprintf("• %s x%d — %s ₽", utils.EscapeTelegramHTML(name), qty, utils.FormatPrice(item.Total())))
	}
	lines = append(lines, "", fmt.Sprintf("💰 <b>Итого:</b> %s ₽", utils.FormatPrice(float64(order.TotalPrice))))
	return strings.Join(lines, "\n")
}

// FormatQuickMessage - HTML-сообщение формы быстрой связи.
func FormatQuickMessage(qm models.QuickMessage) string {
	lines := []string{"💬 <b>Быстрое сообщение с сайта</b>", ""}
	if qm.Name != "" {
		lines = append(lines, fmt.Sprintf("👤 <b>Имя:</b> %s", utils.EscapeTelegramHTML(qm.Name)))
	}
	lines = append(lines, fmt.Sprintf("📱 <b>Телефон:</b> %s", utils.EscapeTelegramHTML(qm.Phone)))
	if qm.Message != "" {
		lines = append(lines, "", fmt.Sprintf("💭 <b>Сообщение:</b>\n%s", utils.EscapeTelegramHTML(qm.Message)))
	}
	return strings.Join(lines, "\n")
}

// FormatRetouchCaption - подпись документа заявки на ретушь (без разметки).
func FormatRetouchCaption(r models.RetouchRequest) string {
	name, phone, comment := r.Name, r.Phone, r.Comment
	if name == "" {
		name = "Не указано"
	}
	if phone == "" {
		phone = "Не указано"
	}
	if comment == "" {
		comment = "Нет комментария"
	}
	return fmt.Sprintf("🖼 Новая заявка на ретушь фото\n👤 Имя: %s\n📞 Телефон: %s\n💬 Комментарий: %s", name, phone, comment)
}

// FormatOrderReply - ответ администратора на заявку из бота приёма заявок (HTML).
func FormatOrderReply(orderID int64, response string) string {
	return fmt.Sprintf("<b>Ответ на вашу заявку #%d:</b>\n\n%s", orderID, utils.EscapeTelegramHTML(response))
}

// IntakeWelcome - ответ бота приёма заявок на /start (HTML).
const IntakeWelcome = "<b>Добро пожаловать!</b>\n\n" +
	"Вы можете:\n" +
	"• Написать ваш вопрос о памятниках\n" +
	"• Прислать фото для консультации\n" +
	"• Описать желаемый заказ\n\n" +
	"Мы ответим вам в ближайшее время!"

// FormatIntakeAccepted - подтверждение сохранённой заявки (HTML).
func FormatIntakeAccepted(orderID int64) string {
	return fmt.Sprintf("✅ <b>Заявка #%d принята!</b>\n\n"+
		"Мы получили ваше сообщение и свяжемся с вами в ближайшее время.\n\n"+
		"Вы можете продолжить отправлять фото или дополнительную информацию.", orderID)
}
