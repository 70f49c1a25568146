package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"granit/internal/constants"
	"granit/internal/models"
)

const (
	ClientsSheet  = "Клиенты"
	MessagesSheet = "Сообщения"

	// XLSXContentType - MIME-тип книги Excel.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout = "02.01.2006 15:04"
)

// ExportFileName - имя файла выгрузки на дату.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("crm_export_%s.xlsx", now.Format("20060102_150405"))
}

// BuildCRMWorkbook собирает книгу с двумя листами: клиенты и вся переписка.
func BuildCRMWorkbook(threads []models.ClientThread, loc *time.Location) (*bytes.Buffer, error) {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	defer f.Close()

	clientsIndex, err := f.NewSheet(ClientsSheet)
	if err != nil {
		return nil, fmt.Errorf("создание листа %s: %w", ClientsSheet, err)
	}
	if _, err := f.NewSheet(MessagesSheet); err != nil {
		return nil, fmt.Errorf("создание листа %s: %w", MessagesSheet, err)
	}
	f.DeleteSheet("Sheet1") // Удаляем стандартный лист
	f.SetActiveSheet(clientsIndex)

	clientHeaders := []string{"ID", "Telegram ID", "Username", "Имя", "Папка", "Первый контакт", "Последний контакт", "Сообщений", "Последнее сообщение"}
	if err := writeHeaders(f, ClientsSheet, clientHeaders); err != nil {
		return nil, err
	}
	messageHeaders := []string{"ID сообщения", "Telegram ID клиента", "Клиент", "Автор", "Текст", "Фото (file_id)", "Дата"}
	if err := writeHeaders(f, MessagesSheet, messageHeaders); err != nil {
		return nil, err
	}

	msgRow := 2
	for i, t := range threads {
		row := i + 2
		username := ""
		if t.Username != "" {
			username = "@" + t.Username
		}
		values := []interface{}{
			t.ID,
			t.TelegramID,
			username,
			t.FullName,
			folderName(t.Status),
			formatNullTime(t.FirstContact, loc),
			formatNullTime(t.LastContact, loc),
			t.MessageCount,
			formatNullTime(t.LastMessageTime, loc),
		}
		if err := writeRow(f, ClientsSheet, row, values); err != nil {
			return nil, err
		}

		for _, m := range t.Messages {
			author := "Менеджер"
			if m.IsFromClient {
				author = "Клиент"
			}
			photo := ""
			if m.PhotoFileID.Valid {
				photo = m.PhotoFileID.String
			}
			values := []interface{}{m.ID, t.TelegramID, t.FullName, author, m.Message, photo, m.CreatedAt.In(loc).Format(dateLayout)}
			if err := writeRow(f, MessagesSheet, msgRow, values); err != nil {
				return nil, err
			}
			msgRow++
		}
	}

	_ = f.SetColWidth(ClientsSheet, "C", "G", 20)
	_ = f.SetColWidth(MessagesSheet, "E", "E", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("запись книги Excel: %w", err)
	}
	return buf, nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("заголовок %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("ячейка %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func folderName(status string) string {
	if name, ok := constants.StatusDisplayMap[status]; ok {
		return name
	}
	return status
}

func formatNullTime(t models.NullTime, loc *time.Location) string {
	if !t.Valid {
		return ""
	}
	return t.Time.In(loc).Format(dateLayout)
}
