package reports

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"granit/internal/constants"
	"granit/internal/models"
)

func TestBuildCRMWorkbook(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	threads := []models.ClientThread{
		{
			Client: models.Client{
				ID: 1, TelegramID: 123456789, Username: "ivan", FullName: "Иван Петров",
				Status: constants.STATUS_WORK, LastContact: models.NewNullTime(created),
			},
			MessageCount: 2,
			Messages: []models.ChatMessage{
				{ID: 11, Message: "Здравствуйте, цена?", IsFromClient: true, CreatedAt: created},
				{ID: 12, Message: "От 45 000 ₽", PhotoFileID: models.NewNullString("AgAC"), CreatedAt: created.Add(time.Hour)},
			},
		},
		{Client: models.Client{ID: 2, TelegramID: 987654321, FullName: "Анна", Status: constants.STATUS_NEW}},
	}

	buf, err := BuildCRMWorkbook(threads, time.UTC)
	if err != nil {
		t.Fatalf("BuildCRMWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != ClientsSheet || sheets[1] != MessagesSheet {
		t.Fatalf("sheets = %v", sheets)
	}

	clients, err := f.GetRows(ClientsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(clients) != 3 {
		t.Fatalf("client rows = %d", len(clients))
	}
	if clients[1][1] != "123456789" || clients[1][2] != "@ivan" || clients[1][4] != "🟡 В РАБОТЕ" || clients[1][6] != "14.03.2025 09:30" {
		t.Fatalf("client row = %v", clients[1])
	}

	messages, err := f.GetRows(MessagesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 3 {
		t.Fatalf("message rows = %d", len(messages))
	}
	if messages[1][3] != "Клиент" || messages[2][3] != "Менеджер" || messages[2][5] != "AgAC" {
		t.Fatalf("message rows = %v", messages[1:])
	}
}

func TestExportFileName(t *testing.T) {
	got := ExportFileName(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	if got != "crm_export_20250102_030405.xlsx" {
		t.Fatalf("got %q", got)
	}
}
