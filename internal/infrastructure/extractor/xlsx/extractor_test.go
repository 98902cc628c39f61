package xlsx

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractEmitsOneDocumentPerSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fees.xlsx")
	book := excelize.NewFile()
	if err := book.SetCellValue("Sheet1", "A1", "Tuition"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := book.SetCellValue("Sheet1", "B1", "12000"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if _, err := book.NewSheet("Deadlines"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := book.SetCellValue("Deadlines", "A1", "I-20 request by June 1"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := book.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	_ = book.Close()

	docs, err := NewExtractor().Extract(context.Background(), path, "fees.xlsx")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Page != 1 || !strings.Contains(docs[0].Text, "Tuition\t12000") {
		t.Fatalf("unexpected first sheet: %#v", docs[0])
	}
	if docs[1].Page != 2 || docs[1].Source != "fees.xlsx" {
		t.Fatalf("unexpected second sheet: %#v", docs[1])
	}
}
